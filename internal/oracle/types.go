package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/pmgate/internal/eventlog"
)

// Miner names a discovery algorithm.
type Miner string

const (
	Inductive Miner = "inductive"
	Heuristic Miner = "heuristic"
)

// MinerParams are the resolved numeric discovery parameters.
type MinerParams struct {
	NoiseThreshold      float64 `json:"noise_threshold"`
	DependencyThreshold float64 `json:"dependency_threshold"`
	FrequencyThreshold  float64 `json:"frequency_threshold"`
}

// Model is an opaque discovered process model.
type Model struct {
	Name           string          `json:"name"`
	Miner          Miner           `json:"miner"`
	Path           string          `json:"path,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	InitialMarking string          `json:"initial_marking,omitempty"`
	FinalMarking   string          `json:"final_marking,omitempty"`
}

// Method selects the conformance technique.
type Method string

const (
	Alignments  Method = "alignments"
	TokenReplay Method = "token_replay"
)

// ParseMethod validates a configured method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case Alignments, TokenReplay:
		return Method(s), nil
	}
	return "", eventlog.NewConfigurationError("unsupported conformance method: %s", s)
}

// Skip marks the absent side of an alignment move.
const Skip = ">>"

// Move is one alignment step. Either side may be Skip.
type Move struct {
	Log   string
	Model string
}

// MarshalJSON encodes a move as a [log, model] pair.
func (m Move) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{m.Log, m.Model})
}

// UnmarshalJSON decodes a [log, model] pair. JSON null sides become Skip.
func (m *Move) UnmarshalJSON(data []byte) error {
	var pair []*string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("alignment move: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("alignment move: want 2 elements, got %d", len(pair))
	}
	side := func(p *string) string {
		if p == nil {
			return Skip
		}
		return *p
	}
	m.Log, m.Model = side(pair[0]), side(pair[1])
	return nil
}

// CaseResult is the replay outcome for one case. Results are positional:
// the i-th result belongs to the i-th case of the replayed log.
type CaseResult struct {
	Cost    float64 `json:"cost"`
	Fitness float64 `json:"fitness"`
	Moves   []Move  `json:"alignment,omitempty"`
}

// Replay is the per-case output of a conformance oracle.
type Replay struct {
	Method Method       `json:"method"`
	Cases  []CaseResult `json:"results"`
}

// ModelMetrics are the quality dimensions of a model measured against a log.
// A nil field is a metric the oracle could not compute.
type ModelMetrics struct {
	Fitness        *float64 `json:"fitness"`
	Precision      *float64 `json:"precision"`
	Generalization *float64 `json:"generalization"`
	Simplicity     *float64 `json:"simplicity"`
	Soundness      *bool    `json:"soundness"`
}

// Discoverer discovers a process model from a log.
type Discoverer interface {
	Discover(ctx context.Context, log *eventlog.Log, miner Miner, params MinerParams) Result[Model]
}

// Replayer replays a log against a model.
type Replayer interface {
	Replay(ctx context.Context, log *eventlog.Log, model Model, method Method) Result[Replay]
}

// Evaluator measures a model's quality against a log.
type Evaluator interface {
	Evaluate(ctx context.Context, log *eventlog.Log, model Model) Result[ModelMetrics]
}

// Oracle provides every capability.
type Oracle interface {
	Discoverer
	Replayer
	Evaluator
}

// DiscoverFunc adapts a function to Discoverer.
type DiscoverFunc func(ctx context.Context, log *eventlog.Log, miner Miner, params MinerParams) Result[Model]

// Discover calls f.
func (f DiscoverFunc) Discover(ctx context.Context, log *eventlog.Log, miner Miner, params MinerParams) Result[Model] {
	return f(ctx, log, miner, params)
}

// ReplayFunc adapts a function to Replayer.
type ReplayFunc func(ctx context.Context, log *eventlog.Log, model Model, method Method) Result[Replay]

// Replay calls f.
func (f ReplayFunc) Replay(ctx context.Context, log *eventlog.Log, model Model, method Method) Result[Replay] {
	return f(ctx, log, model, method)
}

// EvaluateFunc adapts a function to Evaluator.
type EvaluateFunc func(ctx context.Context, log *eventlog.Log, model Model) Result[ModelMetrics]

// Evaluate calls f.
func (f EvaluateFunc) Evaluate(ctx context.Context, log *eventlog.Log, model Model) Result[ModelMetrics] {
	return f(ctx, log, model)
}
