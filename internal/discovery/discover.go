package discovery

import (
	"context"
	"log/slog"

	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/oracle"
)

// Failure records a miner that produced no model.
type Failure struct {
	Miner  oracle.Miner `json:"miner"`
	Reason string       `json:"reason"`
}

// Outcome collects the models and failures of one discovery run.
type Outcome struct {
	Models   []oracle.Model `json:"models"`
	Failures []Failure      `json:"failures"`
}

// ModelPaths maps model name to model path.
func (o Outcome) ModelPaths() map[string]string {
	out := make(map[string]string, len(o.Models))
	for _, m := range o.Models {
		out[m.Name] = m.Path
	}
	return out
}

// Discover runs every miner of sel. Failed miners are logged and recorded;
// they never abort the remaining miners.
func Discover(ctx context.Context, log *eventlog.Log, sel Selection, d oracle.Discoverer) Outcome {
	out := Outcome{Models: []oracle.Model{}, Failures: []Failure{}}
	for _, miner := range sel.Miners() {
		params := minerParams(miner, sel.Params)
		res := d.Discover(ctx, log, miner, params)
		if !res.OK() {
			slog.Warn("miner failed", "miner", miner, "error", res.Err)
			out.Failures = append(out.Failures, Failure{Miner: miner, Reason: res.Reason()})
			continue
		}
		slog.Info("model discovered", "miner", miner, "name", res.Value.Name)
		out.Models = append(out.Models, res.Value)
	}
	return out
}

// minerParams narrows params to those each miner consumes.
func minerParams(miner oracle.Miner, p Params) Params {
	switch miner {
	case oracle.Inductive:
		return Params{NoiseThreshold: p.NoiseThreshold}
	case oracle.Heuristic:
		return Params{DependencyThreshold: p.DependencyThreshold, FrequencyThreshold: p.FrequencyThreshold}
	}
	return p
}
