package discovery

import (
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/oracle"
)

// Strategy is a requested or resolved discovery strategy.
type Strategy string

const (
	Auto      Strategy = "auto"
	Inductive Strategy = "inductive"
	Heuristic Strategy = "heuristic"
	Both      Strategy = "both"
)

// ParseStrategy validates a configured strategy name. Empty selects Auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return Auto, nil
	case Auto, Inductive, Heuristic, Both:
		return Strategy(s), nil
	}
	return "", eventlog.NewConfigurationError("unsupported miner selection: %s", s)
}

// Params are the numeric discovery parameters passed to miners.
type Params = oracle.MinerParams

// DefaultParams returns the default miner parameters.
func DefaultParams() Params {
	return Params{NoiseThreshold: 0.0, DependencyThreshold: 0.5, FrequencyThreshold: 0.0}
}

// DefaultVariantNoiseThreshold is the case share below which a variant is rare.
const DefaultVariantNoiseThreshold = 0.01

// HeuristicFrequencyFloor is the minimum frequency threshold applied when the
// heuristic miner is chosen automatically.
const HeuristicFrequencyFloor = 0.02

// noisyRatio is the ratio above which either signal marks the log noisy.
const noisyRatio = 0.5

// Request is a strategy selection request.
type Request struct {
	Strategy              Strategy
	Params                Params
	VariantNoiseThreshold float64
}

// Signals are the log complexity measures behind a selection.
type Signals struct {
	CaseCount       int     `json:"case_count"`
	VariantCount    int     `json:"variant_count"`
	LowFreqVariants int     `json:"low_frequency_variants"`
	VariantRatio    float64 `json:"variant_ratio"`
	LowFreqRatio    float64 `json:"low_frequency_ratio"`
	Noisy           bool    `json:"noisy"`
}

// Selection is the immutable outcome of Select.
type Selection struct {
	Requested             Strategy `json:"requested"`
	Strategy              Strategy `json:"strategy"`
	Params                Params   `json:"params"`
	VariantNoiseThreshold float64  `json:"variant_noise_threshold"`
	Signals               Signals  `json:"signals"`
}

// Miners lists the miners to run, inductive first.
func (s Selection) Miners() []oracle.Miner {
	switch s.Strategy {
	case Inductive:
		return []oracle.Miner{oracle.Inductive}
	case Heuristic:
		return []oracle.Miner{oracle.Heuristic}
	case Both:
		return []oracle.Miner{oracle.Inductive, oracle.Heuristic}
	}
	return nil
}

// Select resolves req against log.
func Select(log *eventlog.Log, req Request) (Selection, error) {
	requested, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return Selection{}, err
	}
	noise := req.VariantNoiseThreshold
	sig := measure(log, noise)
	sel := Selection{
		Requested:             requested,
		Strategy:              requested,
		Params:                req.Params,
		VariantNoiseThreshold: noise,
		Signals:               sig,
	}
	if requested != Auto {
		return sel, nil
	}

	if sig.Noisy {
		sel.Strategy = Heuristic
		sel.Params.FrequencyThreshold = max(sel.Params.FrequencyThreshold, HeuristicFrequencyFloor)
	} else {
		sel.Strategy = Inductive
	}
	return sel, nil
}

func measure(log *eventlog.Log, noise float64) Signals {
	variants := log.Variants()
	cases := max(len(log.Cases), 1)

	sig := Signals{CaseCount: len(log.Cases), VariantCount: len(variants)}
	for _, v := range variants {
		if float64(v.Count)/float64(cases) < noise {
			sig.LowFreqVariants++
		}
	}
	sig.VariantRatio = float64(sig.VariantCount) / float64(cases)
	if sig.VariantCount > 0 {
		sig.LowFreqRatio = float64(sig.LowFreqVariants) / float64(sig.VariantCount)
	}
	sig.Noisy = sig.VariantRatio > noisyRatio || (sig.VariantCount > 0 && sig.LowFreqRatio > noisyRatio)
	return sig
}
