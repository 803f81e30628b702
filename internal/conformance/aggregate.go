package conformance

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/oracle"
)

// ErrNoConformanceOutput is returned when no model produced any result.
var ErrNoConformanceOutput = errors.New("no conformance output")

// Summary aggregates one model's replay. Cost fields are set for
// alignments, fitness fields for token replay.
type Summary struct {
	Model      string        `json:"model"`
	Method     oracle.Method `json:"method"`
	CaseCount  int           `json:"cases"`
	AvgCost    *float64      `json:"avg_cost,omitempty"`
	MaxCost    *float64      `json:"max_cost,omitempty"`
	AvgFitness *float64      `json:"avg_fitness,omitempty"`
	MinFitness *float64      `json:"min_fitness,omitempty"`
}

// Deviation is the per-case alignment record.
type Deviation struct {
	Model          string  `json:"model"`
	CaseID         string  `json:"case_id"`
	AlignmentCost  float64 `json:"alignment_cost"`
	Fitness        float64 `json:"fitness"`
	DeviationCount int     `json:"deviation_count"`
	LogMoveCount   int     `json:"log_move_count"`
	ModelMoveCount int     `json:"model_move_count"`
}

// Skipped records a model whose replay failed.
type Skipped struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// Report is the aggregation output.
type Report struct {
	Summaries  []Summary   `json:"summaries"`
	Deviations []Deviation `json:"deviations"`
	Skipped    []Skipped   `json:"skipped"`
}

// CountMoves classifies alignment moves.
func CountMoves(moves []oracle.Move) (logMoves, modelMoves int) {
	for _, m := range moves {
		switch {
		case m.Model == oracle.Skip && m.Log != oracle.Skip:
			logMoves++
		case m.Log == oracle.Skip && m.Model != oracle.Skip:
			modelMoves++
		}
	}
	return logMoves, modelMoves
}

// CaseIDs recovers case identifiers from case attributes, falling back to
// the positional index.
func CaseIDs(log *eventlog.Log) []string {
	ids := make([]string, len(log.Cases))
	for i, c := range log.Cases {
		id := c.Attrs[eventlog.ColActivity]
		if id == "" {
			id = c.Attrs[eventlog.ColCase]
		}
		if id == "" {
			id = strconv.Itoa(i)
		}
		ids[i] = id
	}
	return ids
}

// Aggregate replays log against every model and reduces the results.
//
// A model whose replay fails is skipped and recorded; the remaining models are
// still aggregated. When no model yields output, ErrNoConformanceOutput is
// returned.
func Aggregate(ctx context.Context, log *eventlog.Log, models []oracle.Model, r oracle.Replayer, method oracle.Method) (Report, error) {
	report := Report{Summaries: []Summary{}, Deviations: []Deviation{}, Skipped: []Skipped{}}
	ids := CaseIDs(log)

	for _, model := range models {
		res := r.Replay(ctx, log, model, method)
		if !res.OK() {
			slog.Warn("conformance replay failed", "model", model.Name, "method", method, "error", res.Err)
			report.Skipped = append(report.Skipped, Skipped{Model: model.Name, Reason: res.Reason()})
			continue
		}
		cases := res.Value.Cases
		summary := Summary{Model: model.Name, Method: method, CaseCount: len(cases)}

		switch method {
		case oracle.TokenReplay:
			fitness := make([]float64, len(cases))
			for i, c := range cases {
				fitness[i] = c.Fitness
			}
			avg, lo := mean(fitness), minimum(fitness)
			summary.AvgFitness, summary.MinFitness = &avg, &lo
		default:
			costs := make([]float64, len(cases))
			for i, c := range cases {
				costs[i] = c.Cost
				logMoves, modelMoves := CountMoves(c.Moves)
				id := strconv.Itoa(i)
				if i < len(ids) {
					id = ids[i]
				}
				report.Deviations = append(report.Deviations, Deviation{
					Model:          model.Name,
					CaseID:         id,
					AlignmentCost:  c.Cost,
					Fitness:        c.Fitness,
					DeviationCount: logMoves + modelMoves,
					LogMoveCount:   logMoves,
					ModelMoveCount: modelMoves,
				})
			}
			avg, hi := mean(costs), maximum(costs)
			summary.AvgCost, summary.MaxCost = &avg, &hi
		}
		report.Summaries = append(report.Summaries, summary)
	}

	if len(report.Summaries) == 0 {
		return report, ErrNoConformanceOutput
	}
	return report, nil
}

// TopDeviations returns up to n records ordered by deviation count
// descending, then model and case id ascending.
func TopDeviations(rows []Deviation, n int) []Deviation {
	sorted := append([]Deviation(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DeviationCount != b.DeviationCount {
			return a.DeviationCount > b.DeviationCount
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		return a.CaseID < b.CaseID
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func maximum(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = max(m, x)
	}
	return m
}

func minimum(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = min(m, x)
	}
	return m
}
