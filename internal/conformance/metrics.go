package conformance

import (
	"context"
	"log/slog"

	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/oracle"
)

// ModelQuality is one model's row in the model metrics table. A failed
// evaluation keeps the row with every metric nil and the reason set.
type ModelQuality struct {
	Model string `json:"model"`
	oracle.ModelMetrics
	Reason string `json:"reason,omitempty"`
}

// EvaluateModels measures every model against log. Evaluation failures never
// drop a model.
func EvaluateModels(ctx context.Context, log *eventlog.Log, models []oracle.Model, e oracle.Evaluator) []ModelQuality {
	rows := make([]ModelQuality, 0, len(models))
	for _, model := range models {
		res := e.Evaluate(ctx, log, model)
		if !res.OK() {
			slog.Warn("model evaluation failed", "model", model.Name, "error", res.Err)
			rows = append(rows, ModelQuality{Model: model.Name, Reason: res.Reason()})
			continue
		}
		rows = append(rows, ModelQuality{Model: model.Name, ModelMetrics: res.Value})
	}
	return rows
}
