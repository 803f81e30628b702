package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/pmgate/internal/eventlog"
)

// Dir serves precomputed oracle output from a directory.
//
// Layout:
//
//	<root>/<miner>.model.json           discovered model (Model JSON)
//	<root>/<model>.<method>.json        replay output ({"results": [...]})
//	<root>/<model>.metrics.json         model quality (ModelMetrics JSON)
type Dir struct {
	Root string
}

// ModelFile returns the path of a miner's precomputed model.
func (d *Dir) ModelFile(miner Miner) string {
	return filepath.Join(d.Root, string(miner)+".model.json")
}

// ReplayFile returns the path of a model's precomputed replay output.
func (d *Dir) ReplayFile(model string, method Method) string {
	return filepath.Join(d.Root, fmt.Sprintf("%s.%s.json", model, method))
}

// MetricsFile returns the path of a model's precomputed quality metrics.
func (d *Dir) MetricsFile(model string) string {
	return filepath.Join(d.Root, model+".metrics.json")
}

// Discover implements Discoverer.
func (d *Dir) Discover(_ context.Context, _ *eventlog.Log, miner Miner, _ MinerParams) Result[Model] {
	path := d.ModelFile(miner)
	var m Model
	if err := readJSON(path, &m); err != nil {
		return Fail[Model](eventlog.NewOracleError("discover", err))
	}
	if m.Name == "" {
		m.Name = string(miner)
	}
	if m.Miner == "" {
		m.Miner = miner
	}
	if m.Path == "" {
		m.Path = path
	}
	return Succeed(m)
}

// Replay implements Replayer.
func (d *Dir) Replay(_ context.Context, _ *eventlog.Log, model Model, method Method) Result[Replay] {
	var resp replayResponse
	if err := readJSON(d.ReplayFile(model.Name, method), &resp); err != nil {
		return Fail[Replay](eventlog.NewOracleError("replay", err))
	}
	return Succeed(Replay{Method: method, Cases: resp.Results})
}

// Evaluate implements Evaluator.
func (d *Dir) Evaluate(_ context.Context, _ *eventlog.Log, model Model) Result[ModelMetrics] {
	var m ModelMetrics
	if err := readJSON(d.MetricsFile(model.Name), &m); err != nil {
		return Fail[ModelMetrics](eventlog.NewOracleError("evaluate", err))
	}
	return Succeed(m)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
