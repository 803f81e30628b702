package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/roach88/pmgate/internal/eventlog"
)

// Exec runs an external command per call. The request is written to the
// command's stdin as JSON and the response read from stdout.
type Exec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// Discover implements Discoverer.
func (e *Exec) Discover(ctx context.Context, log *eventlog.Log, miner Miner, params MinerParams) Result[Model] {
	req := discoverRequest{Operation: "discover", Miner: miner, Params: params, Log: toWire(log)}
	var resp discoverResponse
	if err := e.call(ctx, "discover", req, &resp); err != nil {
		return Fail[Model](err)
	}
	if resp.Error != "" {
		return Fail[Model](eventlog.NewOracleError("discover", errors.New(resp.Error)))
	}
	if resp.Model == nil {
		return Fail[Model](eventlog.NewOracleError("discover", errors.New("response has no model")))
	}
	m := *resp.Model
	if m.Name == "" {
		m.Name = string(miner)
	}
	if m.Miner == "" {
		m.Miner = miner
	}
	return Succeed(m)
}

// Replay implements Replayer.
func (e *Exec) Replay(ctx context.Context, log *eventlog.Log, model Model, method Method) Result[Replay] {
	req := replayRequest{Operation: "replay", Method: method, Model: model, Log: toWire(log)}
	var resp replayResponse
	if err := e.call(ctx, "replay", req, &resp); err != nil {
		return Fail[Replay](err)
	}
	if resp.Error != "" {
		return Fail[Replay](eventlog.NewOracleError("replay", errors.New(resp.Error)))
	}
	return Succeed(Replay{Method: method, Cases: resp.Results})
}

// Evaluate implements Evaluator. Metrics absent from the response stay nil.
func (e *Exec) Evaluate(ctx context.Context, log *eventlog.Log, model Model) Result[ModelMetrics] {
	req := evaluateRequest{Operation: "evaluate", Model: model, Log: toWire(log)}
	var resp evaluateResponse
	if err := e.call(ctx, "evaluate", req, &resp); err != nil {
		return Fail[ModelMetrics](err)
	}
	if resp.Error != "" {
		return Fail[ModelMetrics](eventlog.NewOracleError("evaluate", errors.New(resp.Error)))
	}
	if resp.Metrics == nil {
		return Fail[ModelMetrics](eventlog.NewOracleError("evaluate", errors.New("response has no metrics")))
	}
	return Succeed(*resp.Metrics)
}

func (e *Exec) call(ctx context.Context, op string, req, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return eventlog.NewOracleError(op, fmt.Errorf("encode request: %w", err))
	}

	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("invoking oracle", "operation", op, "command", e.Command)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return eventlog.NewOracleError(op, err)
	}
	if err := json.Unmarshal(stdout.Bytes(), resp); err != nil {
		return eventlog.NewOracleError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
