package oracle

import (
	"errors"
	"time"

	"github.com/roach88/pmgate/internal/eventlog"
)

var errUnknown = errors.New("oracle failed without a reason")

// wireEvent is the JSON form of an event sent to external oracles.
type wireEvent struct {
	Activity  string `json:"activity"`
	Timestamp string `json:"timestamp"`
	Resource  string `json:"resource,omitempty"`
}

type wireCase struct {
	CaseID string      `json:"case_id"`
	Events []wireEvent `json:"events"`
}

type wireLog struct {
	Cases []wireCase `json:"cases"`
}

func toWire(log *eventlog.Log) wireLog {
	out := wireLog{Cases: make([]wireCase, len(log.Cases))}
	for i, c := range log.Cases {
		wc := wireCase{CaseID: c.ID, Events: make([]wireEvent, len(c.Events))}
		for j, e := range c.Events {
			wc.Events[j] = wireEvent{
				Activity:  e.Activity,
				Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
				Resource:  e.Resource,
			}
		}
		out.Cases[i] = wc
	}
	return out
}

type discoverRequest struct {
	Operation string      `json:"operation"`
	Miner     Miner       `json:"miner"`
	Params    MinerParams `json:"params"`
	Log       wireLog     `json:"log"`
}

type discoverResponse struct {
	Model *Model `json:"model"`
	Error string `json:"error,omitempty"`
}

type replayRequest struct {
	Operation string  `json:"operation"`
	Method    Method  `json:"method"`
	Model     Model   `json:"model"`
	Log       wireLog `json:"log"`
}

type replayResponse struct {
	Results []CaseResult `json:"results"`
	Error   string       `json:"error,omitempty"`
}

type evaluateRequest struct {
	Operation string  `json:"operation"`
	Model     Model   `json:"model"`
	Log       wireLog `json:"log"`
}

type evaluateResponse struct {
	Metrics *ModelMetrics `json:"metrics"`
	Error   string        `json:"error,omitempty"`
}
