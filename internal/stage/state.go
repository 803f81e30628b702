package stage

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/roach88/pmgate/internal/artifact"
)

// StateFile is the per-stage state file name.
const StateFile = "stage_state.json"

// StageStatus is a stage lifecycle state.
type StageStatus string

const (
	NotRun  StageStatus = "not_run"
	Running StageStatus = "running"
	OK      StageStatus = "ok"
	Failed  StageStatus = "failed"
)

// State is the persisted state of one stage.
type State struct {
	Stage        string      `json:"stage"`
	Status       StageStatus `json:"status"`
	FailureCount int         `json:"failure_count"`
	LastError    string      `json:"last_error"`
	NextSteps    []string    `json:"next_steps"`
	UpdatedAt    string      `json:"updated_at"`
}

// ReadState loads the state in dir. A missing file yields a not_run state.
func ReadState(dir string) (State, error) {
	var s State
	err := artifact.ReadJSON(filepath.Join(dir, StateFile), &s)
	if errors.Is(err, fs.ErrNotExist) {
		return State{Stage: filepath.Base(dir), Status: NotRun, NextSteps: []string{}}, nil
	}
	if err != nil {
		return State{}, err
	}
	if s.NextSteps == nil {
		s.NextSteps = []string{}
	}
	return s, nil
}

// WriteState persists s into dir.
func WriteState(dir string, s State) error {
	if s.NextSteps == nil {
		s.NextSteps = []string{}
	}
	return artifact.WriteJSON(filepath.Join(dir, StateFile), s)
}
