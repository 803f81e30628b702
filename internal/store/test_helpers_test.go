package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestAttempt creates an attempt with minimal required fields.
func createTestAttempt(runID, stage, status string, failures int) Attempt {
	return Attempt{
		RunID:        runID,
		OutputDir:    "/tmp/out",
		Stage:        stage,
		Status:       status,
		FailureCount: failures,
		StartedAt:    testEpoch,
		FinishedAt:   testEpoch.Add(time.Second),
	}
}
