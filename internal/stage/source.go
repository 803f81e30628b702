package stage

import (
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/oracle"
)

// Source yields a stage's input. It is called inside the stage, so a load
// failure fails the stage and is recorded in its state.
type Source[T any] func() (T, error)

// Value returns a Source for an input already in memory.
func Value[T any](v T) Source[T] {
	return func() (T, error) { return v, nil }
}

// CleanedLog reads the data quality stage's cleaned log as an event log.
func CleanedLog(outputDir string) Source[*eventlog.Log] {
	return func() (*eventlog.Log, error) {
		t, err := LoadCleaned(outputDir)
		if err != nil {
			return nil, err
		}
		return eventlog.FromTable(t), nil
	}
}

// DiscoveredModels reads the discovery stage's models.
func DiscoveredModels(outputDir string) Source[[]oracle.Model] {
	return func() ([]oracle.Model, error) {
		return LoadModels(outputDir)
	}
}
