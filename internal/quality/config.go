package quality

import (
	"github.com/roach88/pmgate/internal/audit"
	"github.com/roach88/pmgate/internal/mask"
	"github.com/roach88/pmgate/internal/normalize"
)

// Imputation strategies.
const (
	ImputeMedian = "median"
	ImputeMean   = "mean"
)

// DefaultLifecycleColumn is summarized when present.
const DefaultLifecycleColumn = "lifecycle:transition"

// Config holds gate thresholds and switches.
type Config struct {
	MissingValueThreshold   float64
	TimestampParseThreshold float64
	DuplicateThreshold      float64
	OrderViolationThreshold float64

	ImputeMissingTimestamps bool
	TimestampImputeStrategy string

	DedupeKeys []string

	AutoMaskSensitive bool
	SensitivePatterns []string
	MaskStrategy      string
	MaskSalt          string

	// MinTimestamp and MaxTimestamp bound the inclusive range filter. They are
	// parsed with Timestamps; empty disables the bound.
	MinTimestamp string
	MaxTimestamp string

	AutoFilterRareActivities bool
	MinActivityFrequency     float64

	FailOnOrderViolations bool
	RepairCaseOrder       bool

	LifecycleColumn string

	// Timestamps parses the timestamp column when the table arrives unparsed,
	// and the range bounds.
	Timestamps normalize.TimestampOptions
}

// DefaultConfig returns the gate defaults.
func DefaultConfig() Config {
	return Config{
		MissingValueThreshold:   0.05,
		TimestampParseThreshold: 0.02,
		DuplicateThreshold:      0.02,
		OrderViolationThreshold: 0.02,
		TimestampImputeStrategy: ImputeMedian,
		DedupeKeys:              append([]string(nil), audit.DefaultDedupeKeys...),
		AutoMaskSensitive:       true,
		SensitivePatterns:       append([]string(nil), mask.DefaultPatterns...),
		MaskStrategy:            string(mask.Hash),
		MinActivityFrequency:    0.01,
		LifecycleColumn:         DefaultLifecycleColumn,
	}
}
