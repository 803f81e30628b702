package config

import (
	"github.com/roach88/pmgate/internal/discovery"
	"github.com/roach88/pmgate/internal/eventlog"
	"github.com/roach88/pmgate/internal/mask"
	"github.com/roach88/pmgate/internal/normalize"
	"github.com/roach88/pmgate/internal/oracle"
	"github.com/roach88/pmgate/internal/quality"
)

// Config is the complete pipeline configuration.
type Config struct {
	Output       string `koanf:"output" validate:"required"`
	Input        string `koanf:"input"`
	InputFormat  string `koanf:"input_format" validate:"omitempty,oneof=csv xes"`
	IngestConfig string `koanf:"ingest_config"`
	Ledger       string `koanf:"ledger"`
	AttemptLimit int    `koanf:"attempt_limit" validate:"gte=1"`

	Delimiter         string `koanf:"delimiter"`
	CaseColumn        string `koanf:"case"`
	ActivityColumn    string `koanf:"activity"`
	TimestampColumn   string `koanf:"timestamp"`
	ResourceColumn    string `koanf:"resource"`
	TimestampFormat   string `koanf:"timestamp_format"`
	TimestampDayFirst bool   `koanf:"timestamp_dayfirst"`
	TimestampUTC      bool   `koanf:"timestamp_utc"`
	TimestampTimezone string `koanf:"timestamp_timezone"`

	MissingValueThreshold   float64 `koanf:"missing_value_threshold" validate:"gte=0,lte=1"`
	TimestampParseThreshold float64 `koanf:"timestamp_parse_threshold" validate:"gte=0,lte=1"`
	DuplicateThreshold      float64 `koanf:"duplicate_threshold" validate:"gte=0,lte=1"`
	OrderViolationThreshold float64 `koanf:"order_violation_threshold" validate:"gte=0,lte=1"`

	ImputeMissingTimestamps bool     `koanf:"impute_missing_timestamps"`
	TimestampImputeStrategy string   `koanf:"timestamp_impute_strategy" validate:"oneof=median mean"`
	DedupeKeys              []string `koanf:"dedupe_keys"`

	AutoMaskSensitive bool     `koanf:"auto_mask_sensitive"`
	SensitivePatterns []string `koanf:"sensitive_patterns"`
	MaskStrategy      string   `koanf:"mask_strategy" validate:"oneof=redact tokenize hash"`
	MaskSalt          string   `koanf:"mask_salt"`

	MinTimestamp string `koanf:"min_timestamp"`
	MaxTimestamp string `koanf:"max_timestamp"`

	AutoFilterRareActivities bool    `koanf:"auto_filter_rare_activities"`
	MinActivityFrequency     float64 `koanf:"min_activity_frequency" validate:"gte=0,lte=1"`

	FailOnOrderViolations bool   `koanf:"fail_on_order_violations"`
	RepairCaseOrder       bool   `koanf:"repair_case_order"`
	LifecycleColumn       string `koanf:"lifecycle_column"`

	MinerSelection        string  `koanf:"miner_selection" validate:"oneof=auto inductive heuristic both"`
	NoiseThreshold        float64 `koanf:"noise_threshold" validate:"gte=0,lte=1"`
	DependencyThreshold   float64 `koanf:"dependency_threshold" validate:"gte=0,lte=1"`
	FrequencyThreshold    float64 `koanf:"frequency_threshold" validate:"gte=0,lte=1"`
	VariantNoiseThreshold float64 `koanf:"variant_noise_threshold" validate:"gte=0,lte=1"`

	ConformanceMethod string `koanf:"conformance_method" validate:"oneof=alignments token_replay"`
	TopDeviations     int    `koanf:"top_deviations" validate:"gte=0"`

	OracleKind    string   `koanf:"oracle" validate:"omitempty,oneof=exec dir"`
	OracleCommand string   `koanf:"oracle_command"`
	OracleArgs    []string `koanf:"oracle_args"`
	OracleDir     string   `koanf:"oracle_dir"`
}

// Default returns the built-in defaults.
func Default() Config {
	q := quality.DefaultConfig()
	p := discovery.DefaultParams()
	return Config{
		Output:       "output",
		AttemptLimit: 2,

		MissingValueThreshold:   q.MissingValueThreshold,
		TimestampParseThreshold: q.TimestampParseThreshold,
		DuplicateThreshold:      q.DuplicateThreshold,
		OrderViolationThreshold: q.OrderViolationThreshold,
		TimestampImputeStrategy: q.TimestampImputeStrategy,
		DedupeKeys:              q.DedupeKeys,
		AutoMaskSensitive:       q.AutoMaskSensitive,
		SensitivePatterns:       q.SensitivePatterns,
		MaskStrategy:            q.MaskStrategy,
		MinActivityFrequency:    q.MinActivityFrequency,
		LifecycleColumn:         q.LifecycleColumn,

		MinerSelection:        string(discovery.Auto),
		NoiseThreshold:        p.NoiseThreshold,
		DependencyThreshold:   p.DependencyThreshold,
		FrequencyThreshold:    p.FrequencyThreshold,
		VariantNoiseThreshold: discovery.DefaultVariantNoiseThreshold,

		ConformanceMethod: string(oracle.Alignments),
		TopDeviations:     20,
		OracleKind:        oracle.KindDir,
	}
}

// Mapping returns the source column mapping.
func (c Config) Mapping() normalize.ColumnMapping {
	return normalize.ColumnMapping{
		Case:      c.CaseColumn,
		Activity:  c.ActivityColumn,
		Timestamp: c.TimestampColumn,
		Resource:  c.ResourceColumn,
	}
}

// Timestamps returns the timestamp parsing options.
func (c Config) Timestamps() normalize.TimestampOptions {
	return normalize.TimestampOptions{
		Format:   c.TimestampFormat,
		DayFirst: c.TimestampDayFirst,
		UTC:      c.TimestampUTC,
		Timezone: c.TimestampTimezone,
	}
}

// CSV returns the CSV reader options.
func (c Config) CSV() (normalize.CSVOptions, error) {
	r, err := normalize.DelimiterRune(c.Delimiter)
	if err != nil {
		return normalize.CSVOptions{}, err
	}
	return normalize.CSVOptions{Delimiter: r}, nil
}

// Quality returns the quality gate configuration.
func (c Config) Quality() (quality.Config, error) {
	if _, err := mask.ParseStrategy(c.MaskStrategy); err != nil {
		return quality.Config{}, err
	}
	return quality.Config{
		MissingValueThreshold:    c.MissingValueThreshold,
		TimestampParseThreshold:  c.TimestampParseThreshold,
		DuplicateThreshold:       c.DuplicateThreshold,
		OrderViolationThreshold:  c.OrderViolationThreshold,
		ImputeMissingTimestamps:  c.ImputeMissingTimestamps,
		TimestampImputeStrategy:  c.TimestampImputeStrategy,
		DedupeKeys:               c.DedupeKeys,
		AutoMaskSensitive:        c.AutoMaskSensitive,
		SensitivePatterns:        c.SensitivePatterns,
		MaskStrategy:             c.MaskStrategy,
		MaskSalt:                 c.MaskSalt,
		MinTimestamp:             c.MinTimestamp,
		MaxTimestamp:             c.MaxTimestamp,
		AutoFilterRareActivities: c.AutoFilterRareActivities,
		MinActivityFrequency:     c.MinActivityFrequency,
		FailOnOrderViolations:    c.FailOnOrderViolations,
		RepairCaseOrder:          c.RepairCaseOrder,
		LifecycleColumn:          c.LifecycleColumn,
		Timestamps:               c.Timestamps(),
	}, nil
}

// Discovery returns the strategy selection request.
func (c Config) Discovery() (discovery.Request, error) {
	s, err := discovery.ParseStrategy(c.MinerSelection)
	if err != nil {
		return discovery.Request{}, err
	}
	return discovery.Request{
		Strategy: s,
		Params: discovery.Params{
			NoiseThreshold:      c.NoiseThreshold,
			DependencyThreshold: c.DependencyThreshold,
			FrequencyThreshold:  c.FrequencyThreshold,
		},
		VariantNoiseThreshold: c.VariantNoiseThreshold,
	}, nil
}

// Method returns the conformance method.
func (c Config) Method() (oracle.Method, error) {
	return oracle.ParseMethod(c.ConformanceMethod)
}

// Oracle builds the configured oracle.
func (c Config) Oracle() (oracle.Oracle, error) {
	if c.OracleKind == "" {
		return nil, eventlog.NewConfigurationError("no oracle configured")
	}
	return oracle.New(c.OracleKind, oracle.Options{
		Command: c.OracleCommand,
		Args:    c.OracleArgs,
		Dir:     c.OracleDir,
	})
}
