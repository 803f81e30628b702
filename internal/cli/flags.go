package cli

import (
	"github.com/spf13/pflag"

	"github.com/roach88/pmgate/internal/config"
)

// Flag names mirror config keys with dashes for underscores. Only flags the
// user set override the file and environment layers, so the defaults shown
// here are informational.

func addOutputFlags(fs *pflag.FlagSet, d config.Config) {
	fs.StringP("output", "o", d.Output, "output directory holding one directory per stage")
	fs.String("ledger", d.Ledger, "SQLite attempt ledger (optional)")
	fs.Int("attempt-limit", d.AttemptLimit, "failures of one stage before next steps are escalated")
}

func addSourceFlags(fs *pflag.FlagSet, d config.Config) {
	fs.StringP("input", "i", d.Input, "input event log (CSV or XES)")
	fs.String("input-format", d.InputFormat, "input format (csv|xes, default from the file extension)")
	fs.String("ingest-config", d.IngestConfig, "multi-source ingest config (YAML or JSON)")
	fs.String("delimiter", d.Delimiter, "CSV delimiter (default comma)")
	fs.String("case", d.CaseColumn, "source column holding the case id")
	fs.String("activity", d.ActivityColumn, "source column holding the activity")
	fs.String("timestamp", d.TimestampColumn, "source column holding the timestamp")
	fs.String("resource", d.ResourceColumn, "source column holding the resource")
	addTimestampFlags(fs, d)
}

func addTimestampFlags(fs *pflag.FlagSet, d config.Config) {
	fs.String("timestamp-format", d.TimestampFormat, "explicit strftime timestamp format")
	fs.Bool("timestamp-dayfirst", d.TimestampDayFirst, "read ambiguous dates day first")
	fs.Bool("timestamp-utc", d.TimestampUTC, "convert timestamps to UTC")
	fs.String("timestamp-timezone", d.TimestampTimezone, "IANA zone for naive timestamps")
}

func addQualityFlags(fs *pflag.FlagSet, d config.Config) {
	fs.Float64("missing-value-threshold", d.MissingValueThreshold, "maximum missing rate of a required column")
	fs.Float64("timestamp-parse-threshold", d.TimestampParseThreshold, "maximum timestamp parse failure rate")
	fs.Float64("duplicate-threshold", d.DuplicateThreshold, "duplicate rate that triggers a recommendation")
	fs.Float64("order-violation-threshold", d.OrderViolationThreshold, "case order violation rate that triggers a recommendation")
	fs.Bool("impute-missing-timestamps", d.ImputeMissingTimestamps, "impute missing timestamps within each case")
	fs.String("timestamp-impute-strategy", d.TimestampImputeStrategy, "imputation strategy (median|mean)")
	fs.StringSlice("dedupe-keys", d.DedupeKeys, "columns identifying duplicate events")
	fs.Bool("auto-mask-sensitive", d.AutoMaskSensitive, "mask columns whose names look sensitive")
	fs.StringSlice("sensitive-patterns", d.SensitivePatterns, "column name substrings treated as sensitive")
	fs.String("mask-strategy", d.MaskStrategy, "masking strategy (redact|tokenize|hash)")
	fs.String("mask-salt", d.MaskSalt, "salt for the hash mask strategy")
	fs.String("min-timestamp", d.MinTimestamp, "drop events before this instant")
	fs.String("max-timestamp", d.MaxTimestamp, "drop events after this instant")
	fs.Bool("auto-filter-rare-activities", d.AutoFilterRareActivities, "drop activities below the minimum frequency")
	fs.Float64("min-activity-frequency", d.MinActivityFrequency, "minimum relative activity frequency")
	fs.Bool("fail-on-order-violations", d.FailOnOrderViolations, "fail the gate when the order violation rate is exceeded")
	fs.Bool("repair-case-order", d.RepairCaseOrder, "stable-sort events within each case by timestamp")
	fs.String("lifecycle-column", d.LifecycleColumn, "column holding lifecycle transitions")
}

func addDiscoveryFlags(fs *pflag.FlagSet, d config.Config) {
	fs.String("miner-selection", d.MinerSelection, "miner strategy (auto|inductive|heuristic|both)")
	fs.Float64("noise-threshold", d.NoiseThreshold, "inductive miner noise threshold")
	fs.Float64("dependency-threshold", d.DependencyThreshold, "heuristic miner dependency threshold")
	fs.Float64("frequency-threshold", d.FrequencyThreshold, "heuristic miner frequency threshold")
	fs.Float64("variant-noise-threshold", d.VariantNoiseThreshold, "variant ratio above which the log counts as noisy")
}

func addConformanceFlags(fs *pflag.FlagSet, d config.Config) {
	fs.String("conformance-method", d.ConformanceMethod, "conformance method (alignments|token_replay)")
	fs.Int("top-deviations", d.TopDeviations, "deviating cases listed in the summary")
}

func addOracleFlags(fs *pflag.FlagSet, d config.Config) {
	fs.String("oracle", d.OracleKind, "oracle kind (exec|dir)")
	fs.String("oracle-command", d.OracleCommand, "command run by the exec oracle")
	fs.StringSlice("oracle-args", d.OracleArgs, "arguments for the exec oracle command")
	fs.String("oracle-dir", d.OracleDir, "directory of precomputed oracle output, or the exec oracle working directory")
}
