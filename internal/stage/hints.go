package stage

// Stage directory names, in pipeline order.
const (
	Ingest      = "stage_01_ingest"
	DataQuality = "stage_02_data_quality"
	Discovery   = "stage_03_discovery"
	Conformance = "stage_04_conformance"
	Performance = "stage_05_performance"
)

// Names lists every stage in pipeline order.
var Names = []string{Ingest, DataQuality, Discovery, Conformance, Performance}

var remediation = map[string][]string{
	Ingest: {
		"Confirm the input file path and format are correct.",
		"Verify case/activity/timestamp column mappings and timestamp formats.",
		"For multi-source ingest, use merge strategy concat unless you have reliable join keys.",
		"Re-run this stage after correcting the schema or file.",
	},
	DataQuality: {
		"Check required columns and timestamp parsing settings.",
		"If parse failures exceed thresholds, fix upstream formats or pass --timestamp-format.",
		"Review case ordering and duplicate keys in data_quality_recommendations.json.",
		"Re-run data quality checks after corrections.",
	},
	Discovery: {
		"Check the oracle configuration (--oracle, --oracle-command, --oracle-dir).",
		"Inspect the miner failures recorded in strategy.json.",
		"Try --miner-selection inductive or heuristic to isolate a failing miner.",
		"Re-run discovery after corrections.",
	},
	Conformance: {
		"Ensure discovery has produced models (stage_03_discovery/models_manifest.json).",
		"If models cannot be loaded, re-run discovery then conformance.",
		"Try --conformance-method token_replay if alignments fail or time out.",
		"Re-run conformance after corrections.",
	},
	Performance: {
		"Ensure the cleaned log exists (stage_02_data_quality/cleaned_log.csv).",
		"Fix timestamp parsing issues or pass --timestamp-format.",
		"Re-run performance after corrections.",
	},
}

// Remediation returns the next-step hints for a stage.
func Remediation(name string) []string {
	return append([]string(nil), remediation[name]...)
}

// Named returns the Stage with its standard remediation hints.
func Named(name string) Stage {
	return Stage{Name: name, NextSteps: Remediation(name)}
}
