// Package config loads the flat pmgate configuration.
//
// Layers are applied in increasing precedence:
//
//  1. struct defaults
//  2. an optional YAML or JSON file
//  3. PMGATE_* environment variables
//  4. command-line flags the user set explicitly
//
// Keys are flat snake_case names shared by every layer, so
// missing_value_threshold is set by the file key of the same name, by
// PMGATE_MISSING_VALUE_THRESHOLD, and by --missing-value-threshold.
package config
