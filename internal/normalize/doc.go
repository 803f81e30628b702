// Package normalize maps raw tabular sources onto the canonical event schema.
//
// A raw source is a delimited file whose columns carry arbitrary names. The
// normalizer renames the configured case, activity, timestamp and resource
// columns to their canonical names, NFC-normalizes text, and parses the
// timestamp column into instants. Unparsable timestamps become nil; they are
// never an error at this layer. Deciding whether too many values failed to
// parse is the quality gate's job.
//
// Multi-source ingest (Ingest) combines several sources described by a YAML
// or JSON config. Configs are validated against an embedded CUE schema before
// being decoded.
package normalize
