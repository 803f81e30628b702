// Package artifact writes stage outputs: JSON documents with sorted keys,
// CSV tables, and per-stage manifests.
//
// Every write goes through a temp file and rename so a reader never observes
// a partially written artifact. JSON is produced from the canonical encoding
// and then indented, so identical values always yield identical bytes.
package artifact
