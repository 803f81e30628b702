// Package mask detects columns likely to hold identifying data and replaces
// their values irreversibly.
//
// Detection is by column name: a column is sensitive when its lowercase name
// contains any configured pattern. The canonical case, activity and timestamp
// columns are exempt because discovery and conformance need their values
// intact; org:resource remains maskable.
//
// Strategies:
//   - redact: every cell becomes "***"
//   - tokenize: each distinct value becomes "<column>_<n>", n assigned in
//     first-seen order
//   - hash: hex SHA-256 of salt + value
package mask
