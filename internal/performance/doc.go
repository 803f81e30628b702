// Package performance computes case-duration and sojourn statistics over a
// structured event log, flags heavy-tailed duration distributions, and
// derives a statistical process control band over cases ordered by start.
//
// All durations are reported in hours. Cases with fewer than two events do
// not contribute a duration. Sojourn time is the gap from an event to the
// next event of the same case, so the last event of a case never
// contributes a sojourn sample.
package performance
