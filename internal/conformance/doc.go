// Package conformance reduces raw per-case replay output into per-model
// summaries and per-case deviation records, and collects per-model quality
// metrics (fitness, precision, generalization, simplicity, soundness).
//
// Alignment moves are classified by which side carries the skip marker:
// a log move has the skip on the model side, a model move has it on the log
// side, and a synchronous move has no skip. Only log and model moves count as
// deviations.
package conformance
