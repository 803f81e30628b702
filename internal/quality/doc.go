// Package quality implements the data-quality gate: an ordered pipeline of
// checks that accepts, repairs or rejects a normalized event table.
//
// Check order (later checks see the table cleaned by earlier ones):
//
//  1. required columns present (fatal: SchemaError)
//  2. timestamp parse-failure rate (fatal above threshold)
//  3. missing values per required column (fatal for case/activity above
//     threshold; timestamp rows dropped or imputed)
//  4. optional timestamp imputation
//  5. duplicate detection and exact-row de-duplication
//  6. sensitive-column masking
//  7. timestamp range filter
//  8. rare-activity filter or suggestion
//  9. case-order audit (fatal only under strict enforcement)
//  10. lifecycle-column summary
//
// Evaluate returns the cleaned table, an immutable Report and advisory
// Recommendations. Non-fatal findings never fail the gate; they surface as
// recommendations instead.
package quality
