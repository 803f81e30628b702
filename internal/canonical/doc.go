// Package canonical produces deterministic JSON encodings and
// domain-separated content hashes.
//
// Canonical JSON is used for parameter fingerprints recorded in stage
// manifests: identical configuration always yields an identical fingerprint,
// regardless of map iteration order or Unicode normalization form.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings NFC normalized
//  4. Integral numbers written without exponent; other numbers in shortest form
//  5. NaN and infinities rejected
package canonical
