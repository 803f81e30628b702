// Package audit detects out-of-order events and duplicate rows in an event
// table.
//
// The auditor only measures. Whether a rate is acceptable is decided by the
// caller's thresholds: the quality gate turns rates above threshold into
// recommendations, and into validation errors only under strict enforcement.
package audit
