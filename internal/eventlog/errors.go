package eventlog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error represents a classified pipeline failure.
//
// Error kinds:
//   - SCHEMA_ERROR: required columns are absent (always fatal)
//   - VALIDATION_ERROR: a hard data-quality threshold was breached
//   - EXTERNAL_ORACLE_ERROR: a mining or conformance call failed
//   - CONFIGURATION_ERROR: an unsupported strategy or setting
//
// Error includes structured fields for diagnostics and exit-code mapping.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Subkind refines VALIDATION_ERROR (timestamp_parse, missing_values,
	// order_violation). Empty for other kinds.
	Subkind string

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorKind categorizes pipeline errors.
type ErrorKind string

const (
	// KindSchema indicates required columns are missing.
	KindSchema ErrorKind = "SCHEMA_ERROR"

	// KindValidation indicates a threshold breach that was not auto-repaired.
	KindValidation ErrorKind = "VALIDATION_ERROR"

	// KindExternalOracle indicates an external mining or conformance failure.
	KindExternalOracle ErrorKind = "EXTERNAL_ORACLE_ERROR"

	// KindConfiguration indicates an unsupported strategy or setting.
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
)

// Validation subkinds.
const (
	SubkindTimestampParse = "timestamp_parse"
	SubkindMissingValues  = "missing_values"
	SubkindOrderViolation = "order_violation"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + e.Details[k]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewSchemaError creates a SCHEMA_ERROR listing the missing columns.
func NewSchemaError(missing []string) *Error {
	return &Error{
		Kind:    KindSchema,
		Message: "missing required columns: " + strings.Join(missing, ", "),
		Details: map[string]string{"missing": strings.Join(missing, ",")},
	}
}

// NewValidationError creates a VALIDATION_ERROR of the given subkind.
func NewValidationError(subkind, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Subkind: subkind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConfigurationError creates a CONFIGURATION_ERROR.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewOracleError creates an EXTERNAL_ORACLE_ERROR wrapping cause.
func NewOracleError(op string, cause error) *Error {
	return &Error{
		Kind:    KindExternalOracle,
		Message: op + " failed",
		Details: map[string]string{"operation": op},
		Err:     cause,
	}
}

func kindOf(err error) (ErrorKind, string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, e.Subkind, true
	}
	return "", "", false
}

// IsSchemaError returns true if err is a SCHEMA_ERROR.
// Uses errors.As to handle wrapped errors.
func IsSchemaError(err error) bool {
	k, _, ok := kindOf(err)
	return ok && k == KindSchema
}

// IsValidationError returns true if err is a VALIDATION_ERROR of any subkind.
func IsValidationError(err error) bool {
	k, _, ok := kindOf(err)
	return ok && k == KindValidation
}

// IsTimestampError returns true if err is a timestamp parse validation error.
func IsTimestampError(err error) bool {
	k, sub, ok := kindOf(err)
	return ok && k == KindValidation && sub == SubkindTimestampParse
}

// IsOracleError returns true if err is an EXTERNAL_ORACLE_ERROR.
func IsOracleError(err error) bool {
	k, _, ok := kindOf(err)
	return ok && k == KindExternalOracle
}

// IsConfigurationError returns true if err is a CONFIGURATION_ERROR.
func IsConfigurationError(err error) bool {
	k, _, ok := kindOf(err)
	return ok && k == KindConfiguration
}
