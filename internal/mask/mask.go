package mask

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/roach88/pmgate/internal/eventlog"
)

// Strategy selects the masking transform.
type Strategy string

const (
	Redact   Strategy = "redact"
	Tokenize Strategy = "tokenize"
	Hash     Strategy = "hash"
)

// Placeholder replaces every redacted cell.
const Placeholder = "***"

// DefaultPatterns are the column-name fragments treated as sensitive.
var DefaultPatterns = []string{
	"name", "email", "phone", "ssn", "address",
	"user", "customer", "patient", "employee", "resource",
}

// ParseStrategy validates a configured strategy name. Empty selects Hash.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return Hash, nil
	case Redact, Tokenize, Hash:
		return Strategy(s), nil
	}
	return "", eventlog.NewConfigurationError("unsupported mask_strategy: %s", s)
}

// Detect returns the columns whose lowercase name contains any pattern,
// in column order. Canonical case, activity and timestamp columns are skipped.
func Detect(columns []string, patterns []string) []string {
	out := []string{}
	for _, col := range columns {
		switch col {
		case eventlog.ColCase, eventlog.ColActivity, eventlog.ColTimestamp:
			continue
		}
		lower := strings.ToLower(col)
		for _, p := range patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && strings.Contains(lower, p) {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// Apply masks columns of t in place. Null cells are masked as empty strings.
func Apply(t *eventlog.Table, columns []string, strategy Strategy, salt string) error {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return err
	}
	for _, col := range columns {
		values := t.Column(col)
		if values == nil {
			continue
		}
		var masked []eventlog.Value
		switch strategy {
		case Redact:
			masked = redact(values)
		case Tokenize:
			masked = tokenize(col, values)
		default:
			masked = hash(values, salt)
		}
		t.SetColumn(col, masked)
	}
	return nil
}

func redact(values []eventlog.Value) []eventlog.Value {
	out := make([]eventlog.Value, len(values))
	for i := range out {
		out[i] = eventlog.Str(Placeholder)
	}
	return out
}

func tokenize(col string, values []eventlog.Value) []eventlog.Value {
	tokens := make(map[string]string)
	out := make([]eventlog.Value, len(values))
	for i, v := range values {
		s := v.String()
		tok, ok := tokens[s]
		if !ok {
			tok = col + "_" + strconv.Itoa(len(tokens))
			tokens[s] = tok
		}
		out[i] = eventlog.Str(tok)
	}
	return out
}

func hash(values []eventlog.Value, salt string) []eventlog.Value {
	out := make([]eventlog.Value, len(values))
	for i, v := range values {
		sum := sha256.Sum256([]byte(salt + v.String()))
		out[i] = eventlog.Str(hex.EncodeToString(sum[:]))
	}
	return out
}
