package normalize

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/roach88/pmgate/internal/eventlog"
)

// CSVOptions controls delimited-file parsing.
type CSVOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a header row followed by records. Empty cells are null.
func ReadCSV(r io.Reader, opts CSVOptions) (*eventlog.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	if opts.Delimiter != 0 {
		if !utf8.ValidRune(opts.Delimiter) {
			return nil, fmt.Errorf("read csv: invalid delimiter %q", opts.Delimiter)
		}
		cr.Comma = opts.Delimiter
	}
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read csv: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := eventlog.NewTable(header...)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		t.AppendStrings(rec...)
	}
	return t, nil
}

// DelimiterRune converts a configured delimiter string to a rune.
// The empty string selects the default comma; "\t" and "tab" select tab.
func DelimiterRune(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, eventlog.NewConfigurationError("delimiter must be a single character, got %q", s)
	}
	return r, nil
}
