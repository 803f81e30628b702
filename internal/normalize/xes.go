package normalize

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/pmgate/internal/eventlog"
)

// Input formats.
const (
	FormatCSV = "csv"
	FormatXES = "xes"
)

// InferFormat guesses the input format from the file extension.
func InferFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xes") {
		return FormatXES
	}
	return FormatCSV
}

// ParseFormat validates a configured input format. Empty infers the format
// from path.
func ParseFormat(format, path string) (string, error) {
	switch strings.ToLower(format) {
	case "":
		return InferFormat(path), nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXES:
		return FormatXES, nil
	}
	return "", eventlog.NewConfigurationError("unsupported input format: %q", format)
}

// LoadInput reads a single source in the given format and normalizes it.
func LoadInput(path, format string, csvOpts CSVOptions, m ColumnMapping, ts TimestampOptions) (*eventlog.Table, error) {
	format, err := ParseFormat(format, path)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		return LoadCSV(path, csvOpts, m, ts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	t, err := ReadXES(f)
	if err != nil {
		return nil, err
	}
	return Normalize(t, m, ts), nil
}

// xesAttr is a scalar XES attribute. Nested children are ignored.
type xesAttr struct {
	XMLName xml.Name
	Key     string `xml:"key,attr"`
	Value   string `xml:"value,attr"`
}

type xesEvent struct {
	Attrs []xesAttr `xml:",any"`
}

type xesTrace struct {
	Events []xesEvent `xml:"event"`
	Attrs  []xesAttr  `xml:",any"`
}

func scalar(a xesAttr) bool {
	if a.Key == "" {
		return false
	}
	switch a.XMLName.Local {
	case "string", "date", "int", "float", "boolean", "id":
		return true
	}
	return false
}

// ReadXES reads an XES document into a table with one row per event.
//
// Event attributes keep their keys. Trace attributes are copied onto every
// event of the trace with a "case:" prefix, so the trace name lands in the
// canonical case column. Canonical columns come first, the rest sorted.
func ReadXES(r io.Reader) (*eventlog.Table, error) {
	dec := xml.NewDecoder(r)
	var rows []map[string]string
	seen := map[string]bool{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read xes: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "trace" {
			continue
		}
		var tr xesTrace
		if err := dec.DecodeElement(&tr, &se); err != nil {
			return nil, fmt.Errorf("read xes trace: %w", err)
		}

		caseAttrs := map[string]string{}
		for _, a := range tr.Attrs {
			if scalar(a) {
				caseAttrs["case:"+a.Key] = a.Value
			}
		}
		for _, ev := range tr.Events {
			row := make(map[string]string, len(caseAttrs)+len(ev.Attrs))
			for k, v := range caseAttrs {
				row[k] = v
			}
			for _, a := range ev.Attrs {
				if scalar(a) {
					row[a.Key] = a.Value
				}
			}
			for k := range row {
				seen[k] = true
			}
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read xes: no events")
	}

	var columns, rest []string
	for _, c := range []string{eventlog.ColCase, eventlog.ColActivity, eventlog.ColTimestamp, eventlog.ColResource} {
		if seen[c] {
			columns = append(columns, c)
			delete(seen, c)
		}
	}
	for c := range seen {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	columns = append(columns, rest...)

	t := eventlog.NewTable(columns...)
	for _, row := range rows {
		cells := make([]eventlog.Value, len(columns))
		for i, c := range columns {
			if v, ok := row[c]; ok {
				cells[i] = eventlog.Str(v)
			}
		}
		t.Append(cells...)
	}
	return t, nil
}
