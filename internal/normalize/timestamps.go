package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/itchyny/timefmt-go"

	"github.com/roach88/pmgate/internal/eventlog"
)

// TimestampOptions controls timestamp parsing.
type TimestampOptions struct {
	// Format is an explicit strftime-style format (e.g. "%Y-%m-%d %H:%M:%S").
	// Empty selects flexible parsing.
	Format string `json:"timestamp_format,omitempty" yaml:"timestamp_format,omitempty"`

	// DayFirst resolves ambiguous dates such as 03/04/2024 as 3 April.
	DayFirst bool `json:"timestamp_dayfirst,omitempty" yaml:"timestamp_dayfirst,omitempty"`

	// UTC interprets zone-less values as UTC and converts zoned values to UTC.
	UTC bool `json:"timestamp_utc,omitempty" yaml:"timestamp_utc,omitempty"`

	// Timezone is an IANA zone name. Zone-less values are localized into it,
	// zoned values are converted to it.
	Timezone string `json:"timestamp_timezone,omitempty" yaml:"timestamp_timezone,omitempty"`
}

// sentinelZone is an offset no real value uses, so parsing a zone-less value in
// it yields a different instant than parsing it in UTC.
var sentinelZone = time.FixedZone("sentinel", 7*3600+1800)

type parsedValue struct {
	t     time.Time
	aware bool
}

// ParseTimestamps parses every cell. Null or unparsable cells yield nil.
//
// If Timezone cannot be loaded, or a zone-less value is nonexistent or
// ambiguous in it, localization is abandoned for the whole column and the
// unlocalized values are returned.
func ParseTimestamps(values []eventlog.Value, opts TimestampOptions) []*time.Time {
	parsed := make([]*parsedValue, len(values))
	for i, v := range values {
		if !v.Valid {
			continue
		}
		s := strings.TrimSpace(v.S)
		if s == "" {
			continue
		}
		pv, ok := parseOne(s, opts)
		if !ok {
			continue
		}
		if opts.UTC {
			pv.t = pv.t.UTC()
			pv.aware = true
		}
		parsed[i] = &pv
	}

	if opts.Timezone != "" {
		if localized, ok := localize(parsed, opts.Timezone); ok {
			parsed = localized
		}
	}

	out := make([]*time.Time, len(values))
	for i, pv := range parsed {
		if pv != nil {
			ts := pv.t
			out[i] = &ts
		}
	}
	return out
}

// ParseTimestamp parses a single value with the same rules as ParseTimestamps.
func ParseTimestamp(s string, opts TimestampOptions) (time.Time, bool) {
	out := ParseTimestamps([]eventlog.Value{eventlog.Str(s)}, opts)
	if out[0] == nil {
		return time.Time{}, false
	}
	return *out[0], true
}

func parseOne(s string, opts TimestampOptions) (parsedValue, bool) {
	if opts.Format != "" {
		t, err := timefmt.ParseInLocation(s, opts.Format, time.UTC)
		if err != nil {
			return parsedValue{}, false
		}
		return parsedValue{t: t, aware: formatHasZone(opts.Format)}, true
	}

	preferMonthFirst := dateparse.PreferMonthFirst(!opts.DayFirst)
	t, err := dateparse.ParseIn(s, time.UTC, preferMonthFirst)
	if err != nil {
		return parsedValue{}, false
	}
	reparsed, err := dateparse.ParseIn(s, sentinelZone, preferMonthFirst)
	aware := err == nil && reparsed.Equal(t)
	return parsedValue{t: t, aware: aware}, true
}

func formatHasZone(format string) bool {
	return strings.Contains(format, "%z") || strings.Contains(format, "%Z") || strings.Contains(format, "%:z")
}

func localize(values []*parsedValue, zone string) ([]*parsedValue, bool) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		slog.Warn("timezone localization failed; keeping unlocalized timestamps",
			"timezone", zone,
			"error", err,
		)
		return nil, false
	}

	out := make([]*parsedValue, len(values))
	for i, pv := range values {
		if pv == nil {
			continue
		}
		if pv.aware {
			out[i] = &parsedValue{t: pv.t.In(loc), aware: true}
			continue
		}
		w := pv.t
		local := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), loc)
		reason := ""
		switch {
		case !sameWallClock(local, w):
			reason = "nonexistent local time"
		case ambiguous(local):
			reason = "ambiguous local time"
		}
		if reason != "" {
			slog.Warn("timezone localization failed; keeping unlocalized timestamps",
				"timezone", zone,
				"value", w.Format("2006-01-02 15:04:05"),
				"reason", reason,
			)
			return nil, false
		}
		out[i] = &parsedValue{t: local, aware: true}
	}
	return out, true
}

func sameWallClock(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}

func ambiguous(t time.Time) bool {
	for _, d := range []time.Duration{-time.Hour, time.Hour} {
		other := t.Add(d)
		if sameWallClock(other, t) {
			return true
		}
	}
	return false
}
