package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxRefreshIntervals caps the expansion of a periodic time range
// into discrete instants. A one-second period over a decade would
// otherwise produce hundreds of millions of entries.
const DefaultMaxRefreshIntervals = 1000

// Dimension is a WMS-style dimension (time, elevation, custom).
type Dimension struct {
	Name          string
	Units         string
	UnitSymbol    string
	Default       string
	MultipleValue bool
	Values        []string
}

// ParseInstant parses an ISO-8601 instant as found in WMS time
// dimensions. Date-only and local forms are accepted.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
		"2006-01",
		"2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("instant %q: %w", s, ErrBadResponse)
}

// Period is an ISO-8601 duration (P1Y2M3DT4H5M6S). Year and month
// components advance the calendar; the rest are absolute.
type Period struct {
	Years, Months, Days int
	Hours, Minutes      float64
	Seconds             float64
}

// IsZero reports whether every component is zero.
func (p Period) IsZero() bool {
	return p == Period{}
}

// AddTo returns t advanced by one period.
func (p Period) AddTo(t time.Time) time.Time {
	t = t.AddDate(p.Years, p.Months, p.Days)
	return t.Add(time.Duration(p.Hours*float64(time.Hour)) +
		time.Duration(p.Minutes*float64(time.Minute)) +
		time.Duration(p.Seconds*float64(time.Second)))
}

// ParsePeriod parses an ISO-8601 duration string.
func ParsePeriod(s string) (Period, error) {
	var p Period
	orig := s
	if !strings.HasPrefix(s, "P") {
		return p, fmt.Errorf("period %q: %w", orig, ErrBadResponse)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
	}

	var err error
	if p.Years, p.Months, p.Days, err = parsePeriodDate(datePart); err != nil {
		return p, fmt.Errorf("period %q: %w", orig, err)
	}
	if p.Hours, p.Minutes, p.Seconds, err = parsePeriodTime(timePart); err != nil {
		return p, fmt.Errorf("period %q: %w", orig, err)
	}
	if p.IsZero() {
		return p, fmt.Errorf("period %q is zero: %w", orig, ErrBadResponse)
	}
	return p, nil
}

func parsePeriodDate(s string) (years, months, days int, err error) {
	for s != "" {
		i := strings.IndexAny(s, "YMWD")
		if i < 0 {
			return 0, 0, 0, ErrBadResponse
		}
		n, convErr := strconv.Atoi(s[:i])
		if convErr != nil {
			return 0, 0, 0, convErr
		}
		switch s[i] {
		case 'Y':
			years = n
		case 'M':
			months = n
		case 'W':
			days += 7 * n
		case 'D':
			days += n
		}
		s = s[i+1:]
	}
	return years, months, days, nil
}

func parsePeriodTime(s string) (hours, minutes, seconds float64, err error) {
	for s != "" {
		i := strings.IndexAny(s, "HMS")
		if i < 0 {
			return 0, 0, 0, ErrBadResponse
		}
		n, convErr := strconv.ParseFloat(s[:i], 64)
		if convErr != nil {
			return 0, 0, 0, convErr
		}
		switch s[i] {
		case 'H':
			hours = n
		case 'M':
			minutes = n
		case 'S':
			seconds = n
		}
		s = s[i+1:]
	}
	return hours, minutes, seconds, nil
}

// ExpandTimeValues turns a WMS time dimension value list into discrete
// ISO-8601 instants. Each comma-separated entry is either a single
// instant, kept verbatim, or a start/end/period triple expanded into at
// most maxIntervals instants per entry (maxIntervals <= 0 means
// DefaultMaxRefreshIntervals). Unparseable entries are skipped; the
// expansion is deterministic for a given input.
func ExpandTimeValues(values []string, maxIntervals int) []string {
	if maxIntervals <= 0 {
		maxIntervals = DefaultMaxRefreshIntervals
	}

	var out []string
	for _, value := range values {
		for _, entry := range strings.Split(value, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			parts := strings.Split(entry, "/")
			if len(parts) != 3 {
				out = append(out, entry)
				continue
			}
			out = append(out, expandTriple(parts[0], parts[1], parts[2], maxIntervals)...)
		}
	}
	return out
}

func expandTriple(start, end, period string, maxIntervals int) []string {
	startT, err := ParseInstant(start)
	if err != nil {
		return nil
	}
	endT, err := ParseInstant(end)
	if err != nil {
		return nil
	}
	p, err := ParsePeriod(period)
	if err != nil || endT.Before(startT) {
		return []string{start}
	}

	out := make([]string, 0, 8)
	for t := startT; !t.After(endT) && len(out) < maxIntervals; t = p.AddTo(t) {
		out = append(out, t.UTC().Format(time.RFC3339))
		next := p.AddTo(t)
		if !next.After(t) {
			break
		}
	}
	return out
}
