// Package daterange turns free-text "before"/"after" timestamps into a
// bounded date predicate.
//
// Partial timestamps are completed the way a calendar user would expect:
// a "before" bound is filled with the smallest missing components and an
// "after" bound with the largest, so "2020-02" as an "after" value means
// 2020-02-29T23:59:59.
package daterange

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type precision int

const (
	precisionYear precision = iota
	precisionMonth
	precisionDay
	precisionHour
	precisionMinute
	precisionFull
)

type layout struct {
	format    string
	precision precision
}

// layouts are tried in order. Formats without a zone are read as UTC.
var layouts = []layout{
	{"2006", precisionYear},
	{"2006-01", precisionMonth},
	{"2006/01", precisionMonth},
	{"2006-01-02", precisionDay},
	{"2006/01/02", precisionDay},
	{"2006-01-02T15", precisionHour},
	{"2006-01-02 15", precisionHour},
	{"2006-01-02T15:04", precisionMinute},
	{"2006-01-02 15:04", precisionMinute},
	{"2006-01-02T15:04Z07:00", precisionMinute},
	{"2006-01-02T15:04:05", precisionFull},
	{"2006-01-02 15:04:05", precisionFull},
	{time.RFC3339Nano, precisionFull},
	{"2006-01-02 15:04:05Z07:00", precisionFull},

	{"Jan 2006", precisionMonth},
	{"January 2006", precisionMonth},
	{"Jan 2, 2006", precisionDay},
	{"January 2, 2006", precisionDay},
	{"Jan 2 2006", precisionDay},
	{"January 2 2006", precisionDay},
	{"2 Jan 2006", precisionDay},
	{"2 January 2006", precisionDay},
	{"02-Jan-2006", precisionDay},

	{"2006-01-02 3pm", precisionHour},
	{"2006-01-02 3PM", precisionHour},
	{"2006-01-02 3:04pm", precisionMinute},
	{"2006-01-02 3:04PM", precisionMinute},
}

var (
	clockPattern    = regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?`)
	meridiemPattern = regexp.MustCompile(`(?i)\d\s*[ap]\.?m\b`)
)

// ErrUnparsable is wrapped by every parse failure.
var ErrUnparsable = errors.New("could not parse timestamp")

// Range is an inclusive date interval; a nil bound is open.
type Range struct {
	Before *time.Time
	After  *time.Time
}

// IsEmpty reports whether neither bound is set.
func (r Range) IsEmpty() bool {
	return r.Before == nil && r.After == nil
}

// Filter renders the range as a comparison document for a date field.
// It returns nil for an empty range.
func (r Range) Filter() bson.M {
	if r.IsEmpty() {
		return nil
	}
	f := bson.M{}
	if r.Before != nil {
		f["$lte"] = *r.Before
	}
	if r.After != nil {
		f["$gte"] = *r.After
	}
	return f
}

// Parse builds a Range from the raw before/after strings. Empty strings
// are treated as absent. A bound that cannot be parsed is left open and
// its error is returned joined with any other; the remaining bound is
// still usable.
func Parse(before, after string) (Range, error) {
	var (
		r    Range
		errs []error
	)
	if strings.TrimSpace(before) != "" {
		t, err := ParseBefore(before)
		if err != nil {
			errs = append(errs, err)
		} else {
			r.Before = &t
		}
	}
	if strings.TrimSpace(after) != "" {
		t, err := ParseAfter(after)
		if err != nil {
			errs = append(errs, err)
		} else {
			r.After = &t
		}
	}
	return r, errors.Join(errs...)
}

// ParseBefore parses an upper bound, filling missing components with
// their minimum.
func ParseBefore(value string) (time.Time, error) {
	t, _, err := parse(value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseAfter parses a lower bound, filling missing components with their
// maximum.
func ParseAfter(value string) (time.Time, error) {
	t, p, err := parse(value)
	if err != nil {
		return time.Time{}, err
	}
	return fillMax(t, p).UTC(), nil
}

func parse(value string) (time.Time, precision, error) {
	value = strings.TrimSpace(value)
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l.format, value, time.UTC); err == nil {
			return t, l.precision, nil
		}
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w %q: %v", ErrUnparsable, value, err)
	}
	return t, inferPrecision(value, t), nil
}

// inferPrecision guesses how much of the clock a free-text value named.
// A value without any clock is a whole day.
func inferPrecision(value string, t time.Time) precision {
	if m := clockPattern.FindStringSubmatch(value); m != nil {
		if m[1] != "" {
			return precisionFull
		}
		return precisionMinute
	}
	if meridiemPattern.MatchString(value) {
		return precisionHour
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return precisionDay
	}
	return precisionFull
}

func fillMax(t time.Time, p precision) time.Time {
	loc := t.Location()
	switch p {
	case precisionYear:
		return time.Date(t.Year(), time.December, 31, 23, 59, 59, 0, loc)
	case precisionMonth:
		// day 0 of the following month is the last day of this one
		return time.Date(t.Year(), t.Month()+1, 0, 23, 59, 59, 0, loc)
	case precisionDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
	case precisionHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 59, 59, 0, loc)
	case precisionMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 59, 0, loc)
	default:
		return t
	}
}
