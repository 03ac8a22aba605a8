package types

import (
	"encoding/json"
	"github.com/araddon/dateparse"
	"github.com/rotblauer/trailplay/types/locpoint"
	"math"
	"strings"
	"time"
)

// ParseTimestamp normalizes a raw timestamp value to the canonical layout.
//
// Missing, empty, zero or false values, and values of unknown type, become now.
// Numbers are epoch milliseconds.
// Strings are parsed as given, then with their first comma removed;
// zone-less strings are read as UTC.
// A string that parses neither way is returned unchanged along with a non-nil error.
func ParseTimestamp(v any, now time.Time) (string, error) {
	switch t := v.(type) {
	case nil:
	case time.Time:
		if !t.IsZero() {
			return locpoint.FormatTime(t), nil
		}
	case *time.Time:
		if t != nil && !t.IsZero() {
			return locpoint.FormatTime(*t), nil
		}
	case float64:
		return fromEpochMillis(t, now), nil
	case float32:
		return fromEpochMillis(float64(t), now), nil
	case int:
		return fromEpochMillis(float64(t), now), nil
	case int64:
		return fromEpochMillis(float64(t), now), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String(), &ParseError{Index: -1, Value: t.String()}
		}
		return fromEpochMillis(f, now), nil
	case string:
		if t == "" {
			break
		}
		if parsed, ok := parseTimeString(t); ok {
			return locpoint.FormatTime(parsed), nil
		}
		return t, &ParseError{Index: -1, Value: t}
	}
	return locpoint.FormatTime(now), nil
}

func fromEpochMillis(ms float64, now time.Time) string {
	if ms == 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return locpoint.FormatTime(now)
	}
	return locpoint.FormatTime(time.UnixMilli(int64(ms)))
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, candidate := range []string{s, strings.TrimSpace(strings.Replace(s, ",", "", 1))} {
		if t, err := dateparse.ParseIn(candidate, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
