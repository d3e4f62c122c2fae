package coupon

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Validity bounds arrive in several shapes depending on where a coupon was
// authored: RFC 3339 strings, bare dates, epoch seconds or milliseconds
// (as numbers or digit strings). ParseBound normalizes them all on the way
// in so the engine only ever compares time.Time values.

// ParseBound converts a loosely-typed validity bound into a *time.Time.
// An absent or unparseable value returns nil, which the engine treats as
// "no bound" rather than an error.
func ParseBound(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case *time.Time:
		return t
	case float64:
		return epochToTime(int64(t))
	case int64:
		return epochToTime(t)
	case int:
		return epochToTime(int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return epochToTime(n)
		}
		return nil
	case string:
		return parseBoundString(t)
	default:
		return nil
	}
}

func parseBoundString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochToTime(n)
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

// epochToTime interprets large values as milliseconds, the rest as seconds.
func epochToTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var ts time.Time
	if n > 1e12 {
		ts = time.UnixMilli(n).UTC()
	} else {
		ts = time.Unix(n, 0).UTC()
	}
	return &ts
}
