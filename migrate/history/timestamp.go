package history

import (
	"fmt"
	"time"
)

// timestampLayouts covers the textual timestamps returned by drivers that
// don't parse DATETIME columns themselves (MySQL without parseTime, SQLite)
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp normalizes a scanned last-run value to UTC
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimestampString(t)
	case []byte:
		return parseTimestampString(string(t))
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("last run timestamp is NULL")
	default:
		return time.Time{}, fmt.Errorf("unsupported last run timestamp type %T", v)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse last run timestamp %q", s)
}
