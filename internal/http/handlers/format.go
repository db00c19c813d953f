package handlers

import (
	"bytes"
	"encoding/json"
	"time"
)

// timestampLayout is RFC 3339 in UTC with a literal Z suffix.
const timestampLayout = "2006-01-02T15:04:05Z"

// formatTimestamp renders t as an ISO 8601 UTC timestamp, e.g. for health checks.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// isoTimeLayouts are tried in order. Layouts without an offset are read as UTC.
var isoTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// isoTime is an ISO 8601 timestamp from a request body. Unlike time.Time it
// also accepts timestamps without an offset.
type isoTime struct {
	time.Time
}

func (t *isoTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return invalid("timestamp", "must be an ISO 8601 string")
	}
	parsed, err := parseISOTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseISOTime(s string) (time.Time, error) {
	for _, layout := range isoTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, invalid("timestamp", "must be an ISO 8601 timestamp")
}
