// ABOUTME: Timestamp parsing for stored snapshot times
// ABOUTME: Unparsable values are reported, never returned as errors

package memento

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TimestampParser turns a raw stored timestamp into a time. ok is false for
// empty or corrupt input.
type TimestampParser func(raw string) (t time.Time, ok bool)

// archiveFormat is the 14-digit capture time used by web archives
const archiveFormat = "20060102150405"

// ParseTimestamp is the default TimestampParser. It accepts HTTP dates,
// RFC 3339, 14-digit archive timestamps and decimal epoch milliseconds.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := http.ParseTime(s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if len(s) == len(archiveFormat) {
		if t, err := time.Parse(archiveFormat, s); err == nil {
			return t.UTC(), true
		}
	}

	// Fetch times are recorded as milliseconds since the epoch
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
