package snapshot

import (
	"bytes"
	"encoding/json"
	"time"
)

// Layouts the backend has been seen to emit. Python's isoformat() drops the
// offset for naive datetimes.
var offsetLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00"}
var naiveLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

// Timestamp is a backend timestamp. Values without an offset are wall-clock
// readings whose zone is decided by the reader (see In).
type Timestamp struct {
	time.Time
	naive bool
	raw   string
}

// NewTimestamp wraps an absolute time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, raw: t.Format(time.RFC3339Nano)}
}

// ParseTimestamp parses s, returning the zero Timestamp when no layout fits.
func ParseTimestamp(s string) Timestamp {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, raw: s}
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, naive: true, raw: s}
		}
	}
	return Timestamp{raw: s}
}

// In returns the time in loc. A naive timestamp keeps its wall clock and is
// placed in loc.
func (ts Timestamp) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if ts.naive {
		t := ts.Time
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return ts.Time.In(loc)
}

// Display layouts for operator-facing text.
const (
	TimeLayout = "3:04:05 PM"
	DateLayout = "1/2/2006"
)

// LocalTime formats the time of day in loc, or "" when the value did not parse.
func (ts Timestamp) LocalTime(loc *time.Location) string {
	if !ts.Valid() {
		return ""
	}
	return ts.In(loc).Format(TimeLayout)
}

// LocalDate formats the calendar date in loc, or "" when the value did not parse.
func (ts Timestamp) LocalDate(loc *time.Location) string {
	if !ts.Valid() {
		return ""
	}
	return ts.In(loc).Format(DateLayout)
}

// Valid reports whether the timestamp parsed.
func (ts Timestamp) Valid() bool { return !ts.Time.IsZero() }

// Raw returns the string the backend sent.
func (ts Timestamp) Raw() string { return ts.raw }

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Anything but a string is unreadable, not fatal.
		*ts = Timestamp{raw: string(data)}
		return nil
	}
	*ts = ParseTimestamp(s)
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.raw == "" && ts.Valid() {
		return json.Marshal(ts.Time.Format(time.RFC3339Nano))
	}
	return json.Marshal(ts.raw)
}
