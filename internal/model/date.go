package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the display and storage layout for dates.
const DateLayout = "2006-01-02"

// looseDateLayout accepts months and days with or without zero padding.
const looseDateLayout = "2006-1-2"

// ParseDate parses a YYYY-M-D date into UTC midnight.
// A time suffix starting with 'T' or a space is ignored.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(looseDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// NormalizeDate rewrites a date as zero-padded YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}

// FormatDate returns the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// EpochMillis returns t as milliseconds since the Unix epoch.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
