// Package duration converts human duration strings ("15m", "7d") into
// milliseconds and absolute times, and provides small date helpers used for
// token and OTP expiry.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CleanISOLayout is RFC 3339 in UTC without fractional seconds.
const CleanISOLayout = "2006-01-02T15:04:05Z"

var units = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// Parse parses "<n>d", "<n>h", "<n>m", "<n>s" or a bare number of
// milliseconds. Negative values and unknown suffixes are errors.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	unit := time.Millisecond
	num := s
	if u, ok := units[s[len(s)-1]]; ok {
		unit = u
		num = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(n) * unit, nil
}

// ToMs converts a duration string to milliseconds. Invalid input yields 0.
func ToMs(s string) int64 {
	d, err := Parse(s)
	if err != nil {
		return 0
	}
	return d.Milliseconds()
}

// AddToNow returns now plus the parsed duration. Invalid input adds nothing.
func AddToNow(s string) time.Time {
	return time.Now().Add(time.Duration(ToMs(s)) * time.Millisecond)
}

// IsExpired reports whether t is in the past. A nil time is expired.
func IsExpired(t *time.Time) bool {
	if t == nil {
		return true
	}
	return t.Before(time.Now())
}

// RemainingMs returns the milliseconds until t, or 0 when expired.
func RemainingMs(t *time.Time) int64 {
	if IsExpired(t) {
		return 0
	}
	return time.Until(*t).Milliseconds()
}

// CleanISO formats t in UTC without fractional seconds. A nil time yields "".
func CleanISO(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(CleanISOLayout)
}

// FromUnix converts Unix seconds to a time.
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}

// ToUnix converts t to Unix seconds.
func ToUnix(t time.Time) int64 {
	return t.Unix()
}

// StartOfDay returns 00:00:00.000 of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// IsSameDay reports whether a and b fall on the same calendar day.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// AddDays adds n calendar days to t.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}
