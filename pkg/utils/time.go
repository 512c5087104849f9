package utils

import "time"

// storedTimeLayout is the fixed-width representation every persisted
// timestamp uses. The fractional second always carries three digits, so
// lexicographic comparison over stored strings agrees with chronological
// order. RFC3339Nano would drop trailing zeros and break that agreement.
const storedTimeLayout = "2006-01-02T15:04:05.000Z"

// NowUTC returns the current time in UTC, truncated to millisecond precision
// so every stored timestamp shares a single representation.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NowRFC3339 returns the current UTC time in the stored representation.
func NowRFC3339() string {
	return FormatRFC3339(NowUTC())
}

// FormatRFC3339 formats a time as its stored representation.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// ParseRFC3339 parses a stored timestamp, accepting any RFC3339 fractional
// precision; the zero time is returned for anything unparsable.
func ParseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
