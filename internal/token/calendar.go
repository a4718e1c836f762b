package token

import "time"

const (
	daySeconds  int64 = 86400
	yearSeconds       = 365 * daySeconds
)

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// NextXmas returns the Dec-25 00:00 UTC instant one year after prev,
// where prev is the Dec-25 instant of prevYear. The span contains Feb 29
// exactly when the following year is a leap year.
func NextXmas(prevYear int, prev int64) (int, int64) {
	year := prevYear + 1
	if IsLeapYear(year) {
		return year, prev + yearSeconds + daySeconds
	}
	return year, prev + yearSeconds
}

// XmasTime returns Dec-25 00:00 UTC of year as a unix timestamp.
func XmasTime(year int) int64 {
	return time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC).Unix()
}

// FirstXmasAtOrAfter returns the first Dec-25 00:00 UTC at or after t.
func FirstXmasAtOrAfter(t time.Time) (int, int64) {
	t = t.UTC()
	year := t.Year()
	ts := XmasTime(year)
	if t.Unix() > ts {
		return NextXmas(year, ts)
	}
	return year, ts
}
