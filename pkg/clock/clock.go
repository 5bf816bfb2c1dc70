// Package clock implements service time for the host scheduler.
//
// Schedules are computed in whole minutes since the Unix epoch, not in
// wall-clock time. Minute resolution keeps schedule arithmetic in plain
// integers and keeps time zones out of the scheduler. Wall-clock time only
// appears when the scheduler has to sleep, and when times are shown to
// people; FromWall and Time.Wall convert between the two.
//
// All schedule day math uses UTC.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Time is a point in service time: minutes since 1970-01-01 00:00 UTC.
// The zero value means "no time" wherever a time is optional.
type Time int64

// Common durations in service time.
const (
	Minute Time = 1
	Hour   Time = 60 * Minute
	Day    Time = 24 * Hour
	Week   Time = 7 * Day
)

// FromWall converts a wall-clock time to service time, rounding down to
// the minute.
func FromWall(t time.Time) Time {
	sec := t.Unix()
	if sec < 0 {
		return Time((sec - 59) / 60)
	}
	return Time(sec / 60)
}

// Wall converts service time to a UTC wall-clock time.
func (t Time) Wall() time.Time {
	return time.Unix(int64(t)*60, 0).UTC()
}

// Now returns the current service time according to c.
func Now(c clockwork.Clock) Time {
	return FromWall(c.Now())
}

// Until returns the wall-clock duration from now (according to c) until t.
// The result is negative if t has passed.
func Until(c clockwork.Clock, t Time) time.Duration {
	return t.Wall().Sub(c.Now())
}

// StartOfDay returns midnight (UTC) of the day containing t.
func (t Time) StartOfDay() Time {
	d := t % Day
	if d < 0 {
		d += Day
	}
	return t - d
}

// Weekday returns the day of week of t (UTC).
func (t Time) Weekday() time.Weekday {
	// 1970-01-01 was a Thursday.
	days := int64(t.StartOfDay() / Day)
	wd := (days + int64(time.Thursday)) % 7
	if wd < 0 {
		wd += 7
	}
	return time.Weekday(wd)
}

// Max returns the later of a and b.
func Max(a, b Time) Time {
	if a > b {
		return a
	}
	return b
}

// String formats t for logs, or "-" for the zero time.
func (t Time) String() string {
	if t == 0 {
		return "-"
	}
	return t.Wall().Format("2006-01-02 15:04")
}
