// Package schedule describes when a game gets hosted.
//
// A game carries a FIFO list of schedules; the head is the current one.
// Each schedule has a type that picks host times and an optional
// expiration condition after which the next schedule in the list takes
// over.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pcc2/hostcron/pkg/clock"
	"github.com/pcc2/hostcron/pkg/model"
)

// ErrInvalid is returned for schedules that cannot be stored or evaluated.
var ErrInvalid = errors.New("invalid schedule")

// Schedule is one hosting policy.
type Schedule struct {
	ID   int64              `json:"id"`
	Type model.ScheduleType `json:"type"`

	// Weekdays is a bit mask, bit n set for time.Weekday(n). Weekly only.
	Weekdays uint8 `json:"weekdays,omitempty"`
	// Interval is the number of days between hosts. Daily only.
	Interval int `json:"interval,omitempty"`
	// Daytime is the host time in minutes after midnight UTC.
	Daytime clock.Time `json:"daytime"`

	// HostEarly allows hosting before the scheduled time once all turns
	// are in.
	HostEarly bool `json:"hostEarly"`
	// HostDelay is the wait after the last turn submission before an
	// early or quick host.
	HostDelay clock.Time `json:"hostDelay"`
	// HostLimit is the minimum distance between the previous host and the
	// next scheduled one.
	HostLimit clock.Time `json:"hostLimit"`

	Condition model.Condition `json:"condition"`
	CondTurn  int             `json:"condTurn,omitempty"`
	CondTime  clock.Time      `json:"condTime,omitempty"`
}

// Hash field names.
const (
	fieldType      = "type"
	fieldWeekdays  = "weekdays"
	fieldInterval  = "interval"
	fieldDaytime   = "daytime"
	fieldHostEarly = "hostEarly"
	fieldHostDelay = "hostDelay"
	fieldHostLimit = "hostLimit"
	fieldCondition = "condition"
	fieldCondTurn  = "condTurn"
	fieldCondTime  = "condTime"
)

// FromHash decodes a schedule record. Missing fields take their zero
// value, so an empty hash is a stopped schedule.
func FromHash(id int64, h map[string]string) (Schedule, error) {
	s := Schedule{ID: id}
	var err error
	if v := h[fieldType]; v != "" {
		if s.Type, err = model.ParseScheduleType(v); err != nil {
			return s, fmt.Errorf("schedule %d: %w", id, err)
		}
	}
	if v := h[fieldCondition]; v != "" {
		if s.Condition, err = model.ParseCondition(v); err != nil {
			return s, fmt.Errorf("schedule %d: %w", id, err)
		}
	}

	ints := []struct {
		field string
		set   func(int64)
	}{
		{fieldWeekdays, func(n int64) { s.Weekdays = uint8(n) }},
		{fieldInterval, func(n int64) { s.Interval = int(n) }},
		{fieldDaytime, func(n int64) { s.Daytime = clock.Time(n) }},
		{fieldHostEarly, func(n int64) { s.HostEarly = n != 0 }},
		{fieldHostDelay, func(n int64) { s.HostDelay = clock.Time(n) }},
		{fieldHostLimit, func(n int64) { s.HostLimit = clock.Time(n) }},
		{fieldCondTurn, func(n int64) { s.CondTurn = int(n) }},
		{fieldCondTime, func(n int64) { s.CondTime = clock.Time(n) }},
	}
	for _, f := range ints {
		v := h[f.field]
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, fmt.Errorf("schedule %d: field %s: %q is not an integer", id, f.field, v)
		}
		f.set(n)
	}
	return s, nil
}

// ToHash encodes the schedule for storage.
func (s Schedule) ToHash() map[string]string {
	b := 0
	if s.HostEarly {
		b = 1
	}
	return map[string]string{
		fieldType:      s.Type.String(),
		fieldWeekdays:  strconv.Itoa(int(s.Weekdays)),
		fieldInterval:  strconv.Itoa(s.Interval),
		fieldDaytime:   strconv.FormatInt(int64(s.Daytime), 10),
		fieldHostEarly: strconv.Itoa(b),
		fieldHostDelay: strconv.FormatInt(int64(s.HostDelay), 10),
		fieldHostLimit: strconv.FormatInt(int64(s.HostLimit), 10),
		fieldCondition: s.Condition.String(),
		fieldCondTurn:  strconv.Itoa(s.CondTurn),
		fieldCondTime:  strconv.FormatInt(int64(s.CondTime), 10),
	}
}

// Validate checks the schedule for values no computation can use.
func (s Schedule) Validate() error {
	if _, err := model.ParseScheduleType(s.Type.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if s.Daytime < 0 || s.Daytime >= clock.Day {
		return fmt.Errorf("%w: day time %d out of range", ErrInvalid, s.Daytime)
	}
	if s.Interval < 0 {
		return fmt.Errorf("%w: negative interval", ErrInvalid)
	}
	if s.HostDelay < 0 || s.HostLimit < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalid)
	}
	if s.Weekdays&0x80 != 0 {
		return fmt.Errorf("%w: week day mask %#x", ErrInvalid, s.Weekdays)
	}
	switch s.Condition {
	case model.ConditionNone:
	case model.ConditionTurn:
		if s.CondTurn <= 0 {
			return fmt.Errorf("%w: turn condition needs a positive turn", ErrInvalid)
		}
	case model.ConditionTime:
		if s.CondTime <= 0 {
			return fmt.Errorf("%w: time condition needs a time", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, s.Condition)
	}
	return nil
}

// NextHost returns the first scheduled host time after lastHost, or 0 if
// the schedule never hosts by itself. Quick and manual schedules only host
// on demand, so they return 0 here.
func (s Schedule) NextHost(lastHost clock.Time) clock.Time {
	earliest := lastHost + max(s.HostLimit, clock.Minute)
	switch s.Type {
	case model.ScheduleWeekly:
		spec := s.cronSpec()
		if spec == "" {
			return 0
		}
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return 0
		}
		next := sched.Next((earliest - 1).Wall())
		if next.IsZero() {
			return 0
		}
		return clock.FromWall(next)

	case model.ScheduleDaily:
		step := clock.Time(max(s.Interval, 1)) * clock.Day
		next := lastHost.StartOfDay() + step + s.Daytime
		for next < earliest {
			next += step
		}
		return next
	}
	return 0
}

// PreviousVirtualHost returns the latest time at or before t at which the
// schedule would have hosted, or 0 if it cannot tell.
func (s Schedule) PreviousVirtualHost(t clock.Time) clock.Time {
	day := t.StartOfDay()
	switch s.Type {
	case model.ScheduleWeekly:
		for i := clock.Time(0); i <= 7; i++ {
			d := day - i*clock.Day
			if s.Weekdays&(1<<uint(d.Weekday())) == 0 {
				continue
			}
			if h := d + s.Daytime; h <= t {
				return h
			}
		}
	case model.ScheduleDaily:
		if h := day + s.Daytime; h <= t {
			return h
		}
		return day - clock.Day + s.Daytime
	}
	return 0
}

// IsExpired reports whether the schedule's condition has been met at the
// given turn and time.
func (s Schedule) IsExpired(turn int, now clock.Time) bool {
	switch s.Condition {
	case model.ConditionTurn:
		return turn >= s.CondTurn
	case model.ConditionTime:
		return now >= s.CondTime
	}
	return false
}

// ExpirationTime returns when a time condition expires the schedule, or 0
// if it has no time condition.
func (s Schedule) ExpirationTime() clock.Time {
	if s.Condition == model.ConditionTime {
		return s.CondTime
	}
	return 0
}

// cronSpec renders a weekly schedule as a standard five-field cron
// expression, or "" if no week day is selected.
func (s Schedule) cronSpec() string {
	var days []string
	for d := 0; d < 7; d++ {
		if s.Weekdays&(1<<uint(d)) != 0 {
			days = append(days, strconv.Itoa(d))
		}
	}
	if len(days) == 0 {
		return ""
	}
	return fmt.Sprintf("%d %d * * %s", s.Daytime%clock.Hour, s.Daytime/clock.Hour, strings.Join(days, ","))
}

// String describes the schedule in one line.
func (s Schedule) String() string {
	var b strings.Builder
	b.WriteString(s.Type.String())
	switch s.Type {
	case model.ScheduleWeekly:
		fmt.Fprintf(&b, " %s at %s", FormatWeekDays(s.Weekdays), FormatDaytime(s.Daytime))
	case model.ScheduleDaily:
		fmt.Fprintf(&b, " every %d day(s) at %s", max(s.Interval, 1), FormatDaytime(s.Daytime))
	case model.ScheduleQuick:
		fmt.Fprintf(&b, " after %d min", s.HostDelay)
	}
	if s.HostEarly {
		b.WriteString(", early")
	}
	switch s.Condition {
	case model.ConditionTurn:
		fmt.Fprintf(&b, ", until turn %d", s.CondTurn)
	case model.ConditionTime:
		fmt.Fprintf(&b, ", until %s", s.CondTime)
	}
	return b.String()
}

var dayNames = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseWeekDays parses a comma-separated day list like "mon,thu".
func ParseWeekDays(s string) (uint8, error) {
	var mask uint8
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		found := false
		for i, name := range dayNames {
			if part == name || strings.EqualFold(part, time.Weekday(i).String()) {
				mask |= 1 << uint(i)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown week day %q", ErrInvalid, part)
		}
	}
	return mask, nil
}

// FormatWeekDays is the inverse of ParseWeekDays.
func FormatWeekDays(mask uint8) string {
	var days []string
	for i, name := range dayNames {
		if mask&(1<<uint(i)) != 0 {
			days = append(days, name)
		}
	}
	if len(days) == 0 {
		return "none"
	}
	return strings.Join(days, ",")
}

// ParseDaytime parses "HH:MM" into minutes after midnight.
func ParseDaytime(s string) (clock.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: day time %q", ErrInvalid, s)
	}
	return clock.Time(t.Hour())*clock.Hour + clock.Time(t.Minute()), nil
}

// FormatDaytime is the inverse of ParseDaytime.
func FormatDaytime(t clock.Time) string {
	return fmt.Sprintf("%02d:%02d", t/clock.Hour, t%clock.Hour)
}
