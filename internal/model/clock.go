package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of Event.Date.
const DateLayout = "2006-01-02"

// DefaultDuration applies to events without an end time.
const DefaultDuration = 60 * time.Minute

var (
	ErrBadDate  = errors.New("malformed date")
	ErrBadClock = errors.New("malformed time of day")
)

// Clock is a wall-clock time of day in minutes since midnight. Values of
// 24:00 and later are allowed for interval ends that spill past midnight.
type Clock int

// maxClock bounds parsed values to the following day.
const maxClock = Clock(48 * 60)

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "H:MM" or "HH:MM".
func ParseClock(s string) (Clock, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || hs == "" || len(ms) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	c := NewClock(h, m)
	if c >= maxClock {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return c, nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

// Sub returns c - o as a duration.
func (c Clock) Sub(o Clock) time.Duration {
	return time.Duration(c-o) * time.Minute
}

func (c Clock) String() string {
	if c < 0 {
		return "-" + (-c).String()
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ParseDate parses a YYYY-MM-DD calendar date. The result is midnight UTC and
// only its calendar fields are meaningful.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateKey orders calendar dates regardless of zone: 2025-11-03 -> 20251103.
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// At combines a YYYY-MM-DD date and a Clock into an instant in loc.
func At(date string, c Clock, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}
