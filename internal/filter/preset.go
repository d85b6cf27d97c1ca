package filter

import (
	"strings"
	"time"
)

// Preset is a named date range relative to the current day.
type Preset string

const (
	PresetAll       Preset = "all"
	PresetToday     Preset = "today"
	PresetThisWeek  Preset = "this-week"
	PresetThisMonth Preset = "this-month"
	PresetCustom    Preset = "custom"
)

func ParsePreset(s string) Preset {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetToday, PresetThisWeek, PresetThisMonth, PresetCustom:
		return p
	default:
		return PresetAll
	}
}

// Resolve turns p into a DateRange around now. Weeks begin on weekStart.
// PresetCustom uses start/end and falls back to an open range unless both
// are set.
func (p Preset) Resolve(now time.Time, weekStart time.Weekday, start, end time.Time) DateRange {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch p {
	case PresetToday:
		return DateRange{Start: today, End: today}
	case PresetThisWeek:
		first := StartOfWeek(today, weekStart)
		return DateRange{Start: first, End: first.AddDate(0, 0, 6)}
	case PresetThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return DateRange{Start: first, End: first.AddDate(0, 1, -1)}
	case PresetCustom:
		if start.IsZero() || end.IsZero() {
			return DateRange{}
		}
		return DateRange{Start: start, End: end}
	default:
		return DateRange{}
	}
}

// StartOfWeek returns the most recent weekStart on or before day.
func StartOfWeek(day time.Time, weekStart time.Weekday) time.Time {
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	d := day.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}
