package filter

import (
	"strings"

	"eventcal/internal/model"
)

type TimeOfDay string

const (
	TimeAll       TimeOfDay = "all"
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
)

// ParseTimeOfDay maps a query value to a bucket; unknown values mean TimeAll.
func ParseTimeOfDay(s string) TimeOfDay {
	switch t := TimeOfDay(strings.ToLower(strings.TrimSpace(s))); t {
	case TimeMorning, TimeAfternoon, TimeEvening:
		return t
	default:
		return TimeAll
	}
}

func (t TimeOfDay) active() bool {
	return t != "" && t != TimeAll
}

// BucketOf classifies a start time by hour: morning [6,12), afternoon
// [12,17), evening [17,24). Starts before 06:00 belong to no bucket and only
// match TimeAll.
func BucketOf(start model.Clock) TimeOfDay {
	switch h := start.Hour(); {
	case h >= 6 && h < 12:
		return TimeMorning
	case h >= 12 && h < 17:
		return TimeAfternoon
	case h >= 17 && h < 24:
		return TimeEvening
	default:
		return ""
	}
}
