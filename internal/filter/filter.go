// Package filter evaluates user filter criteria against event lists.
package filter

import (
	"strings"
	"time"

	"eventcal/internal/model"
	"eventcal/internal/search"
)

// FreeFoodTag is the tag substring that marks an event as offering free food.
const FreeFoodTag = "free food"

// DateRange is an inclusive calendar-date range. A zero bound is open.
// Only the calendar date of each bound is used.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether the date with the given model.DateKey lies in r.
func (r DateRange) Contains(key int) bool {
	if !r.Start.IsZero() && key < model.DateKey(r.Start) {
		return false
	}
	if !r.End.IsZero() && key > model.DateKey(r.End) {
		return false
	}
	return true
}

// Criteria is the full set of filter conditions. The zero value matches
// every event.
type Criteria struct {
	// Categories restricts to the listed categories; empty means any.
	Categories []model.Category
	DateRange  DateRange
	// Query is matched with search.Matches.
	Query string
	// Location is a case-insensitive substring of Event.Location.
	Location      string
	OnlyFreeFood  bool
	OnlySaved     bool
	TimeOfDay     TimeOfDay
	MinInterested int
}

// ActiveCount returns the number of conditions that restrict results.
func (c Criteria) ActiveCount() int {
	n := 0
	if len(c.Categories) > 0 {
		n++
	}
	if !c.DateRange.IsZero() {
		n++
	}
	if strings.TrimSpace(c.Query) != "" {
		n++
	}
	if strings.TrimSpace(c.Location) != "" {
		n++
	}
	if c.OnlyFreeFood {
		n++
	}
	if c.OnlySaved {
		n++
	}
	if c.TimeOfDay.active() {
		n++
	}
	if c.MinInterested > 0 {
		n++
	}
	return n
}

// Apply returns the events that satisfy every active condition in c, in input
// order. events is not modified.
//
// Events whose date or start time cannot be parsed never satisfy an active
// date-range or time-of-day condition; they are not an error.
func Apply(events []model.Event, c Criteria) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if Match(ev, c) {
			out = append(out, ev)
		}
	}
	return out
}

// Match evaluates c against a single event.
func Match(ev model.Event, c Criteria) bool {
	if len(c.Categories) > 0 && !hasCategory(c.Categories, ev.Category) {
		return false
	}

	if !c.DateRange.IsZero() {
		d, err := model.ParseDate(ev.Date)
		if err != nil || !c.DateRange.Contains(model.DateKey(d)) {
			return false
		}
	}

	if !search.Matches(ev, c.Query) {
		return false
	}

	if loc := strings.ToLower(strings.TrimSpace(c.Location)); loc != "" {
		if !strings.Contains(strings.ToLower(ev.Location), loc) {
			return false
		}
	}

	if c.OnlyFreeFood && !ev.HasTag(FreeFoodTag) {
		return false
	}

	if c.OnlySaved && !ev.IsSaved {
		return false
	}

	if c.TimeOfDay.active() {
		start, err := ev.Start()
		if err != nil || BucketOf(start) != c.TimeOfDay {
			return false
		}
	}

	if c.MinInterested > 0 && ev.InterestedCount < c.MinInterested {
		return false
	}

	return true
}

func hasCategory(set []model.Category, c model.Category) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}
