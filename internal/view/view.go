// Package view groups events for the month, week and day calendar views.
package view

import (
	"sort"
	"time"

	"eventcal/internal/filter"
	"eventcal/internal/model"
)

// First and last hour rows of the personal scheduler grid.
const (
	FirstHour = 6
	LastHour  = 21
)

// Day is one calendar cell with the events that fall on it.
type Day struct {
	Date    string        `json:"date"`
	InMonth bool          `json:"in_month"`
	Events  []model.Event `json:"events"`
}

// OnDate returns the events dated on day, in input order.
func OnDate(events []model.Event, day time.Time) []model.Event {
	key := model.DateKey(day)
	out := make([]model.Event, 0)
	for _, ev := range events {
		if d, err := model.ParseDate(ev.Date); err == nil && model.DateKey(d) == key {
			out = append(out, ev)
		}
	}
	return out
}

// InMonth returns the events dated in the month of day.
func InMonth(events []model.Event, day time.Time) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		d, err := model.ParseDate(ev.Date)
		if err != nil {
			continue
		}
		if d.Year() == day.Year() && d.Month() == day.Month() {
			out = append(out, ev)
		}
	}
	return out
}

// WeekDays returns the seven dates of the week containing day.
func WeekDays(day time.Time, weekStart time.Weekday) []time.Time {
	first := filter.StartOfWeek(day, weekStart)
	out := make([]time.Time, 7)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}

// MonthGrid returns whole weeks covering the month of day.
func MonthGrid(day time.Time, weekStart time.Weekday) []time.Time {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	last := first.AddDate(0, 1, -1)
	start := filter.StartOfWeek(first, weekStart)
	end := filter.StartOfWeek(last, weekStart).AddDate(0, 0, 6)

	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// HourSlots returns the personal scheduler's hour rows.
func HourSlots() []int {
	out := make([]int, 0, LastHour-FirstHour+1)
	for h := FirstHour; h <= LastHour; h++ {
		out = append(out, h)
	}
	return out
}

// Days buckets events onto each of dates. month marks cells outside the
// displayed month; pass 0 to mark every cell as in-month.
func Days(events []model.Event, dates []time.Time, month time.Month) []Day {
	byKey := make(map[int][]model.Event)
	for _, ev := range events {
		d, err := model.ParseDate(ev.Date)
		if err != nil {
			continue
		}
		k := model.DateKey(d)
		byKey[k] = append(byKey[k], ev)
	}

	out := make([]Day, 0, len(dates))
	for _, d := range dates {
		evs := byKey[model.DateKey(d)]
		if evs == nil {
			evs = []model.Event{}
		}
		sortByStart(evs)
		out = append(out, Day{
			Date:    model.FormatDate(d),
			InMonth: month == 0 || d.Month() == month,
			Events:  evs,
		})
	}
	return out
}

// sortByStart orders a day's events by start time; unparseable starts go last.
func sortByStart(events []model.Event) {
	key := func(ev model.Event) int {
		c, err := ev.Start()
		if err != nil {
			return 1 << 30
		}
		return int(c)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return key(events[i]) < key(events[j])
	})
}
