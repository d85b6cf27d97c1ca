// Package search implements free-text event search.
package search

import (
	"strings"

	"eventcal/internal/model"
)

// Search returns the events matching query, preserving input order. An empty
// or whitespace-only query returns events unchanged.
func Search(events []model.Event, query string) []model.Event {
	q := normalize(query)
	if q == "" {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if matches(ev, q) {
			out = append(out, ev)
		}
	}
	return out
}

// Matches reports whether ev matches query. An empty query matches everything.
func Matches(ev model.Event, query string) bool {
	q := normalize(query)
	if q == "" {
		return true
	}
	return matches(ev, q)
}

func matches(ev model.Event, q string) bool {
	fields := [...]string{
		ev.Title,
		ev.Description,
		ev.Location,
		ev.Organizer,
		ev.Body,
		string(ev.Category),
		ev.Category.Label(),
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
