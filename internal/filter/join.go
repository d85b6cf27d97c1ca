package filter

import "eventcal/internal/model"

// Lookup answers per-user preference questions for an event id.
type Lookup interface {
	IsSaved(eventID string) bool
	IsInterested(eventID string) bool
}

// Join returns a copy of events with IsSaved and IsInterested taken from
// lookup. A nil lookup clears both flags.
func Join(events []model.Event, lookup Lookup) []model.Event {
	out := make([]model.Event, len(events))
	for i, ev := range events {
		ev.IsSaved = lookup != nil && lookup.IsSaved(ev.ID)
		ev.IsInterested = lookup != nil && lookup.IsInterested(ev.ID)
		out[i] = ev
	}
	return out
}
