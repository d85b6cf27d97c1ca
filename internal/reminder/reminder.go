// Package reminder plans and delivers "event starts soon" notices for the
// events a user marked as interested.
package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"eventcal/internal/model"
)

// DefaultOffsets fire one day and one hour before an event.
var DefaultOffsets = []time.Duration{24 * time.Hour, time.Hour}

// Reminder is one pending notice.
type Reminder struct {
	EventID    string        `json:"event_id"`
	Title      string        `json:"title"`
	Location   string        `json:"location,omitempty"`
	EventStart time.Time     `json:"event_start"`
	Offset     time.Duration `json:"offset"`
	FireAt     time.Time     `json:"fire_at"`
}

// Key identifies a reminder across replans.
func (r Reminder) Key() string {
	return r.EventID + "/" + r.Offset.String()
}

// Plan returns the reminders due after now and no later than now+lookahead
// for the interested events, ordered by fire time. Event wall clocks are read
// in now's location. A zero lookahead means no upper bound.
func Plan(events []model.Event, interested []string, offsets []time.Duration, now time.Time, lookahead time.Duration) []Reminder {
	want := make(map[string]struct{}, len(interested))
	for _, id := range interested {
		want[id] = struct{}{}
	}

	out := make([]Reminder, 0)
	for _, ev := range events {
		if _, ok := want[ev.ID]; !ok {
			continue
		}
		start, err := ev.StartsAt(now.Location())
		if err != nil || !start.After(now) {
			continue
		}
		for _, off := range offsets {
			if off < 0 {
				continue
			}
			at := start.Add(-off)
			if !at.After(now) {
				continue
			}
			if lookahead > 0 && at.After(now.Add(lookahead)) {
				continue
			}
			out = append(out, Reminder{
				EventID:    ev.ID,
				Title:      ev.Title,
				Location:   ev.Location,
				EventStart: start,
				Offset:     off,
				FireAt:     at,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// ParseOffsets parses Go duration strings such as "1h" or "30m".
func ParseOffsets(specs []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(specs))
	for _, s := range specs {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("reminder offset %q: %w", s, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("reminder offset %q is negative", s)
		}
		out = append(out, d)
	}
	return out, nil
}
