// Package store holds the in-memory ordered event collection.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

var ErrEventNotFound = errors.New("event not found")

// Store is an ordered, replace-wholesale event collection. Readers always get
// copies, so a slice returned by All is never changed underneath them.
type Store struct {
	mu     sync.RWMutex
	events []model.Event
	byID   map[string]int
}

func New(events []model.Event) *Store {
	s := &Store{}
	s.Replace(events)
	return s
}

// Replace swaps the whole collection. Events without an id are dropped and
// only the first event of a repeated id is kept.
func (s *Store) Replace(events []model.Event) {
	next := make([]model.Event, 0, len(events))
	byID := make(map[string]int, len(events))
	for _, ev := range events {
		if ev.ID == "" {
			appLog.Warn("store: dropping event without id", "title", ev.Title)
			continue
		}
		if _, dup := byID[ev.ID]; dup {
			appLog.Warn("store: dropping duplicate event id", "id", ev.ID)
			continue
		}
		byID[ev.ID] = len(next)
		next = append(next, ev)
	}

	s.mu.Lock()
	s.events = next
	s.byID = byID
	s.mu.Unlock()
}

// All returns a copy of the collection in store order.
func (s *Store) All() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) Get(id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: %q", ErrEventNotFound, id)
	}
	return s.events[i], nil
}

// Pick returns the events with the given ids in store order; unknown ids are
// skipped.
func (s *Store) Pick(ids []string) []model.Event {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(ids))
	for _, ev := range s.events {
		if _, ok := want[ev.ID]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// LoadFile reads a JSON array of events. Events with unparseable dates or
// times are kept; consumers exclude them where it matters.
func LoadFile(path string) ([]model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, ev := range events {
		if _, err := ev.StartsAt(nil); err != nil {
			appLog.Debug("store: event has malformed date or time", "id", ev.ID, "date", ev.Date, "start", ev.StartTime)
		}
	}
	appLog.Info("events file loaded", "path", path, "event_count", len(events))
	return events, nil
}
