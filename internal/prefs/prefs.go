// Package prefs tracks which events a user saved or marked as interesting.
package prefs

import (
	"sort"
	"sync"
	"time"

	"eventcal/internal/filter"
)

type Kind string

const (
	KindSaved      Kind = "saved"
	KindInterested Kind = "interested"
)

// Change describes a single preference mutation.
type Change struct {
	Kind    Kind
	EventID string
	On      bool
}

// Entry is a marked event id and when it was marked.
type Entry struct {
	EventID string    `json:"event_id"`
	At      time.Time `json:"at"`
}

// Store is an in-memory preference store. Listeners run synchronously after
// the change is committed, outside the lock.
type Store struct {
	now func() time.Time

	mu         sync.RWMutex
	saved      map[string]time.Time
	interested map[string]time.Time
	listeners  []func(Change)
}

var _ filter.Lookup = (*Store)(nil)

func New() *Store {
	return &Store{
		now:        time.Now,
		saved:      map[string]time.Time{},
		interested: map[string]time.Time{},
	}
}

// OnChange registers fn to run after every effective change.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) IsSaved(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.saved[id]
	return ok
}

func (s *Store) IsInterested(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.interested[id]
	return ok
}

func (s *Store) Save(id string) { s.set(KindSaved, id, true) }

func (s *Store) Unsave(id string) { s.set(KindSaved, id, false) }

// ToggleSaved flips the saved flag and returns the new state.
func (s *Store) ToggleSaved(id string) bool {
	on := !s.IsSaved(id)
	s.set(KindSaved, id, on)
	return on
}

func (s *Store) Interest(id string) { s.set(KindInterested, id, true) }

func (s *Store) Uninterest(id string) { s.set(KindInterested, id, false) }

// Saved lists saved events, most recently saved first.
func (s *Store) Saved() []Entry {
	return s.entries(KindSaved)
}

// SavedIDs lists saved event ids, most recently saved first.
func (s *Store) SavedIDs() []string {
	return ids(s.entries(KindSaved))
}

// InterestedIDs lists interesting event ids, most recent first.
func (s *Store) InterestedIDs() []string {
	return ids(s.entries(KindInterested))
}

// Clear drops every saved and interested mark.
func (s *Store) Clear() {
	s.mu.Lock()
	var changes []Change
	for id := range s.saved {
		changes = append(changes, Change{Kind: KindSaved, EventID: id})
	}
	for id := range s.interested {
		changes = append(changes, Change{Kind: KindInterested, EventID: id})
	}
	s.saved = map[string]time.Time{}
	s.interested = map[string]time.Time{}
	listeners := s.listeners
	s.mu.Unlock()

	for _, c := range changes {
		notify(listeners, c)
	}
}

func (s *Store) set(kind Kind, id string, on bool) {
	s.mu.Lock()
	m := s.saved
	if kind == KindInterested {
		m = s.interested
	}
	_, had := m[id]
	switch {
	case on && !had:
		m[id] = s.now()
	case !on && had:
		delete(m, id)
	default:
		s.mu.Unlock()
		return
	}
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, Change{Kind: kind, EventID: id, On: on})
}

func (s *Store) entries(kind Kind) []Entry {
	s.mu.RLock()
	m := s.saved
	if kind == KindInterested {
		m = s.interested
	}
	out := make([]Entry, 0, len(m))
	for id, at := range m {
		out = append(out, Entry{EventID: id, At: at})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].At.After(out[j].At)
	})
	return out
}

func notify(listeners []func(Change), c Change) {
	for _, fn := range listeners {
		fn(c)
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.EventID
	}
	return out
}
