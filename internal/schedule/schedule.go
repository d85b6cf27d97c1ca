// Package schedule holds a personal rescheduling layer over a fixed set of
// events: per-event overrides of date and time, conflict detection over the
// effective placements, and the drag gesture that drives moves.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"eventcal/internal/model"
)

var (
	ErrNotFound       = errors.New("event not in schedule")
	ErrInvalidTarget  = errors.New("invalid schedule target")
	ErrMalformedEvent = errors.New("event has malformed date or time")
)

// Override replaces individual fields of an event's placement. Nil fields
// fall through to the event's own values.
type Override struct {
	Date      *string
	StartTime *string
	EndTime   *string
}

func (o Override) IsZero() bool {
	return o.Date == nil && o.StartTime == nil && o.EndTime == nil
}

// Slot is an event's effective placement.
type Slot struct {
	EventID   string `json:"event_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	Moved     bool   `json:"moved"`
}

// Interval parses s. A missing end time means model.DefaultDuration.
func (s Slot) Interval() (Interval, error) {
	d, err := model.ParseDate(s.Date)
	if err != nil {
		return Interval{}, err
	}
	ev := model.Event{StartTime: s.StartTime, EndTime: s.EndTime}
	start, err := ev.Start()
	if err != nil {
		return Interval{}, err
	}
	end, err := ev.End()
	if err != nil {
		return Interval{}, err
	}
	return Interval{Day: model.DateKey(d), Start: start, End: end}, nil
}

// Interval is a half-open [Start, End) span on a calendar day (model.DateKey).
type Interval struct {
	Day   int
	Start model.Clock
	End   model.Clock
}

// Empty reports whether i contains no time at all, including inverted spans.
func (i Interval) Empty() bool {
	return i.End <= i.Start
}

// Overlaps reports whether i and o share any time on the same day. Empty
// intervals overlap nothing.
func (i Interval) Overlaps(o Interval) bool {
	if i.Day != o.Day || i.Empty() || o.Empty() {
		return false
	}
	return i.Start < o.End && o.Start < i.End
}

// state is never mutated once published; writers build a replacement.
type state struct {
	order     []string
	events    map[string]model.Event
	overrides map[string]Override
}

// Model is a personal schedule over a fixed event set. It is safe for
// concurrent use; every mutation swaps in a new state, so snapshots taken
// earlier stay consistent.
type Model struct {
	mu  sync.RWMutex
	cur *state
}

// BuildFrom creates a model with an empty override for every event. Later
// duplicates of an id are ignored.
func BuildFrom(events []model.Event) *Model {
	st := &state{
		order:     make([]string, 0, len(events)),
		events:    make(map[string]model.Event, len(events)),
		overrides: map[string]Override{},
	}
	for _, ev := range events {
		if _, dup := st.events[ev.ID]; dup {
			continue
		}
		st.order = append(st.order, ev.ID)
		st.events[ev.ID] = ev
	}
	return &Model{cur: st}
}

// Snapshot returns a read-only view of the current state.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{st: m.cur}
}

func (m *Model) Len() int {
	return m.Snapshot().Len()
}

func (m *Model) IDs() []string {
	return m.Snapshot().IDs()
}

func (m *Model) Event(id string) (model.Event, error) {
	return m.Snapshot().Event(id)
}

// Effective returns the placement of id after applying its override.
func (m *Model) Effective(id string) (Slot, error) {
	return m.Snapshot().Effective(id)
}

// Slots returns every effective placement in build order.
func (m *Model) Slots() []Slot {
	return m.Snapshot().Slots()
}

// MoveTo places id on date with its start in hour, keeping the minute of its
// current effective start and its current duration.
func (m *Model) MoveTo(id, date string, hour int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := Snapshot{st: m.cur}
	slot, err := cur.Effective(id)
	if err != nil {
		return err
	}

	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidTarget, hour)
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	ev := model.Event{StartTime: slot.StartTime, EndTime: slot.EndTime}
	start, err := ev.Start()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, id, err)
	}
	end, err := ev.End()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, id, err)
	}
	// An end before the start ran past midnight, e.g. 22:00-01:00.
	if end < start {
		end = end.Add(24 * time.Hour)
	}

	newStart := model.NewClock(hour, start.Minute())
	newEnd := newStart.Add(end.Sub(start))

	newDate := model.FormatDate(d)
	startStr := newStart.String()
	endStr := newEnd.String()

	next := m.cur.withOverrides(len(m.cur.overrides) + 1)
	next.overrides[id] = Override{Date: &newDate, StartTime: &startStr, EndTime: &endStr}
	m.cur = next
	return nil
}

// Reset drops every override.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = m.cur.withOverrides(0)
}

// Conflicts runs Detect over the current state.
func (m *Model) Conflicts() ConflictSet {
	return Detect(m.Snapshot())
}

// withOverrides returns a copy of st sharing the immutable event data. A
// capacity of zero produces an empty override set.
func (st *state) withOverrides(capacity int) *state {
	next := &state{order: st.order, events: st.events, overrides: make(map[string]Override, capacity)}
	if capacity == 0 {
		return next
	}
	for k, v := range st.overrides {
		next.overrides[k] = v
	}
	return next
}

// Snapshot is an immutable view of a Model at one point in time.
type Snapshot struct {
	st *state
}

func (s Snapshot) Len() int {
	if s.st == nil {
		return 0
	}
	return len(s.st.order)
}

func (s Snapshot) IDs() []string {
	if s.st == nil {
		return nil
	}
	out := make([]string, len(s.st.order))
	copy(out, s.st.order)
	return out
}

func (s Snapshot) Event(id string) (model.Event, error) {
	if s.st != nil {
		if ev, ok := s.st.events[id]; ok {
			return ev, nil
		}
	}
	return model.Event{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

func (s Snapshot) Override(id string) (Override, bool) {
	if s.st == nil {
		return Override{}, false
	}
	o, ok := s.st.overrides[id]
	return o, ok && !o.IsZero()
}

func (s Snapshot) Effective(id string) (Slot, error) {
	ev, err := s.Event(id)
	if err != nil {
		return Slot{}, err
	}
	slot := Slot{EventID: id, Date: ev.Date, StartTime: ev.StartTime, EndTime: ev.EndTime}
	if o, ok := s.Override(id); ok {
		slot.Moved = true
		if o.Date != nil {
			slot.Date = *o.Date
		}
		if o.StartTime != nil {
			slot.StartTime = *o.StartTime
		}
		if o.EndTime != nil {
			slot.EndTime = *o.EndTime
		}
	}
	return slot, nil
}

func (s Snapshot) Slots() []Slot {
	out := make([]Slot, 0, s.Len())
	for _, id := range s.IDs() {
		slot, err := s.Effective(id)
		if err != nil {
			continue
		}
		out = append(out, slot)
	}
	return out
}
