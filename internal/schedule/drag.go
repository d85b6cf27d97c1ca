package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

var (
	ErrNoActiveDrag    = errors.New("no drag in progress")
	ErrSessionMismatch = errors.New("drag session is not the active one")
)

// Target is an hour slot in the personal schedule grid.
type Target struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`
}

// ID renders t as a slot id, e.g. "2025-11-03-14".
func (t Target) ID() string {
	return t.Date + "-" + strconv.Itoa(t.Hour)
}

// ParseTarget parses a slot id produced by Target.ID. The date itself
// contains dashes, so the hour is taken after the last one.
func ParseTarget(id string) (Target, bool) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 {
		return Target{}, false
	}
	d, err := model.ParseDate(id[:i])
	if err != nil {
		return Target{}, false
	}
	h, err := strconv.Atoi(id[i+1:])
	if err != nil || h < 0 || h > 23 {
		return Target{}, false
	}
	return Target{Date: model.FormatDate(d), Hour: h}, true
}

// Gesture is the drag-and-drop capability the host UI drives. It keeps the
// scheduler independent of any pointer or gesture library.
type Gesture interface {
	OnDragStart(eventID string) (DragSession, error)
	// OnDragEnd finishes the gesture; a nil target is a drop outside any slot.
	OnDragEnd(s DragSession, target *Target) (moved bool, err error)
}

type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// DragSession identifies one gesture.
type DragSession struct {
	EventID string `json:"event_id"`
	Seq     uint64 `json:"seq"`
}

// Rescheduler turns drag gestures into Model moves. At most one gesture is
// active; starting a new one abandons the previous.
type Rescheduler struct {
	model *Model

	mu     sync.Mutex
	seq    uint64
	active *DragSession
}

var _ Gesture = (*Rescheduler)(nil)

func NewRescheduler(m *Model) *Rescheduler {
	return &Rescheduler{model: m}
}

func (r *Rescheduler) State() DragState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return Dragging
	}
	return Idle
}

func (r *Rescheduler) OnDragStart(eventID string) (DragSession, error) {
	if _, err := r.model.Event(eventID); err != nil {
		return DragSession{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		appLog.Debug("drag abandoned", "event_id", r.active.EventID, "seq", r.active.Seq)
	}
	r.seq++
	s := DragSession{EventID: eventID, Seq: r.seq}
	r.active = &s
	return s, nil
}

// OnDragEnd returns to Idle whatever the outcome. Drops outside the grid or
// onto an invalid slot leave the model unchanged and are not errors.
func (r *Rescheduler) OnDragEnd(s DragSession, target *Target) (bool, error) {
	r.mu.Lock()
	active := r.active
	if active != nil && *active == s {
		r.active = nil
	}
	r.mu.Unlock()

	if active == nil {
		return false, ErrNoActiveDrag
	}
	if *active != s {
		return false, fmt.Errorf("%w: got %s#%d, active %s#%d", ErrSessionMismatch, s.EventID, s.Seq, active.EventID, active.Seq)
	}

	if target == nil {
		appLog.Debug("drag dropped outside grid", "event_id", s.EventID)
		return false, nil
	}

	err := r.model.MoveTo(s.EventID, target.Date, target.Hour)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidTarget):
		appLog.Debug("drag dropped on invalid slot", "event_id", s.EventID, "slot", target.ID())
		return false, nil
	default:
		return false, err
	}
}
