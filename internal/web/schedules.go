package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	appLog "eventcal/internal/log"
	"eventcal/internal/schedule"
	"eventcal/internal/view"
)

var errSessionNotFound = errors.New("schedule not found")

// session is one personal scheduler: a schedule model and its drag handler.
// Sessions unused for the configured TTL are dropped.
type session struct {
	id       string
	model    *schedule.Model
	drag     *schedule.Rescheduler
	lastSeen time.Time
}

type scheduleResponse struct {
	ID            string          `json:"id"`
	Slots         []schedule.Slot `json:"slots"`
	Conflicts     []string        `json:"conflicts"`
	ConflictCount int             `json:"conflict_count"`
	DragState     string          `json:"drag_state"`
	Hours         []int           `json:"hours"`
}

type createScheduleRequest struct {
	// EventIDs defaults to the saved events.
	EventIDs []string `json:"event_ids"`
}

type moveRequest struct {
	EventID string `json:"event_id"`
	Date    string `json:"date"`
	Hour    int    `json:"hour"`
}

type dragStartRequest struct {
	EventID string `json:"event_id"`
}

type dragEndRequest struct {
	EventID string `json:"event_id"`
	Seq     uint64 `json:"seq"`
	// Target is a slot id such as "2025-11-03-14". Empty or unparseable
	// means the drop landed outside the grid.
	Target string `json:"target"`
}

type dragEndResponse struct {
	Moved    bool             `json:"moved"`
	Schedule scheduleResponse `json:"schedule"`
}

func (sess *session) response() scheduleResponse {
	conflicts := sess.model.Conflicts()
	return scheduleResponse{
		ID:            sess.id,
		Slots:         sess.model.Slots(),
		Conflicts:     conflicts.IDs(),
		ConflictCount: conflicts.Len(),
		DragState:     sess.drag.State().String(),
		Hours:         view.HourSlots(),
	}
}

func (s *Server) session(r *http.Request) (*session, error) {
	sid := r.PathValue("sid")
	now := s.now()
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return nil, errSessionNotFound
	}
	if s.expired(sess, now) {
		delete(s.sessions, sid)
		return nil, errSessionNotFound
	}
	sess.lastSeen = now
	return sess, nil
}

func (s *Server) expired(sess *session, now time.Time) bool {
	return now.Sub(sess.lastSeen) > s.sessionTTL
}

// SweepSessions drops expired schedules and returns how many were removed.
func (s *Server) SweepSessions() int {
	now := s.now()
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	if n > 0 {
		appLog.Info("expired schedules dropped", "count", n, "remaining", len(s.sessions))
	}
	return n
}

// runSessionSweeper calls SweepSessions every interval until ctx is done.
func (s *Server) runSessionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	appLog.Debug("session sweeper started", "interval", interval, "ttl", s.sessionTTL)
	for {
		select {
		case <-ctx.Done():
			appLog.Debug("session sweeper stopped")
			return
		case <-ticker.C:
			s.SweepSessions()
		}
	}
}

// handleCreateSchedule builds a schedule from the requested or saved events.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			fail(w, err)
			return
		}
	}
	ids := req.EventIDs
	if ids == nil {
		ids = s.prefs.SavedIDs()
	}

	m := schedule.BuildFrom(s.events.Pick(ids))
	sess := &session{
		id:       uuid.NewString(),
		model:    m,
		drag:     schedule.NewRescheduler(m),
		lastSeen: s.now(),
	}

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	appLog.Info("schedule created", "id", sess.id, "events", m.Len())
	writeJSON(w, http.StatusCreated, sess.response())
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.response())
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	s.sessionsMu.Lock()
	_, ok := s.sessions[sid]
	delete(s.sessions, sid)
	s.sessionsMu.Unlock()
	if !ok {
		fail(w, errSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		fail(w, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err)
		return
	}
	if err := sess.model.MoveTo(req.EventID, req.Date, req.Hour); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.response())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		fail(w, err)
		return
	}
	sess.model.Reset()
	writeJSON(w, http.StatusOK, sess.response())
}

func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		fail(w, err)
		return
	}
	var req dragStartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err)
		return
	}
	ds, err := sess.drag.OnDragStart(req.EventID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		fail(w, err)
		return
	}
	var req dragEndRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err)
		return
	}

	var target *schedule.Target
	if t, ok := schedule.ParseTarget(req.Target); ok {
		target = &t
	}
	moved, err := sess.drag.OnDragEnd(schedule.DragSession{EventID: req.EventID, Seq: req.Seq}, target)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dragEndResponse{Moved: moved, Schedule: sess.response()})
}
