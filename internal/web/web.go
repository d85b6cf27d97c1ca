package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"eventcal/internal/config"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/prefs"
	"eventcal/internal/reminder"
	"eventcal/internal/schedule"
	"eventcal/internal/store"
)

// Deps are the collaborators a Server serves from.
type Deps struct {
	Config *config.Config
	Events *store.Store
	Prefs  *prefs.Store
	// Reminders is optional; without it /api/reminders previews a plan.
	Reminders *reminder.Scheduler
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the JSON API for browsing, saving and scheduling events.
type Server struct {
	cfg       *config.Config
	loc       *time.Location
	events    *store.Store
	prefs     *prefs.Store
	reminders *reminder.Scheduler
	now       func() time.Time
	mux       *http.ServeMux

	sessionsMu sync.Mutex
	sessions   map[string]*session
	sessionTTL time.Duration
}

// NewServer constructs a new Server.
func NewServer(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if d.Events == nil {
		d.Events = store.New(nil)
	}
	if d.Prefs == nil {
		d.Prefs = prefs.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{
		cfg:       cfg,
		loc:       resolveLocationOrLocal(cfg.Timezone),
		events:    d.Events,
		prefs:     d.Prefs,
		reminders: d.Reminders,
		now:       d.Now,
		mux:       http.NewServeMux(),
		sessions:  make(map[string]*session),
	}
	s.sessionTTL = cfg.SessionTimeout()
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartServer serves the API on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, d Deps) error {
	d.Config = cfg
	api := NewServer(d)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go api.runSessionSweeper(sweepCtx, sweepInterval(api.sessionTTL))

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// sweepInterval checks a few times per TTL, at most every 10 minutes.
func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv > 10*time.Minute {
		iv = 10 * time.Minute
	}
	if iv < time.Second {
		iv = time.Second
	}
	return iv
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/saved", s.handleSaved)
	s.mux.HandleFunc("DELETE /api/prefs", s.handleClearPrefs)

	s.mux.HandleFunc("POST /api/events/{id}/save", s.handlePref(prefs.KindSaved, true))
	s.mux.HandleFunc("DELETE /api/events/{id}/save", s.handlePref(prefs.KindSaved, false))
	s.mux.HandleFunc("POST /api/events/{id}/save/toggle", s.handleToggleSaved)
	s.mux.HandleFunc("POST /api/events/{id}/interest", s.handlePref(prefs.KindInterested, true))
	s.mux.HandleFunc("DELETE /api/events/{id}/interest", s.handlePref(prefs.KindInterested, false))
	s.mux.HandleFunc("GET /api/events/{id}/export.ics", s.handleExportEvent)

	s.mux.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	s.mux.HandleFunc("GET /api/schedules/{sid}", s.handleGetSchedule)
	s.mux.HandleFunc("DELETE /api/schedules/{sid}", s.handleDeleteSchedule)
	s.mux.HandleFunc("POST /api/schedules/{sid}/move", s.handleMove)
	s.mux.HandleFunc("POST /api/schedules/{sid}/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/schedules/{sid}/drag/start", s.handleDragStart)
	s.mux.HandleFunc("POST /api/schedules/{sid}/drag/end", s.handleDragEnd)

	s.mux.HandleFunc("GET /api/export.ics", s.handleExport)
	s.mux.HandleFunc("GET /api/reminders", s.handleReminders)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrEventNotFound),
		errors.Is(err, schedule.ErrNotFound),
		errors.Is(err, errSessionNotFound),
		errors.Is(err, ics.ErrNothingToExport):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrInvalidTarget),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrMalformedEvent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, schedule.ErrNoActiveDrag),
		errors.Is(err, schedule.ErrSessionMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged.
func fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("api request failed", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
