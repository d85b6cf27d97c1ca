package web

import (
	"net/http"
	"strings"
	"time"

	"eventcal/internal/filter"
	"eventcal/internal/ics"
	"eventcal/internal/model"
	"eventcal/internal/prefs"
	"eventcal/internal/reminder"
	"eventcal/internal/search"
	"eventcal/internal/view"
)

type eventsResponse struct {
	Events        []model.Event `json:"events"`
	Count         int           `json:"count"`
	Total         int           `json:"total"`
	ActiveFilters int           `json:"active_filters"`
}

type calendarResponse struct {
	View      string     `json:"view"`
	Date      string     `json:"date"`
	WeekStart string     `json:"week_start"`
	Timezone  string     `json:"timezone"`
	Days      []view.Day `json:"days"`
	Hours     []int      `json:"hours,omitempty"`
}

type savedResponse struct {
	eventsResponse
	// SavedAt maps each saved event id to when it was saved.
	SavedAt map[string]time.Time `json:"saved_at"`
}

type prefResponse struct {
	EventID    string `json:"event_id"`
	Saved      bool   `json:"saved"`
	Interested bool   `json:"interested"`
}

type remindersResponse struct {
	Enabled   bool                `json:"enabled"`
	Scheduled bool                `json:"scheduled"`
	Reminders []reminder.Reminder `json:"reminders"`
}

// localNow is the current instant in the configured zone.
func (s *Server) localNow() time.Time {
	return s.now().In(s.loc)
}

// joined returns every event with the user's saved/interested flags set.
func (s *Server) joined() []model.Event {
	return filter.Join(s.events.All(), s.prefs)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Categories())
}

// handleEvents returns the filtered event list.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	crit, err := criteriaFromQuery(r.URL.Query(), s.localNow(), s.cfg.WeekStartDay())
	if err != nil {
		fail(w, err)
		return
	}
	all := s.joined()
	res := filter.Apply(all, crit)
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:        res,
		Count:         len(res),
		Total:         len(all),
		ActiveFilters: crit.ActiveCount(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	all := s.joined()
	res := search.Search(all, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, eventsResponse{Events: res, Count: len(res), Total: len(all)})
}

// handleCalendar groups filtered events into month, week or day cells.
//
// GET /api/calendar?view=month|week|day&date=YYYY-MM-DD&<filter params>
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.localNow()
	day, err := dateParam(q, "date", now)
	if err != nil {
		fail(w, err)
		return
	}
	crit, err := criteriaFromQuery(q, now, s.cfg.WeekStartDay())
	if err != nil {
		fail(w, err)
		return
	}
	events := filter.Apply(s.joined(), crit)

	resp := calendarResponse{
		View:      strings.ToLower(q.Get("view")),
		Date:      model.FormatDate(day),
		WeekStart: s.cfg.WeekStart,
		Timezone:  s.loc.String(),
	}
	switch resp.View {
	case "week":
		resp.Days = view.Days(events, view.WeekDays(day, s.cfg.WeekStartDay()), 0)
		resp.Hours = view.HourSlots()
	case "day":
		resp.Days = view.Days(events, []time.Time{day}, 0)
		resp.Hours = view.HourSlots()
	case "month", "":
		resp.View = "month"
		resp.Days = view.Days(events, view.MonthGrid(day, s.cfg.WeekStartDay()), day.Month())
	default:
		fail(w, badRequest("view must be month, week or day"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSaved lists saved events, most recently saved first.
func (s *Server) handleSaved(w http.ResponseWriter, _ *http.Request) {
	entries := s.prefs.Saved()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.EventID)
	}
	byID := make(map[string]model.Event, len(ids))
	for _, ev := range filter.Join(s.events.Pick(ids), s.prefs) {
		byID[ev.ID] = ev
	}

	saved := make([]model.Event, 0, len(byID))
	at := make(map[string]time.Time, len(byID))
	for _, e := range entries {
		if ev, ok := byID[e.EventID]; ok {
			saved = append(saved, ev)
			at[e.EventID] = e.At
		}
	}
	writeJSON(w, http.StatusOK, savedResponse{
		eventsResponse: eventsResponse{Events: saved, Count: len(saved), Total: s.events.Len()},
		SavedAt:        at,
	})
}

func (s *Server) handleToggleSaved(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.events.Get(id); err != nil {
		fail(w, err)
		return
	}
	on := s.prefs.ToggleSaved(id)
	writeJSON(w, http.StatusOK, prefResponse{EventID: id, Saved: on, Interested: s.prefs.IsInterested(id)})
}

// handleClearPrefs drops every saved and interested mark.
func (s *Server) handleClearPrefs(w http.ResponseWriter, _ *http.Request) {
	s.prefs.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handlePref sets or clears a saved/interested flag on an existing event.
func (s *Server) handlePref(kind prefs.Kind, on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, err := s.events.Get(id); err != nil {
			fail(w, err)
			return
		}
		switch {
		case kind == prefs.KindSaved && on:
			s.prefs.Save(id)
		case kind == prefs.KindSaved:
			s.prefs.Unsave(id)
		case on:
			s.prefs.Interest(id)
		default:
			s.prefs.Uninterest(id)
		}
		writeJSON(w, http.StatusOK, prefResponse{
			EventID:    id,
			Saved:      s.prefs.IsSaved(id),
			Interested: s.prefs.IsInterested(id),
		})
	}
}

func (s *Server) exportOptions() ics.ExportOptions {
	return ics.ExportOptions{
		CalendarName: s.cfg.Export.CalendarName,
		UIDDomain:    s.cfg.Export.UIDDomain,
		Location:     s.loc,
		Now:          s.now(),
	}
}

// handleExport downloads events as an .ics file.
//
// GET /api/export.ics?kind=all|saved|month&date=YYYY-MM-DD&<filter params>
// kind=all applies the filter parameters; month exports the month of date.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.localNow()

	kind := ics.ExportKind(strings.ToLower(q.Get("kind")))
	var events []model.Event
	var month time.Time
	switch kind {
	case ics.ExportSaved:
		events = filter.Join(s.events.Pick(s.prefs.SavedIDs()), s.prefs)
	case ics.ExportMonth:
		d, err := dateParam(q, "date", now)
		if err != nil {
			fail(w, err)
			return
		}
		month = d
		events = view.InMonth(s.joined(), d)
	case ics.ExportAll, "":
		kind = ics.ExportAll
		crit, err := criteriaFromQuery(q, now, s.cfg.WeekStartDay())
		if err != nil {
			fail(w, err)
			return
		}
		events = filter.Apply(s.joined(), crit)
	default:
		fail(w, badRequest("kind must be all, saved or month"))
		return
	}

	res, err := ics.Export(events, s.exportOptions())
	if err != nil {
		fail(w, err)
		return
	}
	writeCalendar(w, ics.Filename(kind, month, now), res.Body)
}

func (s *Server) handleExportEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.events.Get(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	res, err := ics.Export([]model.Event{ev}, s.exportOptions())
	if err != nil {
		fail(w, err)
		return
	}
	writeCalendar(w, ics.EventFilename(ev), res.Body)
}

func writeCalendar(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleReminders lists pending reminders, or previews the plan when no
// scheduler is running.
func (s *Server) handleReminders(w http.ResponseWriter, _ *http.Request) {
	resp := remindersResponse{Enabled: s.cfg.Reminders.Enabled}
	if s.reminders != nil {
		resp.Scheduled = true
		resp.Reminders = s.reminders.Upcoming()
	} else {
		resp.Reminders = reminder.Plan(
			s.events.All(),
			s.prefs.InterestedIDs(),
			s.cfg.ReminderOffsets(),
			s.localNow(),
			s.cfg.ReminderLookahead(),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}
