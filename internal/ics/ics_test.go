package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/model"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly\r\n" +
	"DTSTAMP:20251101T000000Z\r\n" +
	"DTSTART:20251103T180000Z\r\n" +
	"DTEND:20251103T193000Z\r\n" +
	"SUMMARY:Chess club\r\n" +
	"CATEGORIES:SOCIAL\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE:20251110T180000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly\r\n" +
	"DTSTAMP:20251101T000000Z\r\n" +
	"RECURRENCE-ID:20251117T180000Z\r\n" +
	"DTSTART:20251117T200000Z\r\n" +
	"DTEND:20251117T213000Z\r\n" +
	"SUMMARY:Chess club (late)\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:party\r\n" +
	"DTSTAMP:20251101T000000Z\r\n" +
	"DTSTART:20251105T230000Z\r\n" +
	"DTEND:20251106T013000Z\r\n" +
	"SUMMARY:Late party\\, with friends\r\n" +
	"LOCATION:Dorm\r\n" +
	"ORGANIZER;CN=Ana:mailto:ana@example.edu\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:fair\r\n" +
	"DTSTAMP:20251101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20251107\r\n" +
	"SUMMARY:Career fair\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:No uid\r\n" +
	"DTSTART:20251108T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParse(t *testing.T) {
	evs, err := Parse(Source{ID: "clubs"}, []byte(feed))
	require.NoError(t, err)
	require.Len(t, evs, 4, "the VEVENT without UID is skipped")

	byUID := map[string]ParsedEvent{}
	for _, ev := range evs {
		if !ev.IsOverride {
			byUID[ev.UID] = ev
		}
	}

	weekly := byUID["weekly"]
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", weekly.RawRRule)
	assert.Equal(t, []string{"SOCIAL"}, weekly.Categories)
	require.Len(t, weekly.ExDates, 1)

	party := byUID["party"]
	assert.Equal(t, "Late party, with friends", party.Summary)
	assert.Equal(t, "Ana", party.OrganizerName)
	assert.Equal(t, "ana@example.edu", party.OrganizerEmail)
	assert.False(t, party.AllDay)

	assert.True(t, byUID["fair"].AllDay)
}

func TestParseEmptyBody(t *testing.T) {
	_, err := Parse(Source{ID: "x"}, nil)
	assert.Error(t, err)
}

func expandFeed(t *testing.T, src Source) map[string]model.Event {
	t.Helper()
	parsed, err := Parse(src, []byte(feed))
	require.NoError(t, err)

	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out := map[string]model.Event{}
	for _, ev := range res.Events {
		out[ev.ID] = ev
	}
	return out
}

func TestExpandRecurrence(t *testing.T) {
	evs := expandFeed(t, Source{ID: "clubs"})

	first, ok := evs["weekly#20251103T1800"]
	require.True(t, ok)
	assert.Equal(t, "2025-11-03", first.Date)
	assert.Equal(t, "18:00", first.StartTime)
	assert.Equal(t, "19:30", first.EndTime)
	assert.Equal(t, model.CategorySocial, first.Category)
	assert.Equal(t, "clubs", first.SourceID)

	_, excluded := evs["weekly#20251110T1800"]
	assert.False(t, excluded, "EXDATE removes the instance")

	moved := evs["weekly#20251117T1800"]
	assert.Equal(t, "Chess club (late)", moved.Title)
	assert.Equal(t, "20:00", moved.StartTime)

	assert.Contains(t, evs, "weekly#20251124T1800")
}

func TestExpandSpillsPastMidnight(t *testing.T) {
	party := expandFeed(t, Source{ID: "clubs"})["party"]
	assert.Equal(t, "2025-11-05", party.Date)
	assert.Equal(t, "23:00", party.StartTime)
	assert.Equal(t, "25:30", party.EndTime)
	assert.Equal(t, "Ana", party.Organizer)

	end, err := party.End()
	require.NoError(t, err)
	start, _ := party.Start()
	assert.Equal(t, 150*time.Minute, end.Sub(start))
}

func TestExpandAllDay(t *testing.T) {
	fair := expandFeed(t, Source{ID: "clubs"})["fair"]
	assert.True(t, fair.AllDay)
	assert.Equal(t, "00:00", fair.StartTime)
	assert.Equal(t, "24:00", fair.EndTime)
}

func TestToEventKeepsWallClockAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	for _, day := range []string{"2025-03-09", "2025-11-02"} {
		d, err := time.ParseInLocation("2006-01-02", day, ny)
		require.NoError(t, err)
		start := time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, ny)
		end := start.Add(time.Hour)

		ev := toEvent(ParsedEvent{UID: "dst"}, "dst", start.UTC(), end.UTC(), ny)
		assert.Equal(t, day, ev.Date)
		assert.Equal(t, "10:00", ev.StartTime, day)
		assert.Equal(t, "11:00", ev.EndTime, day)
	}
}

func TestToEventSpillsAcrossDSTNight(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:00 on 2025-11-01 to 01:30 the next morning, across the fall-back hour.
	start := time.Date(2025, 11, 1, 23, 0, 0, 0, ny)
	end := time.Date(2025, 11, 2, 1, 30, 0, 0, ny)

	ev := toEvent(ParsedEvent{UID: "late"}, "late", start, end, ny)
	assert.Equal(t, "2025-11-01", ev.Date)
	assert.Equal(t, "23:00", ev.StartTime)
	assert.Equal(t, "25:30", ev.EndTime)
}

func TestExpandSourceCategoryWins(t *testing.T) {
	evs := expandFeed(t, Source{ID: "clubs", Category: "arts"})
	for _, ev := range evs {
		assert.Equal(t, model.CategoryArts, ev.Category, ev.ID)
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	_, err := Expand(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	assert.Error(t, err)
}

func TestExpandCap(t *testing.T) {
	parsed := []ParsedEvent{{
		UID:      "daily",
		Start:    time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY",
	}}
	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation:        time.UTC,
		RangeStart:             time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 10,
	})
	require.NoError(t, err)
	assert.Len(t, res.Events, 10)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)
}

func TestExportRoundTrip(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	events := []model.Event{
		{
			ID: "a", Title: "Pizza, and games", Description: "Free food",
			Location: "Frist", Category: model.CategoryFood,
			Date: "2025-11-03", StartTime: "12:00",
			Organizer: "Food Club", OrganizerEmail: "food@example.edu",
			Body: "Come hungry", InterestedCount: 7,
		},
		{ID: "b", Title: "Talk", Category: model.CategoryAcademic, Date: "2025-11-04", StartTime: "16:30", EndTime: "18:00"},
		{ID: "bad", Title: "Broken", Date: "someday", StartTime: "12:00"},
	}

	res, err := Export(events, ExportOptions{
		CalendarName: "Campus",
		UIDDomain:    "test.edu",
		Location:     est,
		Now:          time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, res.Body, "METHOD:PUBLISH")
	assert.Contains(t, res.Body, "X-WR-CALNAME:Campus")

	cal, err := ical.ParseCalendar(strings.NewReader(res.Body))
	require.NoError(t, err)
	vevents := cal.Events()
	require.Len(t, vevents, 2)

	first := vevents[0]
	assert.Equal(t, "a@test.edu", first.GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "Pizza, and games", unescapeText(first.GetProperty(ical.ComponentPropertySummary).Value))
	assert.Equal(t, "FOOD", first.GetProperty(ical.ComponentPropertyCategories).Value)
	assert.Equal(t, "CONFIRMED", first.GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Equal(t, "mailto:food@example.edu", first.GetProperty(ical.ComponentPropertyOrganizer).Value)

	desc := unescapeText(first.GetProperty(ical.ComponentPropertyDescription).Value)
	assert.Contains(t, desc, "Come hungry")
	assert.Contains(t, desc, "From: Food Club (food@example.edu)")
	assert.Contains(t, desc, "Category: Food & Dining")
	assert.Contains(t, desc, "Interested: 7")

	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 11, 3, 17, 0, 0, 0, time.UTC)))
	end, err := first.GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, end.Sub(start), "missing end defaults to one hour")
}

func TestExportNothing(t *testing.T) {
	_, err := Export([]model.Event{{ID: "bad", Date: "x"}}, ExportOptions{})
	assert.ErrorIs(t, err, ErrNothingToExport)

	_, err = Export(nil, ExportOptions{})
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "eventcal-saved-2025-11-03.ics", Filename(ExportSaved, time.Time{}, now))
	assert.Equal(t, "eventcal-december-2025-2025-11-03.ics", Filename(ExportMonth, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "eventcal-2025-11-03.ics", Filename(ExportAll, time.Time{}, now))

	assert.Equal(t, "pizza_and_games.ics", EventFilename(model.Event{Title: "Pizza, and games!"}))
	assert.Equal(t, "event.ics", EventFilename(model.Event{Title: "!!"}))
}

func TestFetcherCachesAndRevalidates(t *testing.T) {
	var hits atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "clubs", URL: srv.URL + "/secret-token.ics"}

	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, feed, string(res.Body))

	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "304 serves the cached body")
	assert.Equal(t, feed, string(res.Body))

	failing.Store(true)
	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "server errors fall back to the cache")
	assert.EqualValues(t, 3, hits.Load())
}

func TestFetchAllReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "missing", URL: srv.URL + "/nope.ics"},
		{ID: "empty"},
	})
	assert.Empty(t, results)
	assert.Len(t, errs, 2)
}

func TestLoaderPipeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	l := &Loader{
		Fetcher:  NewFetcher(t.TempDir(), srv.Client()),
		Sources:  []Source{{ID: "clubs", URL: srv.URL}},
		Location: time.UTC,
		Backfill: 24 * time.Hour,
		Horizon:  60 * 24 * time.Hour,
		Now:      func() time.Time { return time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC) },
	}
	evs, errs := l.Load(context.Background())
	assert.Empty(t, errs)
	assert.Len(t, evs, 5)
	for i := 1; i < len(evs); i++ {
		assert.LessOrEqual(t, evs[i-1].Date, evs[i].Date)
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.edu/...(redacted)", redactURL("https://cal.example.edu/private/abc123.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("::bad"))
}
