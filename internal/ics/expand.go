package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	instanceLayout = "20060102T1504"
)

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone whose wall clock becomes Event.Date and
	// StartTime. Nil means time.Local.
	DisplayLocation *time.Location

	// Occurrences are kept when they intersect [RangeStart, RangeEnd].
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps one RRULE; zero means 5000.
	MaxOccurrencesPerEvent int
}

type ExpandResult struct {
	Events []model.Event
	// TruncatedEvents lists UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into dated events inside the configured window.
// RRULE, EXDATE and RECURRENCE-ID overrides are honored. Recurring instances
// get the id "UID#YYYYMMDDTHHMM" so each occurrence can be saved separately.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	out := make([]model.Event, 0)
	for uid, bases := range baseByUID {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range bases {
			var evs []model.Event
			if ev.RawRRule == "" {
				evs = expandSingle(ev, ov, cfg)
			} else {
				var hitCap bool
				evs, hitCap = expandRecurring(ev, ov, cfg)
				truncated = truncated || hitCap
			}
			out = append(out, evs...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	sort.Strings(result.TruncatedEvents)

	result.Events = out
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	if !rangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	start, end := ev.Start, ev.End
	if o, ok := findOverride(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	return []model.Event{toEvent(ev, ev.UID, start, end, cfg.DisplayLocation)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	out := make([]model.Event, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event duration so instances already in
	// progress at RangeStart are kept.
	dur := ev.End.Sub(ev.Start)
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range starts {
		occEnd := occStart.Add(dur)
		if ev.AllDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart, occEnd = day, day.AddDate(0, 0, 1)
		}

		id := ev.UID + "#" + occStart.In(cfg.DisplayLocation).Format(instanceLayout)
		base := ev
		if o, ok := findOverride(overrides, occStart); ok {
			base, occStart, occEnd = o, o.Start, o.End
		}
		out = append(out, toEvent(base, id, occStart, occEnd, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// maxSpill is the latest end clock an event can carry, 47:59 on the next day.
const maxSpill = 48*60 - 1

// toEvent renders one occurrence on the display wall clock. Ends past
// midnight become clocks beyond 24:00; longer spans are clipped to the
// following day.
func toEvent(ev ParsedEvent, id string, start, end time.Time, loc *time.Location) model.Event {
	startLocal := start.In(loc)
	endLocal := end.In(loc)

	out := model.Event{
		ID:               id,
		Title:            ev.Summary,
		Description:      ev.Description,
		Location:         ev.Location,
		Category:         categoryFor(ev),
		Date:             model.FormatDate(startLocal),
		AllDay:           ev.AllDay,
		Organizer:        ev.OrganizerName,
		OrganizerEmail:   ev.OrganizerEmail,
		RegistrationLink: ev.URL,
		SourceID:         ev.Source.ID,
	}
	if out.Organizer == "" {
		out.Organizer = ev.OrganizerEmail
	}

	if ev.AllDay {
		out.StartTime = model.NewClock(0, 0).String()
		out.EndTime = model.NewClock(24, 0).String()
		return out
	}

	// Clocks are read off the wall so DST transitions do not shift them.
	startClock := model.NewClock(startLocal.Hour(), startLocal.Minute())
	endClock := model.NewClock(endLocal.Hour(), endLocal.Minute()) +
		model.Clock(daysBetween(startLocal, endLocal)*24*60)
	if endClock < startClock {
		endClock = startClock
	}
	if endClock > maxSpill {
		endClock = maxSpill
	}
	out.StartTime = startClock.String()
	out.EndTime = endClock.String()
	return out
}

// daysBetween counts calendar days from a to b, each read in its own zone.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours()) / 24
}

// categoryFor prefers the source category, then the first known CATEGORIES
// value.
func categoryFor(ev ParsedEvent) model.Category {
	if ev.Source.Category != "" {
		return model.ParseCategory(ev.Source.Category)
	}
	for _, c := range ev.Categories {
		if cat := model.ParseCategory(c); cat != model.CategoryOther {
			return cat
		}
	}
	return model.CategoryOther
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
