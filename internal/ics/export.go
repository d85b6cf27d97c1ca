package ics

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// ErrNothingToExport is returned when no event could be written.
var ErrNothingToExport = errors.New("no events to export")

const defaultProductID = "-//eventcal//Campus Events//EN"

// ExportOptions configures the VCALENDAR envelope.
type ExportOptions struct {
	CalendarName string
	ProductID    string
	// UIDDomain is appended to event ids: "<id>@<UIDDomain>".
	UIDDomain string
	// Location is the zone event wall clocks are read in. Nil means time.Local.
	Location *time.Location
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// ExportResult is the serialized calendar plus bookkeeping.
type ExportResult struct {
	Body     string
	Exported int
	Skipped  int
}

// Export writes events into one VCALENDAR. Events whose date or times cannot
// be parsed are skipped and counted.
func Export(events []model.Event, opts ExportOptions) (ExportResult, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.CalendarName == "" {
		opts.CalendarName = "eventcal"
	}
	if opts.UIDDomain == "" {
		opts.UIDDomain = "eventcal.local"
	}

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(escapeText(opts.CalendarName))
	cal.SetXWRTimezone(opts.Location.String())

	var res ExportResult
	for _, ev := range events {
		start, err := ev.StartsAt(opts.Location)
		if err != nil {
			res.Skipped++
			appLog.Warn("ics export: event skipped", "id", ev.ID, "reason", err)
			continue
		}
		end, err := ev.EndsAt(opts.Location)
		if err != nil {
			res.Skipped++
			appLog.Warn("ics export: event skipped", "id", ev.ID, "reason", err)
			continue
		}

		ve := cal.AddEvent(ev.ID + "@" + opts.UIDDomain)
		ve.SetDtStampTime(opts.Now)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetProperty(ical.ComponentPropertySummary, escapeText(ev.Title))
		ve.SetProperty(ical.ComponentPropertyDescription, escapeText(describe(ev)))
		if ev.Location != "" {
			ve.SetProperty(ical.ComponentPropertyLocation, escapeText(ev.Location))
		}
		if ev.OrganizerEmail != "" {
			name := ev.Organizer
			if name == "" {
				name = ev.OrganizerEmail
			}
			ve.SetProperty(ical.ComponentPropertyOrganizer, "mailto:"+ev.OrganizerEmail, ical.WithCN(name))
		}
		if ev.RegistrationLink != "" {
			ve.SetProperty(ical.ComponentProperty("URL"), ev.RegistrationLink)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(ev.Category)))
		ve.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		ve.SetProperty(ical.ComponentPropertySequence, "0")
		res.Exported++
	}

	if res.Exported == 0 {
		return res, ErrNothingToExport
	}
	res.Body = cal.Serialize()
	appLog.Debug("ics export completed", "exported", res.Exported, "skipped", res.Skipped)
	return res, nil
}

// describe builds the DESCRIPTION text: the summary, the original announcement
// with its sender, then category and interest count.
func describe(ev model.Event) string {
	var b strings.Builder
	b.WriteString(ev.Description)
	if ev.Body != "" {
		b.WriteString("\n\n--- Original announcement ---\n")
		if ev.Organizer != "" || ev.OrganizerEmail != "" {
			fmt.Fprintf(&b, "From: %s", ev.Organizer)
			if ev.OrganizerEmail != "" {
				fmt.Fprintf(&b, " (%s)", ev.OrganizerEmail)
			}
			b.WriteString("\n\n")
		}
		b.WriteString(ev.Body)
	}
	fmt.Fprintf(&b, "\n\nCategory: %s", ev.Category.Label())
	fmt.Fprintf(&b, "\nInterested: %d", ev.InterestedCount)
	return b.String()
}

// ExportKind selects the download file name.
type ExportKind string

const (
	ExportAll   ExportKind = "all"
	ExportSaved ExportKind = "saved"
	ExportMonth ExportKind = "month"
)

// Filename names an export download, e.g. "eventcal-saved-2025-11-03.ics".
// month is only read for ExportMonth.
func Filename(kind ExportKind, month, now time.Time) string {
	stamp := now.Format(model.DateLayout)
	switch kind {
	case ExportSaved:
		return "eventcal-saved-" + stamp + ".ics"
	case ExportMonth:
		return fmt.Sprintf("eventcal-%s-%d-%s.ics", strings.ToLower(month.Month().String()), month.Year(), stamp)
	default:
		return "eventcal-" + stamp + ".ics"
	}
}

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// EventFilename names a single-event export after its title.
func EventFilename(ev model.Event) string {
	name := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(ev.Title), "_"), "_")
	if name == "" {
		name = "event"
	}
	return name + ".ics"
}
