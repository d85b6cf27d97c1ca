package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventcal/internal/log"
)

// ParsedEvent is one VEVENT before recurrence expansion.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	URL         string
	Categories  []string

	OrganizerName  string
	OrganizerEmail string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, when this VEVENT overrides one instance
	IsOverride bool
}

// Parse decodes an ICS payload. VEVENTs that cannot be decoded are logged
// and skipped.
func Parse(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}

	out.Summary = textProp(ve, ical.ComponentPropertySummary)
	out.Description = textProp(ve, ical.ComponentPropertyDescription)
	out.Location = textProp(ve, ical.ComponentPropertyLocation)
	out.URL = textProp(ve, ical.ComponentProperty("URL"))

	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		out.Categories = append(out.Categories, splitList(p.Value)...)
	}

	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		out.OrganizerEmail = strings.TrimPrefix(strings.TrimPrefix(p.Value, "mailto:"), "MAILTO:")
		if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 {
			out.OrganizerName = unescapeText(cn[0])
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	}

	// VALUE=DATE or a bare YYYYMMDD value marks an all-day event.
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.AllDay = true
	}
	if out.End.IsZero() || !out.End.After(out.Start) {
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start.Add(time.Hour)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range splitList(p.Value) {
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func textProp(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return unescapeText(p.Value)
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseICSTime handles the bare DATE / DATE-TIME / UTC forms used by EXDATE
// and RECURRENCE-ID values; TZID parameters are not consulted.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}

var textEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\r\n", `\n`, "\n", `\n`)

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\;`, `;`, `\,`, `,`, `\n`, "\n", `\N`, "\n")

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
