package model

import (
	"strings"
	"time"
)

// Event is a single dated calendar entry as held by the event store.
//
// Date, StartTime and EndTime are kept in their wire form (YYYY-MM-DD and
// HH:MM, local wall clock, no zone) so that malformed values survive loading
// and can be excluded by the consumers instead of failing the whole load.
// An empty EndTime means "one hour after StartTime".
type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Category    Category `json:"category"`

	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	AllDay    bool   `json:"all_day,omitempty"`

	Organizer        string `json:"organizer,omitempty"`
	OrganizerEmail   string `json:"organizer_email,omitempty"`
	Body             string `json:"body,omitempty"`
	RegistrationLink string `json:"registration_link,omitempty"`
	Capacity         int    `json:"capacity,omitempty"`

	InterestedCount int      `json:"interested_count"`
	Tags            []string `json:"tags,omitempty"`

	// SourceID names the feed an event was imported from; empty for seed events.
	SourceID string `json:"source_id,omitempty"`

	// Joined from user preferences before filtering; never persisted.
	IsSaved      bool `json:"is_saved"`
	IsInterested bool `json:"is_interested"`
}

// Start parses StartTime.
func (e Event) Start() (Clock, error) {
	return ParseClock(e.StartTime)
}

// End parses EndTime, applying DefaultDuration when it is absent.
func (e Event) End() (Clock, error) {
	if strings.TrimSpace(e.EndTime) == "" {
		start, err := e.Start()
		if err != nil {
			return 0, err
		}
		return start.Add(DefaultDuration), nil
	}
	return ParseClock(e.EndTime)
}

// StartsAt resolves the event start to an instant in loc.
func (e Event) StartsAt(loc *time.Location) (time.Time, error) {
	start, err := e.Start()
	if err != nil {
		return time.Time{}, err
	}
	return At(e.Date, start, loc)
}

// EndsAt resolves the event end to an instant in loc. Ends past 24:00 roll
// into the following day.
func (e Event) EndsAt(loc *time.Location) (time.Time, error) {
	end, err := e.End()
	if err != nil {
		return time.Time{}, err
	}
	return At(e.Date, end, loc)
}

// HasTag reports whether any tag contains sub, case-insensitively.
func (e Event) HasTag(sub string) bool {
	sub = strings.ToLower(sub)
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), sub) {
			return true
		}
	}
	return false
}
