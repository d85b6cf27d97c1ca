package ics

import (
	"context"
	"fmt"
	"time"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// Loader runs the fetch, parse and expand pipeline for a set of feeds.
type Loader struct {
	Fetcher *Fetcher
	Sources []Source
	// Location is the display zone for event wall clocks.
	Location *time.Location
	// Backfill and Horizon bound expansion around now.
	Backfill time.Duration
	Horizon  time.Duration
	Now      func() time.Time
}

// Load returns the events of every reachable feed. Per-feed failures are
// returned alongside whatever did load.
func (l *Loader) Load(ctx context.Context) ([]model.Event, []error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	t := now()

	fetched, errs := l.Fetcher.FetchAll(ctx, l.Sources)

	var parsed []ParsedEvent
	for _, res := range fetched {
		evs, err := Parse(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", res.Source.ID, err))
			continue
		}
		parsed = append(parsed, evs...)
	}

	result, err := Expand(parsed, ExpandConfig{
		DisplayLocation: l.Location,
		RangeStart:      t.Add(-l.Backfill),
		RangeEnd:        t.Add(l.Horizon),
	})
	if err != nil {
		return nil, append(errs, err)
	}

	appLog.Info("ics load completed",
		"sources", len(l.Sources),
		"fetched", len(fetched),
		"events", len(result.Events),
		"errors", len(errs),
	)
	return result.Events, errs
}
