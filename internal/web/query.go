package web

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eventcal/internal/filter"
	"eventcal/internal/model"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// criteriaFromQuery reads filter parameters:
//
//	category=food&category=arts  start=YYYY-MM-DD  end=YYYY-MM-DD
//	preset=all|today|this-week|this-month|custom  q=  location=
//	free_food=true  saved=true  time=morning|afternoon|evening
//	min_interested=N
//
// start or end without a preset implies preset=custom.
func criteriaFromQuery(q url.Values, now time.Time, weekStart time.Weekday) (filter.Criteria, error) {
	var c filter.Criteria

	for _, raw := range q["category"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				c.Categories = append(c.Categories, model.ParseCategory(part))
			}
		}
	}

	var start, end time.Time
	var err error
	if v := q.Get("start"); v != "" {
		if start, err = model.ParseDate(v); err != nil {
			return c, badRequest("start: %v", err)
		}
	}
	if v := q.Get("end"); v != "" {
		if end, err = model.ParseDate(v); err != nil {
			return c, badRequest("end: %v", err)
		}
	}
	preset := filter.ParsePreset(q.Get("preset"))
	if q.Get("preset") == "" && (!start.IsZero() || !end.IsZero()) {
		preset = filter.PresetCustom
	}
	if preset == filter.PresetCustom {
		c.DateRange = filter.DateRange{Start: start, End: end}
	} else {
		c.DateRange = preset.Resolve(now, weekStart, start, end)
	}

	c.Query = q.Get("q")
	c.Location = q.Get("location")
	c.TimeOfDay = filter.ParseTimeOfDay(q.Get("time"))

	if c.OnlyFreeFood, err = boolParam(q, "free_food"); err != nil {
		return c, err
	}
	if c.OnlySaved, err = boolParam(q, "saved"); err != nil {
		return c, err
	}
	if v := q.Get("min_interested"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, badRequest("min_interested must be a non-negative integer")
		}
		c.MinInterested = n
	}
	return c, nil
}

func boolParam(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("%s must be a boolean", key)
	}
	return b, nil
}

// dateParam parses a YYYY-MM-DD parameter, defaulting to now's calendar date.
func dateParam(q url.Values, key string, now time.Time) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, badRequest("%s: %v", key, err)
	}
	return d, nil
}
