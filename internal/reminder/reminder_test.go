package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/model"
)

var planNow = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func planEvents() []model.Event {
	return []model.Event{
		{ID: "tonight", Title: "Concert", Date: "2025-11-03", StartTime: "19:00"},
		{ID: "tomorrow", Title: "Talk", Date: "2025-11-04", StartTime: "12:00"},
		{ID: "soon", Title: "Lunch", Date: "2025-11-03", StartTime: "09:30"},
		{ID: "past", Title: "Breakfast", Date: "2025-11-03", StartTime: "08:00"},
		{ID: "broken", Title: "?", Date: "2025-11-03", StartTime: "late"},
		{ID: "ignored", Title: "Not interested", Date: "2025-11-03", StartTime: "20:00"},
	}
}

func TestPlan(t *testing.T) {
	interested := []string{"tonight", "tomorrow", "soon", "past", "broken"}
	got := Plan(planEvents(), interested, DefaultOffsets, planNow, 0)

	var keys []string
	for _, r := range got {
		keys = append(keys, r.Key())
	}
	// "soon" is 30 minutes out so both of its reminders are already due.
	assert.Equal(t, []string{"tomorrow/24h0m0s", "tonight/1h0m0s", "tomorrow/1h0m0s"}, keys)

	assert.Equal(t, time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC), got[0].FireAt)
	assert.Equal(t, "Talk", got[0].Title)
	assert.Equal(t, time.Date(2025, 11, 3, 18, 0, 0, 0, time.UTC), got[1].FireAt)
}

func TestPlanLookahead(t *testing.T) {
	got := Plan(planEvents(), []string{"tonight", "tomorrow"}, DefaultOffsets, planNow, 6*time.Hour)
	require.Len(t, got, 1)
	assert.Equal(t, "tomorrow", got[0].EventID)
	assert.Equal(t, 24*time.Hour, got[0].Offset)
}

func TestPlanNothingInterested(t *testing.T) {
	assert.Empty(t, Plan(planEvents(), nil, DefaultOffsets, planNow, 0))
}

func TestParseOffsets(t *testing.T) {
	got, err := ParseOffsets([]string{"1h", " 30m"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Hour, 30 * time.Minute}, got)

	_, err = ParseOffsets([]string{"-1h"})
	assert.Error(t, err)
	_, err = ParseOffsets([]string{"soon"})
	assert.Error(t, err)
}

type chanNotifier struct {
	mu  sync.Mutex
	got []Reminder
	ch  chan Reminder
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{ch: make(chan Reminder, 8)}
}

func (n *chanNotifier) Notify(_ context.Context, r Reminder) error {
	n.mu.Lock()
	n.got = append(n.got, r)
	n.mu.Unlock()
	n.ch <- r
	return nil
}

func TestSchedulerFiresOnce(t *testing.T) {
	n := newChanNotifier()
	s := NewScheduler(n, time.UTC)
	defer s.Stop()

	h := s.Schedule(Reminder{EventID: "a", FireAt: time.Now().Add(100 * time.Millisecond)})
	require.NotZero(t, h)
	assert.Len(t, s.Upcoming(), 1)

	select {
	case r := <-n.ch:
		assert.Equal(t, "a", r.EventID)
	case <-time.After(3 * time.Second):
		t.Fatal("reminder did not fire")
	}

	assert.Eventually(t, func() bool { return len(s.Upcoming()) == 0 }, time.Second, 10*time.Millisecond)
	assert.False(t, s.Cancel(h), "fired entries are gone")

	select {
	case <-n.ch:
		t.Fatal("one-shot reminder fired twice")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSchedulerCancel(t *testing.T) {
	n := newChanNotifier()
	s := NewScheduler(n, time.UTC)
	defer s.Stop()

	h := s.Schedule(Reminder{EventID: "a", FireAt: time.Now().Add(200 * time.Millisecond)})
	assert.True(t, s.Cancel(h))
	assert.False(t, s.Cancel(h))

	select {
	case <-n.ch:
		t.Fatal("cancelled reminder fired")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestSchedulerDropsDueReminders(t *testing.T) {
	s := NewScheduler(newChanNotifier(), time.UTC)
	defer s.Stop()

	assert.Zero(t, s.Schedule(Reminder{EventID: "a", FireAt: time.Now().Add(-time.Minute)}))
	assert.Empty(t, s.Upcoming())
}

func TestSchedulerReschedule(t *testing.T) {
	s := NewScheduler(newChanNotifier(), time.UTC)
	defer s.Stop()

	base := time.Now().Add(time.Hour)
	s.Schedule(Reminder{EventID: "old", FireAt: base})

	n := s.Reschedule([]Reminder{
		{EventID: "b", FireAt: base.Add(2 * time.Minute)},
		{EventID: "a", FireAt: base.Add(time.Minute)},
		{EventID: "due", FireAt: time.Now().Add(-time.Second)},
	})
	assert.Equal(t, 2, n)

	up := s.Upcoming()
	require.Len(t, up, 2)
	assert.Equal(t, "a", up[0].EventID)
	assert.Equal(t, "b", up[1].EventID)
}
