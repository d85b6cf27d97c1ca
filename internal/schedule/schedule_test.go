package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/model"
)

func week() []model.Event {
	return []model.Event{
		{ID: "lecture", Date: "2025-11-03", StartTime: "14:00", EndTime: "15:30"},
		{ID: "lunch", Date: "2025-11-03", StartTime: "12:00", EndTime: "13:30"},
		{ID: "jazz", Date: "2025-11-05", StartTime: "19:15"},
		{ID: "broken", Date: "2025-11-06", StartTime: "soon"},
	}
}

func duration(t *testing.T, s Slot) int {
	t.Helper()
	iv, err := s.Interval()
	require.NoError(t, err)
	return int(iv.End - iv.Start)
}

func TestBuildFromStartsWithOriginals(t *testing.T) {
	m := BuildFrom(week())
	assert.Equal(t, []string{"lecture", "lunch", "jazz", "broken"}, m.IDs())

	slot, err := m.Effective("lecture")
	require.NoError(t, err)
	assert.Equal(t, Slot{EventID: "lecture", Date: "2025-11-03", StartTime: "14:00", EndTime: "15:30"}, slot)
	assert.False(t, slot.Moved)
}

func TestBuildFromIgnoresDuplicateIDs(t *testing.T) {
	m := BuildFrom([]model.Event{
		{ID: "a", Date: "2025-11-03", StartTime: "09:00"},
		{ID: "a", Date: "2025-11-04", StartTime: "10:00"},
	})
	assert.Equal(t, 1, m.Len())
	slot, err := m.Effective("a")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-03", slot.Date)
}

func TestEffectiveUnknownID(t *testing.T) {
	m := BuildFrom(week())
	_, err := m.Effective("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.MoveTo("nope", "2025-11-04", 9), ErrNotFound)
}

func TestMoveToPreservesDuration(t *testing.T) {
	m := BuildFrom(week())

	require.NoError(t, m.MoveTo("lecture", "2025-11-04", 9))
	slot, err := m.Effective("lecture")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-04", slot.Date)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.Equal(t, "10:30", slot.EndTime)
	assert.True(t, slot.Moved)
}

func TestMoveToKeepsMinuteAndDefaultDuration(t *testing.T) {
	m := BuildFrom(week())

	require.NoError(t, m.MoveTo("jazz", "2025-11-07", 8))
	slot, err := m.Effective("jazz")
	require.NoError(t, err)
	assert.Equal(t, "08:15", slot.StartTime)
	assert.Equal(t, "09:15", slot.EndTime)
}

func TestRepeatedMovesNeverChangeDuration(t *testing.T) {
	m := BuildFrom(week())
	orig := map[string]int{}
	for _, id := range []string{"lecture", "lunch", "jazz"} {
		s, err := m.Effective(id)
		require.NoError(t, err)
		orig[id] = duration(t, s)
	}

	moves := []struct {
		id   string
		date string
		hour int
	}{
		{"lecture", "2025-11-04", 6},
		{"lunch", "2025-11-03", 21},
		{"lecture", "2025-11-08", 17},
		{"jazz", "2025-11-03", 0},
		{"lunch", "2025-11-09", 23},
		{"lecture", "2025-11-03", 11},
	}
	for _, mv := range moves {
		require.NoError(t, m.MoveTo(mv.id, mv.date, mv.hour))
		for id, want := range orig {
			s, err := m.Effective(id)
			require.NoError(t, err)
			assert.Equal(t, want, duration(t, s), "%s after moving %s", id, mv.id)
		}
	}
}

func TestMoveLateKeepsEndOnSameDay(t *testing.T) {
	m := BuildFrom(week())
	require.NoError(t, m.MoveTo("lecture", "2025-11-04", 23))
	slot, err := m.Effective("lecture")
	require.NoError(t, err)
	assert.Equal(t, "23:00", slot.StartTime)
	assert.Equal(t, "24:30", slot.EndTime)
	assert.Equal(t, 90, duration(t, slot))
}

func TestMoveToInvalidTarget(t *testing.T) {
	m := BuildFrom(week())
	assert.ErrorIs(t, m.MoveTo("lecture", "2025-11-04", 24), ErrInvalidTarget)
	assert.ErrorIs(t, m.MoveTo("lecture", "2025-11-04", -1), ErrInvalidTarget)
	assert.ErrorIs(t, m.MoveTo("lecture", "Nov 4", 9), ErrInvalidTarget)

	slot, err := m.Effective("lecture")
	require.NoError(t, err)
	assert.False(t, slot.Moved)
}

func TestMoveToUnknownIDWinsOverBadTarget(t *testing.T) {
	m := BuildFrom(week())
	err := m.MoveTo("unknown", "bad", 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidTarget)
}

func TestMoveOvernightEventKeepsDuration(t *testing.T) {
	m := BuildFrom([]model.Event{
		{ID: "rave", Date: "2025-11-07", StartTime: "22:00", EndTime: "01:00"},
	})
	require.NoError(t, m.MoveTo("rave", "2025-11-08", 9))
	slot, err := m.Effective("rave")
	require.NoError(t, err)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.Equal(t, "12:00", slot.EndTime)
	assert.Equal(t, 180, duration(t, slot))

	require.NoError(t, m.MoveTo("rave", "2025-11-08", 20), "moved event stays movable")
	slot, err = m.Effective("rave")
	require.NoError(t, err)
	assert.Equal(t, "23:00", slot.EndTime)
}

func TestMoveToMalformedEvent(t *testing.T) {
	m := BuildFrom(week())
	assert.ErrorIs(t, m.MoveTo("broken", "2025-11-04", 9), ErrMalformedEvent)
}

func TestResetRestoresOriginals(t *testing.T) {
	events := week()
	m := BuildFrom(events)
	require.NoError(t, m.MoveTo("lecture", "2025-11-04", 9))
	require.NoError(t, m.MoveTo("lunch", "2025-11-05", 19))
	require.NoError(t, m.MoveTo("lecture", "2025-11-06", 7))

	m.Reset()

	for _, ev := range events {
		slot, err := m.Effective(ev.ID)
		require.NoError(t, err)
		assert.Equal(t, Slot{EventID: ev.ID, Date: ev.Date, StartTime: ev.StartTime, EndTime: ev.EndTime}, slot)
	}
}

func TestSnapshotIsStableAcrossMutations(t *testing.T) {
	m := BuildFrom(week())
	before := m.Snapshot()

	require.NoError(t, m.MoveTo("lecture", "2025-11-04", 9))
	after := m.Snapshot()

	s, err := before.Effective("lecture")
	require.NoError(t, err)
	assert.Equal(t, "14:00", s.StartTime)

	s, err = after.Effective("lecture")
	require.NoError(t, err)
	assert.Equal(t, "09:00", s.StartTime)

	m.Reset()
	s, err = after.Effective("lecture")
	require.NoError(t, err)
	assert.Equal(t, "09:00", s.StartTime)
}

func TestSlotsInBuildOrder(t *testing.T) {
	m := BuildFrom(week())
	slots := m.Slots()
	require.Len(t, slots, 4)
	assert.Equal(t, "lecture", slots[0].EventID)
	assert.Equal(t, "broken", slots[3].EventID)
}
