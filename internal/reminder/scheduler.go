package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventcal/internal/log"
)

// Notifier delivers a reminder once its fire time arrives.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// LogNotifier writes reminders to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, r Reminder) error {
	appLog.Info("reminder",
		"event", r.EventID,
		"title", r.Title,
		"starts_at", r.EventStart.Format(time.RFC3339),
		"offset", r.Offset,
	)
	return nil
}

// Handle identifies a scheduled reminder. The zero Handle is never issued.
type Handle cron.EntryID

// once fires a single time at a fixed instant.
type once time.Time

func (o once) Next(t time.Time) time.Time {
	at := time.Time(o)
	if t.Before(at) {
		return at
	}
	return time.Time{}
}

// Scheduler registers reminders as one-shot cron entries. Entries remove
// themselves after firing.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	notifier Notifier
	pending  map[Handle]Reminder
	now      func() time.Time
}

// NewScheduler returns a running scheduler. A nil notifier logs reminders.
func NewScheduler(n Notifier, loc *time.Location) *Scheduler {
	if n == nil {
		n = LogNotifier{}
	}
	if loc == nil {
		loc = time.Local
	}
	logger := appLog.CronLogger()
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		notifier: n,
		pending:  make(map[Handle]Reminder),
		now:      time.Now,
	}
	s.cron.Start()
	return s
}

// Schedule registers r. Reminders whose fire time has passed are dropped and
// the zero Handle is returned.
func (s *Scheduler) Schedule(r Reminder) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(r)
}

func (s *Scheduler) scheduleLocked(r Reminder) Handle {
	if !r.FireAt.After(s.now()) {
		appLog.Debug("reminder already due, dropped", "event", r.EventID, "fire_at", r.FireAt)
		return 0
	}

	var h Handle
	job := cron.FuncJob(func() {
		s.mu.Lock()
		_, live := s.pending[h]
		delete(s.pending, h)
		s.mu.Unlock()
		s.cron.Remove(cron.EntryID(h))
		if !live {
			return
		}
		if err := s.notifier.Notify(context.Background(), r); err != nil {
			appLog.Error("reminder delivery failed", err, "event", r.EventID)
		}
	})

	// The job reads h under s.mu, which is held until h is assigned.
	h = Handle(s.cron.Schedule(once(r.FireAt), job))
	s.pending[h] = r
	appLog.Debug("reminder scheduled", "event", r.EventID, "fire_at", r.FireAt, "handle", h)
	return h
}

// Cancel removes a pending reminder. It reports whether h was pending.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(h)
}

func (s *Scheduler) cancelLocked(h Handle) bool {
	if _, ok := s.pending[h]; !ok {
		return false
	}
	delete(s.pending, h)
	s.cron.Remove(cron.EntryID(h))
	return true
}

// Reschedule cancels every pending reminder and registers plan instead. It
// returns the number of reminders now pending.
func (s *Scheduler) Reschedule(plan []Reminder) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h := range s.pending {
		s.cancelLocked(h)
	}
	for _, r := range plan {
		s.scheduleLocked(r)
	}
	appLog.Info("reminders rescheduled", "pending", len(s.pending))
	return len(s.pending)
}

// Upcoming lists pending reminders by fire time.
func (s *Scheduler) Upcoming() []Reminder {
	s.mu.Lock()
	out := make([]Reminder, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Stop halts the cron loop and returns a context that is done once running
// deliveries finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
