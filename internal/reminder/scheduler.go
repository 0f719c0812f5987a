// Package reminder schedules local notifications such as the end-of-shift
// alert.
package reminder

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luke-gs/cadsync/internal/logging"
)

// ShiftEndID identifies the end-of-shift reminder. Scheduling under the same
// ID replaces the pending one.
const ShiftEndID = "shift-end"

// Reminder is one local notification.
type Reminder struct {
	ID    string
	At    time.Time
	Title string
	Body  string
}

// Notifier delivers a reminder to the operator.
type Notifier interface {
	Notify(r Reminder)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Reminder)

// Notify calls f(r).
func (f NotifierFunc) Notify(r Reminder) { f(r) }

type pending struct {
	reminder Reminder
	timer    *time.Timer
}

// Scheduler keeps at most one pending reminder per ID.
type Scheduler struct {
	mu       sync.Mutex
	notifier Notifier
	pending  map[string]*pending
	log      logrus.FieldLogger

	// now and afterFunc are replaced in tests.
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewScheduler returns a scheduler that delivers through n.
func NewScheduler(n Notifier, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		notifier:  n,
		pending:   make(map[string]*pending),
		log:       logging.OrDiscard(log),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Schedule replaces any pending reminder with the same ID. A reminder in the
// past fires immediately.
func (s *Scheduler) Schedule(r Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(r.ID)
	delay := r.At.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	p := &pending{reminder: r}
	p.timer = s.afterFunc(delay, func() { s.fire(p) })
	s.pending[r.ID] = p
	s.log.WithFields(logrus.Fields{"id": r.ID, "at": r.At.Format(time.RFC3339)}).Debug("reminder scheduled")
}

// Cancel removes the pending reminder with id. It reports whether one existed.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(id)
}

// CancelAll removes every pending reminder.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		s.cancelLocked(id)
	}
}

// Pending returns the reminders that have not fired, ordered by time.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.reminder)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (s *Scheduler) cancelLocked(id string) bool {
	p, ok := s.pending[id]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, id)
	s.log.WithField("id", id).Debug("reminder cancelled")
	return true
}

func (s *Scheduler) fire(p *pending) {
	s.mu.Lock()
	// A replaced reminder may still fire if its timer raced with Stop.
	if s.pending[p.reminder.ID] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, p.reminder.ID)
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Notify(p.reminder)
	}
}

// ShiftEnd builds the end-of-shift reminder for a callsign.
func ShiftEnd(callsign string, at time.Time) Reminder {
	return Reminder{
		ID:    ShiftEndID,
		At:    at,
		Title: "Shift ending",
		Body:  "Shift for " + callsign + " ends at " + at.Local().Format("15:04"),
	}
}
