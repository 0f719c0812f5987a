// Package bookon books resources on and off duty.
package bookon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
	"github.com/luke-gs/cadsync/internal/logging"
	"github.com/luke-gs/cadsync/internal/reminder"
	"github.com/luke-gs/cadsync/internal/state"
	"github.com/luke-gs/cadsync/internal/status"
)

// MaxRecentCallsigns caps the recently used callsign list.
const MaxRecentCallsigns = 5

// API is the part of the dispatch service the workflow needs.
type API interface {
	BookOn(ctx context.Context, req cad.BookOnRequest) (cad.Ack, error)
	BookOff(ctx context.Context, callsign string) (cad.Ack, error)
}

// Reminders schedules and cancels the end-of-shift reminder.
type Reminders interface {
	Schedule(r reminder.Reminder)
	Cancel(id string) bool
}

// Ensure the concrete collaborators satisfy the interfaces at compile time.
var (
	_ API       = (*cad.Client)(nil)
	_ Reminders = (*reminder.Scheduler)(nil)
)

// Workflow owns the active booking.
type Workflow struct {
	store     *state.Store
	api       API
	reminders Reminders
	officerID string
	log       logrus.FieldLogger

	// Go runs background work such as voiding a booking. Tests replace it
	// to run synchronously.
	Go func(func())

	mu     sync.Mutex
	last   *cad.BookOnRequest
	recent []string
}

// New returns a workflow for the operator identified by officerID. A nil
// reminders disables shift-end reminders.
func New(store *state.Store, api API, reminders Reminders, officerID string, log logrus.FieldLogger) *Workflow {
	return &Workflow{
		store:     store,
		api:       api,
		reminders: reminders,
		officerID: strings.TrimSpace(officerID),
		log:       logging.OrDiscard(log),
		Go:        func(f func()) { go f() },
	}
}

// BookOn validates req, sends it to the dispatch service and, once accepted,
// records the booking, updates the resource roster and shift, and moves an
// Off Duty resource to On Air. A rejected request changes nothing.
func (w *Workflow) BookOn(ctx context.Context, req cad.BookOnRequest) error {
	req, err := normalizeRequest(req)
	if err != nil {
		return err
	}
	log := w.log.WithFields(logrus.Fields{"callsign": req.Callsign, "request_id": req.RequestID})

	ack, err := w.api.BookOn(ctx, req)
	if err != nil {
		log.WithError(err).Warn("book on failed")
		return fmt.Errorf("%w: %w", cad.ErrBookOnRejected, err)
	}
	if !ack.Accepted {
		log.WithField("message", ack.Message).Warn("book on refused")
		return fmt.Errorf("%w: %s", cad.ErrBookOnRejected, ack.Message)
	}

	w.setBooking(&req)
	w.rememberCallsign(req.Callsign)

	if err := w.store.Update(func(tx *state.Tx) error {
		r, ok := tx.Resource(req.Callsign)
		if !ok {
			r = cad.Resource{Callsign: req.Callsign, Status: cad.StatusOffDuty}
		}
		wasOffDuty := r.Status == cad.StatusOffDuty
		r.OfficerIDs = append([]string(nil), req.OfficerIDs...)
		r.Equipment = append([]cad.Equipment(nil), req.Equipment...)
		start := req.ShiftStart
		r.ShiftStart = &start
		r.ShiftEnd = req.Clone().ShiftEnd
		tx.PutResource(r)
		tx.Emit(events.Event{Kind: events.BookOnChanged})
		if wasOffDuty {
			return status.Apply(tx, req.Callsign, cad.StatusOnAir, "")
		}
		tx.Emit(events.Event{Kind: events.CallsignChanged, Callsign: req.Callsign})
		return nil
	}); err != nil {
		return err
	}
	log.WithField("officers", len(req.OfficerIDs)).Info("booked on")

	if w.officerID != "" && !req.HasOfficer(w.officerID) {
		log.WithField("officer", w.officerID).Warn("current officer not on roster, voiding booking")
		voidCtx := context.WithoutCancel(ctx)
		w.Go(func() {
			if err := w.BookOff(voidCtx); err != nil {
				log.WithError(err).Error("void booking failed")
			}
		})
	}
	return nil
}

// BookOff ends the active booking and sets the resource Off Duty. It returns
// cad.ErrNotBookedOn when there is no booking.
func (w *Workflow) BookOff(ctx context.Context) error {
	w.mu.Lock()
	last := w.last
	w.mu.Unlock()
	if last == nil {
		return cad.ErrNotBookedOn
	}
	log := w.log.WithField("callsign", last.Callsign)

	ack, err := w.api.BookOff(ctx, last.Callsign)
	if err != nil {
		log.WithError(err).Warn("book off failed")
		return fmt.Errorf("%w: %w", cad.ErrBookOffRejected, err)
	}
	if !ack.Accepted {
		log.WithField("message", ack.Message).Warn("book off refused")
		return fmt.Errorf("%w: %s", cad.ErrBookOffRejected, ack.Message)
	}

	w.setBooking(nil)
	if err := w.store.Update(func(tx *state.Tx) error {
		tx.Emit(events.Event{Kind: events.BookOnChanged})
		if _, ok := tx.Resource(last.Callsign); !ok {
			return nil
		}
		return status.Apply(tx, last.Callsign, cad.StatusOffDuty, "")
	}); err != nil {
		return err
	}
	log.Info("booked off")
	return nil
}

// SetShiftEnd changes the end of the active shift locally and reschedules the
// reminder.
func (w *Workflow) SetShiftEnd(end *time.Time) error {
	w.mu.Lock()
	if w.last == nil {
		w.mu.Unlock()
		return cad.ErrNotBookedOn
	}
	next := w.last.Clone()
	w.mu.Unlock()

	if end != nil {
		if !end.After(next.ShiftStart) {
			return fmt.Errorf("%w: shift end %s not after start", cad.ErrInvalidBookOn, end.Format(time.RFC3339))
		}
		e := *end
		next.ShiftEnd = &e
	} else {
		next.ShiftEnd = nil
	}
	w.setBooking(&next)

	return w.store.Update(func(tx *state.Tx) error {
		r, ok := tx.Resource(next.Callsign)
		if !ok {
			return nil
		}
		r.ShiftEnd = next.Clone().ShiftEnd
		tx.PutResource(r)
		tx.Emit(events.Event{Kind: events.BookOnChanged})
		return nil
	})
}

// LastBookOn returns a copy of the active booking, or nil.
func (w *Workflow) LastBookOn() *cad.BookOnRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return nil
	}
	c := w.last.Clone()
	return &c
}

// RecentCallsigns returns recently booked callsigns, most recent first.
func (w *Workflow) RecentCallsigns() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.recent...)
}

// Reset forgets the booking and recent callsigns and cancels the reminder.
// It does not contact the dispatch service.
func (w *Workflow) Reset() {
	w.setBooking(nil)
	w.mu.Lock()
	w.recent = nil
	w.mu.Unlock()
}

// setBooking replaces the active booking. When the shift end changes, the
// pending reminder is cancelled and a new one scheduled if there is an end.
func (w *Workflow) setBooking(next *cad.BookOnRequest) {
	w.mu.Lock()
	var prevEnd *time.Time
	if w.last != nil {
		prevEnd = w.last.ShiftEnd
	}
	if next != nil {
		c := next.Clone()
		next = &c
	}
	w.last = next
	w.mu.Unlock()

	var nextEnd *time.Time
	if next != nil {
		nextEnd = next.ShiftEnd
	}
	if sameTime(prevEnd, nextEnd) || w.reminders == nil {
		return
	}
	w.reminders.Cancel(reminder.ShiftEndID)
	if nextEnd != nil {
		w.reminders.Schedule(reminder.ShiftEnd(next.Callsign, *nextEnd))
	}
}

func (w *Workflow) rememberCallsign(callsign string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	recent := make([]string, 0, MaxRecentCallsigns)
	recent = append(recent, callsign)
	for _, cs := range w.recent {
		if len(recent) == MaxRecentCallsigns {
			break
		}
		if !strings.EqualFold(cs, callsign) {
			recent = append(recent, cs)
		}
	}
	w.recent = recent
}

func normalizeRequest(req cad.BookOnRequest) (cad.BookOnRequest, error) {
	req = req.Clone()
	req.Callsign = strings.TrimSpace(req.Callsign)
	if req.Callsign == "" {
		return req, fmt.Errorf("%w: callsign required", cad.ErrInvalidBookOn)
	}
	officers := req.OfficerIDs[:0:0]
	for _, id := range req.OfficerIDs {
		if id = strings.TrimSpace(id); id != "" {
			officers = append(officers, id)
		}
	}
	if len(officers) == 0 {
		return req, fmt.Errorf("%w: at least one officer required", cad.ErrInvalidBookOn)
	}
	req.OfficerIDs = officers
	if req.ShiftStart.IsZero() {
		req.ShiftStart = time.Now()
	}
	if req.ShiftEnd != nil && !req.ShiftEnd.After(req.ShiftStart) {
		return req, fmt.Errorf("%w: shift end %s not after start", cad.ErrInvalidBookOn, req.ShiftEnd.Format(time.RFC3339))
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return req, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
