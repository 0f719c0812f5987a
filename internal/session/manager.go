// Package session wires the dispatch components into one service the
// presentation layers talk to.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luke-gs/cadsync/internal/bookon"
	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
	"github.com/luke-gs/cadsync/internal/logging"
	"github.com/luke-gs/cadsync/internal/manifest"
	"github.com/luke-gs/cadsync/internal/reminder"
	"github.com/luke-gs/cadsync/internal/state"
	"github.com/luke-gs/cadsync/internal/status"
	"github.com/luke-gs/cadsync/internal/syncer"
)

// Options configure a Manager.
type Options struct {
	API cad.API

	// OfficerID identifies the operator of this device.
	OfficerID string
	// Callsign is used for status updates when there is no active booking.
	Callsign    string
	PatrolGroup string

	// Notifier delivers the shift-end reminder. Nil disables delivery.
	Notifier reminder.Notifier
	Log      logrus.FieldLogger
}

// Manager owns one operator session: the store, the event bus and the
// workflows that mutate them.
type Manager struct {
	api cad.API
	log logrus.FieldLogger

	bus       *events.Bus
	store     *state.Store
	tracker   *state.Tracker
	status    *status.Machine
	bookon    *bookon.Workflow
	syncer    *syncer.Coordinator
	reminders *reminder.Scheduler
	manifest  *manifest.Cache

	officerID   string
	callsign    string
	patrolGroup string

	mu      sync.Mutex
	officer *cad.Officer
}

// New builds a Manager around opts.API.
func New(opts Options) *Manager {
	log := logging.OrDiscard(opts.Log)
	bus := &events.Bus{}
	store := state.New(bus)
	reminders := reminder.NewScheduler(opts.Notifier, log)
	return &Manager{
		api:         opts.API,
		log:         log,
		bus:         bus,
		store:       store,
		tracker:     state.NewTracker(store),
		status:      status.New(store, opts.API, log),
		bookon:      bookon.New(store, opts.API, reminders, opts.OfficerID, log),
		syncer:      syncer.New(store, opts.API, log),
		reminders:   reminders,
		manifest:    manifest.New(),
		officerID:   strings.TrimSpace(opts.OfficerID),
		callsign:    strings.TrimSpace(opts.Callsign),
		patrolGroup: strings.TrimSpace(opts.PatrolGroup),
	}
}

// Store exposes the underlying store for read-only helpers.
func (m *Manager) Store() *state.Store { return m.store }

// Tracker exposes the incident assignment tracker.
func (m *Manager) Tracker() *state.Tracker { return m.tracker }

// Manifest exposes the lookup cache.
func (m *Manager) Manifest() *manifest.Cache { return m.manifest }

// Reminders exposes the reminder scheduler.
func (m *Manager) Reminders() *reminder.Scheduler { return m.reminders }

// PatrolGroup returns the operator's patrol group.
func (m *Manager) PatrolGroup() string { return m.patrolGroup }

// Subscribe registers for change events. Callers must Close the subscription.
func (m *Manager) Subscribe(buffer int) *events.Subscription {
	return m.bus.Subscribe(buffer)
}

// Snapshot returns a consistent copy of the store.
func (m *Manager) Snapshot() state.Snapshot { return m.store.Snapshot() }

// Incidents returns all incidents.
func (m *Manager) Incidents() []cad.Incident { return m.store.Incidents() }

// Resources returns all resources.
func (m *Manager) Resources() []cad.Resource { return m.store.Resources() }

// Patrols returns all patrols.
func (m *Manager) Patrols() []cad.Patrol { return m.store.Patrols() }

// Broadcasts returns all broadcasts.
func (m *Manager) Broadcasts() []cad.Broadcast { return m.store.Broadcasts() }

// LastSyncTime returns the server time of the newest applied sync.
func (m *Manager) LastSyncTime() time.Time { return m.store.LastSyncTime() }

// OfficerDetails returns the operator's officer record. It is resolved from
// the store on first use and cached until the session is cleared.
func (m *Manager) OfficerDetails() (cad.Officer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.officer != nil {
		return *m.officer, true
	}
	if m.officerID == "" {
		return cad.Officer{}, false
	}
	o, ok := m.store.Officer(m.officerID)
	if !ok {
		return cad.Officer{}, false
	}
	m.officer = &o
	return o, true
}

// LastBookOn returns the active booking. A booking whose roster does not
// include the operator is treated as void and reported as nil.
func (m *Manager) LastBookOn() *cad.BookOnRequest {
	last := m.bookon.LastBookOn()
	if last == nil {
		return nil
	}
	if m.officerID != "" && !last.HasOfficer(m.officerID) {
		return nil
	}
	return last
}

// RecentCallsigns returns recently booked callsigns, most recent first.
func (m *Manager) RecentCallsigns() []string { return m.bookon.RecentCallsigns() }

// CurrentCallsign is the booked callsign, or the configured one.
func (m *Manager) CurrentCallsign() string {
	if last := m.LastBookOn(); last != nil {
		return last.Callsign
	}
	return m.callsign
}

// CurrentResource returns the resource for CurrentCallsign.
func (m *Manager) CurrentResource() (cad.Resource, bool) {
	cs := m.CurrentCallsign()
	if cs == "" {
		return cad.Resource{}, false
	}
	return m.store.Resource(cs)
}

// BookOn books a resource on.
func (m *Manager) BookOn(ctx context.Context, req cad.BookOnRequest) error {
	return m.bookon.BookOn(ctx, req)
}

// BookOff ends the active booking.
func (m *Manager) BookOff(ctx context.Context) error {
	return m.bookon.BookOff(ctx)
}

// SetShiftEnd changes the active shift's end time.
func (m *Manager) SetShiftEnd(end *time.Time) error {
	return m.bookon.SetShiftEnd(end)
}

// UpdateCallsignStatus changes the status of the current callsign.
func (m *Manager) UpdateCallsignStatus(ctx context.Context, st cad.ResourceStatus, incidentID, comments, locationComments string) error {
	cs := m.CurrentCallsign()
	if cs == "" {
		return cad.ErrNotBookedOn
	}
	return m.status.Update(ctx, status.Update{
		Callsign:         cs,
		Status:           st,
		IncidentID:       incidentID,
		Comments:         comments,
		LocationComments: locationComments,
	})
}

// SyncAll fetches everything.
func (m *Manager) SyncAll(ctx context.Context) (syncer.Result, error) {
	return m.syncer.SyncAll(ctx)
}

// SyncPatrolGroup fetches one patrol group.
func (m *Manager) SyncPatrolGroup(ctx context.Context, group string) (syncer.Result, error) {
	return m.syncer.SyncPatrolGroup(ctx, group)
}

// SyncBoundingBox fetches a map region.
func (m *Manager) SyncBoundingBox(ctx context.Context, box cad.BoundingBox, force bool) (syncer.Result, error) {
	return m.syncer.SyncBoundingBox(ctx, box, force)
}

// StartPolling runs the background sync loop for scope until ctx ends.
func (m *Manager) StartPolling(ctx context.Context, scope cad.SyncScope, interval time.Duration) {
	m.syncer.Start(ctx, scope, interval)
}

// Nudge asks the background sync loop to run now.
func (m *Manager) Nudge() { m.syncer.Nudge() }

// IncidentDetails fetches an incident with its resources and officers and
// merges them into the store.
func (m *Manager) IncidentDetails(ctx context.Context, id string) (*cad.IncidentDetails, error) {
	details, err := m.api.FetchIncidentDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("incident %s details: %w", id, err)
	}
	if err := m.store.Upsert(&cad.SyncResponse{
		Incidents: []cad.Incident{details.Incident},
		Resources: details.Resources,
		Officers:  details.Officers,
	}, false); err != nil {
		return nil, err
	}
	return details, nil
}

// ResourceDetails fetches a resource with its officers and current incident
// and merges them into the store.
func (m *Manager) ResourceDetails(ctx context.Context, callsign string) (*cad.ResourceDetails, error) {
	details, err := m.api.FetchResourceDetails(ctx, callsign)
	if err != nil {
		return nil, fmt.Errorf("resource %s details: %w", callsign, err)
	}
	resp := &cad.SyncResponse{
		Resources: []cad.Resource{details.Resource},
		Officers:  details.Officers,
	}
	if details.Incident != nil {
		resp.Incidents = []cad.Incident{*details.Incident}
	}
	if err := m.store.Upsert(resp, false); err != nil {
		return nil, err
	}
	return details, nil
}

// RefreshManifest pulls lookup changes since the last refresh.
func (m *Manager) RefreshManifest(ctx context.Context, collections ...string) (int, error) {
	return m.manifest.Refresh(ctx, m.api, collections)
}

// ClearSession discards all session state: store, officer cache, booking,
// recent callsigns, reminders, manifest and the last synced box. It does not
// contact the dispatch service and is safe to call repeatedly.
func (m *Manager) ClearSession() {
	m.mu.Lock()
	m.officer = nil
	m.mu.Unlock()

	m.bookon.Reset()
	m.reminders.CancelAll()
	m.manifest.Reset()
	m.syncer.Reset()
	m.store.Reset()
	m.log.Info("session cleared")
}
