package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
)

// Store is the canonical in-memory copy of dispatch data.
type Store struct {
	mu  sync.RWMutex
	bus *events.Bus

	incidents  map[string]cad.Incident
	resources  map[string]cad.Resource
	patrols    map[string]cad.Patrol
	broadcasts map[string]cad.Broadcast
	officers   map[string]cad.Officer

	// byIncident lists assigned callsigns per incident in assignment order,
	// most recently assigned last.
	byIncident map[string][]string

	lastSync            time.Time
	lastError           error
	consecutiveFailures int
}

// New returns an empty store publishing change events on bus. A nil bus
// disables notifications.
func New(bus *events.Bus) *Store {
	s := &Store{bus: bus}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.incidents = make(map[string]cad.Incident)
	s.resources = make(map[string]cad.Resource)
	s.patrols = make(map[string]cad.Patrol)
	s.broadcasts = make(map[string]cad.Broadcast)
	s.officers = make(map[string]cad.Officer)
	s.byIncident = make(map[string][]string)
	s.lastSync = time.Time{}
	s.lastError = nil
	s.consecutiveFailures = 0
}

// Update runs fn with exclusive access to the store. Every mutation happens
// inside an Update; events emitted through the Tx are published once the lock
// is released. Changes made before fn returns an error are kept, so fn should
// validate before it mutates.
func (s *Store) Update(fn func(tx *Tx) error) error {
	tx := &Tx{s: s}
	err := s.locked(tx, fn)
	s.publish(tx.events)
	return err
}

func (s *Store) locked(tx *Tx, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { tx.done = true }()
	return fn(tx)
}

// View runs fn with shared read access. Mutating the Tx inside View panics.
func (s *Store) View(fn func(tx *Tx)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx := &Tx{s: s, readOnly: true}
	fn(tx)
	tx.done = true
}

func (s *Store) publish(evts []events.Event) {
	if s.bus == nil {
		return
	}
	seen := make(map[events.Event]struct{}, len(evts))
	for _, evt := range evts {
		if _, dup := seen[evt]; dup {
			continue
		}
		seen[evt] = struct{}{}
		s.bus.Publish(evt)
	}
}

// Upsert merges a sync response by identifier. With full set, entities absent
// from resp are removed as well. Assignment references to incidents that are
// no longer present are pruned in the same update. A full response older than
// the last applied sync is discarded with cad.ErrStaleSync.
func (s *Store) Upsert(resp *cad.SyncResponse, full bool) error {
	if resp == nil {
		return nil
	}
	return s.Update(func(tx *Tx) error {
		if full && !s.lastSync.IsZero() && resp.Timestamp.Before(s.lastSync) {
			return fmt.Errorf("%w: response %s older than %s", cad.ErrStaleSync,
				resp.Timestamp.Format(time.RFC3339), s.lastSync.Format(time.RFC3339))
		}

		for _, inc := range resp.Incidents {
			tx.PutIncident(inc)
		}
		for _, p := range resp.Patrols {
			tx.PutPatrol(p)
		}
		for _, b := range resp.Broadcasts {
			tx.PutBroadcast(b)
		}
		for _, o := range resp.Officers {
			tx.PutOfficer(o)
		}
		for _, r := range resp.Resources {
			tx.PutResource(r)
		}

		if full {
			s.pruneAbsent(tx, resp)
		}
		tx.pruneDangling()

		if resp.Timestamp.After(s.lastSync) {
			s.lastSync = resp.Timestamp
		}
		s.lastError = nil
		s.consecutiveFailures = 0
		tx.Emit(events.Event{Kind: events.SyncChanged})
		return nil
	})
}

func (s *Store) pruneAbsent(tx *Tx, resp *cad.SyncResponse) {
	keepIncidents := make(map[string]struct{}, len(resp.Incidents))
	for _, inc := range resp.Incidents {
		keepIncidents[inc.ID] = struct{}{}
	}
	for id := range s.incidents {
		if _, ok := keepIncidents[id]; !ok {
			tx.RemoveIncident(id)
		}
	}

	keepResources := make(map[string]struct{}, len(resp.Resources))
	for _, r := range resp.Resources {
		keepResources[r.Callsign] = struct{}{}
	}
	for cs := range s.resources {
		if _, ok := keepResources[cs]; !ok {
			tx.removeResource(cs)
		}
	}

	keepPatrols := make(map[string]struct{}, len(resp.Patrols))
	for _, p := range resp.Patrols {
		keepPatrols[p.ID] = struct{}{}
	}
	for id := range s.patrols {
		if _, ok := keepPatrols[id]; !ok {
			delete(s.patrols, id)
		}
	}

	keepBroadcasts := make(map[string]struct{}, len(resp.Broadcasts))
	for _, b := range resp.Broadcasts {
		keepBroadcasts[b.ID] = struct{}{}
	}
	for id := range s.broadcasts {
		if _, ok := keepBroadcasts[id]; !ok {
			delete(s.broadcasts, id)
		}
	}
}

// Remove deletes an incident and strips it from every resource.
func (s *Store) Remove(incidentID string) bool {
	var removed bool
	_ = s.Update(func(tx *Tx) error {
		removed = tx.RemoveIncident(incidentID)
		if removed {
			tx.Emit(events.Event{Kind: events.SyncChanged})
		}
		return nil
	})
	return removed
}

// RecordFailure notes a failed sync. Existing data and the last sync time are
// kept so the UI keeps showing the last known good state.
func (s *Store) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.consecutiveFailures++
}

// Reset discards all data. Calling it on an empty store is a no-op apart from
// the change notification.
func (s *Store) Reset() {
	_ = s.Update(func(tx *Tx) error {
		tx.mustWrite()
		s.reset()
		tx.Emit(events.Event{Kind: events.SyncChanged})
		return nil
	})
}

// Incident returns a copy of the incident with the given ID.
func (s *Store) Incident(id string) (cad.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return cad.Incident{}, false
	}
	return inc.Clone(), true
}

// Resource returns a copy of the resource with the given callsign.
func (s *Store) Resource(callsign string) (cad.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[callsign]
	if !ok {
		return cad.Resource{}, false
	}
	return r.Clone(), true
}

// Officer returns the officer with the given ID.
func (s *Store) Officer(id string) (cad.Officer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.officers[id]
	return o, ok
}

// ResourcesForIncident returns the resources assigned to an incident in
// assignment order.
func (s *Store) ResourcesForIncident(incidentID string) []cad.Resource {
	var out []cad.Resource
	s.View(func(tx *Tx) { out = tx.ResourcesForIncident(incidentID) })
	return out
}

// IncidentForResource returns the current incident of a resource.
func (s *Store) IncidentForResource(callsign string) (cad.Incident, bool) {
	var (
		inc cad.Incident
		ok  bool
	)
	s.View(func(tx *Tx) { inc, ok = tx.IncidentForResource(callsign) })
	return inc, ok
}

// LastSyncTime returns the server timestamp of the newest applied sync.
func (s *Store) LastSyncTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// Incidents returns all incidents ordered by ID.
func (s *Store) Incidents() []cad.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIncidents(s.incidents)
}

// Resources returns all resources ordered by callsign.
func (s *Store) Resources() []cad.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedResources(s.resources)
}

// Patrols returns all patrols ordered by ID.
func (s *Store) Patrols() []cad.Patrol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPatrols(s.patrols)
}

// Broadcasts returns all broadcasts ordered by ID.
func (s *Store) Broadcasts() []cad.Broadcast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedBroadcasts(s.broadcasts)
}

// Snapshot returns a consistent copy of everything in the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Incidents:           sortedIncidents(s.incidents),
		Resources:           sortedResources(s.resources),
		Patrols:             sortedPatrols(s.patrols),
		Broadcasts:          sortedBroadcasts(s.broadcasts),
		Officers:            make(map[string]cad.Officer, len(s.officers)),
		ResourcesByIncident: make(map[string][]string, len(s.byIncident)),
		LastSyncTime:        s.lastSync,
		ConsecutiveFailures: s.consecutiveFailures,
	}
	for id, o := range s.officers {
		snap.Officers[id] = o
	}
	for id, callsigns := range s.byIncident {
		snap.ResourcesByIncident[id] = append([]string(nil), callsigns...)
	}
	if s.lastError != nil {
		snap.LastError = fmt.Errorf("%w", s.lastError)
	}
	return snap
}

func sortedIncidents(m map[string]cad.Incident) []cad.Incident {
	out := make([]cad.Incident, 0, len(m))
	for _, v := range m {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedResources(m map[string]cad.Resource) []cad.Resource {
	out := make([]cad.Resource, 0, len(m))
	for _, v := range m {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Callsign < out[j].Callsign })
	return out
}

func sortedPatrols(m map[string]cad.Patrol) []cad.Patrol {
	out := make([]cad.Patrol, 0, len(m))
	for _, v := range m {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedBroadcasts(m map[string]cad.Broadcast) []cad.Broadcast {
	out := make([]cad.Broadcast, 0, len(m))
	for _, v := range m {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
