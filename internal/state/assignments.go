package state

import (
	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
)

// AssignIncident adds an existing incident to a resource's assignments if it
// is not already there, makes it current when the resource has none, and
// moves the resource to the most-recently-assigned position for the incident.
// It reports false when either side is missing from the store.
func (tx *Tx) AssignIncident(incidentID, callsign string) bool {
	tx.mustWrite()
	if _, ok := tx.s.incidents[incidentID]; !ok {
		return false
	}
	r, ok := tx.s.resources[callsign]
	if !ok {
		return false
	}
	if !r.IsAssigned(incidentID) {
		r.AssignedIncidents = append(append([]string(nil), r.AssignedIncidents...), incidentID)
	}
	if r.CurrentIncident == nil {
		id := incidentID
		r.CurrentIncident = &id
	}
	tx.s.resources[callsign] = r
	tx.s.byIncident[incidentID] = append(without(tx.s.byIncident[incidentID], callsign), callsign)
	return true
}

// ClearIncident removes an incident from a resource's assignments and clears
// it as current incident if it was.
func (tx *Tx) ClearIncident(incidentID, callsign string) bool {
	tx.mustWrite()
	r, ok := tx.s.resources[callsign]
	if !ok || !r.IsAssigned(incidentID) {
		return false
	}
	r.AssignedIncidents = without(r.AssignedIncidents, incidentID)
	if r.CurrentIncidentID() == incidentID {
		r.CurrentIncident = nil
	}
	tx.s.resources[callsign] = r
	tx.unindex(incidentID, callsign)
	return true
}

// FinalizeIncident clears the incident from every assigned resource and then
// removes it from the store.
func (tx *Tx) FinalizeIncident(incidentID string) bool {
	tx.mustWrite()
	for _, cs := range append([]string(nil), tx.s.byIncident[incidentID]...) {
		tx.ClearIncident(incidentID, cs)
	}
	removed := tx.RemoveIncident(incidentID)
	tx.Emit(events.Event{Kind: events.SyncChanged})
	return removed
}

// IncidentInDuress reports whether any resource assigned to the incident is
// currently in duress.
func (tx *Tx) IncidentInDuress(incidentID string) bool {
	for _, cs := range tx.s.byIncident[incidentID] {
		if r, ok := tx.s.resources[cs]; ok && r.Status == cad.StatusDuress {
			return true
		}
	}
	return false
}

// Tracker maintains the incident to resource assignment relation.
type Tracker struct {
	store *Store
}

// NewTracker returns a tracker operating on store.
func NewTracker(store *Store) *Tracker {
	return &Tracker{store: store}
}

// Assign assigns an incident to a resource. Repeated calls are no-ops apart
// from repositioning.
func (t *Tracker) Assign(incidentID, callsign string) bool {
	var ok bool
	_ = t.store.Update(func(tx *Tx) error {
		if ok = tx.AssignIncident(incidentID, callsign); ok {
			tx.Emit(events.Event{Kind: events.CallsignChanged, Callsign: callsign})
		}
		return nil
	})
	return ok
}

// Clear removes an incident from a resource.
func (t *Tracker) Clear(incidentID, callsign string) bool {
	var ok bool
	_ = t.store.Update(func(tx *Tx) error {
		if ok = tx.ClearIncident(incidentID, callsign); ok {
			tx.Emit(events.Event{Kind: events.CallsignChanged, Callsign: callsign})
		}
		return nil
	})
	return ok
}

// Finalize clears an incident from all of its resources and removes it, as one
// atomic update.
func (t *Tracker) Finalize(incidentID string) bool {
	var ok bool
	_ = t.store.Update(func(tx *Tx) error {
		ok = tx.FinalizeIncident(incidentID)
		return nil
	})
	return ok
}

// InDuress reports whether any resource on the incident is in duress.
func (t *Tracker) InDuress(incidentID string) bool {
	var duress bool
	t.store.View(func(tx *Tx) { duress = tx.IncidentInDuress(incidentID) })
	return duress
}
