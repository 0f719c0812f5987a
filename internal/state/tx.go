package state

import (
	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
)

// Tx is the handle passed to Update and View callbacks. It must not be used
// after the callback returns.
type Tx struct {
	s        *Store
	readOnly bool
	done     bool
	events   []events.Event
}

func (tx *Tx) mustWrite() {
	if tx.done {
		panic("state: Tx used after its callback returned")
	}
	if tx.readOnly {
		panic("state: mutation inside View")
	}
}

// Emit queues a change event for publication after the update commits.
func (tx *Tx) Emit(evt events.Event) {
	tx.mustWrite()
	tx.events = append(tx.events, evt)
}

// Incident returns a copy of the incident with the given ID.
func (tx *Tx) Incident(id string) (cad.Incident, bool) {
	inc, ok := tx.s.incidents[id]
	if !ok {
		return cad.Incident{}, false
	}
	return inc.Clone(), true
}

// Resource returns a copy of the resource with the given callsign.
func (tx *Tx) Resource(callsign string) (cad.Resource, bool) {
	r, ok := tx.s.resources[callsign]
	if !ok {
		return cad.Resource{}, false
	}
	return r.Clone(), true
}

// Officer returns the officer with the given ID.
func (tx *Tx) Officer(id string) (cad.Officer, bool) {
	o, ok := tx.s.officers[id]
	return o, ok
}

// PutIncident inserts or replaces an incident.
func (tx *Tx) PutIncident(inc cad.Incident) {
	tx.mustWrite()
	if inc.ID == "" {
		return
	}
	tx.s.incidents[inc.ID] = inc.Clone()
}

// PutPatrol inserts or replaces a patrol.
func (tx *Tx) PutPatrol(p cad.Patrol) {
	tx.mustWrite()
	if p.ID == "" {
		return
	}
	tx.s.patrols[p.ID] = p.Clone()
}

// PutBroadcast inserts or replaces a broadcast.
func (tx *Tx) PutBroadcast(b cad.Broadcast) {
	tx.mustWrite()
	if b.ID == "" {
		return
	}
	tx.s.broadcasts[b.ID] = b.Clone()
}

// PutOfficer inserts or replaces an officer.
func (tx *Tx) PutOfficer(o cad.Officer) {
	tx.mustWrite()
	if o.ID == "" {
		return
	}
	tx.s.officers[o.ID] = o
}

// PutResource inserts or replaces a resource. The assignment list is
// deduplicated, a current incident missing from it is appended, and a status
// outside the storable set is coerced (Finalise to On Air, unknown values to
// Unavailable).
func (tx *Tx) PutResource(r cad.Resource) {
	tx.mustWrite()
	if r.Callsign == "" {
		return
	}
	r = normalizeResource(r.Clone())
	var previous []string
	if old, ok := tx.s.resources[r.Callsign]; ok {
		previous = old.AssignedIncidents
	}
	tx.s.resources[r.Callsign] = r
	tx.reindex(r.Callsign, previous, r.AssignedIncidents)
}

// RemoveIncident deletes an incident and strips it from every resource that
// references it.
func (tx *Tx) RemoveIncident(id string) bool {
	tx.mustWrite()
	_, existed := tx.s.incidents[id]
	for _, cs := range append([]string(nil), tx.s.byIncident[id]...) {
		r, ok := tx.s.resources[cs]
		if !ok {
			continue
		}
		r.AssignedIncidents = without(r.AssignedIncidents, id)
		if r.CurrentIncidentID() == id {
			r.CurrentIncident = nil
		}
		tx.s.resources[cs] = r
	}
	delete(tx.s.byIncident, id)
	delete(tx.s.incidents, id)
	return existed
}

func (tx *Tx) removeResource(callsign string) {
	r, ok := tx.s.resources[callsign]
	if !ok {
		return
	}
	tx.reindex(callsign, r.AssignedIncidents, nil)
	delete(tx.s.resources, callsign)
}

// SetStatus stores a new status on a resource without touching assignments.
func (tx *Tx) SetStatus(callsign string, status cad.ResourceStatus) bool {
	tx.mustWrite()
	r, ok := tx.s.resources[callsign]
	if !ok || !status.IsStorable() {
		return false
	}
	r.Status = status
	tx.s.resources[callsign] = r
	return true
}

// ResourcesForIncident returns copies of the resources assigned to an incident
// in assignment order.
func (tx *Tx) ResourcesForIncident(id string) []cad.Resource {
	callsigns := tx.s.byIncident[id]
	out := make([]cad.Resource, 0, len(callsigns))
	for _, cs := range callsigns {
		if r, ok := tx.s.resources[cs]; ok {
			out = append(out, r.Clone())
		}
	}
	return out
}

// IncidentForResource returns the current incident of a resource.
func (tx *Tx) IncidentForResource(callsign string) (cad.Incident, bool) {
	r, ok := tx.s.resources[callsign]
	if !ok || r.CurrentIncident == nil {
		return cad.Incident{}, false
	}
	return tx.Incident(*r.CurrentIncident)
}

// pruneDangling drops assignment references to incidents not in the store.
func (tx *Tx) pruneDangling() {
	for id := range tx.s.byIncident {
		if _, ok := tx.s.incidents[id]; ok {
			continue
		}
		tx.RemoveIncident(id)
	}
}

// reindex updates byIncident for a callsign whose assignment list changed from
// before to after. Retained entries keep their position; new ones go last.
func (tx *Tx) reindex(callsign string, before, after []string) {
	keep := make(map[string]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	had := make(map[string]struct{}, len(before))
	for _, id := range before {
		had[id] = struct{}{}
		if _, ok := keep[id]; !ok {
			tx.unindex(id, callsign)
		}
	}
	for _, id := range after {
		if _, ok := had[id]; !ok {
			tx.s.byIncident[id] = append(without(tx.s.byIncident[id], callsign), callsign)
		}
	}
}

func (tx *Tx) unindex(incidentID, callsign string) {
	rest := without(tx.s.byIncident[incidentID], callsign)
	if len(rest) == 0 {
		delete(tx.s.byIncident, incidentID)
		return
	}
	tx.s.byIncident[incidentID] = rest
}

func normalizeResource(r cad.Resource) cad.Resource {
	seen := make(map[string]struct{}, len(r.AssignedIncidents))
	assigned := make([]string, 0, len(r.AssignedIncidents)+1)
	for _, id := range r.AssignedIncidents {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		assigned = append(assigned, id)
	}
	if r.CurrentIncident != nil {
		if *r.CurrentIncident == "" {
			r.CurrentIncident = nil
		} else if _, ok := seen[*r.CurrentIncident]; !ok {
			assigned = append(assigned, *r.CurrentIncident)
		}
	}
	r.AssignedIncidents = assigned

	switch {
	case r.Status == cad.StatusFinalise:
		r.Status = cad.StatusOnAir
	case !r.Status.IsStorable():
		r.Status = cad.StatusUnavailable
	}
	return r
}

func without(list []string, value string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
