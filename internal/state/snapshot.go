package state

import (
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
)

// Snapshot is an immutable copy of the store for presentation code.
type Snapshot struct {
	Incidents  []cad.Incident
	Resources  []cad.Resource
	Patrols    []cad.Patrol
	Broadcasts []cad.Broadcast
	Officers   map[string]cad.Officer

	// ResourcesByIncident maps incident IDs to assigned callsigns in
	// assignment order.
	ResourcesByIncident map[string][]string

	LastSyncTime        time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the dispatch API has failed several syncs in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Resource finds a resource by callsign.
func (s Snapshot) Resource(callsign string) (cad.Resource, bool) {
	i := s.resourceIndex(callsign)
	if i < 0 {
		return cad.Resource{}, false
	}
	return s.Resources[i], true
}

// Incident finds an incident by ID.
func (s Snapshot) Incident(id string) (cad.Incident, bool) {
	for _, inc := range s.Incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return cad.Incident{}, false
}

// ResourcesForIncident returns the resources assigned to an incident.
func (s Snapshot) ResourcesForIncident(id string) []cad.Resource {
	callsigns := s.ResourcesByIncident[id]
	out := make([]cad.Resource, 0, len(callsigns))
	for _, cs := range callsigns {
		if r, ok := s.Resource(cs); ok {
			out = append(out, r)
		}
	}
	return out
}

// IncidentInDuress reports whether any resource on the incident is in duress.
func (s Snapshot) IncidentInDuress(id string) bool {
	for _, r := range s.ResourcesForIncident(id) {
		if r.Status == cad.StatusDuress {
			return true
		}
	}
	return false
}

// resourceIndex relies on Resources being sorted by callsign.
func (s Snapshot) resourceIndex(callsign string) int {
	lo, hi := 0, len(s.Resources)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.Resources[mid].Callsign < callsign {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s.Resources) && s.Resources[lo].Callsign == callsign {
		return lo
	}
	return -1
}
