package cad

import "strings"

// ResourceStatus is the server-defined duty status of a resource.
type ResourceStatus string

const (
	StatusOffDuty     ResourceStatus = "Off Duty"
	StatusOnAir       ResourceStatus = "On Air"
	StatusMealBreak   ResourceStatus = "Meal Break"
	StatusAtStation   ResourceStatus = "At Station"
	StatusUnavailable ResourceStatus = "Unavailable"
	StatusOnCall      ResourceStatus = "On Call"

	StatusProceeding  ResourceStatus = "Proceeding"
	StatusAtIncident  ResourceStatus = "At Incident"
	StatusTrafficStop ResourceStatus = "Traffic Stop"
	StatusCourt       ResourceStatus = "Court"

	StatusDuress ResourceStatus = "Duress"

	// StatusFinalise closes the current incident. It is never stored.
	StatusFinalise ResourceStatus = "Finalise"
)

// StatusClass groups statuses by how they interact with incidents.
type StatusClass int

const (
	ClassUnknown StatusClass = iota
	ClassGeneral
	ClassIncident
	ClassEmergency
	ClassFinalise
)

var statusClasses = map[ResourceStatus]StatusClass{
	StatusOffDuty:     ClassGeneral,
	StatusOnAir:       ClassGeneral,
	StatusMealBreak:   ClassGeneral,
	StatusAtStation:   ClassGeneral,
	StatusUnavailable: ClassGeneral,
	StatusOnCall:      ClassGeneral,
	StatusProceeding:  ClassIncident,
	StatusAtIncident:  ClassIncident,
	StatusTrafficStop: ClassIncident,
	StatusCourt:       ClassIncident,
	StatusDuress:      ClassEmergency,
	StatusFinalise:    ClassFinalise,
}

// GeneralStatuses lists the non-incident statuses in menu order.
var GeneralStatuses = []ResourceStatus{
	StatusOnAir, StatusMealBreak, StatusAtStation, StatusOnCall, StatusUnavailable, StatusOffDuty,
}

// IncidentStatusesForResource lists the incident-bound statuses in menu order.
var IncidentStatusesForResource = []ResourceStatus{
	StatusProceeding, StatusAtIncident, StatusTrafficStop, StatusCourt,
}

// Class returns the behavioural class of the status.
func (s ResourceStatus) Class() StatusClass {
	return statusClasses[s]
}

// Valid reports whether s is one of the known statuses.
func (s ResourceStatus) Valid() bool {
	return s.Class() != ClassUnknown
}

// IsStorable reports whether s may be persisted on a resource.
func (s ResourceStatus) IsStorable() bool {
	c := s.Class()
	return c != ClassUnknown && c != ClassFinalise
}

// RequiresIncident reports whether s only makes sense with a current incident.
func (s ResourceStatus) RequiresIncident() bool {
	return s.Class() == ClassIncident
}

// ParseResourceStatus matches a status case-insensitively, ignoring spaces,
// dashes and underscores ("on-air", "OnAir" and "on air" all match).
func ParseResourceStatus(value string) (ResourceStatus, bool) {
	want := normalizeStatus(value)
	if want == "" {
		return "", false
	}
	for s := range statusClasses {
		if normalizeStatus(string(s)) == want {
			return s, true
		}
	}
	return "", false
}

func normalizeStatus(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(value)))
}
