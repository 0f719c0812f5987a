package cad

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IncidentStatus is the server-defined incident lifecycle state.
type IncidentStatus string

const (
	IncidentCurrent     IncidentStatus = "Current"
	IncidentAssigned    IncidentStatus = "Assigned"
	IncidentResourced   IncidentStatus = "Resourced"
	IncidentUnresourced IncidentStatus = "Unresourced"
)

// IncidentStatuses lists incident statuses in display order.
var IncidentStatuses = []IncidentStatus{IncidentCurrent, IncidentAssigned, IncidentResourced, IncidentUnresourced}

// Grade is the incident priority. P1 is the most urgent.
type Grade string

const (
	GradeP1 Grade = "P1"
	GradeP2 Grade = "P2"
	GradeP3 Grade = "P3"
	GradeP4 Grade = "P4"
)

// Rank orders grades; unknown grades sort last.
func (g Grade) Rank() int {
	switch g {
	case GradeP1:
		return 1
	case GradeP2:
		return 2
	case GradeP3:
		return 3
	case GradeP4:
		return 4
	default:
		return 99
	}
}

// UnitType describes the kind of field resource.
type UnitType string

const (
	UnitVehicle    UnitType = "Vehicle"
	UnitMotorcycle UnitType = "Motorcycle"
	UnitFoot       UnitType = "Foot"
	UnitDog        UnitType = "Dog"
	UnitAir        UnitType = "Air"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the coordinate as "lat,lon" for query parameters.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// BoundingBox is a map region bounded by its north-west and south-east corners.
type BoundingBox struct {
	NorthWest Coordinate `json:"northWest"`
	SouthEast Coordinate `json:"southEast"`
}

// Contains reports whether other lies entirely inside b.
func (b BoundingBox) Contains(other BoundingBox) bool {
	return other.NorthWest.Latitude <= b.NorthWest.Latitude &&
		other.SouthEast.Latitude >= b.SouthEast.Latitude &&
		other.NorthWest.Longitude >= b.NorthWest.Longitude &&
		other.SouthEast.Longitude <= b.SouthEast.Longitude
}

// Valid reports whether the corners are ordered north-west to south-east.
func (b BoundingBox) Valid() bool {
	return b.NorthWest.Latitude >= b.SouthEast.Latitude && b.NorthWest.Longitude <= b.SouthEast.Longitude
}

// Location is a structured address.
type Location struct {
	FullAddress string  `json:"fullAddress"`
	Street      string  `json:"street"`
	Suburb      string  `json:"suburb"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Coordinate returns the location's point.
func (l Location) Coordinate() Coordinate {
	return Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Incident is a dispatch job.
type Incident struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	SecondaryCode string         `json:"secondaryCode"`
	Status        IncidentStatus `json:"status"`
	Grade         Grade          `json:"grade"`
	Location      *Location      `json:"location,omitempty"`
	PatrolGroup   string         `json:"patrolGroup"`
	Details       string         `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Suburb returns the incident suburb or "".
func (i Incident) Suburb() string {
	if i.Location == nil {
		return ""
	}
	return i.Location.Suburb
}

// Title is the short display title, e.g. "P1 Assault".
func (i Incident) Title() string {
	return strings.TrimSpace(string(i.Grade) + " " + i.Type)
}

// Clone returns a deep copy.
func (i Incident) Clone() Incident {
	if i.Location != nil {
		loc := *i.Location
		i.Location = &loc
	}
	return i
}

// Equipment is an item carried by a resource.
type Equipment struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// Resource is a field unit identified by its callsign.
type Resource struct {
	Callsign          string         `json:"callsign"`
	Status            ResourceStatus `json:"status"`
	Type              UnitType       `json:"type"`
	PatrolGroup       string         `json:"patrolGroup"`
	CurrentIncident   *string        `json:"currentIncident,omitempty"`
	AssignedIncidents []string       `json:"assignedIncidents"`
	OfficerIDs        []string       `json:"officerIds"`
	Equipment         []Equipment    `json:"equipment"`
	Location          *Location      `json:"location,omitempty"`
	ShiftStart        *time.Time     `json:"shiftStart,omitempty"`
	ShiftEnd          *time.Time     `json:"shiftEnd,omitempty"`
}

// Suburb returns the resource's last known suburb or "".
func (r Resource) Suburb() string {
	if r.Location == nil {
		return ""
	}
	return r.Location.Suburb
}

// CurrentIncidentID returns the current incident ID, or "" when there is none.
func (r Resource) CurrentIncidentID() string {
	if r.CurrentIncident == nil {
		return ""
	}
	return *r.CurrentIncident
}

// IsAssigned reports whether incidentID is among the assigned incidents.
func (r Resource) IsAssigned(incidentID string) bool {
	for _, id := range r.AssignedIncidents {
		if id == incidentID {
			return true
		}
	}
	return false
}

// Tasked reports whether the resource is currently working an incident.
func (r Resource) Tasked() bool {
	return r.CurrentIncident != nil
}

// Clone returns a deep copy.
func (r Resource) Clone() Resource {
	if r.CurrentIncident != nil {
		id := *r.CurrentIncident
		r.CurrentIncident = &id
	}
	r.AssignedIncidents = cloneStrings(r.AssignedIncidents)
	r.OfficerIDs = cloneStrings(r.OfficerIDs)
	if r.Equipment != nil {
		r.Equipment = append([]Equipment(nil), r.Equipment...)
	}
	if r.Location != nil {
		loc := *r.Location
		r.Location = &loc
	}
	if r.ShiftStart != nil {
		t := *r.ShiftStart
		r.ShiftStart = &t
	}
	if r.ShiftEnd != nil {
		t := *r.ShiftEnd
		r.ShiftEnd = &t
	}
	return r
}

// Patrol is a patrol task.
type Patrol struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Location    *Location `json:"location,omitempty"`
	PatrolGroup string    `json:"patrolGroup"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Suburb returns the patrol suburb or "".
func (p Patrol) Suburb() string {
	if p.Location == nil {
		return ""
	}
	return p.Location.Suburb
}

// Clone returns a deep copy.
func (p Patrol) Clone() Patrol {
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	return p
}

// Broadcast is an area-wide alert.
type Broadcast struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Location    *Location `json:"location,omitempty"`
	PatrolGroup string    `json:"patrolGroup"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Suburb returns the broadcast suburb or "".
func (b Broadcast) Suburb() string {
	if b.Location == nil {
		return ""
	}
	return b.Location.Suburb
}

// Clone returns a deep copy.
func (b Broadcast) Clone() Broadcast {
	if b.Location != nil {
		loc := *b.Location
		b.Location = &loc
	}
	return b
}

// Contact holds officer contact details.
type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	RadioID string `json:"radioId,omitempty"`
}

// Officer is a sworn member who can be booked on to a resource.
type Officer struct {
	ID             string  `json:"id"`
	GivenName      string  `json:"givenName"`
	FamilyName     string  `json:"familyName"`
	Rank           string  `json:"rank"`
	EmployeeNumber string  `json:"employeeNumber"`
	PatrolGroup    string  `json:"patrolGroup"`
	Contact        Contact `json:"contact"`
}

// DisplayName renders "Rank Given Family" without empty parts.
func (o Officer) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{o.Rank, o.GivenName, o.FamilyName} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// BookOnRequest starts a shift under a callsign.
type BookOnRequest struct {
	RequestID  string      `json:"requestId"`
	Callsign   string      `json:"callsign"`
	OfficerIDs []string    `json:"officerIds"`
	Equipment  []Equipment `json:"equipment"`
	ShiftStart time.Time   `json:"shiftStart"`
	ShiftEnd   *time.Time  `json:"shiftEnd,omitempty"`
	Remarks    string      `json:"remarks,omitempty"`
}

// HasOfficer reports whether officerID is on the roster.
func (r BookOnRequest) HasOfficer(officerID string) bool {
	for _, id := range r.OfficerIDs {
		if id == officerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r BookOnRequest) Clone() BookOnRequest {
	r.OfficerIDs = cloneStrings(r.OfficerIDs)
	if r.Equipment != nil {
		r.Equipment = append([]Equipment(nil), r.Equipment...)
	}
	if r.ShiftEnd != nil {
		t := *r.ShiftEnd
		r.ShiftEnd = &t
	}
	return r
}

// BookOffRequest ends the shift for a callsign.
type BookOffRequest struct {
	Callsign string `json:"callsign"`
}

// StatusUpdateRequest is the body of a resource status change.
type StatusUpdateRequest struct {
	Status           ResourceStatus `json:"status"`
	IncidentID       string         `json:"incidentId,omitempty"`
	Comments         string         `json:"comments,omitempty"`
	LocationComments string         `json:"locationComments,omitempty"`
}

// Ack is the generic server acknowledgement.
type Ack struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// SyncResponse is a snapshot bundle merged into the store as one unit.
type SyncResponse struct {
	Incidents  []Incident  `json:"incidents"`
	Resources  []Resource  `json:"resources"`
	Patrols    []Patrol    `json:"patrols"`
	Broadcasts []Broadcast `json:"broadcasts"`
	Officers   []Officer   `json:"officers"`
	Timestamp  time.Time   `json:"timestamp"`
}

// SyncScopeKind selects what a sync fetches.
type SyncScopeKind int

const (
	ScopeFull SyncScopeKind = iota
	ScopePatrolGroup
	ScopeBoundingBox
)

// SyncScope describes one sync request.
type SyncScope struct {
	Kind        SyncScopeKind
	PatrolGroup string
	Box         BoundingBox
}

// FullScope returns the scope that fetches everything.
func FullScope() SyncScope { return SyncScope{Kind: ScopeFull} }

// PatrolGroupScope returns a scope limited to one patrol group.
func PatrolGroupScope(group string) SyncScope {
	return SyncScope{Kind: ScopePatrolGroup, PatrolGroup: group}
}

// BoundingBoxScope returns a scope limited to a map region.
func BoundingBoxScope(box BoundingBox) SyncScope {
	return SyncScope{Kind: ScopeBoundingBox, Box: box}
}

// Key identifies the scope for request coalescing.
func (s SyncScope) Key() string {
	switch s.Kind {
	case ScopePatrolGroup:
		return "group:" + strings.ToLower(strings.TrimSpace(s.PatrolGroup))
	case ScopeBoundingBox:
		return fmt.Sprintf("box:%s|%s", s.Box.NorthWest, s.Box.SouthEast)
	default:
		return "all"
	}
}

// IncidentDetails is the expanded view of a single incident.
type IncidentDetails struct {
	Incident  Incident   `json:"incident"`
	Resources []Resource `json:"resources"`
	Officers  []Officer  `json:"officers"`
	Narrative []string   `json:"narrative"`
}

// ResourceDetails is the expanded view of a single resource.
type ResourceDetails struct {
	Resource Resource  `json:"resource"`
	Officers []Officer `json:"officers"`
	Incident *Incident `json:"incident,omitempty"`
}

// ManifestItem is one entry in a server lookup collection.
type ManifestItem struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	Value      string `json:"value,omitempty"`
	Active     bool   `json:"active"`
}

// ManifestDelta is the set of manifest items changed since a timestamp.
type ManifestDelta struct {
	Items     []ManifestItem `json:"items"`
	Timestamp time.Time      `json:"timestamp"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
