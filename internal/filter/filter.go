// Package filter builds the sectioned task lists and map annotations shown to
// the operator.
package filter

import (
	"strings"
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/state"
)

// Kind is an entity kind that can be listed.
type Kind int

const (
	KindIncident Kind = iota
	KindPatrol
	KindBroadcast
	KindResource
)

// Kinds lists the kinds in tab order.
var Kinds = []Kind{KindIncident, KindPatrol, KindBroadcast, KindResource}

func (k Kind) String() string {
	switch k {
	case KindIncident:
		return "Incidents"
	case KindPatrol:
		return "Patrols"
	case KindBroadcast:
		return "Broadcasts"
	case KindResource:
		return "Resources"
	default:
		return "Unknown"
	}
}

// ParseKind accepts the kind name in singular or plural, ignoring case.
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for _, k := range Kinds {
		if strings.TrimSuffix(strings.ToLower(k.String()), "s") == s {
			return k, true
		}
	}
	return KindIncident, false
}

// Tasking limits incidents and resources by whether they are tasked.
type Tasking int

const (
	TaskingAll Tasking = iota
	TaskingTasked
	TaskingUntasked
)

func (t Tasking) String() string {
	switch t {
	case TaskingTasked:
		return "tasked"
	case TaskingUntasked:
		return "untasked"
	default:
		return "all"
	}
}

// Next cycles all, tasked, untasked.
func (t Tasking) Next() Tasking {
	return (t + 1) % 3
}

// ParseTasking parses the String form.
func ParseTasking(s string) (Tasking, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return TaskingAll, true
	case "tasked":
		return TaskingTasked, true
	case "untasked":
		return TaskingUntasked, true
	}
	return TaskingAll, false
}

// Filter is the operator's list and map configuration.
type Filter struct {
	Selected Kind

	ShowIncidents  bool
	ShowPatrols    bool
	ShowBroadcasts bool
	ShowResources  bool

	// Grades limits incidents to these priorities. Empty allows all.
	Grades []cad.Grade

	ShowResultsOutsidePatrolArea bool
	Tasking                      Tasking
	Search                       string
	DuressFirst                  bool
}

// Default returns the filter used before the operator changes anything.
func Default() Filter {
	return Filter{
		Selected:       KindIncident,
		ShowIncidents:  true,
		ShowPatrols:    true,
		ShowBroadcasts: true,
		ShowResources:  true,
		DuressFirst:    true,
	}
}

func (f Filter) kindShown(k Kind) bool {
	if k == f.Selected {
		return true
	}
	switch k {
	case KindIncident:
		return f.ShowIncidents
	case KindPatrol:
		return f.ShowPatrols
	case KindBroadcast:
		return f.ShowBroadcasts
	case KindResource:
		return f.ShowResources
	}
	return false
}

func (f Filter) gradeAllowed(g cad.Grade) bool {
	if len(f.Grades) == 0 {
		return true
	}
	for _, allowed := range f.Grades {
		if strings.EqualFold(string(allowed), string(g)) {
			return true
		}
	}
	return false
}

func (f Filter) taskingAllowed(tasked bool) bool {
	switch f.Tasking {
	case TaskingTasked:
		return tasked
	case TaskingUntasked:
		return !tasked
	default:
		return true
	}
}

// Item is one listed entity, flattened for rendering.
type Item struct {
	Kind        Kind
	ID          string
	Title       string
	Subtitle    string
	Status      string
	Grade       cad.Grade
	PatrolGroup string
	Suburb      string
	Duress      bool
	Tasked      bool
	Time        time.Time
	Location    *cad.Coordinate

	search []string
}

// Matches reports whether any searchable field starts with query, ignoring
// case. An empty query matches everything.
func (it Item) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range it.search {
		if strings.HasPrefix(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Engine filters a store snapshot for one patrol group.
type Engine struct {
	PatrolGroup string
}

// NewEngine returns an engine for the operator's patrol group. A blank group
// puts every entity in one "All" section.
func NewEngine(patrolGroup string) *Engine {
	return &Engine{PatrolGroup: strings.TrimSpace(patrolGroup)}
}

func (e *Engine) inArea(group string) bool {
	if e.PatrolGroup == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(group), e.PatrolGroup)
}

// items returns the entities of kind k that pass the grade, patrol area and
// tasking predicates. Search is not applied.
func (e *Engine) items(snap state.Snapshot, k Kind, f Filter) []Item {
	var out []Item
	keep := func(it Item) {
		if !f.ShowResultsOutsidePatrolArea && !e.inArea(it.PatrolGroup) {
			return
		}
		out = append(out, it)
	}

	switch k {
	case KindIncident:
		for _, inc := range snap.Incidents {
			it := incidentItem(snap, inc)
			if !f.gradeAllowed(inc.Grade) || !f.taskingAllowed(it.Tasked) {
				continue
			}
			keep(it)
		}
	case KindResource:
		for _, r := range snap.Resources {
			it := resourceItem(r)
			// Duress bypasses the tasking filter so it can never be hidden.
			if !it.Duress && !f.taskingAllowed(it.Tasked) {
				continue
			}
			keep(it)
		}
	case KindPatrol:
		for _, p := range snap.Patrols {
			keep(patrolItem(p))
		}
	case KindBroadcast:
		for _, b := range snap.Broadcasts {
			keep(broadcastItem(b))
		}
	}
	return out
}

func incidentItem(snap state.Snapshot, inc cad.Incident) Item {
	it := Item{
		Kind:        KindIncident,
		ID:          inc.ID,
		Title:       inc.Title(),
		Subtitle:    joinNonEmpty(" · ", inc.ID, inc.Suburb()),
		Status:      string(inc.Status),
		Grade:       inc.Grade,
		PatrolGroup: inc.PatrolGroup,
		Suburb:      inc.Suburb(),
		Duress:      snap.IncidentInDuress(inc.ID),
		Tasked:      len(snap.ResourcesByIncident[inc.ID]) > 0,
		Time:        inc.CreatedAt,
		Location:    coordinate(inc.Location),
		search:      []string{inc.Type, inc.ID, inc.SecondaryCode, inc.Suburb()},
	}
	return it
}

func resourceItem(r cad.Resource) Item {
	return Item{
		Kind:        KindResource,
		ID:          r.Callsign,
		Title:       r.Callsign,
		Subtitle:    joinNonEmpty(" · ", string(r.Status), string(r.Type), r.CurrentIncidentID()),
		Status:      string(r.Status),
		PatrolGroup: r.PatrolGroup,
		Suburb:      r.Suburb(),
		Duress:      r.Status == cad.StatusDuress,
		Tasked:      r.Tasked(),
		Location:    coordinate(r.Location),
		search:      []string{r.Callsign, string(r.Type), r.PatrolGroup, r.Suburb()},
	}
}

func patrolItem(p cad.Patrol) Item {
	return Item{
		Kind:        KindPatrol,
		ID:          p.ID,
		Title:       p.Type,
		Subtitle:    joinNonEmpty(" · ", p.ID, p.Suburb()),
		Status:      p.Status,
		PatrolGroup: p.PatrolGroup,
		Suburb:      p.Suburb(),
		Time:        p.CreatedAt,
		Location:    coordinate(p.Location),
		search:      []string{p.Type, p.ID, p.Suburb()},
	}
}

func broadcastItem(b cad.Broadcast) Item {
	return Item{
		Kind:        KindBroadcast,
		ID:          b.ID,
		Title:       b.Title,
		Subtitle:    joinNonEmpty(" · ", b.Category, b.Suburb()),
		Status:      b.Category,
		PatrolGroup: b.PatrolGroup,
		Suburb:      b.Suburb(),
		Time:        b.CreatedAt,
		Location:    coordinate(b.Location),
		search:      []string{b.Title, b.Category, b.ID, b.Suburb()},
	}
}

func coordinate(loc *cad.Location) *cad.Coordinate {
	if loc == nil {
		return nil
	}
	c := loc.Coordinate()
	return &c
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
