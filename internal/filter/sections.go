package filter

import (
	"sort"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/state"
)

// Section titles used when no patrol group is configured or for entities
// outside it.
const (
	SectionAll   = "All"
	SectionOther = "Other"
)

// Resource bucket titles.
const (
	BucketDuress   = "Duress"
	BucketTasked   = "Tasked"
	BucketUntasked = "Untasked"
)

// Bucket is a titled group of items inside a section.
type Bucket struct {
	Title       string
	Collapsible bool
	Items       []Item
}

// Section is a top-level partition of the list.
type Section struct {
	Title   string
	Buckets []Bucket
}

// Len returns the number of items across all buckets.
func (s Section) Len() int {
	n := 0
	for _, b := range s.Buckets {
		n += len(b.Items)
	}
	return n
}

// Sections partitions the selected kind into the operator's patrol group and
// "Other", then into buckets. Empty buckets and sections are omitted, and the
// Other section only appears when results outside the patrol area are shown.
func (e *Engine) Sections(snap state.Snapshot, f Filter) []Section {
	var inArea, other []Item
	for _, it := range e.items(snap, f.Selected, f) {
		if !it.Matches(f.Search) {
			continue
		}
		if e.inArea(it.PatrolGroup) {
			inArea = append(inArea, it)
		} else {
			other = append(other, it)
		}
	}

	title := e.PatrolGroup
	if title == "" {
		title = SectionAll
	}
	var out []Section
	if s := e.section(title, f, inArea); len(s.Buckets) > 0 {
		out = append(out, s)
	}
	if f.ShowResultsOutsidePatrolArea {
		if s := e.section(SectionOther, f, other); len(s.Buckets) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) section(title string, f Filter, items []Item) Section {
	var buckets []Bucket
	switch f.Selected {
	case KindIncident:
		buckets = incidentBuckets(items, f.DuressFirst)
	case KindResource:
		buckets = resourceBuckets(items)
	default:
		buckets = statusBuckets(items)
	}
	return Section{Title: title, Buckets: nonEmpty(buckets)}
}

func incidentBuckets(items []Item, duressFirst bool) []Bucket {
	byStatus := make(map[string][]Item)
	for _, it := range items {
		byStatus[it.Status] = append(byStatus[it.Status], it)
	}

	var out []Bucket
	for _, st := range cad.IncidentStatuses {
		list := byStatus[string(st)]
		delete(byStatus, string(st))
		sortIncidents(list, duressFirst)
		out = append(out, Bucket{
			Title:       string(st),
			Collapsible: st != cad.IncidentCurrent,
			Items:       list,
		})
	}
	for _, title := range sortedKeys(byStatus) {
		list := byStatus[title]
		sortIncidents(list, duressFirst)
		if title == "" {
			title = "Unknown"
		}
		out = append(out, Bucket{Title: title, Collapsible: true, Items: list})
	}
	return out
}

func resourceBuckets(items []Item) []Bucket {
	var duress, tasked, untasked []Item
	for _, it := range items {
		switch {
		case it.Duress:
			duress = append(duress, it)
		case it.Tasked:
			tasked = append(tasked, it)
		default:
			untasked = append(untasked, it)
		}
	}
	for _, list := range [][]Item{duress, tasked, untasked} {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return []Bucket{
		{Title: BucketDuress, Items: duress},
		{Title: BucketTasked, Collapsible: true, Items: tasked},
		{Title: BucketUntasked, Collapsible: true, Items: untasked},
	}
}

// statusBuckets groups patrols by status and broadcasts by category, newest
// first within a bucket.
func statusBuckets(items []Item) []Bucket {
	byStatus := make(map[string][]Item)
	for _, it := range items {
		byStatus[it.Status] = append(byStatus[it.Status], it)
	}
	out := make([]Bucket, 0, len(byStatus))
	for _, title := range sortedKeys(byStatus) {
		list := byStatus[title]
		sort.SliceStable(list, func(i, j int) bool { return newer(list[i], list[j]) })
		if title == "" {
			title = "Unknown"
		}
		out = append(out, Bucket{Title: title, Collapsible: true, Items: list})
	}
	return out
}

// sortIncidents orders by duress (when requested), then grade, then newest.
func sortIncidents(list []Item, duressFirst bool) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if duressFirst && a.Duress != b.Duress {
			return a.Duress
		}
		if ra, rb := a.Grade.Rank(), b.Grade.Rank(); ra != rb {
			return ra < rb
		}
		return newer(a, b)
	})
}

func newer(a, b Item) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.After(b.Time)
	}
	return a.ID < b.ID
}

func nonEmpty(buckets []Bucket) []Bucket {
	out := buckets[:0]
	for _, b := range buckets {
		if len(b.Items) > 0 {
			out = append(out, b)
		}
	}
	return out
}

func sortedKeys(m map[string][]Item) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Annotation is one map marker.
type Annotation struct {
	Kind       Kind
	ID         string
	Title      string
	Coordinate cad.Coordinate
	Grade      cad.Grade
	Duress     bool
}

// Annotations returns markers for every located entity whose kind is shown
// or selected and that passes the grade, patrol area and tasking predicates.
// Search only narrows the list, not the map.
func (e *Engine) Annotations(snap state.Snapshot, f Filter) []Annotation {
	var out []Annotation
	for _, k := range Kinds {
		if !f.kindShown(k) {
			continue
		}
		for _, it := range e.items(snap, k, f) {
			if it.Location == nil {
				continue
			}
			out = append(out, Annotation{
				Kind:       k,
				ID:         it.ID,
				Title:      it.Title,
				Coordinate: *it.Location,
				Grade:      it.Grade,
				Duress:     it.Duress,
			})
		}
	}
	return out
}

// Result bundles both projections of one snapshot.
type Result struct {
	Sections    []Section
	Annotations []Annotation
}

// Apply computes sections and annotations together.
func (e *Engine) Apply(snap state.Snapshot, f Filter) Result {
	return Result{
		Sections:    e.Sections(snap, f),
		Annotations: e.Annotations(snap, f),
	}
}
