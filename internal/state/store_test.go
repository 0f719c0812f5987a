package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func sampleResponse(at time.Time) *cad.SyncResponse {
	return &cad.SyncResponse{
		Incidents: []cad.Incident{
			{ID: "I42", Type: "Assault", Grade: cad.GradeP1, Status: cad.IncidentCurrent, PatrolGroup: "Collingwood"},
			{ID: "I43", Type: "Burglary", Grade: cad.GradeP3, Status: cad.IncidentUnresourced, PatrolGroup: "Richmond"},
		},
		Resources: []cad.Resource{
			{Callsign: "B14", Status: cad.StatusAtIncident, PatrolGroup: "Collingwood", CurrentIncident: strPtr("I42"), AssignedIncidents: []string{"I42"}},
			{Callsign: "C7", Status: cad.StatusOnAir, PatrolGroup: "Richmond"},
		},
		Patrols:    []cad.Patrol{{ID: "P1", Type: "Licensed premises"}},
		Broadcasts: []cad.Broadcast{{ID: "BC1", Title: "Stolen vehicle"}},
		Officers:   []cad.Officer{{ID: "O1", FamilyName: "Citizen"}},
		Timestamp:  at,
	}
}

func TestStore_UpsertAndSnapshotClone(t *testing.T) {
	s := New(nil)
	if err := s.Upsert(sampleResponse(baseTime), true); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Incidents) != 2 || len(snap.Resources) != 2 || len(snap.Patrols) != 1 || len(snap.Broadcasts) != 1 {
		t.Fatalf("snapshot sizes = %d/%d/%d/%d", len(snap.Incidents), len(snap.Resources), len(snap.Patrols), len(snap.Broadcasts))
	}
	if !snap.LastSyncTime.Equal(baseTime) {
		t.Fatalf("LastSyncTime = %v, want %v", snap.LastSyncTime, baseTime)
	}
	if got := snap.ResourcesByIncident["I42"]; !reflect.DeepEqual(got, []string{"B14"}) {
		t.Fatalf("ResourcesByIncident[I42] = %v", got)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Resources[0].AssignedIncidents[0] = "mutated"
	again, _ := s.Resource("B14")
	if again.AssignedIncidents[0] != "I42" {
		t.Fatalf("Snapshot should clone resources; got %v", again.AssignedIncidents)
	}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	s := New(nil)
	resp := sampleResponse(baseTime)
	if err := s.Upsert(resp, true); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	once := s.Snapshot()
	if err := s.Upsert(resp, true); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	twice := s.Snapshot()
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("state changed on re-apply:\n once=%#v\ntwice=%#v", once, twice)
	}
}

func TestStore_FullSyncRemovesAbsentEntities(t *testing.T) {
	s := New(nil)
	_ = s.Upsert(sampleResponse(baseTime), true)

	next := sampleResponse(baseTime.Add(time.Minute))
	next.Incidents = next.Incidents[1:] // I42 closed server side
	next.Resources = []cad.Resource{
		// Server still lists I42 on B14; the dangling reference must go.
		{Callsign: "B14", Status: cad.StatusAtIncident, CurrentIncident: strPtr("I42"), AssignedIncidents: []string{"I42"}},
	}
	next.Patrols = nil
	if err := s.Upsert(next, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if _, ok := s.Incident("I42"); ok {
		t.Fatalf("I42 still present after full sync without it")
	}
	if _, ok := s.Resource("C7"); ok {
		t.Fatalf("C7 still present after full sync without it")
	}
	if len(s.Patrols()) != 0 {
		t.Fatalf("patrols = %v, want none", s.Patrols())
	}
	b14, _ := s.Resource("B14")
	if b14.CurrentIncident != nil || len(b14.AssignedIncidents) != 0 {
		t.Fatalf("B14 kept dangling reference: %#v", b14)
	}
	if got := s.ResourcesForIncident("I42"); len(got) != 0 {
		t.Fatalf("ResourcesForIncident(I42) = %v, want none", got)
	}
}

func TestStore_ScopedSyncKeepsOtherEntities(t *testing.T) {
	s := New(nil)
	_ = s.Upsert(sampleResponse(baseTime), true)

	scoped := &cad.SyncResponse{
		Incidents: []cad.Incident{{ID: "I44", Type: "Noise", PatrolGroup: "Collingwood"}},
		Timestamp: baseTime.Add(time.Minute),
	}
	if err := s.Upsert(scoped, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(s.Incidents()) != 3 {
		t.Fatalf("incidents = %d, want 3", len(s.Incidents()))
	}
	if !s.LastSyncTime().Equal(baseTime.Add(time.Minute)) {
		t.Fatalf("LastSyncTime = %v", s.LastSyncTime())
	}
}

func TestStore_StaleFullSyncDiscarded(t *testing.T) {
	bus := &events.Bus{}
	sub := bus.Subscribe(8)
	defer sub.Close()

	s := New(bus)
	_ = s.Upsert(sampleResponse(baseTime), true)
	<-sub.C()

	stale := sampleResponse(baseTime.Add(-time.Minute))
	stale.Incidents = nil
	err := s.Upsert(stale, true)
	if !errors.Is(err, cad.ErrStaleSync) {
		t.Fatalf("Upsert error = %v, want ErrStaleSync", err)
	}
	if len(s.Incidents()) != 2 {
		t.Fatalf("stale sync modified incidents: %v", s.Incidents())
	}
	if !s.LastSyncTime().Equal(baseTime) {
		t.Fatalf("LastSyncTime moved to %v", s.LastSyncTime())
	}
	select {
	case evt := <-sub.C():
		t.Fatalf("stale sync published %#v", evt)
	default:
	}
}

func TestStore_LastSyncTimeNeverMovesBackwards(t *testing.T) {
	s := New(nil)
	_ = s.Upsert(sampleResponse(baseTime), true)
	older := &cad.SyncResponse{Timestamp: baseTime.Add(-time.Hour)}
	if err := s.Upsert(older, false); err != nil {
		t.Fatalf("scoped Upsert: %v", err)
	}
	if !s.LastSyncTime().Equal(baseTime) {
		t.Fatalf("LastSyncTime = %v, want %v", s.LastSyncTime(), baseTime)
	}
}

func TestStore_PutResourceNormalizes(t *testing.T) {
	s := New(nil)
	_ = s.Update(func(tx *Tx) error {
		tx.PutIncident(cad.Incident{ID: "I1"})
		tx.PutResource(cad.Resource{
			Callsign:          "B14",
			Status:            cad.StatusFinalise,
			CurrentIncident:   strPtr("I1"),
			AssignedIncidents: []string{"I2", "I2", ""},
		})
		tx.PutResource(cad.Resource{Callsign: "C7", Status: "Teleporting"})
		return nil
	})

	b14, _ := s.Resource("B14")
	if b14.Status != cad.StatusOnAir {
		t.Fatalf("Finalise stored as %q, want On Air", b14.Status)
	}
	if !reflect.DeepEqual(b14.AssignedIncidents, []string{"I2", "I1"}) {
		t.Fatalf("AssignedIncidents = %v, want [I2 I1]", b14.AssignedIncidents)
	}
	c7, _ := s.Resource("C7")
	if c7.Status != cad.StatusUnavailable {
		t.Fatalf("unknown status stored as %q", c7.Status)
	}
}

func TestStore_RemoveStripsResources(t *testing.T) {
	bus := &events.Bus{}
	sub := bus.Subscribe(8)
	defer sub.Close()
	s := New(bus)
	_ = s.Upsert(sampleResponse(baseTime), true)
	<-sub.C()

	if !s.Remove("I42") {
		t.Fatalf("Remove(I42) = false")
	}
	if s.Remove("I42") {
		t.Fatalf("second Remove(I42) = true")
	}
	b14, _ := s.Resource("B14")
	if b14.CurrentIncident != nil || b14.IsAssigned("I42") {
		t.Fatalf("B14 still references I42: %#v", b14)
	}
	if evt := <-sub.C(); evt.Kind != events.SyncChanged {
		t.Fatalf("event = %#v, want sync", evt)
	}
}

func TestStore_LookupsReportAbsence(t *testing.T) {
	s := New(nil)
	if _, ok := s.Incident("nope"); ok {
		t.Fatalf("Incident(nope) ok")
	}
	if _, ok := s.Resource("nope"); ok {
		t.Fatalf("Resource(nope) ok")
	}
	if _, ok := s.IncidentForResource("nope"); ok {
		t.Fatalf("IncidentForResource(nope) ok")
	}
	if got := s.ResourcesForIncident("nope"); len(got) != 0 {
		t.Fatalf("ResourcesForIncident(nope) = %v", got)
	}

	_ = s.Upsert(sampleResponse(baseTime), true)
	inc, ok := s.IncidentForResource("B14")
	if !ok || inc.ID != "I42" {
		t.Fatalf("IncidentForResource(B14) = %v, %v", inc.ID, ok)
	}
	if _, ok := s.IncidentForResource("C7"); ok {
		t.Fatalf("C7 has no current incident")
	}
}

func TestStore_RecordFailureKeepsData(t *testing.T) {
	s := New(nil)
	_ = s.Upsert(sampleResponse(baseTime), true)

	s.RecordFailure(errors.New("fail 1"))
	snap := s.Snapshot()
	if len(snap.Incidents) != 2 || !snap.LastSyncTime.Equal(baseTime) {
		t.Fatalf("failure modified data: %#v", snap)
	}
	if snap.LastError == nil || snap.LastError.Error() != "fail 1" {
		t.Fatalf("LastError = %v, want fail 1", snap.LastError)
	}
	if snap.IsOffline() {
		t.Fatalf("IsOffline after one failure")
	}
	s.RecordFailure(errors.New("fail 2"))
	if !s.Snapshot().IsOffline() {
		t.Fatalf("IsOffline = false after two failures")
	}

	// Success resets the counter.
	_ = s.Upsert(&cad.SyncResponse{Timestamp: baseTime.Add(time.Minute)}, false)
	snap = s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.LastError != nil {
		t.Fatalf("success did not reset failures: %d %v", snap.ConsecutiveFailures, snap.LastError)
	}
}

func TestStore_ResetIsIdempotent(t *testing.T) {
	s := New(nil)
	_ = s.Upsert(sampleResponse(baseTime), true)
	s.Reset()
	s.Reset()
	snap := s.Snapshot()
	if len(snap.Incidents)+len(snap.Resources)+len(snap.Patrols)+len(snap.Broadcasts)+len(snap.Officers) != 0 {
		t.Fatalf("Reset left data behind: %#v", snap)
	}
	if !snap.LastSyncTime.IsZero() {
		t.Fatalf("LastSyncTime = %v after Reset", snap.LastSyncTime)
	}
}

func TestStore_ViewRejectsMutation(t *testing.T) {
	s := New(nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("mutation inside View did not panic")
		}
	}()
	s.View(func(tx *Tx) { tx.PutIncident(cad.Incident{ID: "I1"}) })
}

func TestSnapshot_ResourceLookup(t *testing.T) {
	s := New(nil)
	_ = s.Upsert(sampleResponse(baseTime), true)
	snap := s.Snapshot()
	if r, ok := snap.Resource("C7"); !ok || r.Callsign != "C7" {
		t.Fatalf("Resource(C7) = %v, %v", r, ok)
	}
	if _, ok := snap.Resource("A1"); ok {
		t.Fatalf("Resource(A1) ok")
	}
	if got := snap.ResourcesForIncident("I42"); len(got) != 1 || got[0].Callsign != "B14" {
		t.Fatalf("ResourcesForIncident(I42) = %v", got)
	}
}

func TestUpdate_PanicReleasesLock(t *testing.T) {
	s := New(nil)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected the panic to propagate")
			}
		}()
		_ = s.Update(func(tx *Tx) error {
			panic("boom")
		})
	}()

	done := make(chan struct{})
	go func() {
		s.LastSyncTime()
		_ = s.Upsert(sampleResponse(baseTime), true)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("store still locked after a panic in Update")
	}
}
