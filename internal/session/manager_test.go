package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	sync     *cad.SyncResponse
	statuses []cad.StatusUpdateRequest
	bookOffs []string
	manifest *cad.ManifestDelta
	details  *cad.IncidentDetails
}

var _ cad.API = (*fakeAPI)(nil)

func (f *fakeAPI) FetchSync(context.Context, cad.SyncScope) (*cad.SyncResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sync, nil
}

func (f *fakeAPI) BookOn(context.Context, cad.BookOnRequest) (cad.Ack, error) {
	return cad.Ack{Accepted: true}, nil
}

func (f *fakeAPI) BookOff(_ context.Context, callsign string) (cad.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookOffs = append(f.bookOffs, callsign)
	return cad.Ack{Accepted: true}, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, _ string, req cad.StatusUpdateRequest) (cad.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, req)
	return cad.Ack{Accepted: true}, nil
}

func (f *fakeAPI) FetchIncidentDetails(_ context.Context, id string) (*cad.IncidentDetails, error) {
	if f.details == nil || f.details.Incident.ID != id {
		return nil, &cad.APIError{Path: "/api/incidents/" + id, StatusCode: 404}
	}
	return f.details, nil
}

func (f *fakeAPI) FetchResourceDetails(_ context.Context, callsign string) (*cad.ResourceDetails, error) {
	inc := cad.Incident{ID: "I77", Type: "Collision"}
	cur := inc.ID
	return &cad.ResourceDetails{
		Resource: cad.Resource{Callsign: callsign, Status: cad.StatusAtIncident, CurrentIncident: &cur},
		Incident: &inc,
	}, nil
}

func (f *fakeAPI) FetchManifest(context.Context, []string, time.Time) (*cad.ManifestDelta, error) {
	return f.manifest, nil
}

func newManager(t *testing.T) (*fakeAPI, *Manager) {
	t.Helper()
	api := &fakeAPI{sync: &cad.SyncResponse{
		Incidents: []cad.Incident{{ID: "I42", Type: "Assault", PatrolGroup: "Collingwood"}},
		Resources: []cad.Resource{{Callsign: "B14", Status: cad.StatusOffDuty, PatrolGroup: "Collingwood"}},
		Officers:  []cad.Officer{{ID: "O1", GivenName: "Jane", FamilyName: "Citizen", Rank: "Sgt"}},
		Timestamp: t0,
	}}
	m := New(Options{API: api, OfficerID: "O1", PatrolGroup: "Collingwood"})
	if _, err := m.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	return api, m
}

func TestManager_ShiftFlow(t *testing.T) {
	api, m := newManager(t)
	ctx := context.Background()

	if err := m.UpdateCallsignStatus(ctx, cad.StatusOnAir, "", "", ""); !errors.Is(err, cad.ErrNotBookedOn) {
		t.Fatalf("status without callsign = %v, want ErrNotBookedOn", err)
	}

	end := time.Now().Add(8 * time.Hour)
	if err := m.BookOn(ctx, cad.BookOnRequest{Callsign: "B14", OfficerIDs: []string{"O1", "O2"}, ShiftEnd: &end}); err != nil {
		t.Fatalf("BookOn: %v", err)
	}
	if m.CurrentCallsign() != "B14" {
		t.Fatalf("CurrentCallsign = %q", m.CurrentCallsign())
	}
	if p := m.Reminders().Pending(); len(p) != 1 || !p[0].At.Equal(end) {
		t.Fatalf("pending reminders = %#v", p)
	}

	if err := m.UpdateCallsignStatus(ctx, cad.StatusAtIncident, "I42", "on scene", "rear lane"); err != nil {
		t.Fatalf("UpdateCallsignStatus: %v", err)
	}
	r, _ := m.CurrentResource()
	if r.Status != cad.StatusAtIncident || r.CurrentIncidentID() != "I42" {
		t.Fatalf("B14 = %#v", r)
	}
	if got := api.statuses[0]; got.Comments != "on scene" || got.LocationComments != "rear lane" {
		t.Fatalf("status request = %#v", got)
	}
	if res := m.Tracker().InDuress("I42"); res {
		t.Fatalf("I42 in duress")
	}

	if err := m.UpdateCallsignStatus(ctx, cad.StatusFinalise, "", "", ""); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if _, ok := m.Store().Incident("I42"); ok {
		t.Fatalf("I42 still present after finalise")
	}

	if err := m.BookOff(ctx); err != nil {
		t.Fatalf("BookOff: %v", err)
	}
	if r, _ := m.Store().Resource("B14"); r.Status != cad.StatusOffDuty {
		t.Fatalf("status after book off = %q", r.Status)
	}
	if m.LastBookOn() != nil || len(m.Reminders().Pending()) != 0 {
		t.Fatalf("booking or reminder survived book off")
	}
}

func TestManager_LastBookOnVoidWithoutOfficer(t *testing.T) {
	api, m := newManager(t)
	m.bookon.Go = func(func()) {} // keep the booking so the read-side check is exercised

	if err := m.BookOn(context.Background(), cad.BookOnRequest{Callsign: "B14", OfficerIDs: []string{"O2"}}); err != nil {
		t.Fatalf("BookOn: %v", err)
	}
	if m.LastBookOn() != nil {
		t.Fatalf("LastBookOn returned a booking without the operator")
	}
	if len(api.bookOffs) != 0 {
		t.Fatalf("void runner should not have run")
	}
}

func TestManager_OfficerDetailsCached(t *testing.T) {
	_, m := newManager(t)
	o, ok := m.OfficerDetails()
	if !ok || o.DisplayName() != "Sgt Jane Citizen" {
		t.Fatalf("OfficerDetails = %#v, %v", o, ok)
	}
	m.Store().Reset()
	if _, ok := m.OfficerDetails(); !ok {
		t.Fatalf("cached officer lost after store reset")
	}
	m.ClearSession()
	if _, ok := m.OfficerDetails(); ok {
		t.Fatalf("officer survived ClearSession")
	}
}

func TestManager_ClearSessionIdempotent(t *testing.T) {
	_, m := newManager(t)
	m.ClearSession()
	m.ClearSession()
	if len(m.Incidents()) != 0 || len(m.Resources()) != 0 || !m.LastSyncTime().IsZero() {
		t.Fatalf("ClearSession left data")
	}
	if m.LastBookOn() != nil || len(m.RecentCallsigns()) != 0 {
		t.Fatalf("ClearSession left booking")
	}
}

func TestManager_DetailsMerge(t *testing.T) {
	api, m := newManager(t)
	ctx := context.Background()
	api.details = &cad.IncidentDetails{
		Incident:  cad.Incident{ID: "I50", Type: "Fire"},
		Resources: []cad.Resource{{Callsign: "F1", Status: cad.StatusProceeding, CurrentIncident: strPtr("I50")}},
		Officers:  []cad.Officer{{ID: "O5"}},
	}

	if _, err := m.IncidentDetails(ctx, "I50"); err != nil {
		t.Fatalf("IncidentDetails: %v", err)
	}
	got := m.Store().ResourcesForIncident("I50")
	if len(got) != 1 || got[0].Callsign != "F1" {
		t.Fatalf("ResourcesForIncident(I50) = %#v", got)
	}
	if _, ok := m.Store().Incident("I42"); !ok {
		t.Fatalf("details merge removed other incidents")
	}
	if _, err := m.IncidentDetails(ctx, "I99"); !cad.IsClientError(err) {
		t.Fatalf("missing incident error = %v", err)
	}

	if _, err := m.ResourceDetails(ctx, "C3"); err != nil {
		t.Fatalf("ResourceDetails: %v", err)
	}
	if inc, ok := m.Store().IncidentForResource("C3"); !ok || inc.ID != "I77" {
		t.Fatalf("IncidentForResource(C3) = %#v, %v", inc, ok)
	}
}

func TestManager_RefreshManifest(t *testing.T) {
	api, m := newManager(t)
	api.manifest = &cad.ManifestDelta{
		Items:     []cad.ManifestItem{{Collection: "incidentTypes", ID: "ASSLT", Title: "Assault", Active: true}},
		Timestamp: t0,
	}
	n, err := m.RefreshManifest(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("RefreshManifest = %d, %v", n, err)
	}
	if m.Manifest().Title("incidentTypes", "ASSLT") != "Assault" {
		t.Fatalf("manifest not applied")
	}
}

func TestManager_SubscribeReceivesEvents(t *testing.T) {
	_, m := newManager(t)
	sub := m.Subscribe(8)
	defer sub.Close()

	if _, err := m.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	select {
	case evt := <-sub.C():
		if evt.Kind != events.SyncChanged {
			t.Fatalf("event = %#v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event after sync")
	}
}

func strPtr(s string) *string { return &s }
