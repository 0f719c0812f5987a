package status

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
	"github.com/luke-gs/cadsync/internal/state"
)

type fakeUpdater struct {
	mu     sync.Mutex
	calls  []cad.StatusUpdateRequest
	ack    cad.Ack
	err    error
	onCall func()
}

func (f *fakeUpdater) UpdateStatus(_ context.Context, _ string, req cad.StatusUpdateRequest) (cad.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return cad.Ack{}, f.err
	}
	return f.ack, nil
}

func newFixture(t *testing.T) (*state.Store, *fakeUpdater, *Machine) {
	t.Helper()
	store := state.New(nil)
	resp := &cad.SyncResponse{
		Incidents: []cad.Incident{{ID: "I42", Type: "Assault"}, {ID: "I43", Type: "Theft"}},
		Resources: []cad.Resource{{Callsign: "B14", Status: cad.StatusOnAir}},
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := store.Upsert(resp, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	api := &fakeUpdater{ack: cad.Ack{Accepted: true}}
	return store, api, New(store, api, nil)
}

func checkInvariant(t *testing.T, store *state.Store) {
	t.Helper()
	for _, r := range store.Resources() {
		if r.CurrentIncident != nil && !r.IsAssigned(*r.CurrentIncident) {
			t.Fatalf("%s current incident %s not in %v", r.Callsign, *r.CurrentIncident, r.AssignedIncidents)
		}
		if !r.Status.IsStorable() {
			t.Fatalf("%s stored status %q", r.Callsign, r.Status)
		}
	}
}

func TestUpdate_AtIncidentAssigns(t *testing.T) {
	store, api, m := newFixture(t)

	err := m.Update(context.Background(), Update{Callsign: "B14", Status: cad.StatusAtIncident, IncidentID: "I42"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	r, _ := store.Resource("B14")
	if r.Status != cad.StatusAtIncident {
		t.Fatalf("status = %q, want At Incident", r.Status)
	}
	if r.CurrentIncidentID() != "I42" || !r.IsAssigned("I42") {
		t.Fatalf("B14 = %#v, want current I42", r)
	}
	if len(api.calls) != 1 || api.calls[0].IncidentID != "I42" {
		t.Fatalf("remote calls = %#v", api.calls)
	}
	checkInvariant(t, store)
}

func TestUpdate_FinaliseClosesIncident(t *testing.T) {
	store, api, m := newFixture(t)
	ctx := context.Background()
	if err := m.Update(ctx, Update{Callsign: "B14", Status: cad.StatusAtIncident, IncidentID: "I42"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := m.Update(ctx, Update{Callsign: "B14", Status: cad.StatusFinalise}); err != nil {
		t.Fatalf("Update finalise: %v", err)
	}

	r, _ := store.Resource("B14")
	if r.Status != cad.StatusOnAir {
		t.Fatalf("status = %q, want On Air", r.Status)
	}
	if r.CurrentIncident != nil || r.IsAssigned("I42") {
		t.Fatalf("B14 still references I42: %#v", r)
	}
	if _, ok := store.Incident("I42"); ok {
		t.Fatalf("I42 still in store")
	}
	if got := api.calls[1]; got.Status != cad.StatusFinalise || got.IncidentID != "I42" {
		t.Fatalf("finalise request = %#v", got)
	}
	checkInvariant(t, store)
}

func TestUpdate_RemoteFailureLeavesStore(t *testing.T) {
	store, api, m := newFixture(t)
	before := store.Snapshot()

	api.err = errors.New("connection reset")
	err := m.Update(context.Background(), Update{Callsign: "B14", Status: cad.StatusAtIncident, IncidentID: "I42"})
	if !errors.Is(err, cad.ErrStatusUpdateFailed) {
		t.Fatalf("error = %v, want ErrStatusUpdateFailed", err)
	}
	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Fatalf("store changed after remote failure")
	}

	api.err = nil
	api.ack = cad.Ack{Accepted: false, Message: "resource not on shift"}
	err = m.Update(context.Background(), Update{Callsign: "B14", Status: cad.StatusMealBreak})
	if !errors.Is(err, cad.ErrStatusUpdateFailed) {
		t.Fatalf("error = %v, want ErrStatusUpdateFailed", err)
	}
	if r, _ := store.Resource("B14"); r.Status != cad.StatusOnAir {
		t.Fatalf("status = %q after refused update", r.Status)
	}
}

func TestUpdate_Validation(t *testing.T) {
	tests := []struct {
		name string
		u    Update
		want error
	}{
		{name: "unknown status", u: Update{Callsign: "B14", Status: "Dancing"}, want: cad.ErrInvalidStatus},
		{name: "unknown callsign", u: Update{Callsign: "Z9", Status: cad.StatusOnAir}, want: cad.ErrUnknownCallsign},
		{name: "incident status without incident", u: Update{Callsign: "B14", Status: cad.StatusProceeding}, want: cad.ErrIncidentRequired},
		{name: "incident status with missing incident", u: Update{Callsign: "B14", Status: cad.StatusCourt, IncidentID: "I99"}, want: cad.ErrIncidentRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, api, m := newFixture(t)
			err := m.Update(context.Background(), tt.u)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if len(api.calls) != 0 {
				t.Fatalf("invalid update reached the server: %#v", api.calls)
			}
		})
	}
}

func TestApply_Transitions(t *testing.T) {
	tests := []struct {
		name        string
		start       cad.ResourceStatus
		startOn     string
		status      cad.ResourceStatus
		incident    string
		wantStatus  cad.ResourceStatus
		wantCurrent string
		wantAssign  []string
	}{
		{
			name: "general to general keeps nothing", start: cad.StatusOnAir,
			status: cad.StatusMealBreak, wantStatus: cad.StatusMealBreak, wantAssign: []string{},
		},
		{
			name: "incident to general clears current", start: cad.StatusAtIncident, startOn: "I42",
			status: cad.StatusOnAir, incident: "I43", wantStatus: cad.StatusOnAir, wantAssign: []string{},
		},
		{
			name: "duress keeps incident", start: cad.StatusAtIncident, startOn: "I42",
			status: cad.StatusDuress, wantStatus: cad.StatusDuress, wantCurrent: "I42", wantAssign: []string{"I42"},
		},
		{
			name: "duress to general clears current", start: cad.StatusDuress, startOn: "I42",
			status: cad.StatusAtStation, wantStatus: cad.StatusAtStation, wantAssign: []string{},
		},
		{
			name: "existing current not replaced", start: cad.StatusProceeding, startOn: "I42",
			status: cad.StatusAtIncident, incident: "I43", wantStatus: cad.StatusAtIncident, wantCurrent: "I42", wantAssign: []string{"I42"},
		},
		{
			name: "finalise without incident", start: cad.StatusOnAir,
			status: cad.StatusFinalise, incident: "I43", wantStatus: cad.StatusOnAir, wantAssign: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, _ := newFixture(t)
			_ = store.Update(func(tx *state.Tx) error {
				tx.SetStatus("B14", tt.start)
				if tt.startOn != "" {
					tx.AssignIncident(tt.startOn, "B14")
				}
				return nil
			})

			if err := store.Update(func(tx *state.Tx) error {
				return Apply(tx, "B14", tt.status, tt.incident)
			}); err != nil {
				t.Fatalf("Apply: %v", err)
			}

			r, _ := store.Resource("B14")
			if r.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", r.Status, tt.wantStatus)
			}
			if r.CurrentIncidentID() != tt.wantCurrent {
				t.Fatalf("current = %q, want %q", r.CurrentIncidentID(), tt.wantCurrent)
			}
			if len(r.AssignedIncidents) != len(tt.wantAssign) {
				t.Fatalf("assigned = %v, want %v", r.AssignedIncidents, tt.wantAssign)
			}
			checkInvariant(t, store)
		})
	}
}

func TestApply_EmitsCallsignChanged(t *testing.T) {
	bus := &events.Bus{}
	store := state.New(bus)
	_ = store.Upsert(&cad.SyncResponse{Resources: []cad.Resource{{Callsign: "B14", Status: cad.StatusOnAir}}}, true)
	sub := bus.Subscribe(8)
	defer sub.Close()

	if err := store.Update(func(tx *state.Tx) error {
		return Apply(tx, "B14", cad.StatusMealBreak, "")
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	evt := <-sub.C()
	if evt.Kind != events.CallsignChanged || evt.Callsign != "B14" {
		t.Fatalf("event = %#v", evt)
	}
}

func TestApply_UnknownCallsign(t *testing.T) {
	store := state.New(nil)
	err := store.Update(func(tx *state.Tx) error {
		return Apply(tx, "Z9", cad.StatusOnAir, "")
	})
	if !errors.Is(err, cad.ErrUnknownCallsign) {
		t.Fatalf("error = %v", err)
	}
}

func TestUpdate_IncidentRemovedWhileInFlight(t *testing.T) {
	store, api, m := newFixture(t)
	api.onCall = func() {
		resp := &cad.SyncResponse{
			Incidents: []cad.Incident{{ID: "I43", Type: "Theft"}},
			Resources: []cad.Resource{{Callsign: "B14", Status: cad.StatusOnAir}},
			Timestamp: time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
		}
		if err := store.Upsert(resp, true); err != nil {
			t.Errorf("Upsert: %v", err)
		}
	}

	err := m.Update(context.Background(), Update{Callsign: "B14", Status: cad.StatusAtIncident, IncidentID: "I42"})
	if !errors.Is(err, cad.ErrIncidentRequired) {
		t.Fatalf("error = %v, want ErrIncidentRequired", err)
	}
	r, _ := store.Resource("B14")
	if r.Status != cad.StatusOnAir || r.CurrentIncident != nil {
		t.Fatalf("B14 = %q current %v, want On Air with no incident", r.Status, r.CurrentIncident)
	}
	checkInvariant(t, store)
}

func TestApply_IncidentStatusNeedsIncident(t *testing.T) {
	tests := []struct {
		name     string
		incident string
	}{
		{name: "no incident", incident: ""},
		{name: "incident not in store", incident: "I99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, _ := newFixture(t)
			err := store.Update(func(tx *state.Tx) error {
				return Apply(tx, "B14", cad.StatusProceeding, tt.incident)
			})
			if !errors.Is(err, cad.ErrIncidentRequired) {
				t.Fatalf("error = %v, want ErrIncidentRequired", err)
			}
			if r, _ := store.Resource("B14"); r.Status != cad.StatusOnAir {
				t.Fatalf("status = %q, want unchanged On Air", r.Status)
			}
		})
	}
}
