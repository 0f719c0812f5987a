package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luke-gs/cadsync/internal/app"
	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/filter"
)

func TestParseShiftEnd(t *testing.T) {
	loc := time.FixedZone("AEST", 10*60*60)
	start := time.Date(2026, 3, 1, 22, 0, 0, 0, loc)

	cases := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{name: "later today", in: "23:30", want: time.Date(2026, 3, 1, 23, 30, 0, 0, loc)},
		{name: "rolls to tomorrow", in: "06:00", want: time.Date(2026, 3, 2, 6, 0, 0, 0, loc)},
		{name: "same time rolls", in: "22:00", want: time.Date(2026, 3, 2, 22, 0, 0, 0, loc)},
		{name: "rfc3339", in: "2026-03-02T07:00:00+10:00", want: time.Date(2026, 3, 2, 7, 0, 0, 0, loc)},
		{name: "garbage", in: "soon", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseShiftEnd(tc.in, start)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseShiftEnd(%q) = %v, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseShiftEnd(%q) error: %v", tc.in, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("parseShiftEnd(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestRenderSections(t *testing.T) {
	var buf bytes.Buffer
	renderSections(&buf, filter.KindResource, []filter.Section{{
		Title: "Collingwood",
		Buckets: []filter.Bucket{
			{Title: filter.BucketDuress, Items: []filter.Item{{ID: "B14", Title: "B14", Status: "Duress", Duress: true}}},
			{Title: filter.BucketUntasked, Items: []filter.Item{{ID: "C7", Title: "C7", Status: "On Air", Suburb: "Abbotsford"}}},
		},
	}})
	out := buf.String()
	for _, want := range []string{"Resources", "Collingwood", "B14", "DURESS", "C7", "Abbotsford"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	renderSections(&buf, filter.KindPatrol, nil)
	if got := buf.String(); got != "No patrols\n" {
		t.Fatalf("empty output = %q", got)
	}
}

type fakeServer struct {
	mu       sync.Mutex
	statuses []cad.StatusUpdateRequest
	bookOns  []cad.BookOnRequest
}

func (s *fakeServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/sync":
		_ = json.NewEncoder(w).Encode(cad.SyncResponse{
			Incidents: []cad.Incident{{ID: "I1", Type: "Assault", Grade: cad.GradeP1, Status: cad.IncidentUnresourced, PatrolGroup: "Collingwood"}},
			Resources: []cad.Resource{{Callsign: "B14", Status: cad.StatusOnAir, PatrolGroup: "Collingwood"}},
			Timestamp: time.Now().UTC(),
		})
	case r.URL.Path == "/api/resources/B14/status":
		var req cad.StatusUpdateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.statuses = append(s.statuses, req)
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(cad.Ack{Accepted: true})
	case r.URL.Path == "/api/bookon":
		var req cad.BookOnRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.bookOns = append(s.bookOns, req)
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(cad.Ack{Accepted: true})
	default:
		http.NotFound(w, r)
	}
}

func execute(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("api_url = %q\nofficer_id = \"O1\"\ncallsign = \"B14\"\npatrol_group = \"Collingwood\"\nlog_file = %q\nlive_feed = false\n",
		serverURL, filepath.Join(dir, "cadsync.log"))
	if err := os.WriteFile(cfg, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts = app.Options{}
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg, "--prefs", filepath.Join(dir, "prefs.toml")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStatusCommand_AppliesToIncident(t *testing.T) {
	fs := &fakeServer{}
	server := httptest.NewServer(http.HandlerFunc(fs.handler))
	defer server.Close()

	out, err := execute(t, server.URL, "status", "proceeding", "--incident", "I1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "B14 is now Proceeding") {
		t.Fatalf("output = %q", out)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.statuses) != 1 || fs.statuses[0].Status != cad.StatusProceeding {
		t.Fatalf("status requests = %+v", fs.statuses)
	}
}

func TestStatusCommand_RejectsUnknownStatus(t *testing.T) {
	_, err := execute(t, "127.0.0.1:9", "status", "napping")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("err = %v, want unknown status", err)
	}
}

func TestListCommand_PrintsIncidents(t *testing.T) {
	fs := &fakeServer{}
	server := httptest.NewServer(http.HandlerFunc(fs.handler))
	defer server.Close()

	out, err := execute(t, server.URL, "list", "incidents")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"Collingwood", "Unresourced", "I1", "P1 Assault"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBookOnCommand_UsesConfiguredOfficer(t *testing.T) {
	fs := &fakeServer{}
	server := httptest.NewServer(http.HandlerFunc(fs.handler))
	defer server.Close()

	out, err := execute(t, server.URL, "book-on", "--callsign", "C7", "--shift-end", "2030-01-01T06:00:00Z")
	if err != nil {
		t.Fatalf("book-on: %v", err)
	}
	if !strings.Contains(out, "C7 booked on") {
		t.Fatalf("output = %q", out)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.bookOns) != 1 {
		t.Fatalf("book-on requests = %d", len(fs.bookOns))
	}
	req := fs.bookOns[0]
	if req.Callsign != "C7" || len(req.OfficerIDs) != 1 || req.OfficerIDs[0] != "O1" || req.ShiftEnd == nil {
		t.Fatalf("book-on request = %+v", req)
	}
}

func TestLogsCommand(t *testing.T) {
	out, err := execute(t, "http://127.0.0.1:1", "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "session opened") {
		t.Fatalf("output = %q", out)
	}

	out, err = execute(t, "http://127.0.0.1:1", "logs", "--level", "error")
	if err != nil {
		t.Fatalf("logs --level error: %v", err)
	}
	if out != "" {
		t.Fatalf("output = %q, want no lines", out)
	}

	if _, err := execute(t, "http://127.0.0.1:1", "logs", "--level", "loud"); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}
