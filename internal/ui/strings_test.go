package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luke-gs/cadsync/internal/filter"
)

func TestHumanizeDuration(t *testing.T) {
	cases := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"negative", -5 * time.Second, "now"},
		{"subsecond", 0, "now"},
		{"seconds", 12 * time.Second, "12s"},
		{"minutes", 61 * time.Second, "1m"},
		{"hours_only", 2*time.Hour + 10*time.Second, "2h"},
		{"hours_minutes", 2*time.Hour + 3*time.Minute, "2h 3m"},
		{"days", 24 * time.Hour, "1d"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := humanizeDuration(tc.in); got != tc.want {
				t.Fatalf("humanizeDuration(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  abc  ", 10); got != "abc" {
		t.Fatalf("truncate = %q, want abc", got)
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Fatalf("truncate short limit = %q, want ab", got)
	}
	if got := truncate("Collingwood", 8); got != "Colli..." {
		t.Fatalf("truncate = %q, want Colli...", got)
	}
}

func TestClassifyError(t *testing.T) {
	cases := map[string]string{
		"dial tcp 127.0.0.1:8640: connect: connection refused": "OFFLINE",
		"lookup cad.example.net: no such host":                 "HOST NOT FOUND",
		"context deadline exceeded":                            "TIMEOUT",
		"sync failed: 500":                                     "ERROR",
	}
	for msg, want := range cases {
		if got := classifyError(errors.New(msg)); got != want {
			t.Fatalf("classifyError(%q) = %q, want %q", msg, got, want)
		}
	}
	if got := classifyError(nil); got != "" {
		t.Fatalf("classifyError(nil) = %q", got)
	}
}

func TestBuildRows_CollapsedBucketHidesItems(t *testing.T) {
	sections := []filter.Section{{
		Title: "Collingwood",
		Buckets: []filter.Bucket{
			{Title: filter.BucketDuress, Items: []filter.Item{{ID: "B1"}}},
			{Title: filter.BucketTasked, Collapsible: true, Items: []filter.Item{{ID: "B2"}, {ID: "B3"}}},
		},
	}}
	collapsed := map[string]bool{
		"Collingwood/" + filter.BucketDuress: true,
		"Collingwood/" + filter.BucketTasked: true,
	}

	rows := buildRows(sections, collapsed)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4 (section, duress, B1, tasked)", len(rows))
	}
	if rows[0].count != 3 || rows[3].count != 2 || !rows[3].collapsed {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[1].collapsed {
		t.Fatalf("non-collapsible bucket reported collapsed")
	}
}

func TestBarKeepsWordsAndGaps(t *testing.T) {
	b := newBar("#1f2430")
	if got := b.text("", lipgloss.NewStyle()); got != "" {
		t.Fatalf("text(\"\") = %q", got)
	}
	got := b.pair("Synced: ", lipgloss.NewStyle(), "2h 3m", lipgloss.NewStyle())
	for _, want := range []string{"Synced:", "2h", "3m"} {
		if !strings.Contains(got, want) {
			t.Fatalf("pair = %q, missing %q", got, want)
		}
	}
	if n := strings.Count(b.join([]string{"a", "b", "c"}), " "); n < 4 {
		t.Fatalf("join gaps = %d spaces, want at least 4", n)
	}
}
