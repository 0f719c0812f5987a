package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		line string
		want logrus.Level
	}{
		{`time="2026-03-01T09:00:00.000Z" level=warning msg="sync failed"`, logrus.WarnLevel},
		{`time="2026-03-01T09:00:00.000Z" level=error msg="status update failed" callsign=B14`, logrus.ErrorLevel},
		{`level=debug msg=x`, logrus.DebugLevel},
		{`level="info" msg=x`, logrus.InfoLevel},
		{`no level here`, logrus.InfoLevel},
		{`level=loud msg=x`, logrus.InfoLevel},
	}
	for _, tt := range tests {
		if got := Level(tt.line); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestFilter(t *testing.T) {
	lines := []string{
		`level=debug msg=a`,
		`level=info msg=b`,
		`level=warning msg=c`,
		`level=error msg=d`,
	}
	got := Filter(lines, logrus.WarnLevel)
	want := []string{`level=warning msg=c`, `level=error msg=d`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter = %v, want %v", got, want)
	}
	if got := Filter(lines, logrus.DebugLevel); len(got) != 4 {
		t.Fatalf("Filter(debug) kept %d, want 4", len(got))
	}
}
