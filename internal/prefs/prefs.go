// Package prefs persists console preferences in
// ~/.config/cadsync/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/filter"
)

// Prefs holds console preferences.
type Prefs struct {
	Theme  string      `toml:"theme"`
	Filter FilterPrefs `toml:"filter"`
}

// FilterPrefs is the persisted form of filter.Filter. Search text is not
// persisted.
type FilterPrefs struct {
	Selected       string   `toml:"selected"`
	ShowIncidents  bool     `toml:"show_incidents"`
	ShowPatrols    bool     `toml:"show_patrols"`
	ShowBroadcasts bool     `toml:"show_broadcasts"`
	ShowResources  bool     `toml:"show_resources"`
	Grades         []string `toml:"grades"`
	ShowOutside    bool     `toml:"show_outside_patrol_area"`
	Tasking        string   `toml:"tasking"`
	DuressFirst    bool     `toml:"duress_first"`
}

const (
	defaultPrefsPath = "~/.config/cadsync/prefs.toml"
	defaultTheme     = "Nightfox"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Default returns the preferences used before anything is saved.
func Default() Prefs {
	return Prefs{Theme: defaultTheme, Filter: FromFilter(filter.Default())}
}

// Load reads preferences from the given path, falling back to defaults if the
// file is missing or unreadable.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Default(), nil
	}

	prefs := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return Default(), nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// FromFilter converts a live filter to its persisted form.
func FromFilter(f filter.Filter) FilterPrefs {
	grades := make([]string, 0, len(f.Grades))
	for _, g := range f.Grades {
		grades = append(grades, string(g))
	}
	return FilterPrefs{
		Selected:       f.Selected.String(),
		ShowIncidents:  f.ShowIncidents,
		ShowPatrols:    f.ShowPatrols,
		ShowBroadcasts: f.ShowBroadcasts,
		ShowResources:  f.ShowResources,
		Grades:         grades,
		ShowOutside:    f.ShowResultsOutsidePatrolArea,
		Tasking:        f.Tasking.String(),
		DuressFirst:    f.DuressFirst,
	}
}

// ToFilter converts persisted values back. Unknown kind or tasking names
// fall back to the defaults.
func (p FilterPrefs) ToFilter() filter.Filter {
	f := filter.Default()
	if k, ok := filter.ParseKind(p.Selected); ok {
		f.Selected = k
	}
	f.ShowIncidents = p.ShowIncidents
	f.ShowPatrols = p.ShowPatrols
	f.ShowBroadcasts = p.ShowBroadcasts
	f.ShowResources = p.ShowResources
	f.Grades = nil
	for _, g := range p.Grades {
		if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
			f.Grades = append(f.Grades, cad.Grade(g))
		}
	}
	f.ShowResultsOutsidePatrolArea = p.ShowOutside
	if t, ok := filter.ParseTasking(p.Tasking); ok {
		f.Tasking = t
	}
	f.DuressFirst = p.DuressFirst
	return f
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
