package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the console.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	Logs       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding
	Confirm    key.Binding

	// List kind
	NextKind      key.Binding
	PrevKind      key.Binding
	KindIncidents key.Binding
	KindPatrols   key.Binding
	KindBcasts    key.Binding
	KindResources key.Binding

	// Filter
	CycleTasking  key.Binding
	ToggleOutside key.Binding
	ToggleDuress  key.Binding
	Search        key.Binding

	// Callsign actions
	StatusMenu key.Binding
	Finalise   key.Binding
	BookOff    key.Binding
	Sync       key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		Logs: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Session log"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close / clear search"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Collapse bucket / confirm"),
		),

		NextKind: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next list"),
		),
		PrevKind: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous list"),
		),
		KindIncidents: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Incidents"),
		),
		KindPatrols: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Patrols"),
		),
		KindBcasts: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Broadcasts"),
		),
		KindResources: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Resources"),
		),

		CycleTasking: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "Cycle tasked filter"),
		),
		ToggleOutside: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Toggle outside patrol area"),
		),
		ToggleDuress: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Toggle duress first"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search"),
		),

		StatusMenu: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Change status"),
		),
		Finalise: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "Finalise incident"),
		),
		BookOff: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "Book off"),
		),
		Sync: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Sync now"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("ctrl+u", "Page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("ctrl+d", "Page down"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings grouped for the help overlay, in the order
// of helpTitles.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextKind, k.PrevKind, k.KindIncidents, k.KindPatrols, k.KindBcasts, k.KindResources},
		{k.Up, k.Down, k.Top, k.Bottom, k.PageDown, k.PageUp, k.Confirm},
		{k.Search, k.CycleTasking, k.ToggleOutside, k.ToggleDuress, k.Escape},
		{k.StatusMenu, k.Finalise, k.BookOff, k.Sync},
		{k.Logs, k.CycleTheme, k.Help, k.Quit},
	}
}
