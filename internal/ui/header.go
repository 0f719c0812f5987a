package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luke-gs/cadsync/internal/filter"
)

// bar paints header segments on one background colour. lipgloss resets the
// background after every styled run, so each word and gap is painted itself.
type bar struct {
	bg lipgloss.Color
}

func newBar(color string) bar {
	return bar{bg: lipgloss.Color(color)}
}

func (b bar) gap(n int) string {
	return lipgloss.NewStyle().Background(b.bg).Render(strings.Repeat(" ", n))
}

// text renders s word by word in style over the bar colour.
func (b bar) text(s string, style lipgloss.Style) string {
	if s == "" {
		return ""
	}
	style = style.Background(b.bg)
	words := strings.Split(s, " ")
	for i, w := range words {
		if w != "" {
			words[i] = style.Render(w)
		}
	}
	return strings.Join(words, b.gap(1))
}

// pair renders a label immediately followed by its value.
func (b bar) pair(label string, labelStyle lipgloss.Style, value string, valueStyle lipgloss.Style) string {
	return b.text(label, labelStyle) + b.text(value, valueStyle)
}

func (b bar) join(segments []string) string {
	return strings.Join(segments, b.gap(2))
}

// renderMain renders the full console.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderList())
	b.WriteString("\n")
	b.WriteString(m.renderDetail())
	b.WriteString("\n")
	b.WriteString(m.renderNotice())
	return b.String()
}

// renderHeader renders the callsign, booking and sync state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBar(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.text("cadsync", styles.Logo)}

	callsign := m.backend.CurrentCallsign()
	if callsign == "" {
		parts = append(parts, bg.text("Not booked on", styles.MutedText))
	} else {
		parts = append(parts, bg.text(callsign, styles.Text.Bold(true)))
		if r, ok := m.snapshot.Resource(callsign); ok {
			parts = append(parts, styles.StatusStyle(string(r.Status)).Render(string(r.Status)))
			if inc := r.CurrentIncidentID(); inc != "" {
				parts = append(parts, bg.pair("Incident: ", styles.MutedText, inc, styles.AccentText))
			}
		}
	}

	if booking := m.backend.LastBookOn(); booking != nil && booking.ShiftEnd != nil && !compact {
		left := booking.ShiftEnd.Sub(m.now)
		label := "Shift ends " + booking.ShiftEnd.Format("15:04")
		style := styles.MutedText
		if left <= 0 {
			label = "Shift ended"
			style = styles.WarningText
		} else if left < 30*time.Minute {
			style = styles.WarningText
		}
		parts = append(parts, bg.text(label, style))
	}

	if !m.snapshot.LastSyncTime.IsZero() {
		age := humanizeDuration(m.now.Sub(m.snapshot.LastSyncTime))
		parts = append(parts, bg.pair("Synced: ", styles.MutedText, age, styles.Text))
	} else {
		parts = append(parts, bg.text("Waiting for first sync", styles.MutedText))
	}

	if m.snapshot.IsOffline() {
		warn := "● " + classifyError(m.snapshot.LastError)
		if !compact {
			warn += fmt.Sprintf(" (%d failed syncs)", m.snapshot.ConsecutiveFailures)
		}
		parts = append(parts, bg.text(warn, styles.DangerText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.join(parts))
}

// renderCommandBar renders the key hints and active filter toggles.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBar(m.theme.Surface)

	type cmd struct{ key, desc string }
	commands := []cmd{
		{"tab", "List"},
		{"t", m.filter.Tasking.String()},
		{"o", ternary(m.filter.ShowResultsOutsidePatrolArea, "Outside: on", "Outside: off")},
		{"/", "Search"},
		{"s", "Status"},
		{"F", "Finalise"},
		{"r", "Sync"},
		{"?", "More"},
	}
	if m.width < LayoutCompactWidth {
		commands = commands[:4]
	}

	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments, bg.pair(c.key+":", styles.AccentText, c.desc, styles.MutedText))
	}

	if m.filter.Search != "" && !m.searching {
		segments = append(segments, bg.text("/"+truncate(m.filter.Search, 18), styles.AccentText))
	}
	segments = append(segments, bg.pair("T:", styles.AccentText, m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(bg.join(segments))
}

// renderTabs renders the list kinds with their counts, or the search input
// while searching.
func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	if m.searching {
		return " " + m.search.View()
	}
	tabs := make([]string, 0, len(filter.Kinds))
	for _, k := range filter.Kinds {
		label := fmt.Sprintf(" %s %d ", k.String(), m.counts[k])
		if k == m.filter.Selected {
			tabs = append(tabs, styles.Selected.Bold(true).Render(label))
		} else {
			tabs = append(tabs, styles.MutedText.Render(label))
		}
	}
	return " " + strings.Join(tabs, " ")
}

// renderNotice renders the last action result.
func (m Model) renderNotice() string {
	styles := m.theme.Styles()
	if m.notice == "" {
		return ""
	}
	if m.noticeErr {
		return " " + styles.DangerText.Render(m.notice)
	}
	return " " + styles.SuccessText.Render(m.notice)
}
