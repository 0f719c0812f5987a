package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/luke-gs/cadsync/internal/logtail"
)

var helpTitles = []string{"Lists", "Navigation", "Filter", "Callsign", "General"}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 34)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)

	groups := m.keys.FullHelp()
	for i, group := range groups {
		if i < len(helpTitles) {
			b.WriteString(styles.AccentText.Bold(true).Render(helpTitles[i]))
			b.WriteString("\n")
		}
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}
		if i < len(groups)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(44)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

// renderStatusMenu renders the status picker overlay.
func (m Model) renderStatusMenu() string {
	styles := m.theme.Styles()

	var b strings.Builder
	title := "Change status"
	if cs := m.backend.CurrentCallsign(); cs != "" {
		title += " for " + cs
	}
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("\n")
	if inc := m.menuIncidentID(); inc != "" {
		b.WriteString(styles.MutedText.Render("Incident " + inc))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for i, st := range menuStatuses {
		label := string(st)
		line := padRight(label, 16)
		if i == m.statusIdx {
			b.WriteString(styles.Selected.Render("› " + line))
		} else {
			b.WriteString(styles.StatusStyle(label).Render(" ") + " " + styles.Text.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter apply · esc cancel"))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(36)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

// renderLogs renders the tail of the session log, coloured by level.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Session log"))
	b.WriteString("  ")
	b.WriteString(styles.FaintText.Render(m.logPath))
	b.WriteString("\n\n")

	if len(m.logLines) == 0 {
		b.WriteString(styles.MutedText.Render("  (empty)"))
		b.WriteString("\n")
	}
	for _, line := range m.logLines {
		style := styles.MutedText
		switch logtail.Level(line) {
		case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
			style = styles.DangerText
		case logrus.WarnLevel:
			style = styles.WarningText
		case logrus.DebugLevel, logrus.TraceLevel:
			style = styles.FaintText
		}
		b.WriteString(style.Render(truncate(line, width-2)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("L or esc to close"))
	return b.String()
}
