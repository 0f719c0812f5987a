package ui

import (
	"fmt"
	"strings"

	"github.com/luke-gs/cadsync/internal/filter"
)

type rowKind int

const (
	rowSection rowKind = iota
	rowBucket
	rowItem
)

// row is one rendered line of the sectioned list.
type row struct {
	kind        rowKind
	key         string
	title       string
	count       int
	collapsible bool
	collapsed   bool
	item        filter.Item
}

// buildRows flattens sections into list rows. Items of collapsed buckets are
// left out; non-collapsible buckets always show their items.
func buildRows(sections []filter.Section, collapsed map[string]bool) []row {
	var out []row
	for _, s := range sections {
		out = append(out, row{kind: rowSection, key: s.Title, title: s.Title, count: s.Len()})
		for _, b := range s.Buckets {
			k := s.Title + "/" + b.Title
			isCollapsed := b.Collapsible && collapsed[k]
			out = append(out, row{
				kind:        rowBucket,
				key:         k,
				title:       b.Title,
				count:       len(b.Items),
				collapsible: b.Collapsible,
				collapsed:   isCollapsed,
			})
			if isCollapsed {
				continue
			}
			for _, it := range b.Items {
				out = append(out, row{kind: rowItem, key: k + "/" + it.ID, item: it})
			}
		}
	}
	return out
}

// renderList renders the visible window of rows.
func (m Model) renderList() string {
	styles := m.theme.Styles()
	h := m.listHeight()

	if len(m.rows) == 0 {
		msg := "No " + strings.ToLower(m.filter.Selected.String())
		if m.filter.Search != "" {
			msg += " match \"" + m.filter.Search + "\""
		}
		lines := []string{styles.MutedText.Render("  " + msg)}
		for len(lines) < h {
			lines = append(lines, "")
		}
		return strings.Join(lines, "\n")
	}

	end := m.offset + h
	if end > len(m.rows) {
		end = len(m.rows)
	}
	lines := make([]string, 0, h)
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(m.rows[i], i == m.selected))
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(r row, selected bool) string {
	styles := m.theme.Styles()
	width := m.width
	if width <= 0 {
		width = 80
	}

	var line string
	switch r.kind {
	case rowSection:
		text := fmt.Sprintf(" %s (%d)", r.title, r.count)
		if selected {
			return styles.Selected.Bold(true).Width(width).Render(text)
		}
		return styles.AccentText.Bold(true).Render(text)

	case rowBucket:
		marker := "  "
		if r.collapsible {
			marker = ternary(r.collapsed, "▸ ", "▾ ")
		}
		text := fmt.Sprintf("  %s%s (%d)", marker, r.title, r.count)
		if selected {
			return styles.Selected.Width(width).Render(text)
		}
		if r.title == filter.BucketDuress {
			return styles.DangerText.Render(text)
		}
		return styles.MutedText.Render(text)
	}

	it := r.item
	compact := width < LayoutCompactWidth
	titleWidth := 28
	if compact {
		titleWidth = 18
	}

	if selected {
		plain := "      " + padRight(truncate(it.Title, titleWidth), titleWidth) + "  " + it.Subtitle
		if !compact {
			plain += "  " + it.Suburb
		}
		return styles.Selected.Width(width).Render(truncate(plain, width))
	}

	badge := "  "
	switch {
	case it.Duress:
		badge = styles.DangerText.Render("! ")
	case it.Kind == filter.KindIncident && it.Grade != "":
		badge = styles.GradeStyle(string(it.Grade)).Render("● ")
	case it.Status != "":
		badge = styles.StatusStyle(it.Status).Render(" ") + " "
	}

	line = "    " + badge +
		styles.Text.Render(padRight(truncate(it.Title, titleWidth), titleWidth)) + "  " +
		styles.MutedText.Render(truncate(it.Subtitle, 40))
	if width >= LayoutWideWidth && it.Suburb != "" {
		line += "  " + styles.FaintText.Render(it.Suburb)
	}
	return line
}

// renderDetail renders the selected item's summary line.
func (m Model) renderDetail() string {
	styles := m.theme.Styles()
	it, ok := m.selectedItem()
	if !ok {
		return styles.FaintText.Render(" ")
	}
	parts := []string{styles.Text.Bold(true).Render(it.Title)}
	if it.Status != "" {
		parts = append(parts, styles.StatusStyle(it.Status).Render(it.Status))
	}
	if it.Subtitle != "" {
		parts = append(parts, styles.MutedText.Render(it.Subtitle))
	}
	if it.PatrolGroup != "" {
		parts = append(parts, styles.FaintText.Render(it.PatrolGroup))
	}
	if !it.Time.IsZero() {
		parts = append(parts, styles.FaintText.Render(humanizeDuration(m.now.Sub(it.Time))+" ago"))
	}
	if it.Kind == filter.KindIncident {
		var callsigns []string
		for _, r := range m.snapshot.ResourcesForIncident(it.ID) {
			callsigns = append(callsigns, r.Callsign)
		}
		if len(callsigns) > 0 {
			parts = append(parts, styles.InfoText.Render(strings.Join(callsigns, ", ")))
		}
	}
	return " " + strings.Join(parts, "  ")
}
