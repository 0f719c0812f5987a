package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width to show the suburb column.
	LayoutWideWidth = 120
)

// Fixed rows outside the list: header, command bar, tabs, detail and notice.
const chromeRows = 5

// Timing constants.
const (
	// DefaultUIInterval refreshes relative timestamps between events.
	DefaultUIInterval = time.Second

	// ActionTimeout bounds status, book-off and sync requests from the console.
	ActionTimeout = 10 * time.Second

	// noticeTTL is how long an action result stays on screen.
	noticeTTL = 6 * time.Second
)
