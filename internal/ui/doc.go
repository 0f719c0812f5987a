// Package ui is the Bubble Tea dispatch console.
//
// The console shows one list kind at a time (incidents, patrols,
// broadcasts or resources) partitioned into the operator's patrol group and
// "Other", then into buckets. It redraws whenever the session store
// publishes a change event and once a second so relative times stay fresh.
//
// Status changes, finalising and book-off run as Bubble Tea commands off the
// UI goroutine with a timeout. Their result is shown in the notice line and
// the list picks up the store change through the event feed, so the console
// never edits dispatch state itself.
//
// Theme and filter choices are written to the prefs file as they change.
// Search text is kept for the session only.
package ui
