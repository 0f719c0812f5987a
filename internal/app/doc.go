// Package app is the composition root for cadsync.
//
// Open loads the config and prefs files, opens the log file and builds a
// session.Manager around the dispatch API client. The console and the
// one-shot CLI commands both start from an Env.
//
// Start performs the first sync synchronously, then runs in the background:
//
//   - scope polling at the configured interval, backing off on failures
//   - the live change feed, which nudges the poller on every event
//   - a manifest refresh for lookup collections
//
// Run adds the Bubble Tea console on top and returns when the operator quits
// or the context is cancelled. Shift-end reminders are logged and forwarded
// to the console through Env.Alerts.
package app
