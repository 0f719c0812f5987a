// Package state provides the canonical in-memory store of dispatch entities.
//
// # Overview
//
// The Store holds every incident, resource, patrol, broadcast and officer the
// client knows about, keyed by identifier or callsign, plus a secondary index
// from incident to assigned callsigns. It is the coordination point between
// the sync coordinator, the status machine, the booking workflow and the
// presentation layer.
//
// # Concurrency Model
//
// All mutation happens inside Store.Update, which holds the write lock for
// the duration of the callback. That lock is the single execution context
// for dispatch state: multi-step changes such as finalising an incident run
// inside one Update, so no reader can observe a resource pointing at an
// incident that has already been removed.
//
//	store.Update(func(tx *state.Tx) error {
//		tx.FinalizeIncident("I42")
//		tx.SetStatus("B14", cad.StatusOnAir)
//		return nil
//	})
//
// Remote calls never run under the lock. Callers fetch first and then enter
// Update to apply the result.
//
// # Change Notifications
//
// A Tx collects events while the callback runs. They are published on the
// events.Bus after the lock is released, deduplicated per update, so a slow
// subscriber can never stall a writer.
//
// # Merge Semantics
//
// Upsert replaces entities by identifier and inserts new ones. A full sync
// also removes entities missing from the response. Either way, assignment
// references to incidents that no longer exist are pruned in the same update.
// A full response whose server timestamp predates the last applied sync is
// rejected with cad.ErrStaleSync and leaves the store untouched.
//
// # Defensive Copying
//
// Every accessor returns clones. Snapshot copies the whole store at once for
// renderers that need a consistent view across entity kinds.
//
// # Invariants
//
//   - a resource's current incident is always in its assigned incidents
//   - a stored status is never Finalise and never outside the known set
//   - every assigned incident exists in the store
//   - the last sync time never moves backwards
//
// Absence is never an error: lookups return (zero, false).
package state
