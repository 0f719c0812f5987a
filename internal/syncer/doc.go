// Package syncer keeps the state store in step with the dispatch service.
//
// A Coordinator offers three sync scopes: everything, one patrol group, or a
// map bounding box. Calls that arrive while a fetch for the same scope key is
// in flight attach to it instead of issuing another request; the key is
// released once the fetch settles, whether it succeeded or failed.
//
// Bounding-box syncs are throttled: if the last synced box already contains
// the requested one the call returns a Skipped result without fetching,
// unless force is set.
//
// A failed fetch is returned wrapped in cad.ErrSyncFailed and recorded on the
// store, whose data and last sync time stay as they were. A full response
// older than the last applied sync is dropped by the store and only logged.
//
// Run is the background poll loop. It doubles the wait after each
// consecutive failure up to a 30 second ceiling and resets on success.
package syncer
