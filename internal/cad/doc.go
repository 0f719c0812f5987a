// Package cad provides the dispatch domain model and the client for the
// remote computer-aided-dispatch service.
//
// # Overview
//
// The package is split into four files:
//
//   - types.go: incidents, resources, patrols, broadcasts, officers and the
//     request/response bundles exchanged with the server
//   - status.go: the resource status enum and its behavioural classes
//   - client.go: HTTP client for the dispatch JSON API
//   - feed.go: websocket subscriber for server change hints
//
// # Client Usage
//
//	client, err := cad.NewClient("https://cad.example.net")
//	if err != nil {
//		return err
//	}
//	resp, err := client.FetchSync(ctx, cad.PatrolGroupScope("Collingwood"))
//
// # API Endpoints
//
//   - GET  /api/sync[?patrolGroup=|?nw=&se=]: sync summary for a scope
//   - POST /api/bookon, POST /api/bookoff: shift booking
//   - POST /api/resources/{callsign}/status: resource status change
//   - GET  /api/incidents/{id}, GET /api/resources/{callsign}: details
//   - GET  /api/manifest: lookup collections delta
//   - GET  /api/feed (websocket): change hints
//
// Every request carries a fresh X-Request-ID so the server can correlate
// retries. Responses with status >= 400 come back as *APIError; a 2xx
// acknowledgement with accepted=false is reported the same way with 422.
//
// # Status Classes
//
// Statuses fall into four classes. General statuses carry no incident.
// Incident statuses require a current incident. Duress is an emergency and
// keeps whatever incident the unit is on. Finalise closes the current
// incident and is never stored on a resource; it always resolves to On Air.
package cad
