// Package api defines the wire-format types of the daemon's HTTP API and a
// small client the CLI uses to reach it.
//
// # Key Types
//
// DaemonStatus: running state, dispatcher counters, pending debounce keys and
// store row counts.
//
// ReviewItem/ReviewListResponse: review queue rows as the operator sees them.
//
// ReprocessResponse/ScanResponse: acknowledgements for manually dispatched
// work.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// ReviewService wraps the store so handlers and the CLI render identical rows
// whether they read through the daemon or open the database directly.
package api
