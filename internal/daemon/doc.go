// Package daemon coordinates the long-running curator process.
//
// It wires the webhook intake, the debounce coalescer, the stream poller and
// the dispatcher around one Orchestrator, serves the HTTP surface (webhook
// ingress plus the status, review and reprocess API) and holds a flock-based
// lock so only one instance writes the stores.
//
// Keep orchestration logic here: per-item processing lives in the pipeline
// package while the daemon focuses on startup, shutdown and high level
// coordination.
package daemon
