// Package pipeline turns coalesced work items into reconciled media records.
//
// The Orchestrator resolves a unit's canonical key, inspects the relational
// store and the override cache, and takes exactly one branch of the decision
// matrix: confirm, materialize files from the record, backfill the record
// from files, or run full provider resolution with cast reconciliation. Only
// the last branch talks to metadata providers. Every branch that writes data
// ends with the quality gate and a processed-log entry.
//
// The Dispatcher runs work items on a bounded worker pool and is the
// outermost recovery boundary: a panic inside one unit is logged, written to
// the review queue and never takes down the daemon.
package pipeline
