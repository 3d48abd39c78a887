// Package store persists canonical media records, their season and episode
// children, the actor table, the processed/failed logs and the review queue in
// SQLite.
//
// Records are keyed by (external id, item type) and upserted on conflict.
// Actor writes run one transaction per row so a single failing member never
// aborts the rest of a cast list. Schema changes ship as goose migrations
// embedded in the binary.
package store
