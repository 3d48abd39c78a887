// Package cast merges independently sourced actor lists into one
// authoritative, provenance-tagged cast.
//
// Reconcile runs a fixed sequence of stages. Each stage works on what the
// previous one left unmatched:
//
//  1. collapse duplicate names in the primary provider list
//  2. bind host actors to primary entries (external id, folded original
//     name, then reverse lookup through the translation cache)
//  3. keep unmatched primary entries as new members
//  4. merge secondary provider roles into members by name
//  5. supplement with unmatched secondary entries while under the cap
//  6. backfill missing profile images
//  7. optionally drop members without an image
//  8. truncate deterministically to the cap
//  9. localize names and roles
//  10. renumber, tag external ids and upsert each actor in its own
//     transaction
//
// The context is checked at the head of every stage loop; a cancelled run
// returns services.ErrCancelled and persists nothing further.
package cast
