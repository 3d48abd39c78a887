// Package tmdb provides the TMDB API client used as the primary metadata
// provider.
//
// It exposes movie and TV detail lookups with credits attached, title search
// with an optional year filter, full series aggregation (details plus every
// season), lookups by foreign ids such as IMDb, and person detail retrieval.
// Transient HTTP failures are retried; a 404 surfaces as services.ErrNotFound.
package tmdb
