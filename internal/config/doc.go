// Package config loads, normalizes, and validates curator configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY and CURATOR_HOST_API_KEY. The Config type centralizes every
// knob the daemon and CLI need, from the webhook debounce window to the cast
// cap and review threshold.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
