// Package services defines shared utilities consumed by the pipeline stages
// and the external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp work keys, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into consistent dispositions (drop, review, fail).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services
