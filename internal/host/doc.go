// Package host talks to the Emby/Jellyfin-compatible library server that
// emits change notifications.
//
// The client covers item detail lookups (including media stream readiness),
// library paging for scans, and refresh triggers by item id or filesystem
// path. Transient failures are retried with exponential backoff; a missing
// item surfaces as services.ErrNotFound and is never retried.
package host
