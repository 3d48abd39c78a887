// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Review routing and unit failures are the events worth a push;
// repeats of the same event for the same media key inside the dedup window
// are swallowed.
package notifications
