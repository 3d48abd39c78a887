// Package main hosts the curator CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon, talks to a running daemon
// over its HTTP API for status, scans and manual reprocessing, and reads the
// record store directly for review queue maintenance. Configuration
// resolution lives in commandContext so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
