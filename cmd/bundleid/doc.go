// Package main hosts the bundleid CLI entrypoint and command graph.
//
// The Cobra-based command tree runs verification passes over the record
// catalog, dry-runs single lookups, inspects and edits the verification
// cache, lists run history, runs preflight checks, tails the log, and scaffolds
// configuration. It centralizes configuration resolution and logging setup so
// subcommands can focus on output instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
