// Package logging assembles structured slog loggers and formatting helpers used
// across bundleid.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so resolution code can tag log
// lines with the run ID, record key, and active strategy. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
