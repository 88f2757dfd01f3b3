// Package services defines shared utilities consumed by the resolution
// strategies and the run orchestrator.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, record keys, and strategy names for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can tell fatal
//     configuration problems from per-record failures.
package services
