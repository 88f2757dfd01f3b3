// Package verifycache persists per-record verification outcomes and decides,
// from a record's current identifier and its cached entry, whether a record
// needs a lookup, a cache sync, or nothing at all.
//
// The whole snapshot is loaded once when a run starts and written once when it
// ends. A crash in between loses that run's progress, which is safe because
// re-running is idempotent.
package verifycache
