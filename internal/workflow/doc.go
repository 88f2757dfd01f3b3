// Package workflow runs a verification pass over the record catalog.
//
// The Runner walks records in key order, asks the verification cache what
// each one needs, and either syncs the cache from the record, skips it, or
// resolves it through the pipeline (overrides first, then strategies). It
// rewrites record files whose identifier changed, writes one cache entry per
// decision, and at the end persists the cache snapshot and the unresolved
// report. Processing is strictly sequential; a fixed delay after any record
// that reached the network keeps outbound request rates low.
//
// A file lock next to the cache snapshot keeps two runs from racing on the
// same snapshot. Run history is recorded on a best-effort basis.
package workflow
