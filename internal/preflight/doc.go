// Package preflight provides readiness checks for the filesystem paths,
// credentials, and external services a verification run depends on.
//
// The CLI "bundleid preflight" command runs every check and prints one status
// line per result.
// "bundleid run" calls RunAll before touching any record and refuses to
// start when a required check fails. Credential checks never fail a run:
// a missing token only disables the strategy that needs it.
package preflight
