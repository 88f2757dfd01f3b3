// Package codesearch implements the GitHub code search strategy: it looks for
// Info.plist files that mention the record name, reads up to a few of them,
// and keeps a CFBundleIdentifier only when it plausibly belongs to the record.
//
// The strategy is disabled, not failing, when no token is configured.
package codesearch
