// Package logs reads the bundleid log file for the CLI: the last N lines of a
// finished run, or new lines as a live run appends them.
package logs
