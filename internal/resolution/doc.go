// Package resolution runs the ordered lookup strategies that resolve a
// record's bundle identifier.
//
// A Pipeline consults the override registry first. When an override exists,
// no strategy runs. Otherwise each configured Strategy is invoked in order
// until one returns an identifier that passes validation. Strategy errors and
// panics are logged and treated as "no result"; they never abort the pipeline.
//
// Strategy implementations live in subpackages (catalog, archive, codesearch,
// assisted, homebrew) and are assembled by the session package from config.
package resolution
