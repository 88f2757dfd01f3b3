// Package config loads, normalizes, and validates bundleid configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GITHUB_TOKEN and OPENROUTER_API_KEY. The Config type centralizes every knob a
// verification run needs: the record directory, cache and override files, the
// ordered strategy list, and per-strategy credentials and timeouts.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical strategy names, and clear validation errors.
package config
