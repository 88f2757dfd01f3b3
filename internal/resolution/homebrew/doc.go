// Package homebrew resolves identifiers from Homebrew cask metadata. Casks
// name the bundle identifiers their uninstall and zap stanzas act on, which
// is usually the app's CFBundleIdentifier or its installer receipt.
//
// The strategy is opt-in: it runs only when listed in resolution.strategies.
package homebrew
