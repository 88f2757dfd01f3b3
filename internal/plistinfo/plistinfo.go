// Package plistinfo extracts CFBundleIdentifier from Info.plist content.
//
// Two parsers implement the same capability: a structured parser that decodes
// XML, binary and OpenStep plists, and a pattern parser that scans XML text.
// New picks one (or a structured-then-pattern chain) at construction time.
package plistinfo

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"howett.net/plist"
)

// Parser modes accepted by New.
const (
	ModeAuto       = "auto"
	ModeStructured = "structured"
	ModePattern    = "pattern"
)

// ErrNoIdentifier is returned when the content carries no CFBundleIdentifier.
var ErrNoIdentifier = errors.New("no CFBundleIdentifier in plist")

// Parser extracts a bundle identifier from plist bytes.
type Parser interface {
	Name() string
	BundleIdentifier(data []byte) (string, error)
}

// New returns the parser for mode. Unknown or empty modes select auto.
func New(mode string) Parser {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeStructured:
		return Structured{}
	case ModePattern:
		return Pattern{}
	default:
		return Chain{Structured{}, Pattern{}}
	}
}

// Structured decodes the plist with howett.net/plist.
type Structured struct{}

func (Structured) Name() string { return ModeStructured }

func (Structured) BundleIdentifier(data []byte) (string, error) {
	var info struct {
		CFBundleIdentifier string `plist:"CFBundleIdentifier"`
	}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("decode plist: %w", err)
	}
	value := strings.TrimSpace(info.CFBundleIdentifier)
	if value == "" {
		return "", ErrNoIdentifier
	}
	return value, nil
}

var bundleIdentifierPattern = regexp.MustCompile(`<key>\s*CFBundleIdentifier\s*</key>\s*<string>\s*([^<\s]+)\s*</string>`)

// Pattern scans XML plist text for the CFBundleIdentifier key.
type Pattern struct{}

func (Pattern) Name() string { return ModePattern }

func (Pattern) BundleIdentifier(data []byte) (string, error) {
	value, ok := FindBundleIdentifier(string(data))
	if !ok {
		return "", ErrNoIdentifier
	}
	return value, nil
}

// FindBundleIdentifier returns the first CFBundleIdentifier value in text.
// Build-variable placeholders such as $(PRODUCT_BUNDLE_IDENTIFIER) are skipped.
func FindBundleIdentifier(text string) (string, bool) {
	for _, match := range bundleIdentifierPattern.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(match[1])
		if value == "" || strings.Contains(value, "$(") || strings.Contains(value, "${") {
			continue
		}
		return value, true
	}
	return "", false
}

// Chain tries each parser in order and returns the first success.
type Chain []Parser

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, p := range c {
		names = append(names, p.Name())
	}
	return strings.Join(names, "+")
}

func (c Chain) BundleIdentifier(data []byte) (string, error) {
	var errs []error
	for _, p := range c {
		value, err := p.BundleIdentifier(data)
		if err == nil {
			return value, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return "", ErrNoIdentifier
	}
	return "", errors.Join(errs...)
}
