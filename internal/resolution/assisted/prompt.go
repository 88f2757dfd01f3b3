package assisted

import (
	"fmt"
	"strings"

	"bundleid/internal/records"
)

// UnknownToken is the literal the model must return when it is not confident.
const UnknownToken = "UNKNOWN"

// DetailedSystemPrompt frames the primary lookup.
const DetailedSystemPrompt = `You are a macOS software packaging expert with web search access.

Your task is to find the EXACT CFBundleIdentifier of a macOS application, as it
appears in the Info.plist inside the .app bundle.

Only use evidence from trusted sources:
1. The vendor's own documentation, support articles or release notes
2. MDM and enterprise deployment guides (Jamf, Kandji, Mosyle, Microsoft Intune, configuration profile examples)
3. Metadata files in source code hosting (Info.plist, Homebrew cask definitions, project build settings)

Rules:
- Never invent or guess an identifier. Do not construct one from the vendor name.
- Bundle identifiers use reverse domain notation, for example com.apple.Safari or org.mozilla.firefox.
- The package receipt identifier of an installer is NOT the app bundle identifier unless a source says so.
- If you cannot confirm the identifier from a trusted source, respond with UNKNOWN.

Respond with ONLY the bundle identifier on a single line, or UNKNOWN.`

// ConciseSystemPrompt frames the secondary lookup.
const ConciseSystemPrompt = `Search the web for the macOS bundle identifier (CFBundleIdentifier) of the named app.
Trust only vendor docs, MDM/enterprise deployment guides, and Info.plist or Homebrew cask files in public repositories.
Do not fabricate. Answer with the identifier alone, or UNKNOWN if you are not certain.`

// Variant is one prompt framing.
type Variant struct {
	Name   string
	System string
	User   func(records.Record) string
}

// DetailedVariant asks with full record context.
var DetailedVariant = Variant{
	Name:   "ai_search",
	System: DetailedSystemPrompt,
	User:   detailedUserPrompt,
}

// ConciseVariant asks with the name, publisher and homepage only.
var ConciseVariant = Variant{
	Name:   "ai_search_concise",
	System: ConciseSystemPrompt,
	User:   conciseUserPrompt,
}

func detailedUserPrompt(record records.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Application Name: %s\n", orNA(record.Name))
	fmt.Fprintf(&b, "Description: %s\n", orNA(record.Description))
	fmt.Fprintf(&b, "Homepage: %s\n", orNA(record.Homepage))
	fmt.Fprintf(&b, "Publisher: %s\n", orNA(record.Publisher))
	fmt.Fprintf(&b, "Current identifier (may be wrong): %s\n", orNA(record.Identifier))
	if url := strings.TrimSpace(record.ArtifactURL); url != "" {
		fmt.Fprintf(&b, "Download URL: %s\n", url)
	}
	b.WriteString("\nWhat is the bundle identifier?")
	return b.String()
}

func conciseUserPrompt(record records.Record) string {
	parts := []string{strings.TrimSpace(record.Name)}
	if publisher := strings.TrimSpace(record.Publisher); publisher != "" {
		parts = append(parts, "by "+publisher)
	}
	if homepage := strings.TrimSpace(record.Homepage); homepage != "" {
		parts = append(parts, "("+homepage+")")
	}
	return "macOS app: " + strings.Join(parts, " ")
}

func orNA(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "N/A"
	}
	return value
}
