// Package assisted implements the language-model lookup strategies. Two
// prompt variants (detailed and concise) run as separate strategies against
// the same backend, which is either the OpenRouter chat client with its web
// plugin or Gemini with Google Search grounding.
package assisted
