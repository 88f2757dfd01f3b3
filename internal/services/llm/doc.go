// Package llm talks to OpenRouter's chat completion endpoint on behalf of the
// assisted search strategies.
//
// Each call is a single system+user exchange at temperature zero; the answer
// text is returned trimmed and interpretation is left to the caller. Web
// search grounding is opt-in through Config.WebSearch.
//
// Requests are retried on 408, 429, 5xx, network timeouts and empty answers,
// doubling from one second up to ten (five attempts by default). A
// Retry-After header overrides the computed wait.
package llm
