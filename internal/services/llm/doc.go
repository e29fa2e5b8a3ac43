// Package llm provides an OpenAI-compatible chat client for transcript
// analysis.
//
// The client sends the transcript with a structured prompt requesting a JSON
// object (summary, topics, tags, highlight moments, scores) and decodes the
// response tolerantly, stripping code fences and surrounding prose when
// needed.
//
// Retries cover HTTP 408/429/5xx responses and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
package llm
