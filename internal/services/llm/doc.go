// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) that returns JSON payloads.
//
// The translation engine is the only caller: it sends a system prompt per
// translation mode and decodes the returned term map with DecodeLLMJSON.
//
// # Retry Behaviour
//
// Requests are retried with retry-go on HTTP 408/429/5xx, network timeouts
// and empty completions, doubling from 1s up to 10s. Retry-After is honoured.
// Context cancellation aborts retries immediately.
package llm
