// Package llm provides an OpenAI-compatible chat client for visual
// description.
//
// This package is used by:
//   - Describer: turn a lyric line plus song context into a short concrete
//     visual sentence for image search
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title, timeout.
// The API key always comes from configuration or the environment, never code.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive plain-text response.
// Client.HealthCheck: verify API key and model availability.
// Retryable: classify an escaped error as transient or permanent.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 2s, max 16s, up to 3 attempts by default),
// honoring Retry-After headers. Context cancellation aborts retries
// immediately. Other 4xx responses and malformed completions are permanent
// and surface to the caller unretried.
//
// # Fallback
//
// If the model is unavailable or returns an error after retries, callers fall
// back to the raw lyric text rather than blocking the pipeline.
package llm
