package llm

import "errors"

// Sentinel errors for LLM gateway operations.
var (
	// ErrRateLimited is returned when the provider rejects a request
	// with a 429 after all retries are exhausted.
	ErrRateLimited = errors.New("llm provider rate limited")

	// ErrTransient is returned when a request keeps failing with a
	// retryable transport, 429 or 5xx error.
	ErrTransient = errors.New("llm request failed after retries")

	// ErrEmptyResponse is returned when the provider answers with no
	// choices.
	ErrEmptyResponse = errors.New("llm returned an empty response")
)
