package llm

import "errors"

var (
	// ErrUnavailable marks a provider that cannot be reached or answered
	// with a non-success status.
	ErrUnavailable = errors.New("llm: model unavailable")

	// ErrEmptyResponse marks a reply with no usable text.
	ErrEmptyResponse = errors.New("llm: empty response")

	// ErrNoAPIKey marks a hosted provider configured without credentials.
	ErrNoAPIKey = errors.New("llm: missing API key")
)
