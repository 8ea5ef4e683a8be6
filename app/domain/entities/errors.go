package entities

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionTerminal   = errors.New("session already finished")
	ErrInvalidScore      = errors.New("review scores must be between 1 and 10")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrNoProvidersConfigured means no provider is both enabled and holding an API key.
	ErrNoProvidersConfigured = errors.New("no LLM providers configured")
	// ErrAllProvidersFailed means providers were tried and none answered.
	ErrAllProvidersFailed = errors.New("all LLM providers failed")
	ErrRateLimited        = errors.New("rate limit exceeded, please try again in a minute")
	ErrProviderNotFound   = errors.New("provider not found")

	ErrUnauthorized = errors.New("not authorized")
	ErrAnonymous    = errors.New("authentication required")

	ErrMemoryNotFound    = errors.New("no memory found for user")
	ErrNodeNotFound      = errors.New("knowledge node not found")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
