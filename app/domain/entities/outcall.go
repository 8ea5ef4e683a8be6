package entities

import (
	"context"
	"net/http"
	"time"
)

// OutcallRequest is an outbound HTTP call waiting in the outcall queue.
type OutcallRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	APIKey  string
	Timeout time.Duration
	Reply   chan OutcallResponse

	// Ctx is the caller context; set by the queue on Push.
	Ctx context.Context
}

// OutcallResponse carries the upstream answer, or the error that prevented one.
type OutcallResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Latency    time.Duration
	Err        error
}
