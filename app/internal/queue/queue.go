package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"k8s.io/klog/v2"
)

const (
	// DefaultMaxResponseBytes caps how much of an upstream body is read.
	DefaultMaxResponseBytes = 50_000
	// DefaultTimeout applies when a request carries no timeout of its own.
	DefaultTimeout = 30 * time.Second

	defaultLimitPerMin = 60
)

// ErrResponseTooLarge is returned when an upstream body exceeds the size budget.
var ErrResponseTooLarge = errors.New("upstream response exceeds size limit")

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.New("outcall queue closed")

// Queue paces outbound HTTP calls to a fixed per-minute budget.
type Queue struct {
	ch       chan entities.OutcallRequest
	client   *http.Client
	maxBytes int64

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a dispatcher that releases at most limitPerMin requests per
// minute. Non-positive limits fall back to 60.
func NewQueue(limitPerMin int, maxResponseBytes int64) *Queue {
	if limitPerMin <= 0 {
		klog.Warningf("outcall rate limit is %d, using %d per minute", limitPerMin, defaultLimitPerMin)
		limitPerMin = defaultLimitPerMin
	}
	if maxResponseBytes <= 0 {
		maxResponseBytes = DefaultMaxResponseBytes
	}

	q := &Queue{
		ch:       make(chan entities.OutcallRequest, 1000),
		client:   &http.Client{},
		maxBytes: maxResponseBytes,
	}

	interval := time.Minute / time.Duration(limitPerMin)
	go func() {
		for req := range q.ch {
			time.Sleep(interval)
			go q.handle(req)
		}
	}()

	return q
}

// Push enqueues r and blocks until the upstream answers or ctx is done.
func (q *Queue) Push(ctx context.Context, r entities.OutcallRequest) entities.OutcallResponse {
	r.Reply = make(chan entities.OutcallResponse, 1)
	r.Ctx = ctx

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return entities.OutcallResponse{Err: ErrQueueClosed}
	}
	select {
	case q.ch <- r:
		q.mu.RUnlock()
	case <-ctx.Done():
		q.mu.RUnlock()
		return entities.OutcallResponse{Err: ctx.Err()}
	}

	select {
	case resp := <-r.Reply:
		return resp
	case <-ctx.Done():
		return entities.OutcallResponse{Err: ctx.Err()}
	}
}

// Close stops the dispatcher. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *Queue) handle(p entities.OutcallRequest) {
	parent := p.Ctx
	if parent == nil {
		parent = context.Background()
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	method := p.Method
	if method == "" {
		method = http.MethodPost
	}
	klog.V(6).Infof("outcall: %s %s, body=%d bytes", method, p.URL, len(p.Body))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, p.URL, bytes.NewReader(p.Body))
	if err != nil {
		p.Reply <- entities.OutcallResponse{Err: fmt.Errorf("failed to build outcall request: %w", err)}
		return
	}
	if p.Headers != nil {
		req.Header = p.Headers.Clone()
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		klog.V(4).Infof("outcall to %s failed: %v", p.URL, err)
		p.Reply <- entities.OutcallResponse{Err: err, Latency: time.Since(start)}
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, q.maxBytes+1))
	latency := time.Since(start)
	if err != nil {
		p.Reply <- entities.OutcallResponse{Err: fmt.Errorf("failed to read outcall response: %w", err), Latency: latency}
		return
	}
	if int64(len(body)) > q.maxBytes {
		p.Reply <- entities.OutcallResponse{StatusCode: resp.StatusCode, Err: ErrResponseTooLarge, Latency: latency}
		return
	}

	klog.V(6).Infof("outcall to %s: status=%d, %d bytes in %s", p.URL, resp.StatusCode, len(body), latency)
	p.Reply <- entities.OutcallResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       body,
		Latency:    latency,
	}
}
