// Package metrics tracks per-provider call statistics and exports them to
// Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderStats accumulates the calls made to one provider.
type ProviderStats struct {
	Requests       uint64  `json:"requests"`
	Successes      uint64  `json:"successes"`
	Failures       uint64  `json:"failures"`
	TotalLatencyMS uint64  `json:"total_latency_ms"`
	TotalTokens    uint64  `json:"total_tokens"`
	LastFailure    *string `json:"last_failure,omitempty"`
}

// AverageLatencyMS is the mean latency of successful calls.
func (s ProviderStats) AverageLatencyMS() float64 {
	if s.Successes == 0 {
		return 0
	}
	return float64(s.TotalLatencyMS) / float64(s.Successes)
}

// SuccessRate is successes over requests, 0 before the first request.
func (s ProviderStats) SuccessRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Requests)
}

// Snapshot is the aggregate view returned by the metrics endpoint.
type Snapshot struct {
	TotalRequests      uint64                   `json:"total_requests"`
	SuccessfulRequests uint64                   `json:"successful_requests"`
	FailedRequests     uint64                   `json:"failed_requests"`
	ProviderStats      map[string]ProviderStats `json:"provider_stats"`
}

// Collector records provider calls.
type Collector struct {
	mu       sync.Mutex
	snapshot Snapshot

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	sessions prometheus.Counter
}

// NewCollector creates a Collector and registers its Prometheus series on
// reg. A nil reg skips registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		snapshot: Snapshot{ProviderStats: make(map[string]ProviderStats)},
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llm_council",
			Name:      "provider_requests_total",
			Help:      "Provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llm_council",
			Name:      "provider_latency_seconds",
			Help:      "Latency of successful provider calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llm_council",
			Name:      "provider_tokens_total",
			Help:      "Tokens generated by provider.",
		}, []string{"provider"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llm_council",
			Name:      "query_sessions_total",
			Help:      "Completed fan-out query sessions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.requests, c.latency, c.tokens, c.sessions)
	}
	return c
}

// RecordSuccess counts a successful call.
func (c *Collector) RecordSuccess(provider string, latency time.Duration, tokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snapshot.ProviderStats[provider]
	s.Requests++
	s.Successes++
	s.TotalLatencyMS += uint64(latency.Milliseconds())
	s.TotalTokens += uint64(max(tokens, 0))
	c.snapshot.ProviderStats[provider] = s
	c.snapshot.TotalRequests++
	c.snapshot.SuccessfulRequests++

	c.requests.WithLabelValues(provider, "success").Inc()
	c.latency.WithLabelValues(provider).Observe(latency.Seconds())
	c.tokens.WithLabelValues(provider).Add(float64(max(tokens, 0)))
}

// RecordFailure counts a failed call and remembers its error.
func (c *Collector) RecordFailure(provider string, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snapshot.ProviderStats[provider]
	s.Requests++
	s.Failures++
	s.LastFailure = &errMsg
	c.snapshot.ProviderStats[provider] = s
	c.snapshot.TotalRequests++
	c.snapshot.FailedRequests++

	c.requests.WithLabelValues(provider, "failure").Inc()
}

// RecordSession counts a completed query session.
func (c *Collector) RecordSession() {
	c.sessions.Inc()
}

// Snapshot returns a copy of the accumulated statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.snapshot
	out.ProviderStats = make(map[string]ProviderStats, len(c.snapshot.ProviderStats))
	for k, v := range c.snapshot.ProviderStats {
		out.ProviderStats[k] = v
	}
	return out
}

// Reset clears the accumulated statistics. Prometheus series are monotonic
// and are not reset.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = Snapshot{ProviderStats: make(map[string]ProviderStats)}
}
