package resilience

import (
	"sync"
	"time"

	"k8s.io/klog/v2"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 60 * time.Second
)

// BreakerState is a snapshot of one provider's breaker.
type BreakerState struct {
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure"`
	Open        bool      `json:"open"`
}

// Breakers keeps a circuit breaker per provider. A breaker is open while the
// consecutive failure count is at or above the threshold and the last
// failure is younger than the cooldown. Any success closes it.
type Breakers struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu     sync.Mutex
	states map[string]*BreakerState
}

// NewBreakers creates a breaker set. Non-positive arguments use the defaults.
func NewBreakers(threshold int, cooldown time.Duration) *Breakers {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breakers{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		states:    make(map[string]*BreakerState),
	}
}

// IsOpen reports whether calls to provider should be skipped.
func (b *Breakers) IsOpen(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen(b.states[provider])
}

// RecordSuccess closes the breaker for provider.
func (b *Breakers) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.states[provider]; ok && s.Failures > 0 {
		klog.V(4).Infof("circuit breaker reset: provider=%s", provider)
	}
	b.states[provider] = &BreakerState{}
}

// RecordFailure counts a failed call against provider.
func (b *Breakers) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[provider]
	if !ok {
		s = &BreakerState{}
		b.states[provider] = s
	}
	s.Failures++
	s.LastFailure = b.now()
	if s.Failures == b.threshold {
		klog.Warningf("circuit breaker opened: provider=%s, failures=%d", provider, s.Failures)
	}
}

// State returns a snapshot for provider.
func (b *Breakers) State(provider string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[provider]
	if !ok {
		return BreakerState{}
	}
	out := *s
	out.Open = b.isOpen(s)
	return out
}

func (b *Breakers) isOpen(s *BreakerState) bool {
	if s == nil {
		return false
	}
	return s.Failures >= b.threshold && b.now().Sub(s.LastFailure) < b.cooldown
}
