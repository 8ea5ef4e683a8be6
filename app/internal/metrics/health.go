package metrics

import "time"

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// BreakerView reports whether a provider's circuit breaker is open.
type BreakerView interface {
	IsOpen(provider string) bool
}

// ProviderHealth is the health of one provider.
type ProviderHealth struct {
	Status             string  `json:"status"`
	SuccessRate        float64 `json:"success_rate"`
	AverageLatencyMS   float64 `json:"average_latency_ms"`
	CircuitBreakerOpen bool    `json:"circuit_breaker_open"`
}

// HealthReport is the service health.
type HealthReport struct {
	Status    string                    `json:"status"`
	Providers map[string]ProviderHealth `json:"providers"`
	CheckedAt time.Time                 `json:"checked_at"`
}

// ProviderStatus classifies a provider from its success rate.
func ProviderStatus(successRate float64, breakerOpen bool) string {
	switch {
	case breakerOpen:
		return StatusUnhealthy
	case successRate > 0.9:
		return StatusHealthy
	case successRate > 0.7:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Health reports every provider that has been called. The service is
// degraded when any provider is not healthy and unhealthy when none is.
func (c *Collector) Health(breakers BreakerView) HealthReport {
	snap := c.Snapshot()
	report := HealthReport{
		Status:    StatusHealthy,
		Providers: make(map[string]ProviderHealth, len(snap.ProviderStats)),
		CheckedAt: time.Now(),
	}

	healthy := 0
	for name, stats := range snap.ProviderStats {
		open := breakers != nil && breakers.IsOpen(name)
		ph := ProviderHealth{
			Status:             ProviderStatus(stats.SuccessRate(), open),
			SuccessRate:        stats.SuccessRate(),
			AverageLatencyMS:   stats.AverageLatencyMS(),
			CircuitBreakerOpen: open,
		}
		report.Providers[name] = ph
		if ph.Status == StatusHealthy {
			healthy++
		}
	}

	switch {
	case len(report.Providers) == 0:
	case healthy == 0:
		report.Status = StatusUnhealthy
	case healthy < len(report.Providers):
		report.Status = StatusDegraded
	}
	return report
}
