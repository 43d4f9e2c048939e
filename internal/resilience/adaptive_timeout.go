package resilience

import (
	"sort"
	"sync"
	"time"
)

const (
	timeoutWindowSize = 100
	minSamplesForTune = 10
)

// AdaptiveTimeout tunes a per-domain request timeout from recent latency.
// Once ten samples exist, a p95 above the response-time threshold raises the
// timeout by the adjustment factor; a mean below half the threshold lowers
// it. The active value is always inside [minTimeout, maxTimeout].
type AdaptiveTimeout struct {
	samples []time.Duration
	current time.Duration
	mu      sync.Mutex

	minTimeout        time.Duration
	maxTimeout        time.Duration
	adjustmentFactor  float64
	responseThreshold time.Duration
}

type AdaptiveTimeoutConfig struct {
	MinTimeout            time.Duration
	MaxTimeout            time.Duration
	AdjustmentFactor      float64
	ResponseTimeThreshold time.Duration
}

func NewAdaptiveTimeout(cfg AdaptiveTimeoutConfig) *AdaptiveTimeout {
	if cfg.MinTimeout <= 0 {
		cfg.MinTimeout = 2 * time.Second
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = 30 * time.Second
	}
	if cfg.AdjustmentFactor <= 1 {
		cfg.AdjustmentFactor = 1.5
	}
	if cfg.ResponseTimeThreshold <= 0 {
		cfg.ResponseTimeThreshold = 1 * time.Second
	}

	return &AdaptiveTimeout{
		samples:           make([]time.Duration, 0, timeoutWindowSize),
		current:           cfg.MinTimeout,
		minTimeout:        cfg.MinTimeout,
		maxTimeout:        cfg.MaxTimeout,
		adjustmentFactor:  cfg.AdjustmentFactor,
		responseThreshold: cfg.ResponseTimeThreshold,
	}
}

func (a *AdaptiveTimeout) Current() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Record adds one observed response time and retunes the active timeout.
func (a *AdaptiveTimeout) Record(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, d)
	if len(a.samples) > timeoutWindowSize {
		a.samples = a.samples[len(a.samples)-timeoutWindowSize:]
	}

	if len(a.samples) < minSamplesForTune {
		return
	}

	p95 := percentile(a.samples, 0.95)
	mean := meanDuration(a.samples)

	switch {
	case p95 > a.responseThreshold:
		next := time.Duration(float64(a.current) * a.adjustmentFactor)
		if next > a.maxTimeout {
			next = a.maxTimeout
		}
		a.current = next

	case mean < a.responseThreshold/2:
		next := time.Duration(float64(a.current) / a.adjustmentFactor)
		if next < a.minTimeout {
			next = a.minTimeout
		}
		a.current = next
	}
}

func (a *AdaptiveTimeout) SampleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

func percentile(samples []time.Duration, p float64) time.Duration {
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted))*p) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func meanDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}
