package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/internal/metrics"
)

// Fetcher performs the actual network call, typically through a pooled
// browser instance.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// Executor wraps outbound requests with per-domain failure isolation:
// circuit breaker, response cache, retry with backoff, and an adaptive
// timeout, composed in that order. Breakers and timeout windows are created
// lazily per domain and never shared across domains.
type Executor struct {
	breakerCfg CircuitBreakerConfig
	timeoutCfg AdaptiveTimeoutConfig
	retry      RetryPolicy
	cache      *ResponseCache

	breakers map[string]*CircuitBreaker
	timeouts map[string]*AdaptiveTimeout
	mu       sync.Mutex

	onBreakerChange func(domain string, from, to State)
}

type ExecutorConfig struct {
	Breaker         CircuitBreakerConfig
	Timeout         AdaptiveTimeoutConfig
	Retry           RetryPolicy
	Cache           CacheConfig
	OnBreakerChange func(domain string, from, to State)
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &Executor{
		breakerCfg:      cfg.Breaker,
		timeoutCfg:      cfg.Timeout,
		retry:           cfg.Retry,
		cache:           NewResponseCache(cfg.Cache),
		breakers:        make(map[string]*CircuitBreaker),
		timeouts:        make(map[string]*AdaptiveTimeout),
		onBreakerChange: cfg.OnBreakerChange,
	}
}

// Do executes one request: breaker admission, cache lookup, then the
// retry-wrapped fetch under the domain's adaptive timeout. The outcome is
// recorded into the breaker, the timeout window, and the cache.
func (e *Executor) Do(ctx context.Context, fetcher Fetcher, req *Request) (*Response, error) {
	domain, err := domainOf(req.URL)
	if err != nil {
		return nil, err
	}

	breaker := e.breaker(domain)
	call, err := breaker.Allow()
	if err != nil {
		return nil, err
	}

	if cached, ok := e.cache.Get(req); ok {
		call.Cancel()
		metrics.RecordCacheHit()
		logger.WithDomain(domain).Debugf("Cache hit: %s %s", req.Method, req.URL)
		return cached, nil
	}

	timeout := e.timeout(domain)

	var resp *Response
	err = e.retry.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout.Current())
		defer cancel()

		start := time.Now()
		r, fetchErr := fetcher.Fetch(attemptCtx, req)
		elapsed := time.Since(start)
		timeout.Record(elapsed)

		if fetchErr != nil {
			// An expired attempt deadline is a per-attempt timeout, not a
			// caller cancellation. Reclassify it so the retry policy sees a
			// retryable timeout; a dead parent context still propagates as-is.
			if errors.Is(fetchErr, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("fetch timeout after %s: %w", elapsed.Round(time.Millisecond), fetchErr)
			}
			return fetchErr
		}
		if r.StatusCode >= 400 {
			return &StatusError{Code: r.StatusCode}
		}

		resp = r
		return nil
	})

	if err != nil {
		if errors.Is(err, context.Canceled) {
			call.Cancel()
		} else {
			call.Failure()
		}
		return nil, err
	}

	call.Success()
	e.cache.Put(req, resp)
	return resp, nil
}

// BreakerState reports the breaker state for a domain; closed when no
// breaker has been created yet.
func (e *Executor) BreakerState(domain string) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[domain]; ok {
		return cb.State()
	}
	return StateClosed
}

func (e *Executor) CacheStats() (hits, misses int64, entries int, size int64) {
	return e.cache.Stats()
}

func (e *Executor) breaker(domain string) *CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[domain]; ok {
		return cb
	}

	cfg := e.breakerCfg
	cfg.Name = domain
	cfg.OnStateChange = e.onBreakerChange
	cb := NewCircuitBreaker(cfg)
	e.breakers[domain] = cb
	return cb
}

func (e *Executor) timeout(domain string) *AdaptiveTimeout {
	e.mu.Lock()
	defer e.mu.Unlock()

	if at, ok := e.timeouts[domain]; ok {
		return at
	}

	at := NewAdaptiveTimeout(e.timeoutCfg)
	e.timeouts[domain] = at
	return at
}

func domainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return rawURL, nil
	}
	return u.Hostname(), nil
}
