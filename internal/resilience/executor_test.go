package resilience_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scraperfleet/browserfarm/internal/resilience"
)

type stubFetcher struct {
	calls int32
	fetch func(ctx context.Context, req *resilience.Request) (*resilience.Response, error)
}

func (f *stubFetcher) Fetch(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fetch(ctx, req)
}

func okFetcher() *stubFetcher {
	return &stubFetcher{fetch: func(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
		return &resilience.Response{
			StatusCode: 200,
			Headers:    map[string]string{"Content-Type": "text/html"},
			Body:       []byte("ok"),
		}, nil
	}}
}

func statusFetcher(code int) *stubFetcher {
	return &stubFetcher{fetch: func(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
		return &resilience.Response{StatusCode: code}, nil
	}}
}

func newTestExecutor(breakerThreshold int) *resilience.Executor {
	return resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: breakerThreshold,
			RecoveryTimeout:  time.Minute,
		},
		Retry: resilience.RetryPolicy{
			MaxAttempts:     1,
			BaseDelay:       time.Millisecond,
			RetryableStatus: []int{502, 503, 504},
		},
	})
}

func TestExecutor_CacheHitSkipsFetcher(t *testing.T) {
	exec := newTestExecutor(5)
	fetcher := okFetcher()
	req := &resilience.Request{Method: "GET", URL: "https://example.com/page"}

	_, err := exec.Do(context.Background(), fetcher, req)
	require.NoError(t, err)

	resp, err := exec.Do(context.Background(), fetcher, req)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), resp.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))

	hits, misses, entries, _ := exec.CacheStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, entries)
}

func TestExecutor_ErrorStatusBecomesStatusError(t *testing.T) {
	exec := newTestExecutor(5)

	_, err := exec.Do(context.Background(), statusFetcher(404), &resilience.Request{
		Method: "GET",
		URL:    "https://example.com/missing",
	})

	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.Code)
}

func TestExecutor_RetriesTransientFailures(t *testing.T) {
	exec := resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute},
		Retry: resilience.RetryPolicy{
			MaxAttempts:     3,
			BaseDelay:       time.Millisecond,
			RetryableStatus: []int{503},
		},
	})

	var calls int32
	fetcher := &stubFetcher{fetch: func(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return &resilience.Response{StatusCode: 503}, nil
		}
		return &resilience.Response{StatusCode: 200, Headers: map[string]string{"Content-Type": "text/html"}}, nil
	}}

	resp, err := exec.Do(context.Background(), fetcher, &resilience.Request{
		Method: "GET",
		URL:    "https://example.com/flaky",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecutor_RetriesTimedOutAttempts(t *testing.T) {
	exec := resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute},
		Timeout: resilience.AdaptiveTimeoutConfig{
			MinTimeout: 10 * time.Millisecond,
			MaxTimeout: 10 * time.Millisecond,
		},
		Retry: resilience.RetryPolicy{
			MaxAttempts:     3,
			BaseDelay:       time.Millisecond,
			RetryableErrors: []string{"timeout"},
		},
	})

	var calls int32
	fetcher := &stubFetcher{fetch: func(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &resilience.Response{StatusCode: 200, Headers: map[string]string{"Content-Type": "text/html"}}, nil
	}}

	resp, err := exec.Do(context.Background(), fetcher, &resilience.Request{
		Method: "GET",
		URL:    "https://slow.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "timed-out attempt must be retried")
}

func TestExecutor_CallerCancellationNotRetried(t *testing.T) {
	exec := resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute},
		Retry: resilience.RetryPolicy{
			MaxAttempts:     3,
			BaseDelay:       time.Millisecond,
			RetryableErrors: []string{"timeout"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	fetcher := &stubFetcher{fetch: func(fetchCtx context.Context, req *resilience.Request) (*resilience.Response, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		<-fetchCtx.Done()
		return nil, fetchCtx.Err()
	}}

	_, err := exec.Do(ctx, fetcher, &resilience.Request{
		Method: "GET",
		URL:    "https://example.com/",
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecutor_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	exec := newTestExecutor(2)
	fetcher := statusFetcher(503)
	req := &resilience.Request{Method: "GET", URL: "https://down.example.com/"}

	for i := 0; i < 2; i++ {
		_, err := exec.Do(context.Background(), fetcher, req)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, exec.BreakerState("down.example.com"))

	before := atomic.LoadInt32(&fetcher.calls)
	_, err := exec.Do(context.Background(), fetcher, req)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt32(&fetcher.calls), "open breaker must not reach the fetcher")
}

func TestExecutor_BreakersIsolatedPerDomain(t *testing.T) {
	exec := newTestExecutor(2)
	failing := statusFetcher(503)
	healthy := okFetcher()

	for i := 0; i < 2; i++ {
		_, err := exec.Do(context.Background(), failing, &resilience.Request{
			Method: "GET",
			URL:    "https://down.example.com/",
		})
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, exec.BreakerState("down.example.com"))

	resp, err := exec.Do(context.Background(), healthy, &resilience.Request{
		Method: "GET",
		URL:    "https://up.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, resilience.StateClosed, exec.BreakerState("up.example.com"))
}

func TestExecutor_BreakerStateDefaultsClosed(t *testing.T) {
	exec := newTestExecutor(2)
	assert.Equal(t, resilience.StateClosed, exec.BreakerState("never-seen.example.com"))
}

func TestExecutor_InvalidURL(t *testing.T) {
	exec := newTestExecutor(2)

	_, err := exec.Do(context.Background(), okFetcher(), &resilience.Request{
		Method: "GET",
		URL:    "://not-a-url",
	})
	assert.Error(t, err)
}

func TestExecutor_BreakerChangeCallback(t *testing.T) {
	type change struct {
		domain   string
		from, to resilience.State
	}
	changes := make(chan change, 4)

	exec := resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute},
		Retry:   resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
		OnBreakerChange: func(domain string, from, to resilience.State) {
			changes <- change{domain, from, to}
		},
	})

	_, err := exec.Do(context.Background(), statusFetcher(500), &resilience.Request{
		Method: "GET",
		URL:    "https://down.example.com/",
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, resilience.ErrCircuitOpen))

	select {
	case got := <-changes:
		assert.Equal(t, "down.example.com", got.domain)
		assert.Equal(t, resilience.StateClosed, got.from)
		assert.Equal(t, resilience.StateOpen, got.to)
	case <-time.After(time.Second):
		t.Fatal("expected breaker state change")
	}
}
