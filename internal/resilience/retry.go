package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// ErrRetryExhausted is returned once the attempt budget is spent. The last
// underlying error is attached via wrapping.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// StatusError marks an HTTP response that counts as a failure.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool

	// An error is retryable when its message contains one of these
	// substrings, or when it is a StatusError with a listed code.
	RetryableErrors  []string
	RetryableStatus  []int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableErrors:   []string{"timeout", "network", "connection", "temporarily unavailable"},
		RetryableStatus:   []int{408, 429, 500, 502, 503, 504},
	}
}

// Delay computes the backoff before attempt k (1-based), without jitter:
// min(maxDelay, baseDelay * multiplier^(k-1)).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// jittered scales a delay to 50-100% of its computed value.
func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if !p.Jitter {
		return d
	}
	return time.Duration(float64(d) * (0.5 + 0.5*rand.Float64()))
}

func (p RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		for _, code := range p.RetryableStatus {
			if statusErr.Code == code {
				return true
			}
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range p.RetryableErrors {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Do runs fn up to MaxAttempts times. Non-retryable errors propagate
// immediately; cancellation during backoff skips remaining attempts and
// returns the context error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.jittered(p.Delay(attempt))):
		}
	}

	return fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
}
