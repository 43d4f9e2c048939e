package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/pkg/config"
)

func TestRetryPolicy_DefaultConfigRetriesTransientErrors(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	p := retryPolicy(cfg.Resilience.Retry)
	p.BaseDelay = time.Millisecond
	p.MaxDelay = time.Millisecond

	var calls int
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_TuningKeepsRetryableClasses(t *testing.T) {
	p := retryPolicy(config.RetryConfig{
		MaxAttempts:       5,
		BaseDelay:         2 * time.Second,
		BackoffMultiplier: 3,
	})

	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BaseDelay)
	assert.True(t, p.Retryable(errors.New("network unreachable")))
	assert.True(t, p.Retryable(&resilience.StatusError{Code: 503}))
}

func TestRetryPolicy_ExplicitListsOverrideDefaults(t *testing.T) {
	p := retryPolicy(config.RetryConfig{
		MaxAttempts:     2,
		RetryableErrors: []string{"boom"},
		RetryableStatus: []int{418},
	})

	assert.True(t, p.Retryable(errors.New("boom happened")))
	assert.False(t, p.Retryable(errors.New("connection timeout")))
	assert.True(t, p.Retryable(&resilience.StatusError{Code: 418}))
	assert.False(t, p.Retryable(&resilience.StatusError{Code: 503}))
}
