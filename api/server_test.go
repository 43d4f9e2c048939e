package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scraperfleet/browserfarm/api"
	"github.com/scraperfleet/browserfarm/internal/budget"
	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/internal/farm"
	"github.com/scraperfleet/browserfarm/internal/fingerprint"
	"github.com/scraperfleet/browserfarm/internal/monitor"
	"github.com/scraperfleet/browserfarm/internal/pool"
	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/internal/scaler"
	"github.com/scraperfleet/browserfarm/pkg/config"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

func newTestServer(t *testing.T, warm int) *api.Server {
	t.Helper()

	bus := events.NewEventBus(64)
	publisher := events.NewPublisher(bus)
	guard := budget.NewGuard(budget.Config{HourlyLimit: 10, CostPerInstance: 0.5})
	engine := fingerprint.NewEngine(fingerprint.Config{BatchSize: 10})

	executor := resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker:         resilience.CircuitBreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute},
		Retry:           resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
		OnBreakerChange: farm.BreakerHook(publisher),
	})

	p := pool.New(pool.Config{MaxInstances: 6, MaxConcurrent: 3}, pool.NewSimLauncher(), engine, guard, publisher)
	predictor := scaler.NewHeuristicPredictor(scaler.HeuristicConfig{Seed: 1})
	sc := scaler.New(scaler.Config{MaxInstances: 6}, p, predictor, guard, publisher)
	mon := monitor.New(monitor.Config{SampleInterval: time.Hour}, p.Metrics)

	manager := farm.NewManager(farm.Deps{
		Pool: p, Scaler: sc, Monitor: mon, Guard: guard, Fingerprints: engine,
		Executor: executor, Publisher: publisher, Bus: bus,
	})
	require.NoError(t, manager.Start(context.Background(), warm))
	t.Cleanup(manager.Stop)

	server := api.NewServer(config.APIConfig{Port: 0}, config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		MaxMessageSize: 4096,
		ClientBuffer:   16,
	}, "test", manager, bus)
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })
	return server
}

func doJSON(t *testing.T, server *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthUnhealthyWithoutInstances(t *testing.T) {
	server := newTestServer(t, 0)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp["status"])
}

func TestServer_HealthAndReadiness(t *testing.T) {
	server := newTestServer(t, 2)

	assert.Equal(t, http.StatusOK, doJSON(t, server, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, server, http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, server, http.MethodGet, "/health/live", nil).Code)
}

func TestServer_FarmEndpoints(t *testing.T) {
	server := newTestServer(t, 2)

	rec := doJSON(t, server, http.MethodGet, "/farm/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.FleetSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Metrics.TotalInstances)

	rec = doJSON(t, server, http.MethodGet, "/farm/instances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var instances struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instances))
	assert.Equal(t, 2, instances.Count)

	rec = doJSON(t, server, http.MethodGet, "/farm/decisions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_SessionLifecycle(t *testing.T) {
	server := newTestServer(t, 1)

	// Empty body is valid: default requirements.
	rec := doJSON(t, server, http.MethodPost, "/farm/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var session models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)

	rec = doJSON(t, server, http.MethodPost, "/farm/sessions/"+session.ID+"/fetch", map[string]any{
		"url": "https://shop.example.com/products",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var fetch map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetch))
	assert.Equal(t, float64(200), fetch["status_code"])
	assert.Contains(t, fetch["body"], "ok")

	rec = doJSON(t, server, http.MethodDelete, "/farm/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, server, http.MethodDelete, "/farm/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_FetchValidation(t *testing.T) {
	server := newTestServer(t, 1)

	rec := doJSON(t, server, http.MethodPost, "/farm/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var session models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	// Missing URL.
	rec = doJSON(t, server, http.MethodPost, "/farm/sessions/"+session.ID+"/fetch", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unsupported method.
	rec = doJSON(t, server, http.MethodPost, "/farm/sessions/"+session.ID+"/fetch", map[string]any{
		"url":    "https://example.com/",
		"method": "PATCH",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_FetchUnknownSession(t *testing.T) {
	server := newTestServer(t, 1)

	rec := doJSON(t, server, http.MethodPost, "/farm/sessions/no-such-session/fetch", map[string]any{
		"url": "https://example.com/",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AcquireExhausted(t *testing.T) {
	server := newTestServer(t, 0)

	// MaxConcurrent 3 and MaxInstances 6: drain the whole farm.
	for i := 0; i < 18; i++ {
		rec := doJSON(t, server, http.MethodPost, "/farm/sessions", nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, server, http.MethodPost, "/farm/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
