// Package farm wires the pool, scaler, monitor, budget guard, and
// resilience layer into one managed fleet.
package farm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scraperfleet/browserfarm/internal/budget"
	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/internal/fingerprint"
	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/internal/metrics"
	"github.com/scraperfleet/browserfarm/internal/monitor"
	"github.com/scraperfleet/browserfarm/internal/pool"
	"github.com/scraperfleet/browserfarm/internal/proxy"
	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/internal/scaler"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// Manager is the facade the API and the simulators talk to. Components
// communicate through it and through the event bus, never directly.
type Manager struct {
	pool         *pool.Pool
	scaler       *scaler.Scaler
	monitor      *monitor.Monitor
	guard        *budget.Guard
	fingerprints *fingerprint.Engine
	executor     *resilience.Executor
	proxies      proxy.Provider
	publisher    *events.Publisher
	bus          *events.EventBus

	// Budget alert latch: fires once per breach, re-arms when spend
	// drops back under the threshold.
	alertThreshold float64
	alertActive    bool
	alertMu        sync.Mutex
}

type Deps struct {
	Pool         *pool.Pool
	Scaler       *scaler.Scaler
	Monitor      *monitor.Monitor
	Guard        *budget.Guard
	Fingerprints *fingerprint.Engine
	Executor     *resilience.Executor
	Proxies      proxy.Provider
	Publisher    *events.Publisher
	Bus          *events.EventBus

	// Fraction of the hourly limit that triggers a budget alert.
	AlertThreshold float64
}

func NewManager(d Deps) *Manager {
	if d.AlertThreshold <= 0 || d.AlertThreshold > 1 {
		d.AlertThreshold = 0.8
	}

	m := &Manager{
		pool:           d.Pool,
		scaler:         d.Scaler,
		monitor:        d.Monitor,
		guard:          d.Guard,
		fingerprints:   d.Fingerprints,
		executor:       d.Executor,
		proxies:        d.Proxies,
		publisher:      d.Publisher,
		bus:            d.Bus,
		alertThreshold: d.AlertThreshold,
	}

	if m.monitor != nil {
		m.monitor.OnSample = func(sample models.FleetMetrics) {
			metrics.RecordFleet(sample)
			metrics.RecordHourlyCost(m.guard.CurrentCost())
			m.checkBudgetAlert()
		}
	}
	return m
}

func (m *Manager) checkBudgetAlert() {
	summary := m.guard.Summary()
	breached := summary.UtilizationPercent >= m.alertThreshold*100

	m.alertMu.Lock()
	fire := breached && !m.alertActive
	m.alertActive = breached
	m.alertMu.Unlock()

	if fire {
		m.publisher.BudgetAlert(summary, fmt.Sprintf(
			"Hourly spend at %.0f%% of limit ($%.2f of $%.2f)",
			summary.UtilizationPercent, summary.CurrentHourlyCost, summary.HourlyLimit))
	}
}

// Start warms the fleet to its minimum size, then starts the monitor and
// scaler loops. A warm-up failure on one instance is logged and skipped;
// the scaler will fill the gap.
func (m *Manager) Start(ctx context.Context, minInstances int) error {
	logger.Info("Farm manager starting")

	for i := m.pool.Len(); i < minInstances; i++ {
		if _, err := m.pool.CreateInstance(ctx, "", ""); err != nil {
			if errors.Is(err, budget.ErrBudgetExceeded) {
				return err
			}
			logger.Warnf("Warm-up instance failed: %v", err)
		}
	}

	m.monitor.Start()
	m.scaler.Start()
	return nil
}

// Stop shuts the loops down before draining the pool.
func (m *Manager) Stop() {
	logger.Info("Farm manager stopping")

	m.scaler.Stop()
	m.monitor.Stop()
	m.fingerprints.Stop()

	if err := m.pool.Close(); err != nil {
		logger.Errorf("Pool shutdown error: %v", err)
	}
	m.bus.Close()
}

// AcquireSession binds a session to the best available instance and
// attaches a proxy when a provider is configured.
func (m *Manager) AcquireSession(ctx context.Context, req models.SessionRequirements) (*models.Session, error) {
	session, err := m.pool.Acquire(ctx, req)
	if err != nil {
		return nil, err
	}

	if m.proxies != nil {
		ep, perr := m.proxies.Acquire(ctx, session.ID, req.GeoHint)
		if perr != nil && !errors.Is(perr, proxy.ErrNoProxies) {
			logger.WithSession(session.ID).Warnf("Proxy acquire failed: %v", perr)
		}
		session.Proxy = ep
	}

	logger.WithSession(session.ID).Debugf("Session bound to instance %s", session.InstanceID)
	return session, nil
}

func (m *Manager) ReleaseSession(sessionID string) error {
	if m.proxies != nil {
		m.proxies.Release(sessionID)
	}
	return m.pool.Release(sessionID)
}

// Execute runs one request through the session's worker wrapped in the
// resilience layer, and folds the outcome into the session counters.
func (m *Manager) Execute(ctx context.Context, sessionID string, req *resilience.Request) (*resilience.Response, error) {
	worker, err := m.pool.WorkerForSession(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := m.executor.Do(ctx, worker, req)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			// Rejected before any network call; not the session's fault.
			metrics.RecordRequest("rejected")
			return nil, err
		}
		m.pool.RecordSessionResult(sessionID, elapsed, true)
		if m.proxies != nil {
			m.proxies.RecordResult(sessionID, elapsed, true, 0)
		}
		metrics.RecordRequest("error")
		return nil, err
	}

	m.pool.RecordSessionResult(sessionID, elapsed, false)
	if m.proxies != nil {
		m.proxies.RecordResult(sessionID, elapsed, false, int64(len(resp.Body)))
	}
	metrics.RecordRequest("success")
	return resp, nil
}

// Snapshot assembles the externally visible farm state.
func (m *Manager) Snapshot() models.FleetSnapshot {
	fleet := m.pool.Metrics()

	return models.FleetSnapshot{
		Timestamp: time.Now(),
		InstancesByState: map[string]int{
			string(models.InstanceStateIdle):        fleet.IdleInstances,
			string(models.InstanceStateBusy):        fleet.BusyInstances,
			string(models.InstanceStateMaintenance): fleet.MaintenanceCount,
		},
		Metrics:        fleet,
		LoadTrend:      m.monitor.Trend(),
		Cost:           m.guard.Summary(),
		LatestDecision: m.scaler.Latest(),
		Fingerprints:   m.fingerprints.Status(),
	}
}

func (m *Manager) Instances() []models.BrowserInstance {
	return m.pool.Instances()
}

func (m *Manager) DecisionHistory() []*models.ScalingDecision {
	return m.scaler.History()
}

func (m *Manager) BreakerState(domain string) resilience.State {
	return m.executor.BreakerState(domain)
}

// BreakerHook adapts breaker transitions into published events and
// metrics. Passed to the executor at construction, before the manager
// exists.
func BreakerHook(publisher *events.Publisher) func(domain string, from, to resilience.State) {
	return func(domain string, from, to resilience.State) {
		metrics.RecordBreakerState(domain, int(to))

		switch to {
		case resilience.StateOpen:
			publisher.CircuitOpened(domain, from.String())
			logger.WithDomain(domain).Warnf("Circuit opened (was %s)", from)
		case resilience.StateClosed:
			publisher.CircuitClosed(domain)
			logger.WithDomain(domain).Info("Circuit closed")
		}
	}
}
