package pool

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
	"github.com/scraperfleet/browserfarm/pkg/models"
)

var (
	// ErrPoolExhausted means no instance can serve the session and
	// scale-up was blocked. Surfaced to the caller, never retried here.
	ErrPoolExhausted = errors.New("instance pool exhausted")

	ErrInstanceNotFound = errors.New("instance not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrMaxInstances     = errors.New("maximum instance count reached")

	// ErrInstanceUnhealthy classifies maintenance causes rooted in degraded
	// behavior, as opposed to plain age. It never propagates to callers; it
	// drives the maintenance transition and its event fan-out.
	ErrInstanceUnhealthy = errors.New("instance unhealthy")

	errUptimeExceeded = errors.New("uptime exceeded")
)

type Config struct {
	MaxConcurrent    int
	MinInstances     int
	MaxInstances     int
	Region           string
	Zone             string
	MaintenanceDelay time.Duration

	// Maintenance thresholds evaluated on session release.
	MaxUptime        time.Duration
	MaxErrorRate     float64 // percent
	MaxAvgResponseMs float64
}

// Pool owns the fleet of browser-automation workers: their lifecycle,
// load accounting, and the session bindings on top of them.
type Pool struct {
	cfg          Config
	launcher     Launcher
	fingerprints *fingerprint.Engine
	guard        *budget.Guard
	publisher    *events.Publisher

	instances map[string]*entry
	regions   map[string][]string
	sessions  map[string]*models.Session
	mu        sync.Mutex
}

type entry struct {
	inst   *models.BrowserInstance
	worker Worker
}

func New(cfg Config, launcher Launcher, fingerprints *fingerprint.Engine, guard *budget.Guard, publisher *events.Publisher) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = 20
	}
	if cfg.MaintenanceDelay <= 0 {
		cfg.MaintenanceDelay = 30 * time.Second
	}
	if cfg.MaxUptime <= 0 {
		cfg.MaxUptime = 24 * time.Hour
	}
	if cfg.MaxErrorRate <= 0 {
		cfg.MaxErrorRate = 5.0
	}
	if cfg.MaxAvgResponseMs <= 0 {
		cfg.MaxAvgResponseMs = 2000
	}

	return &Pool{
		cfg:          cfg,
		launcher:     launcher,
		fingerprints: fingerprints,
		guard:        guard,
		publisher:    publisher,
		instances:    make(map[string]*entry),
		regions:      make(map[string][]string),
		sessions:     make(map[string]*models.Session),
	}
}

// Acquire binds a new session to the best available instance. When none is
// available it attempts one synchronous budget-gated scale-up and retries
// once.
func (p *Pool) Acquire(ctx context.Context, req models.SessionRequirements) (*models.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if session := p.tryAcquire(req); session != nil {
			p.publisher.SessionAcquired(session)
			return session, nil
		}

		if attempt == 0 {
			if _, err := p.CreateInstance(ctx, p.regionFor(req), p.cfg.Zone); err != nil {
				if errors.Is(err, budget.ErrBudgetExceeded) || errors.Is(err, ErrMaxInstances) {
					return nil, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
				}
				return nil, err
			}
		}
	}

	return nil, ErrPoolExhausted
}

func (p *Pool) tryAcquire(req models.SessionRequirements) *models.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := p.availableLocked(req.Region)
	best := SelectBest(candidates)
	if best == nil {
		return nil
	}

	best.CurrentLoad++
	best.State = models.InstanceStateBusy
	best.LastUsedAt = time.Now()

	session := models.NewSession(best.ID)
	p.sessions[session.ID] = session
	return session
}

// availableLocked returns instances able to take another session: idle, or
// busy with spare concurrency, optionally filtered by region.
func (p *Pool) availableLocked(region string) []*models.BrowserInstance {
	candidates := make([]*models.BrowserInstance, 0, len(p.instances))
	for _, e := range p.instances {
		inst := e.inst
		if inst.State != models.InstanceStateIdle && inst.State != models.InstanceStateBusy {
			continue
		}
		if !inst.HasCapacity() {
			continue
		}
		if region != "" && inst.Region != region {
			continue
		}
		candidates = append(candidates, inst)
	}
	return candidates
}

// Release detaches a session, folds its outcome into the instance's rolling
// performance, and evaluates the maintenance thresholds.
func (p *Pool) Release(sessionID string) error {
	p.mu.Lock()

	session, ok := p.sessions[sessionID]
	if !ok {
		p.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(p.sessions, sessionID)

	e, ok := p.instances[session.InstanceID]
	if !ok {
		// Instance was explicitly removed while the session ran.
		p.mu.Unlock()
		p.publisher.SessionReleased(session)
		return nil
	}

	inst := e.inst
	if inst.CurrentLoad > 0 {
		inst.CurrentLoad--
	}
	inst.LastUsedAt = time.Now()
	p.foldSessionLocked(inst, session)

	var maintenanceCause error
	if inst.CurrentLoad == 0 {
		if cause := p.needsMaintenanceLocked(inst); cause != nil {
			maintenanceCause = cause
			p.beginMaintenanceLocked(e, cause.Error())
		} else {
			inst.State = models.InstanceStateIdle
		}
	}
	p.mu.Unlock()

	p.publisher.SessionReleased(session)
	if maintenanceCause != nil {
		p.publisher.InstanceMaintenance(inst.ID, maintenanceCause.Error())
		if errors.Is(maintenanceCause, ErrInstanceUnhealthy) {
			p.publisher.PerformanceIssue(inst.ID, maintenanceCause.Error(), inst.Performance)
		}
	}
	return nil
}

func (p *Pool) foldSessionLocked(inst *models.BrowserInstance, session *models.Session) {
	if session.Requests == 0 {
		return
	}

	perf := &inst.Performance
	perf.TotalRequests += session.Requests
	perf.FailedRequests += session.Failures

	sessionAvg := session.AvgResponseTimeMs()
	if perf.AvgResponseTimeMs == 0 {
		perf.AvgResponseTimeMs = sessionAvg
	} else {
		perf.AvgResponseTimeMs = 0.8*perf.AvgResponseTimeMs + 0.2*sessionAvg
	}

	perf.ErrorRate = float64(perf.FailedRequests) / float64(perf.TotalRequests) * 100
	perf.SuccessRate = 100 - perf.ErrorRate

	if uptimeMin := time.Since(inst.CreatedAt).Minutes(); uptimeMin > 0 {
		perf.Throughput = float64(perf.TotalRequests) / uptimeMin
	}
}

// needsMaintenanceLocked reports why the instance should be recycled, nil
// when it is fine. Degradation wraps ErrInstanceUnhealthy; plain age does
// not, so age-outs skip the performance-issue fan-out.
func (p *Pool) needsMaintenanceLocked(inst *models.BrowserInstance) error {
	switch {
	case time.Since(inst.CreatedAt) > p.cfg.MaxUptime:
		return errUptimeExceeded
	case inst.Performance.ErrorRate > p.cfg.MaxErrorRate:
		return fmt.Errorf("%w: error rate exceeded", ErrInstanceUnhealthy)
	case inst.Performance.AvgResponseTimeMs > p.cfg.MaxAvgResponseMs:
		return fmt.Errorf("%w: response time degraded", ErrInstanceUnhealthy)
	}
	return nil
}

// beginMaintenanceLocked takes the instance out of selection for a bounded
// delay. It emerges recycled: error counters cleared, fingerprint rotated,
// uptime restarted.
func (p *Pool) beginMaintenanceLocked(e *entry, reason string) {
	inst := e.inst
	inst.State = models.InstanceStateMaintenance
	metrics.RecordMaintenance()
	logger.WithInstance(inst.ID).Infof("Maintenance started: %s", reason)

	time.AfterFunc(p.cfg.MaintenanceDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		current, ok := p.instances[inst.ID]
		if !ok || current.inst.State != models.InstanceStateMaintenance {
			return
		}

		perf := &current.inst.Performance
		perf.FailedRequests = 0
		perf.TotalRequests = 0
		perf.ErrorRate = 0
		perf.SuccessRate = 100
		perf.AvgResponseTimeMs = 0
		current.inst.CreatedAt = time.Now()
		p.fingerprints.ApplyTo(current.inst)
		current.inst.State = models.InstanceStateIdle

		logger.WithInstance(inst.ID).Info("Maintenance complete")
	})
}

// CreateInstance provisions one worker, stamps a fresh fingerprint, and
// registers it under the pool map and the region index. The budget commit
// happens here so every scale-up path is gated.
func (p *Pool) CreateInstance(ctx context.Context, region, zone string) (*models.BrowserInstance, error) {
	p.mu.Lock()
	if len(p.instances) >= p.cfg.MaxInstances {
		p.mu.Unlock()
		return nil, ErrMaxInstances
	}
	p.mu.Unlock()

	if err := p.guard.CommitScaling(1); err != nil {
		return nil, err
	}

	fp := p.fingerprints.Generate()
	worker, err := p.launcher.Launch(ctx, fp)
	if err != nil {
		p.guard.ReleaseInstances(1)
		return nil, fmt.Errorf("failed to launch instance: %w", err)
	}

	now := time.Now()
	inst := &models.BrowserInstance{
		ID:            models.NewUUID(),
		Region:        region,
		Zone:          zone,
		State:         models.InstanceStateIdle,
		CreatedAt:     now,
		LastUsedAt:    now,
		MaxConcurrent: p.cfg.MaxConcurrent,
		Fingerprint:   fp,
		Performance:   models.InstancePerformance{SuccessRate: 100},
		Cost:          models.CostMetrics{HourlyRate: p.guard.CostPerInstance()},
	}

	p.mu.Lock()
	if len(p.instances) >= p.cfg.MaxInstances {
		p.mu.Unlock()
		worker.Close()
		p.guard.ReleaseInstances(1)
		return nil, ErrMaxInstances
	}
	p.instances[inst.ID] = &entry{inst: inst, worker: worker}
	p.regions[region] = append(p.regions[region], inst.ID)
	p.mu.Unlock()

	logger.WithInstance(inst.ID).Infof("Instance created in %s/%s", region, zone)
	p.publisher.InstanceCreated(inst.Snapshot())
	return inst, nil
}

// RemoveInstance is idempotent: removing an absent instance is a no-op.
// Removal is the only path to the terminal offline state.
func (p *Pool) RemoveInstance(id, reason string) error {
	p.mu.Lock()
	e, ok := p.instances[id]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	delete(p.instances, id)
	p.removeFromRegionLocked(e.inst.Region, id)
	e.inst.State = models.InstanceStateOffline
	p.mu.Unlock()

	if err := e.worker.Close(); err != nil {
		logger.WithInstance(id).Warnf("Worker close failed: %v", err)
	}
	p.guard.ReleaseInstances(1)

	logger.WithInstance(id).Infof("Instance removed: %s", reason)
	p.publisher.InstanceRemoved(id, reason)
	return nil
}

func (p *Pool) removeFromRegionLocked(region, id string) {
	ids := p.regions[region]
	for i, existing := range ids {
		if existing == id {
			p.regions[region] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// ScaleUp adds count instances, stopping at the first failure and returning
// the IDs actually added.
func (p *Pool) ScaleUp(ctx context.Context, count int) ([]string, error) {
	added := make([]string, 0, count)
	for i := 0; i < count; i++ {
		inst, err := p.CreateInstance(ctx, p.cfg.Region, p.cfg.Zone)
		if err != nil {
			return added, err
		}
		added = append(added, inst.ID)
	}
	return added, nil
}

// ScaleDown removes up to count idle instances, slowest first, never
// dropping below the configured minimum.
func (p *Pool) ScaleDown(count int) []string {
	p.mu.Lock()

	idle := make([]*models.BrowserInstance, 0)
	for _, e := range p.instances {
		if e.inst.State == models.InstanceStateIdle && e.inst.CurrentLoad == 0 {
			idle = append(idle, e.inst)
		}
	}

	removable := len(p.instances) - p.cfg.MinInstances
	if count > removable {
		count = removable
	}
	if count > len(idle) {
		count = len(idle)
	}
	if count <= 0 {
		p.mu.Unlock()
		return nil
	}

	victims := SlowestFirst(idle)[:count]
	ids := make([]string, 0, count)
	for _, v := range victims {
		ids = append(ids, v.ID)
	}
	p.mu.Unlock()

	removed := make([]string, 0, count)
	for _, id := range ids {
		if err := p.RemoveInstance(id, "scale down"); err == nil {
			removed = append(removed, id)
		}
	}
	return removed
}

// WorkerForSession resolves the live worker serving a session.
func (p *Pool) WorkerForSession(sessionID string) (Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, ok := p.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e, ok := p.instances[session.InstanceID]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return e.worker, nil
}

// RecordSessionResult folds one request outcome into the session counters.
func (p *Pool) RecordSessionResult(sessionID string, d time.Duration, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if session, ok := p.sessions[sessionID]; ok {
		session.RecordRequest(d, failed)
	}
}

// Metrics aggregates the fleet sample the scaler and monitor consume.
func (p *Pool) Metrics() models.FleetMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := models.FleetMetrics{
		Timestamp:      time.Now(),
		TotalInstances: len(p.instances),
		ActiveSessions: len(p.sessions),
	}

	var loadSum, rtSum, errSum float64
	var rtCount int
	for _, e := range p.instances {
		inst := e.inst
		switch inst.State {
		case models.InstanceStateIdle:
			m.IdleInstances++
		case models.InstanceStateBusy:
			m.BusyInstances++
		case models.InstanceStateMaintenance:
			m.MaintenanceCount++
		}

		loadSum += float64(inst.CurrentLoad) / float64(inst.MaxConcurrent) * 100
		errSum += inst.Performance.ErrorRate
		if inst.Performance.AvgResponseTimeMs > 0 {
			rtSum += inst.Performance.AvgResponseTimeMs
			rtCount++
		}

		inst.Cost.AccumulatedCost = inst.UptimeHours() * inst.Cost.HourlyRate
		inst.Cost.Efficiency = float64(inst.CurrentLoad) / float64(inst.MaxConcurrent) * 100
	}

	if len(p.instances) > 0 {
		m.AvgLoad = loadSum / float64(len(p.instances))
		m.ErrorRate = errSum / float64(len(p.instances))
	}
	if rtCount > 0 {
		m.AvgResponseTimeMs = rtSum / float64(rtCount)
	}
	return m
}

// Instances returns copies safe to serialize.
func (p *Pool) Instances() []models.BrowserInstance {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.BrowserInstance, 0, len(p.instances))
	for _, e := range p.instances {
		out = append(out, e.inst.Snapshot())
	}
	return out
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instances)
}

func (p *Pool) SessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Close removes every instance and shuts the launcher down.
func (p *Pool) Close() error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.instances))
	for id := range p.instances {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		_ = p.RemoveInstance(id, "pool shutdown")
	}
	return p.launcher.Close()
}

func (p *Pool) regionFor(req models.SessionRequirements) string {
	if req.Region != "" {
		return req.Region
	}
	return p.cfg.Region
}
