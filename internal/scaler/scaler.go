package scaler

import (
	"context"
	"sync"
	"time"

	"github.com/scraperfleet/browserfarm/internal/budget"
	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/internal/metrics"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// Fleet is the slice of the pool the scaler drives.
type Fleet interface {
	Metrics() models.FleetMetrics
	ScaleUp(ctx context.Context, count int) ([]string, error)
	ScaleDown(count int) []string
}

type Config struct {
	Enabled        bool
	TickInterval   time.Duration
	CooldownPeriod time.Duration
	MinInstances   int
	MaxInstances   int
}

// Scaler evaluates fleet metrics on a fixed tick and issues scale-up and
// scale-down decisions, gated by the cost guard. Fleet size never leaves
// [MinInstances, MaxInstances].
type Scaler struct {
	cfg       Config
	fleet     Fleet
	predictor Predictor
	guard     *budget.Guard
	publisher *events.Publisher

	lastScale time.Time
	latest    *models.ScalingDecision
	history   []*models.ScalingDecision
	mu        sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	runMu   sync.Mutex
}

const historyLimit = 50

func New(cfg Config, fleet Fleet, predictor Predictor, guard *budget.Guard, publisher *events.Publisher) *Scaler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = 2 * time.Minute
	}
	if cfg.MinInstances < 0 {
		cfg.MinInstances = 0
	}
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = 20
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scaler{
		cfg:       cfg,
		fleet:     fleet,
		predictor: predictor,
		guard:     guard,
		publisher: publisher,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scaler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running || !s.cfg.Enabled {
		return
	}
	s.running = true

	s.wg.Add(1)
	go s.run()
	logger.Info("Predictive scaler started")
}

func (s *Scaler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	s.runMu.Unlock()

	s.cancel()
	s.wg.Wait()
	logger.Info("Predictive scaler stopped")
}

func (s *Scaler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Evaluate(s.ctx)
		}
	}
}

// Evaluate runs one scaling cycle: sample the fleet, ask the predictor,
// apply bounds, cooldown, and the budget gate, then execute.
func (s *Scaler) Evaluate(ctx context.Context) *models.ScalingDecision {
	sample := s.fleet.Metrics()
	pred := s.predictor.Predict(sample)

	decision := &models.ScalingDecision{
		Timestamp:        time.Now(),
		Action:           pred.Action,
		Count:            pred.Count,
		CurrentInstances: sample.TotalInstances,
		PredictedLoad:    pred.PredictedLoad,
		Confidence:       pred.Confidence,
		Factors:          pred.Factors,
		Reason:           pred.Reason,
	}

	s.applyBounds(decision, sample.TotalInstances)
	s.applyCooldown(decision)
	if decision.CooldownActive {
		metrics.RecordScalingRejection("cooldown")
	}

	if decision.Action == models.ActionScaleUp && decision.ShouldExecute() {
		if err := s.guard.CanAffordScaling(decision.Count); err != nil {
			decision.BudgetRejected = true
			decision.Reason = "budget exceeded"
			logger.Warnf("Scale-up of %d rejected: %v", decision.Count, err)
			s.publisher.ScalingRejected(decision, "budget exceeded")
			metrics.RecordScalingRejection("budget")
		}
	}

	s.publisher.ScalingDecision(decision)

	if decision.ShouldExecute() {
		s.execute(ctx, decision)
	}

	s.record(decision)
	return decision
}

func (s *Scaler) applyBounds(decision *models.ScalingDecision, total int) {
	switch decision.Action {
	case models.ActionScaleUp:
		if headroom := s.cfg.MaxInstances - total; decision.Count > headroom {
			decision.Count = headroom
		}
		if decision.Count <= 0 {
			decision.Action = models.ActionMaintain
			decision.Count = 0
			decision.Reason = "at maximum capacity"
		}

	case models.ActionScaleDown:
		if removable := total - s.cfg.MinInstances; decision.Count > removable {
			decision.Count = removable
		}
		if decision.Count <= 0 {
			decision.Action = models.ActionMaintain
			decision.Count = 0
			decision.Reason = "at minimum capacity"
		}
	}
}

func (s *Scaler) applyCooldown(decision *models.ScalingDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if decision.Action == models.ActionMaintain {
		return
	}
	if !s.lastScale.IsZero() && time.Since(s.lastScale) < s.cfg.CooldownPeriod {
		decision.CooldownActive = true
		logger.Debugf("Scaling decision held by cooldown (%s remaining)",
			s.cfg.CooldownPeriod-time.Since(s.lastScale))
	}
}

func (s *Scaler) execute(ctx context.Context, decision *models.ScalingDecision) {
	switch decision.Action {
	case models.ActionScaleUp:
		added, err := s.fleet.ScaleUp(ctx, decision.Count)
		if err != nil {
			logger.Errorf("Scale-up failed after %d instances: %v", len(added), err)
			s.publisher.Error("", "scale-up failed", err)
		}
		if len(added) > 0 {
			s.markScaled()
			metrics.RecordScalingEvent(models.ActionScaleUp)
			s.publisher.ScaledUp(added, decision)
			logger.Infof("Scaled up: +%d instances (predicted load %.1f)", len(added), decision.PredictedLoad)
		}

	case models.ActionScaleDown:
		removed := s.fleet.ScaleDown(decision.Count)
		if len(removed) > 0 {
			s.markScaled()
			metrics.RecordScalingEvent(models.ActionScaleDown)
			s.publisher.ScaledDown(removed, decision)
			logger.Infof("Scaled down: -%d instances (predicted load %.1f)", len(removed), decision.PredictedLoad)
		}
	}
}

func (s *Scaler) markScaled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastScale = time.Now()
}

func (s *Scaler) record(decision *models.ScalingDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = decision
	s.history = append(s.history, decision)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

func (s *Scaler) Latest() *models.ScalingDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *Scaler) History() []*models.ScalingDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.ScalingDecision, len(s.history))
	copy(out, s.history)
	return out
}
