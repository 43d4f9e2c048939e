package scaler_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scraperfleet/browserfarm/internal/budget"
	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/internal/scaler"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

type fakeFleet struct {
	mu      sync.Mutex
	metrics models.FleetMetrics
	ups     []int
	downs   []int
}

func (f *fakeFleet) Metrics() models.FleetMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

func (f *fakeFleet) ScaleUp(ctx context.Context, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ups = append(f.ups, count)
	f.metrics.TotalInstances += count
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("i-%d", i)
	}
	return ids, nil
}

func (f *fakeFleet) ScaleDown(count int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.downs = append(f.downs, count)
	f.metrics.TotalInstances -= count
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("i-%d", i)
	}
	return ids
}

// stubPredictor returns a canned prediction regardless of the sample.
type stubPredictor struct {
	pred scaler.Prediction
}

func (s *stubPredictor) Predict(models.FleetMetrics) scaler.Prediction {
	return s.pred
}

func newTestScaler(t *testing.T, cfg scaler.Config, fleet *fakeFleet, pred scaler.Prediction, guardCfg budget.Config) *scaler.Scaler {
	t.Helper()

	if guardCfg.HourlyLimit == 0 {
		guardCfg.HourlyLimit = 100
	}
	if guardCfg.CostPerInstance == 0 {
		guardCfg.CostPerInstance = 0.5
	}

	bus := events.NewEventBus(16)
	t.Cleanup(func() { bus.Close() })

	return scaler.New(cfg, fleet, &stubPredictor{pred: pred}, budget.NewGuard(guardCfg), events.NewPublisher(bus))
}

func scaleUpPred(count int) scaler.Prediction {
	return scaler.Prediction{
		Action:        models.ActionScaleUp,
		Count:         count,
		PredictedLoad: 90,
		Confidence:    0.9,
		Reason:        "predicted load above scale-up threshold",
	}
}

func scaleDownPred(count int) scaler.Prediction {
	return scaler.Prediction{
		Action:        models.ActionScaleDown,
		Count:         count,
		PredictedLoad: 10,
		Confidence:    0.9,
		Reason:        "predicted load below scale-down threshold",
	}
}

func TestScaler_ExecutesScaleUp(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 3}}
	s := newTestScaler(t, scaler.Config{MaxInstances: 10}, fleet, scaleUpPred(2), budget.Config{})

	decision := s.Evaluate(context.Background())

	require.Equal(t, models.ActionScaleUp, decision.Action)
	assert.Equal(t, 2, decision.Count)
	assert.Equal(t, []int{2}, fleet.ups)
	assert.Same(t, decision, s.Latest())
}

func TestScaler_ScaleUpClampedToHeadroom(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 8}}
	s := newTestScaler(t, scaler.Config{MaxInstances: 10}, fleet, scaleUpPred(5), budget.Config{})

	decision := s.Evaluate(context.Background())

	assert.Equal(t, 2, decision.Count)
	assert.Equal(t, []int{2}, fleet.ups)
}

func TestScaler_ScaleUpAtCapacityBecomesMaintain(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 10}}
	s := newTestScaler(t, scaler.Config{MaxInstances: 10}, fleet, scaleUpPred(3), budget.Config{})

	decision := s.Evaluate(context.Background())

	assert.Equal(t, models.ActionMaintain, decision.Action)
	assert.Equal(t, "at maximum capacity", decision.Reason)
	assert.Empty(t, fleet.ups)
}

func TestScaler_ScaleDownAtMinimumBecomesMaintain(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 2}}
	s := newTestScaler(t, scaler.Config{MinInstances: 2, MaxInstances: 10}, fleet, scaleDownPred(1), budget.Config{})

	decision := s.Evaluate(context.Background())

	assert.Equal(t, models.ActionMaintain, decision.Action)
	assert.Equal(t, "at minimum capacity", decision.Reason)
	assert.Empty(t, fleet.downs)
}

func TestScaler_ScaleDownClampedToRemovable(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 4}}
	s := newTestScaler(t, scaler.Config{MinInstances: 2, MaxInstances: 10}, fleet, scaleDownPred(5), budget.Config{})

	decision := s.Evaluate(context.Background())

	assert.Equal(t, models.ActionScaleDown, decision.Action)
	assert.Equal(t, 2, decision.Count)
	assert.Equal(t, []int{2}, fleet.downs)
}

func TestScaler_CooldownHoldsSecondDecision(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 3}}
	s := newTestScaler(t, scaler.Config{MaxInstances: 10, CooldownPeriod: time.Minute}, fleet, scaleUpPred(1), budget.Config{})

	first := s.Evaluate(context.Background())
	require.False(t, first.CooldownActive)
	require.Equal(t, []int{1}, fleet.ups)

	second := s.Evaluate(context.Background())
	assert.True(t, second.CooldownActive)
	assert.False(t, second.ShouldExecute())
	assert.Equal(t, []int{1}, fleet.ups, "cooldown must suppress execution")
}

func TestScaler_BudgetGateRejectsScaleUp(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 2}}
	s := newTestScaler(t, scaler.Config{MaxInstances: 10}, fleet, scaleUpPred(3),
		budget.Config{HourlyLimit: 1.0, CostPerInstance: 0.5})

	decision := s.Evaluate(context.Background())

	assert.True(t, decision.BudgetRejected)
	assert.Equal(t, "budget exceeded", decision.Reason)
	assert.False(t, decision.ShouldExecute())
	assert.Empty(t, fleet.ups)
}

func TestScaler_HistoryBounded(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 5}}
	s := newTestScaler(t, scaler.Config{MaxInstances: 10}, fleet,
		scaler.Prediction{Action: models.ActionMaintain, Reason: "steady"}, budget.Config{})

	for i := 0; i < 60; i++ {
		s.Evaluate(context.Background())
	}

	history := s.History()
	assert.Len(t, history, 50)
	assert.Same(t, s.Latest(), history[len(history)-1])
}

func TestScaler_StartStop(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 3}}
	s := newTestScaler(t, scaler.Config{
		Enabled:        true,
		TickInterval:   10 * time.Millisecond,
		CooldownPeriod: time.Hour,
		MaxInstances:   10,
	}, fleet, scaleUpPred(1), budget.Config{})

	s.Start()
	require.Eventually(t, func() bool { return s.Latest() != nil }, time.Second, 5*time.Millisecond)
	s.Stop()

	// Stop is idempotent and halts evaluation.
	s.Stop()
	after := len(s.History())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, len(s.History()))
}

func TestScaler_DisabledDoesNotStart(t *testing.T) {
	fleet := &fakeFleet{metrics: models.FleetMetrics{TotalInstances: 3}}
	s := newTestScaler(t, scaler.Config{Enabled: false, TickInterval: 5 * time.Millisecond, MaxInstances: 10},
		fleet, scaleUpPred(1), budget.Config{})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, s.Latest())
	s.Stop()
}
