package budget

import (
	"errors"
	"fmt"
	"sync"

	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// ErrBudgetExceeded rejects a scale-up that would push hourly spend past the
// configured ceiling. It is a scaling no-op, never a failure of in-flight
// sessions.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Guard gates every scale-up path against the hourly spend ceiling.
// Scale-down never consults it.
type Guard struct {
	hourlyLimit     float64
	dailyLimit      float64
	monthlyLimit    float64
	costPerInstance float64

	currentCost float64
	mu          sync.Mutex
}

type Config struct {
	HourlyLimit     float64
	DailyLimit      float64
	MonthlyLimit    float64
	CostPerInstance float64
}

func NewGuard(cfg Config) *Guard {
	if cfg.HourlyLimit <= 0 {
		cfg.HourlyLimit = 10.0
	}
	if cfg.CostPerInstance <= 0 {
		cfg.CostPerInstance = 0.5
	}

	return &Guard{
		hourlyLimit:     cfg.HourlyLimit,
		dailyLimit:      cfg.DailyLimit,
		monthlyLimit:    cfg.MonthlyLimit,
		costPerInstance: cfg.CostPerInstance,
	}
}

// CanAffordScaling checks whether adding n instances stays inside the hourly
// limit. The check and any subsequent Commit must be treated as one
// operation by the caller via CommitScaling.
func (g *Guard) CanAffordScaling(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canAffordLocked(n)
}

// CommitScaling atomically checks the budget and records the added spend.
func (g *Guard) CommitScaling(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.canAffordLocked(n); err != nil {
		return err
	}
	g.currentCost += float64(n) * g.costPerInstance
	logger.Debugf("Budget commit: +%d instances, hourly cost now $%.2f", n, g.currentCost)
	return nil
}

func (g *Guard) canAffordLocked(n int) error {
	projected := g.currentCost + float64(n)*g.costPerInstance
	if projected > g.hourlyLimit {
		return fmt.Errorf("%w: projected $%.2f/h exceeds limit $%.2f/h", ErrBudgetExceeded, projected, g.hourlyLimit)
	}
	return nil
}

// ReleaseInstances returns the hourly spend of n removed instances.
func (g *Guard) ReleaseInstances(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.currentCost -= float64(n) * g.costPerInstance
	if g.currentCost < 0 {
		g.currentCost = 0
	}
}

func (g *Guard) CurrentCost() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentCost
}

func (g *Guard) CostPerInstance() float64 {
	return g.costPerInstance
}

// Summary projects daily and monthly spend from the current hourly rate.
func (g *Guard) Summary() models.CostSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	utilization := 0.0
	if g.hourlyLimit > 0 {
		utilization = g.currentCost / g.hourlyLimit * 100
	}

	return models.CostSummary{
		CurrentHourlyCost:    g.currentCost,
		HourlyLimit:          g.hourlyLimit,
		UtilizationPercent:   utilization,
		ProjectedDailyCost:   g.currentCost * 24,
		ProjectedMonthlyCost: g.currentCost * 24 * 30,
	}
}
