package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scraperfleet/browserfarm/internal/budget"
)

func TestGuard_CommitScaling(t *testing.T) {
	guard := budget.NewGuard(budget.Config{HourlyLimit: 2.0, CostPerInstance: 0.5})

	// Four instances fit exactly inside $2/h.
	for i := 0; i < 4; i++ {
		require.NoError(t, guard.CommitScaling(1))
	}
	assert.InDelta(t, 2.0, guard.CurrentCost(), 0.001)

	err := guard.CommitScaling(1)
	assert.ErrorIs(t, err, budget.ErrBudgetExceeded)
	assert.InDelta(t, 2.0, guard.CurrentCost(), 0.001, "rejected commit must not change spend")
}

func TestGuard_CommitScalingBatchRejectedAtomically(t *testing.T) {
	guard := budget.NewGuard(budget.Config{HourlyLimit: 2.0, CostPerInstance: 0.5})

	require.NoError(t, guard.CommitScaling(3))

	// Two more would project $2.50; nothing gets committed.
	assert.ErrorIs(t, guard.CommitScaling(2), budget.ErrBudgetExceeded)
	assert.InDelta(t, 1.5, guard.CurrentCost(), 0.001)

	// One more still fits.
	assert.NoError(t, guard.CommitScaling(1))
}

func TestGuard_CanAffordScalingDoesNotCommit(t *testing.T) {
	guard := budget.NewGuard(budget.Config{HourlyLimit: 1.0, CostPerInstance: 0.5})

	require.NoError(t, guard.CanAffordScaling(2))
	assert.Equal(t, 0.0, guard.CurrentCost())

	assert.ErrorIs(t, guard.CanAffordScaling(3), budget.ErrBudgetExceeded)
}

func TestGuard_ReleaseInstances(t *testing.T) {
	guard := budget.NewGuard(budget.Config{HourlyLimit: 2.0, CostPerInstance: 0.5})

	require.NoError(t, guard.CommitScaling(4))
	guard.ReleaseInstances(2)
	assert.InDelta(t, 1.0, guard.CurrentCost(), 0.001)

	// Freed headroom is usable again.
	assert.NoError(t, guard.CommitScaling(2))
}

func TestGuard_ReleaseInstancesFloorsAtZero(t *testing.T) {
	guard := budget.NewGuard(budget.Config{HourlyLimit: 2.0, CostPerInstance: 0.5})

	require.NoError(t, guard.CommitScaling(1))
	guard.ReleaseInstances(10)
	assert.Equal(t, 0.0, guard.CurrentCost())
}

func TestGuard_Defaults(t *testing.T) {
	guard := budget.NewGuard(budget.Config{})

	assert.Equal(t, 0.5, guard.CostPerInstance())
	summary := guard.Summary()
	assert.Equal(t, 10.0, summary.HourlyLimit)
}

func TestGuard_Summary(t *testing.T) {
	guard := budget.NewGuard(budget.Config{HourlyLimit: 10.0, CostPerInstance: 0.5})
	require.NoError(t, guard.CommitScaling(5))

	summary := guard.Summary()
	assert.InDelta(t, 2.5, summary.CurrentHourlyCost, 0.001)
	assert.InDelta(t, 25.0, summary.UtilizationPercent, 0.001)
	assert.InDelta(t, 60.0, summary.ProjectedDailyCost, 0.001)
	assert.InDelta(t, 1800.0, summary.ProjectedMonthlyCost, 0.001)
}
