package pool

import (
	"sort"
	"time"

	"github.com/scraperfleet/browserfarm/pkg/models"
)

// Score weights. Response time and success rate dominate; load and uptime
// break the middle ground.
const (
	weightResponseTime = 0.3
	weightSuccessRate  = 0.3
	weightLoad         = 0.2
	weightUptime       = 0.2
)

// Score rates one instance for selection.
func Score(inst *models.BrowserInstance) float64 {
	return scoreAt(inst, time.Now())
}

// scoreAt rates an instance against a fixed reference time. Deterministic
// given the snapshot and the clock value, so instances with identical state
// score identically within one selection pass.
func scoreAt(inst *models.BrowserInstance, now time.Time) float64 {
	responseTimeScore := 100 - inst.Performance.AvgResponseTimeMs/10
	if responseTimeScore < 0 {
		responseTimeScore = 0
	}

	loadScore := 100 - float64(inst.CurrentLoad)
	if loadScore < 0 {
		loadScore = 0
	}

	uptimeScore := now.Sub(inst.CreatedAt).Hours()
	if uptimeScore > 100 {
		uptimeScore = 100
	}

	return weightResponseTime*responseTimeScore +
		weightSuccessRate*inst.Performance.SuccessRate +
		weightLoad*loadScore +
		weightUptime*uptimeScore
}

// SelectBest picks the highest-scoring instance. All candidates are scored
// against a single clock read so the comparison only sees snapshot state.
// Ties break by lowest current load, then lexical ID, so repeated calls over
// identical snapshots return the same instance.
func SelectBest(candidates []*models.BrowserInstance) *models.BrowserInstance {
	if len(candidates) == 0 {
		return nil
	}

	now := time.Now()
	best := candidates[0]
	bestScore := scoreAt(best, now)

	for _, c := range candidates[1:] {
		score := scoreAt(c, now)
		switch {
		case score > bestScore:
			best, bestScore = c, score
		case score == bestScore:
			if c.CurrentLoad < best.CurrentLoad ||
				(c.CurrentLoad == best.CurrentLoad && c.ID < best.ID) {
				best = c
			}
		}
	}
	return best
}

// SlowestFirst orders instances by descending average response time, the
// order scale-down removes them in: the pool keeps its fastest instances.
func SlowestFirst(instances []*models.BrowserInstance) []*models.BrowserInstance {
	sorted := make([]*models.BrowserInstance, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Performance.AvgResponseTimeMs != sorted[j].Performance.AvgResponseTimeMs {
			return sorted[i].Performance.AvgResponseTimeMs > sorted[j].Performance.AvgResponseTimeMs
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
