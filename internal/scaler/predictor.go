package scaler

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/scraperfleet/browserfarm/pkg/models"
)

// Prediction is what a Predictor returns for one evaluation: an action, a
// confidence in [0,1], and factor weights summing to 1. This is the
// extension point for a trained model; the heuristic below stands in for
// one.
type Prediction struct {
	Action        models.ScalingAction
	Count         int
	PredictedLoad float64
	Confidence    float64
	Factors       map[string]float64
	Reason        string
}

type Predictor interface {
	Predict(metrics models.FleetMetrics) Prediction
}

// HeuristicPredictor derives load from the current average, a trend factor,
// and a business-hours seasonal factor. Confidence is a bounded
// pseudo-random stand-in for model certainty.
type HeuristicPredictor struct {
	scaleUpThreshold   float64
	scaleDownThreshold float64
	businessStart      int
	businessEnd        int

	rng *rand.Rand
	now func() time.Time
	mu  sync.Mutex
}

type HeuristicConfig struct {
	ScaleUpThreshold   float64
	ScaleDownThreshold float64
	BusinessHoursStart int
	BusinessHoursEnd   int

	// Seed and Now are injectable for deterministic tests.
	Seed int64
	Now  func() time.Time
}

func NewHeuristicPredictor(cfg HeuristicConfig) *HeuristicPredictor {
	if cfg.ScaleUpThreshold <= 0 {
		cfg.ScaleUpThreshold = 75.0
	}
	if cfg.ScaleDownThreshold <= 0 {
		cfg.ScaleDownThreshold = 25.0
	}
	if cfg.BusinessHoursEnd <= cfg.BusinessHoursStart {
		cfg.BusinessHoursStart = 9
		cfg.BusinessHoursEnd = 18
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &HeuristicPredictor{
		scaleUpThreshold:   cfg.ScaleUpThreshold,
		scaleDownThreshold: cfg.ScaleDownThreshold,
		businessStart:      cfg.BusinessHoursStart,
		businessEnd:        cfg.BusinessHoursEnd,
		rng:                rand.New(rand.NewSource(cfg.Seed)),
		now:                cfg.Now,
	}
}

func (h *HeuristicPredictor) Predict(metrics models.FleetMetrics) Prediction {
	trendFactor := 0.8
	if metrics.AvgLoad > 70 {
		trendFactor = 1.2
	}

	seasonalFactor := 0.7
	if h.inBusinessHours() {
		seasonalFactor = 1.3
	}

	predicted := metrics.AvgLoad * trendFactor * seasonalFactor
	if predicted > 100 {
		predicted = 100
	}

	confidence := h.confidence()
	normalized := predicted / 100

	pred := Prediction{
		PredictedLoad: predicted,
		Confidence:    confidence,
		Factors: map[string]float64{
			"load":     0.4,
			"trend":    0.3,
			"seasonal": 0.3,
		},
	}

	switch {
	case predicted > h.scaleUpThreshold:
		pred.Action = models.ActionScaleUp
		pred.Count = int(math.Ceil(normalized * confidence))
		pred.Reason = "predicted load above scale-up threshold"
	case predicted < h.scaleDownThreshold:
		pred.Action = models.ActionScaleDown
		pred.Count = int(math.Floor((1 - normalized) * confidence))
		pred.Reason = "predicted load below scale-down threshold"
	default:
		pred.Action = models.ActionMaintain
		pred.Reason = "predicted load within thresholds"
	}

	return pred
}

// confidence draws from [0.7, 1.0].
func (h *HeuristicPredictor) confidence() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return 0.7 + 0.3*h.rng.Float64()
}

func (h *HeuristicPredictor) inBusinessHours() bool {
	hour := h.now().Hour()
	return hour >= h.businessStart && hour < h.businessEnd
}
