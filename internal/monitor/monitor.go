package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

const (
	defaultWindowSize = 1000
	trendSampleCount  = 10
	trendThreshold    = 2.0 // percentage points
)

// Sampler produces one fleet sample per tick; in production this is the
// pool's Metrics method.
type Sampler func() models.FleetMetrics

type Config struct {
	SampleInterval time.Duration
	WindowSize     int
}

// Monitor samples aggregate fleet metrics on a fixed tick, retains a
// bounded rolling window, and exposes instantaneous, average, and trend
// views for the scaler and external dashboards.
type Monitor struct {
	cfg     Config
	sampler Sampler

	// OnSample, when set, observes every sample; used to feed the
	// prometheus registry.
	OnSample func(models.FleetMetrics)

	window []models.FleetMetrics
	mu     sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	runMu   sync.Mutex
}

func New(cfg Config, sampler Sampler) *Monitor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 5 * time.Second
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaultWindowSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		cfg:     cfg,
		sampler: sampler,
		window:  make([]models.FleetMetrics, 0, cfg.WindowSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (m *Monitor) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return
	}
	m.running = true

	m.wg.Add(1)
	go m.run()
	logger.Info("Metrics feed started")
}

func (m *Monitor) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	m.running = false
	m.runMu.Unlock()

	m.cancel()
	m.wg.Wait()
	logger.Info("Metrics feed stopped")
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SampleInterval)
	defer ticker.Stop()

	m.Sample()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample takes one sample immediately.
func (m *Monitor) Sample() models.FleetMetrics {
	sample := m.sampler()

	m.mu.Lock()
	m.window = append(m.window, sample)
	if len(m.window) > m.cfg.WindowSize {
		m.window = m.window[len(m.window)-m.cfg.WindowSize:]
	}
	m.mu.Unlock()

	if m.OnSample != nil {
		m.OnSample(sample)
	}
	return sample
}

// Latest returns the most recent sample.
func (m *Monitor) Latest() (models.FleetMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.window) == 0 {
		return models.FleetMetrics{}, false
	}
	return m.window[len(m.window)-1], true
}

// Average computes mean load, response time, and error rate over the
// retained window.
func (m *Monitor) Average() models.FleetMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avg := models.FleetMetrics{Timestamp: time.Now()}
	if len(m.window) == 0 {
		return avg
	}

	for _, s := range m.window {
		avg.AvgLoad += s.AvgLoad
		avg.AvgResponseTimeMs += s.AvgResponseTimeMs
		avg.ErrorRate += s.ErrorRate
	}
	n := float64(len(m.window))
	avg.AvgLoad /= n
	avg.AvgResponseTimeMs /= n
	avg.ErrorRate /= n

	latest := m.window[len(m.window)-1]
	avg.TotalInstances = latest.TotalInstances
	avg.IdleInstances = latest.IdleInstances
	avg.BusyInstances = latest.BusyInstances
	avg.MaintenanceCount = latest.MaintenanceCount
	avg.ActiveSessions = latest.ActiveSessions
	return avg
}

// Trend compares the mean load of the last ten samples against the prior
// ten.
func (m *Monitor) Trend() models.Trend {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.window) < 2*trendSampleCount {
		return models.TrendStable
	}

	recent := m.window[len(m.window)-trendSampleCount:]
	prior := m.window[len(m.window)-2*trendSampleCount : len(m.window)-trendSampleCount]

	diff := meanLoad(recent) - meanLoad(prior)
	switch {
	case diff > trendThreshold:
		return models.TrendUp
	case diff < -trendThreshold:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

func (m *Monitor) WindowLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.window)
}

func meanLoad(samples []models.FleetMetrics) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total float64
	for _, s := range samples {
		total += s.AvgLoad
	}
	return total / float64(len(samples))
}
