package monitor_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scraperfleet/browserfarm/internal/monitor"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// queueSampler returns queued samples in order, repeating the last one once
// the queue runs dry.
type queueSampler struct {
	samples []models.FleetMetrics
	next    int
}

func (q *queueSampler) sample() models.FleetMetrics {
	if q.next >= len(q.samples) {
		return q.samples[len(q.samples)-1]
	}
	s := q.samples[q.next]
	q.next++
	return s
}

func loads(values ...float64) []models.FleetMetrics {
	out := make([]models.FleetMetrics, len(values))
	for i, v := range values {
		out[i] = models.FleetMetrics{AvgLoad: v}
	}
	return out
}

func TestMonitor_LatestEmpty(t *testing.T) {
	m := monitor.New(monitor.Config{}, func() models.FleetMetrics { return models.FleetMetrics{} })

	_, ok := m.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, m.WindowLen())
}

func TestMonitor_SampleAndLatest(t *testing.T) {
	q := &queueSampler{samples: loads(10, 20, 30)}
	m := monitor.New(monitor.Config{}, q.sample)

	for i := 0; i < 3; i++ {
		m.Sample()
	}

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, float64(30), latest.AvgLoad)
	assert.Equal(t, 3, m.WindowLen())
}

func TestMonitor_WindowBounded(t *testing.T) {
	q := &queueSampler{samples: loads(50)}
	m := monitor.New(monitor.Config{WindowSize: 5}, q.sample)

	for i := 0; i < 12; i++ {
		m.Sample()
	}
	assert.Equal(t, 5, m.WindowLen())
}

func TestMonitor_Average(t *testing.T) {
	q := &queueSampler{samples: []models.FleetMetrics{
		{AvgLoad: 40, AvgResponseTimeMs: 100, ErrorRate: 2, TotalInstances: 3, ActiveSessions: 1},
		{AvgLoad: 60, AvgResponseTimeMs: 300, ErrorRate: 4, TotalInstances: 5, ActiveSessions: 7},
	}}
	m := monitor.New(monitor.Config{}, q.sample)
	m.Sample()
	m.Sample()

	avg := m.Average()
	assert.InDelta(t, 50.0, avg.AvgLoad, 0.001)
	assert.InDelta(t, 200.0, avg.AvgResponseTimeMs, 0.001)
	assert.InDelta(t, 3.0, avg.ErrorRate, 0.001)

	// Counts come from the latest sample, not an average.
	assert.Equal(t, 5, avg.TotalInstances)
	assert.Equal(t, 7, avg.ActiveSessions)
}

func TestMonitor_Trend(t *testing.T) {
	tests := []struct {
		name  string
		prior float64
		now   float64
		want  models.Trend
	}{
		{"rising load", 30, 50, models.TrendUp},
		{"falling load", 50, 30, models.TrendDown},
		{"within threshold", 50, 51, models.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := append(loads(), loads(tt.prior, tt.prior, tt.prior, tt.prior, tt.prior,
				tt.prior, tt.prior, tt.prior, tt.prior, tt.prior)...)
			samples = append(samples, loads(tt.now, tt.now, tt.now, tt.now, tt.now,
				tt.now, tt.now, tt.now, tt.now, tt.now)...)

			q := &queueSampler{samples: samples}
			m := monitor.New(monitor.Config{}, q.sample)
			for range samples {
				m.Sample()
			}
			assert.Equal(t, tt.want, m.Trend())
		})
	}
}

func TestMonitor_TrendNeedsTwentySamples(t *testing.T) {
	q := &queueSampler{samples: loads(90)}
	m := monitor.New(monitor.Config{}, q.sample)

	for i := 0; i < 19; i++ {
		m.Sample()
	}
	assert.Equal(t, models.TrendStable, m.Trend())
}

func TestMonitor_OnSampleHook(t *testing.T) {
	var observed int32
	q := &queueSampler{samples: loads(10)}
	m := monitor.New(monitor.Config{}, q.sample)
	m.OnSample = func(models.FleetMetrics) { atomic.AddInt32(&observed, 1) }

	m.Sample()
	m.Sample()
	assert.Equal(t, int32(2), atomic.LoadInt32(&observed))
}

func TestMonitor_StartStop(t *testing.T) {
	var calls int32
	m := monitor.New(monitor.Config{SampleInterval: 10 * time.Millisecond}, func() models.FleetMetrics {
		atomic.AddInt32(&calls, 1)
		return models.FleetMetrics{AvgLoad: 42}
	})

	m.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, 5*time.Millisecond)
	m.Stop()

	after := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))

	// Stop is idempotent.
	m.Stop()
}
