// Package metrics exposes the farm's operational metrics through the
// standard prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scraperfleet/browserfarm/pkg/models"
)

var (
	instancesByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "browserfarm_instances",
		Help: "Browser instances by lifecycle state",
	}, []string{"state"})

	fleetLoad = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "browserfarm_fleet_load_percent",
		Help: "Average load across the fleet",
	})

	fleetResponseTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "browserfarm_fleet_response_time_ms",
		Help: "Average response time across the fleet",
	})

	fleetErrorRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "browserfarm_fleet_error_rate_percent",
		Help: "Average error rate across the fleet",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "browserfarm_active_sessions",
		Help: "Sessions currently bound to instances",
	})

	hourlyCost = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "browserfarm_hourly_cost_dollars",
		Help: "Committed hourly spend",
	})

	scalingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browserfarm_scaling_events_total",
		Help: "Executed scaling actions",
	}, []string{"action"})

	scalingRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browserfarm_scaling_rejections_total",
		Help: "Scaling actions rejected before execution",
	}, []string{"reason"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browserfarm_requests_total",
		Help: "Fetch requests executed through the resilience layer",
	}, []string{"outcome"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browserfarm_cache_hits_total",
		Help: "Fetches served from the response cache",
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "browserfarm_circuit_breaker_state",
		Help: "Per-domain breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"domain"})

	maintenanceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browserfarm_maintenance_cycles_total",
		Help: "Instance maintenance cycles started",
	})

	fingerprintsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browserfarm_fingerprints_generated_total",
		Help: "Fingerprints handed out to instances",
	})
)

// RecordFleet pushes one aggregate sample into the registry; wired as the
// monitor's OnSample hook.
func RecordFleet(m models.FleetMetrics) {
	instancesByState.WithLabelValues(string(models.InstanceStateIdle)).Set(float64(m.IdleInstances))
	instancesByState.WithLabelValues(string(models.InstanceStateBusy)).Set(float64(m.BusyInstances))
	instancesByState.WithLabelValues(string(models.InstanceStateMaintenance)).Set(float64(m.MaintenanceCount))
	fleetLoad.Set(m.AvgLoad)
	fleetResponseTime.Set(m.AvgResponseTimeMs)
	fleetErrorRate.Set(m.ErrorRate)
	activeSessions.Set(float64(m.ActiveSessions))
}

func RecordHourlyCost(cost float64) {
	hourlyCost.Set(cost)
}

func RecordScalingEvent(action models.ScalingAction) {
	scalingEvents.WithLabelValues(string(action)).Inc()
}

func RecordScalingRejection(reason string) {
	scalingRejections.WithLabelValues(reason).Inc()
}

func RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

func RecordCacheHit() {
	cacheHits.Inc()
}

// RecordBreakerState takes the breaker state's numeric encoding to avoid
// importing the resilience package here.
func RecordBreakerState(domain string, state int) {
	breakerState.WithLabelValues(domain).Set(float64(state))
}

func RecordMaintenance() {
	maintenanceTotal.Inc()
}

func RecordFingerprint() {
	fingerprintsGenerated.Inc()
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
