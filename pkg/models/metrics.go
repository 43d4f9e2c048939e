package models

import "time"

// FleetMetrics is one aggregate sample of the whole farm, the input the
// predictor works from.
type FleetMetrics struct {
	Timestamp         time.Time `json:"timestamp"`
	TotalInstances    int       `json:"total_instances"`
	IdleInstances     int       `json:"idle_instances"`
	BusyInstances     int       `json:"busy_instances"`
	MaintenanceCount  int       `json:"maintenance_count"`
	AvgLoad           float64   `json:"avg_load"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	ErrorRate         float64   `json:"error_rate"`
	ActiveSessions    int       `json:"active_sessions"`
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CostSummary is the cost guard's view for the fleet snapshot.
type CostSummary struct {
	CurrentHourlyCost   float64 `json:"current_hourly_cost"`
	HourlyLimit         float64 `json:"hourly_limit"`
	UtilizationPercent  float64 `json:"utilization_percent"`
	ProjectedDailyCost  float64 `json:"projected_daily_cost"`
	ProjectedMonthlyCost float64 `json:"projected_monthly_cost"`
}

// FleetSnapshot is the externally visible state of the farm.
type FleetSnapshot struct {
	Timestamp       time.Time             `json:"timestamp"`
	InstancesByState map[string]int       `json:"instances_by_state"`
	Metrics         FleetMetrics          `json:"metrics"`
	LoadTrend       Trend                 `json:"load_trend"`
	Cost            CostSummary           `json:"cost"`
	LatestDecision  *ScalingDecision      `json:"latest_decision,omitempty"`
	Fingerprints    FingerprintPoolStatus `json:"fingerprints"`
}
