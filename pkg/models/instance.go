package models

import "time"

type InstanceState string

const (
	InstanceStateIdle        InstanceState = "IDLE"
	InstanceStateBusy        InstanceState = "BUSY"
	InstanceStateMaintenance InstanceState = "MAINTENANCE"
	InstanceStateOffline     InstanceState = "OFFLINE"
)

// BrowserInstance is one browser-automation worker managed by the pool.
type BrowserInstance struct {
	ID            string        `json:"id"`
	Region        string        `json:"region"`
	Zone          string        `json:"zone"`
	State         InstanceState `json:"state"`
	CreatedAt     time.Time     `json:"created_at"`
	LastUsedAt    time.Time     `json:"last_used_at"`
	CurrentLoad   int           `json:"current_load"`
	MaxConcurrent int           `json:"max_concurrent"`

	Fingerprint *Fingerprint        `json:"fingerprint,omitempty"`
	Performance InstancePerformance `json:"performance"`
	Limits      ResourceLimits      `json:"resource_limits"`
	Cost        CostMetrics         `json:"cost_metrics"`
}

// InstancePerformance holds rolling averages fed by completed sessions.
type InstancePerformance struct {
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	SuccessRate       float64 `json:"success_rate"`
	ErrorRate         float64 `json:"error_rate"`
	Throughput        float64 `json:"throughput"`
	CPUUsage          float64 `json:"cpu_usage"`
	MemoryUsage       float64 `json:"memory_usage"`
	TotalRequests     int64   `json:"total_requests"`
	FailedRequests    int64   `json:"failed_requests"`
}

type ResourceLimits struct {
	MaxMemoryMB  int `json:"max_memory_mb"`
	MaxCPUShares int `json:"max_cpu_shares"`
}

type CostMetrics struct {
	HourlyRate      float64 `json:"hourly_rate"`
	AccumulatedCost float64 `json:"accumulated_cost"`
	Efficiency      float64 `json:"utilization_efficiency"`
}

func (i *BrowserInstance) IsIdle() bool {
	return i.State == InstanceStateIdle
}

func (i *BrowserInstance) HasCapacity() bool {
	return i.CurrentLoad < i.MaxConcurrent
}

func (i *BrowserInstance) UptimeHours() float64 {
	return time.Since(i.CreatedAt).Hours()
}

// Snapshot returns a copy safe to hand to callers outside the pool lock.
func (i *BrowserInstance) Snapshot() BrowserInstance {
	cp := *i
	if i.Fingerprint != nil {
		fp := *i.Fingerprint
		cp.Fingerprint = &fp
	}
	return cp
}
