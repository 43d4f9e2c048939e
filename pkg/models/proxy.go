package models

import "time"

// ProxyEndpoint is handed out by a proxy-provider adapter for one session.
type ProxyEndpoint struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username,omitempty"`
	Password  string    `json:"-"`
	Protocol  string    `json:"protocol"`
	Region    string    `json:"region,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UsageStats summarizes a proxy provider's recent behavior.
type UsageStats struct {
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	BandwidthBytes    int64   `json:"bandwidth_bytes"`
}

func (p *ProxyEndpoint) Expired() bool {
	return !p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt)
}
