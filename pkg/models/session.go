package models

import "time"

// Session is an ephemeral binding between a caller and one instance. It is
// owned by the instance for its lifetime and released explicitly.
type Session struct {
	ID         string         `json:"id"`
	InstanceID string         `json:"instance_id"`
	StartedAt  time.Time      `json:"started_at"`
	Proxy      *ProxyEndpoint `json:"proxy,omitempty"`

	// Outcome counters, folded into instance performance on release.
	Requests      int64         `json:"requests"`
	Failures      int64         `json:"failures"`
	TotalDuration time.Duration `json:"total_duration"`
}

// SessionRequirements describes what a caller needs from the instance
// serving the session.
type SessionRequirements struct {
	Region  string `json:"region,omitempty"`
	GeoHint string `json:"geo_hint,omitempty"`
}

func NewSession(instanceID string) *Session {
	return &Session{
		ID:         NewUUID(),
		InstanceID: instanceID,
		StartedAt:  time.Now(),
	}
}

func (s *Session) RecordRequest(d time.Duration, failed bool) {
	s.Requests++
	if failed {
		s.Failures++
	}
	s.TotalDuration += d
}

func (s *Session) AvgResponseTimeMs() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TotalDuration.Milliseconds()) / float64(s.Requests)
}

func (s *Session) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests)
}
