// Package proxy assigns egress proxies to scraping sessions.
package proxy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/scraperfleet/browserfarm/pkg/models"
)

var ErrNoProxies = errors.New("no proxies configured")

// Provider hands out a proxy endpoint for a new session. Implementations
// may consult geo hints or upstream rotation services. RecordResult feeds
// request outcomes back so Usage can summarize proxied traffic; results
// for sessions without an assigned proxy are ignored.
type Provider interface {
	Acquire(ctx context.Context, sessionID, geoHint string) (*models.ProxyEndpoint, error)
	Release(sessionID string)
	RecordResult(sessionID string, d time.Duration, failed bool, bytes int64)
	Stats() Stats
	Usage() models.UsageStats
}

type Stats struct {
	Total    int            `json:"total"`
	Assigned int            `json:"assigned"`
	ByRegion map[string]int `json:"by_region"`
}

// StaticProvider rotates round-robin over a fixed pool, preferring
// endpoints whose region matches the geo hint.
type StaticProvider struct {
	endpoints []models.ProxyEndpoint
	next      int
	assigned  map[string]models.ProxyEndpoint

	requests  int64
	failures  int64
	totalMs   float64
	bandwidth int64

	mu sync.Mutex
}

func NewStaticProvider(endpoints []models.ProxyEndpoint) *StaticProvider {
	return &StaticProvider{
		endpoints: endpoints,
		assigned:  make(map[string]models.ProxyEndpoint),
	}
}

func (p *StaticProvider) Acquire(_ context.Context, sessionID, geoHint string) (*models.ProxyEndpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.endpoints) == 0 {
		return nil, ErrNoProxies
	}

	if geoHint != "" {
		for i := range p.endpoints {
			idx := (p.next + i) % len(p.endpoints)
			if p.endpoints[idx].Region == geoHint {
				return p.takeLocked(idx, sessionID), nil
			}
		}
	}

	return p.takeLocked(p.next%len(p.endpoints), sessionID), nil
}

func (p *StaticProvider) takeLocked(idx int, sessionID string) *models.ProxyEndpoint {
	ep := p.endpoints[idx]
	p.next = (idx + 1) % len(p.endpoints)
	p.assigned[sessionID] = ep
	return &ep
}

func (p *StaticProvider) Release(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.assigned, sessionID)
}

func (p *StaticProvider) RecordResult(sessionID string, d time.Duration, failed bool, bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.assigned[sessionID]; !ok {
		return
	}

	p.requests++
	if failed {
		p.failures++
	}
	p.totalMs += float64(d.Milliseconds())
	p.bandwidth += bytes
}

// Usage summarizes traffic routed through assigned proxies. Success rate is
// 100 until the first result arrives.
func (p *StaticProvider) Usage() models.UsageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := models.UsageStats{SuccessRate: 100, BandwidthBytes: p.bandwidth}
	if p.requests > 0 {
		u.SuccessRate = float64(p.requests-p.failures) / float64(p.requests) * 100
		u.AvgResponseTimeMs = p.totalMs / float64(p.requests)
	}
	return u
}

func (p *StaticProvider) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	byRegion := make(map[string]int)
	for _, ep := range p.endpoints {
		byRegion[ep.Region]++
	}
	return Stats{
		Total:    len(p.endpoints),
		Assigned: len(p.assigned),
		ByRegion: byRegion,
	}
}
