package fingerprint

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/internal/metrics"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

const defaultBatchSize = 50

// Engine maintains a pre-generated pool of synthetic browser identities.
// Identities are consumed exclusively: Generate pops one from the pool and
// it is never handed out again.
type Engine struct {
	pool             []*models.Fingerprint
	mu               sync.Mutex
	batchSize        int
	rotationInterval time.Duration
	generatedTotal   int64
	consumedTotal    int64
	refillTimer      *time.Timer
	stopped          bool
}

type Config struct {
	BatchSize        int
	RotationInterval time.Duration
}

func NewEngine(cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.RotationInterval <= 0 {
		cfg.RotationInterval = 30 * time.Minute
	}

	e := &Engine{
		batchSize:        cfg.BatchSize,
		rotationInterval: cfg.RotationInterval,
	}
	e.refill(cfg.BatchSize)
	return e
}

// Generate pops one identity from the pool, refilling synchronously if the
// pool is exhausted and scheduling a background replenishment after the
// rotation interval.
func (e *Engine) Generate() *models.Fingerprint {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pool) == 0 {
		e.refillLocked(e.batchSize)
	}

	fp := e.pool[len(e.pool)-1]
	e.pool = e.pool[:len(e.pool)-1]
	e.consumedTotal++
	metrics.RecordFingerprint()

	e.scheduleRefillLocked()
	return fp
}

// ApplyTo overwrites the instance's current fingerprint with a fresh one.
// The previous identity is discarded, never returned to the pool.
func (e *Engine) ApplyTo(instance *models.BrowserInstance) {
	fp := e.Generate()
	instance.Fingerprint = fp
	logger.WithInstance(instance.ID).Debugf("Fingerprint rotated: %s / %s", fp.Platform, fp.Timezone)
}

func (e *Engine) Status() models.FingerprintPoolStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return models.FingerprintPoolStatus{
		Available:        len(e.pool),
		GeneratedTotal:   e.generatedTotal,
		ConsumedTotal:    e.consumedTotal,
		RotationInterval: e.rotationInterval,
	}
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopped = true
	if e.refillTimer != nil {
		e.refillTimer.Stop()
		e.refillTimer = nil
	}
}

func (e *Engine) refill(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refillLocked(n)
}

func (e *Engine) refillLocked(n int) {
	for i := 0; i < n; i++ {
		e.pool = append(e.pool, newIdentity())
	}
	e.generatedTotal += int64(n)
	logger.Debugf("Fingerprint pool refilled: %d available", len(e.pool))
}

func (e *Engine) scheduleRefillLocked() {
	if e.stopped || e.refillTimer != nil {
		return
	}
	e.refillTimer = time.AfterFunc(e.rotationInterval, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.refillTimer = nil
		if e.stopped {
			return
		}
		if len(e.pool) < e.batchSize {
			e.refillLocked(e.batchSize - len(e.pool))
		}
	})
}

func newIdentity() *models.Fingerprint {
	profile := platformProfiles[randInt(len(platformProfiles))]

	return &models.Fingerprint{
		ID:          models.NewUUID(),
		UserAgent:   profile.userAgents[randInt(len(profile.userAgents))],
		Viewport:    viewports[randInt(len(viewports))],
		Timezone:    timezones[randInt(len(timezones))],
		Language:    languages[randInt(len(languages))],
		Platform:    profile.platform,
		GPUVendor:   profile.gpuVendors[randInt(len(profile.gpuVendors))],
		GPURenderer: profile.gpuRenderers[randInt(len(profile.gpuRenderers))],
		CanvasNoise: noiseToken(),
		AudioNoise:  noiseToken(),
		GeneratedAt: time.Now(),
	}
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func noiseToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf)
}
