package models

import "time"

// Fingerprint is the synthetic identity an instance presents to remote
// sites. A fingerprint is owned by at most one live instance; rotation
// replaces it, it is never shared.
type Fingerprint struct {
	ID          string    `json:"id"`
	UserAgent   string    `json:"user_agent"`
	Viewport    Viewport  `json:"viewport"`
	Timezone    string    `json:"timezone"`
	Language    string    `json:"language"`
	Platform    string    `json:"platform"`
	GPUVendor   string    `json:"gpu_vendor"`
	GPURenderer string    `json:"gpu_renderer"`
	CanvasNoise string    `json:"canvas_noise"`
	AudioNoise  string    `json:"audio_noise"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FingerprintPoolStatus reports the engine state for the fleet snapshot.
type FingerprintPoolStatus struct {
	Available        int           `json:"available"`
	GeneratedTotal   int64         `json:"generated_total"`
	ConsumedTotal    int64         `json:"consumed_total"`
	RotationInterval time.Duration `json:"rotation_interval"`
}
