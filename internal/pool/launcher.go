package pool

import (
	"context"

	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// Worker is one live browser-automation process. Requests issued through it
// are wrapped by the resilience layer, not here.
type Worker interface {
	Fetch(ctx context.Context, req *resilience.Request) (*resilience.Response, error)
	Close() error
}

// Launcher provisions workers. The playwright implementation drives real
// Chromium contexts; the simulated one backs tests and the loadsim binary.
type Launcher interface {
	Launch(ctx context.Context, fp *models.Fingerprint) (Worker, error)
	Close() error
}
