package pool

import (
	"context"
	"time"

	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// SimFetchFunc produces the response a simulated worker returns.
type SimFetchFunc func(ctx context.Context, req *resilience.Request) (*resilience.Response, error)

// SimLauncher launches in-process workers for tests and the loadsim binary.
// Without a FetchFunc every request succeeds with a small HTML body after
// the configured latency.
type SimLauncher struct {
	FetchFunc SimFetchFunc
	Latency   time.Duration
}

func NewSimLauncher() *SimLauncher {
	return &SimLauncher{}
}

func (l *SimLauncher) Launch(ctx context.Context, fp *models.Fingerprint) (Worker, error) {
	fetch := l.FetchFunc
	if fetch == nil {
		latency := l.Latency
		fetch = func(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
			if latency > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(latency):
				}
			}
			return &resilience.Response{
				StatusCode: 200,
				Headers:    map[string]string{"Content-Type": "text/html"},
				Body:       []byte("<html><body>ok</body></html>"),
			}, nil
		}
	}
	return &simWorker{fetch: fetch}, nil
}

func (l *SimLauncher) Close() error {
	return nil
}

type simWorker struct {
	fetch SimFetchFunc
}

func (w *simWorker) Fetch(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
	return w.fetch(ctx, req)
}

func (w *simWorker) Close() error {
	return nil
}
