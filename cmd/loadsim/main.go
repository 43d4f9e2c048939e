// Command loadsim drives a simulated fleet through load phases so scaling,
// breaker, and budget behavior can be observed without real browsers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scraperfleet/browserfarm/internal/budget"
	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/internal/farm"
	"github.com/scraperfleet/browserfarm/internal/fingerprint"
	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/internal/monitor"
	"github.com/scraperfleet/browserfarm/internal/pool"
	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/internal/scaler"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

type simBackend struct {
	latency time.Duration
	failing bool
	mu      sync.Mutex
}

func (b *simBackend) setFailing(failing bool) {
	b.mu.Lock()
	b.failing = failing
	b.mu.Unlock()
}

func (b *simBackend) fetch(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
	b.mu.Lock()
	latency, failing := b.latency, b.failing
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(latency):
	}

	if failing {
		return &resilience.Response{StatusCode: 503}, nil
	}
	return &resilience.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "text/html"},
		Body:       []byte("<html><body>ok</body></html>"),
	}, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger.Setup(*logLevel, "development")
	logger.Info("Starting load simulation")

	backend := &simBackend{latency: 50 * time.Millisecond}

	bus := events.NewEventBus(256)
	publisher := events.NewPublisher(bus)
	guard := budget.NewGuard(budget.Config{HourlyLimit: 3.0, CostPerInstance: 0.50})
	fingerprints := fingerprint.NewEngine(fingerprint.Config{BatchSize: 20})

	executor := resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  5 * time.Second,
		},
		Retry: resilience.RetryPolicy{
			MaxAttempts:       2,
			BaseDelay:         100 * time.Millisecond,
			MaxDelay:          time.Second,
			BackoffMultiplier: 2.0,
			RetryableStatus:   []int{502, 503, 504},
		},
		Cache:           resilience.CacheConfig{TTL: time.Minute},
		OnBreakerChange: farm.BreakerHook(publisher),
	})

	launcher := pool.NewSimLauncher()
	launcher.FetchFunc = backend.fetch

	instancePool := pool.New(pool.Config{
		MaxConcurrent: 2,
		MinInstances:  2,
		MaxInstances:  6,
		Region:        "sim-region",
		Zone:          "sim-zone-a",
	}, launcher, fingerprints, guard, publisher)

	predictor := scaler.NewHeuristicPredictor(scaler.HeuristicConfig{})
	fleetScaler := scaler.New(scaler.Config{
		Enabled:        true,
		TickInterval:   2 * time.Second,
		CooldownPeriod: 5 * time.Second,
		MinInstances:   2,
		MaxInstances:   6,
	}, instancePool, predictor, guard, publisher)

	fleetMonitor := monitor.New(monitor.Config{
		SampleInterval: time.Second,
	}, instancePool.Metrics)

	manager := farm.NewManager(farm.Deps{
		Pool:         instancePool,
		Scaler:       fleetScaler,
		Monitor:      fleetMonitor,
		Guard:        guard,
		Fingerprints: fingerprints,
		Executor:     executor,
		Publisher:    publisher,
		Bus:          bus,
	})

	eventChan := bus.SubscribeAll()
	go func() {
		for event := range eventChan {
			logger.Infof("[EVENT] %s: %s (severity: %s)", event.Type, event.Message, event.Severity)
		}
	}()

	ctx := context.Background()
	if err := manager.Start(ctx, 2); err != nil {
		return fmt.Errorf("failed to start farm: %w", err)
	}
	defer manager.Stop()

	logger.Info("=== Phase 1: Light traffic (10 seconds) ===")
	driveTraffic(ctx, manager, 2, 10*time.Second)

	logger.Info("=== Phase 2: Heavy traffic, expect scale-up (20 seconds) ===")
	driveTraffic(ctx, manager, 10, 20*time.Second)

	logger.Info("=== Phase 3: Failing upstream, expect breaker to open (10 seconds) ===")
	backend.setFailing(true)
	driveTraffic(ctx, manager, 4, 10*time.Second)
	backend.setFailing(false)

	logger.Info("=== Phase 4: Quiet period, expect scale-down (20 seconds) ===")
	time.Sleep(20 * time.Second)

	snapshot := manager.Snapshot()
	logger.Infof("Final fleet: %d instances, avg load %.1f%%, trend %s, spend $%.2f/hr",
		snapshot.Metrics.TotalInstances, snapshot.Metrics.AvgLoad,
		snapshot.LoadTrend, snapshot.Cost.CurrentHourlyCost)

	logger.Info("Load simulation complete")
	return nil
}

// driveTraffic runs workers concurrent request loops for the given duration.
func driveTraffic(ctx context.Context, manager *farm.Manager, workers int, duration time.Duration) {
	deadline := time.Now().Add(duration)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			for time.Now().Before(deadline) {
				session, err := manager.AcquireSession(ctx, models.SessionRequirements{})
				if err != nil {
					if errors.Is(err, pool.ErrPoolExhausted) {
						time.Sleep(500 * time.Millisecond)
						continue
					}
					return fmt.Errorf("worker %d acquire failed: %w", worker, err)
				}

				for j := 0; j < 5 && time.Now().Before(deadline); j++ {
					url := fmt.Sprintf("https://sim.example.com/page/%d", rand.Intn(100))
					_, err := manager.Execute(ctx, session.ID, &resilience.Request{
						Method: "GET",
						URL:    url,
					})
					if err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
						time.Sleep(time.Second)
					}
				}

				if err := manager.ReleaseSession(session.ID); err != nil {
					logger.Errorf("Worker %d release failed: %v", worker, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Errorf("Traffic phase ended with error: %v", err)
	}
}
