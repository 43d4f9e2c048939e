package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/scraperfleet/browserfarm/api"
	"github.com/scraperfleet/browserfarm/internal/budget"
	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/internal/farm"
	"github.com/scraperfleet/browserfarm/internal/fingerprint"
	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/internal/metrics"
	"github.com/scraperfleet/browserfarm/internal/monitor"
	"github.com/scraperfleet/browserfarm/internal/pool"
	"github.com/scraperfleet/browserfarm/internal/proxy"
	"github.com/scraperfleet/browserfarm/internal/resilience"
	"github.com/scraperfleet/browserfarm/internal/scaler"
	"github.com/scraperfleet/browserfarm/pkg/config"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	bus := events.NewEventBus(cfg.Events.BufferSize)
	publisher := events.NewPublisher(bus)

	guard := budget.NewGuard(budget.Config{
		HourlyLimit:     cfg.Budget.HourlyLimit,
		CostPerInstance: cfg.Budget.CostPerInstance,
	})

	fingerprints := fingerprint.NewEngine(fingerprint.Config{
		BatchSize:        cfg.AntiDetect.PoolSize,
		RotationInterval: cfg.AntiDetect.RotationInterval,
	})

	executor := resilience.NewExecutor(resilience.ExecutorConfig{
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Resilience.Breaker.FailureThreshold,
			RecoveryTimeout:  cfg.Resilience.Breaker.RecoveryTimeout,
			HalfOpenMaxCalls: cfg.Resilience.Breaker.HalfOpenMaxCalls,
		},
		Timeout: resilience.AdaptiveTimeoutConfig{
			MinTimeout:            cfg.Resilience.Timeout.Min,
			MaxTimeout:            cfg.Resilience.Timeout.Max,
			AdjustmentFactor:      cfg.Resilience.Timeout.AdjustmentFactor,
			ResponseTimeThreshold: cfg.Resilience.Timeout.ResponseThreshold,
		},
		Retry: retryPolicy(cfg.Resilience.Retry),
		Cache: resilience.CacheConfig{
			TTL:     cfg.Resilience.Cache.TTL,
			MaxSize: cfg.Resilience.Cache.MaxSizeBytes,
		},
		OnBreakerChange: farm.BreakerHook(publisher),
	})

	launcher, err := newLauncher(cfg.Pool.Launcher)
	if err != nil {
		return err
	}

	instancePool := pool.New(pool.Config{
		MaxConcurrent:    cfg.Pool.MaxConcurrent,
		MinInstances:     cfg.Scaling.MinInstances,
		MaxInstances:     cfg.Scaling.MaxInstances,
		Region:           cfg.Pool.Region,
		Zone:             cfg.Pool.Zone,
		MaintenanceDelay: cfg.Pool.MaintenanceDelay,
		MaxUptime:        cfg.Pool.MaxUptime,
		MaxErrorRate:     cfg.Pool.MaxErrorRate,
		MaxAvgResponseMs: cfg.Pool.MaxAvgResponseMs,
	}, launcher, fingerprints, guard, publisher)

	predictor := scaler.NewHeuristicPredictor(scaler.HeuristicConfig{
		ScaleUpThreshold:   cfg.Scaling.ScaleUpThreshold,
		ScaleDownThreshold: cfg.Scaling.ScaleDownThreshold,
		BusinessHoursStart: cfg.Scaling.BusinessHoursStart,
		BusinessHoursEnd:   cfg.Scaling.BusinessHoursEnd,
	})

	fleetScaler := scaler.New(scaler.Config{
		Enabled:        cfg.Scaling.Enabled,
		TickInterval:   cfg.Scaling.TickInterval,
		CooldownPeriod: cfg.Scaling.CooldownPeriod,
		MinInstances:   cfg.Scaling.MinInstances,
		MaxInstances:   cfg.Scaling.MaxInstances,
	}, instancePool, predictor, guard, publisher)

	fleetMonitor := monitor.New(monitor.Config{
		SampleInterval: cfg.Monitor.SampleInterval,
		WindowSize:     cfg.Monitor.WindowSize,
	}, instancePool.Metrics)

	var proxies proxy.Provider
	if cfg.Proxy.Enabled {
		endpoints := make([]models.ProxyEndpoint, 0, len(cfg.Proxy.Endpoints))
		for _, ep := range cfg.Proxy.Endpoints {
			endpoints = append(endpoints, models.ProxyEndpoint{
				Host:     ep.Host,
				Port:     ep.Port,
				Username: ep.Username,
				Password: ep.Password,
				Protocol: ep.Protocol,
				Region:   ep.Region,
			})
		}
		proxies = proxy.NewStaticProvider(endpoints)
	}

	manager := farm.NewManager(farm.Deps{
		Pool:           instancePool,
		Scaler:         fleetScaler,
		Monitor:        fleetMonitor,
		Guard:          guard,
		Fingerprints:   fingerprints,
		Executor:       executor,
		Proxies:        proxies,
		Publisher:      publisher,
		Bus:            bus,
		AlertThreshold: cfg.Budget.AlertThreshold,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx, cfg.Scaling.MinInstances); err != nil {
		return fmt.Errorf("failed to start farm: %w", err)
	}

	if cfg.Prometheus.Enabled {
		startMetricsServer(cfg.Prometheus.Port)
	}

	server := api.NewServer(cfg.API, cfg.WebSocket, cfg.App.Mode, manager, bus)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		manager.Stop()
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown error: %v", err)
	}
	manager.Stop()

	logger.Info("Farm stopped gracefully")
	return nil
}

// retryPolicy overlays the configured retry settings onto the built-in
// defaults. A config that only tunes the attempt budget keeps the default
// retryable error classes instead of silently disabling retries.
func retryPolicy(cfg config.RetryConfig) resilience.RetryPolicy {
	p := resilience.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		p.MaxDelay = cfg.MaxDelay
	}
	if cfg.BackoffMultiplier >= 1 {
		p.BackoffMultiplier = cfg.BackoffMultiplier
	}
	p.Jitter = cfg.Jitter
	if len(cfg.RetryableErrors) > 0 {
		p.RetryableErrors = cfg.RetryableErrors
	}
	if len(cfg.RetryableStatus) > 0 {
		p.RetryableStatus = cfg.RetryableStatus
	}
	return p
}

func newLauncher(kind string) (pool.Launcher, error) {
	switch kind {
	case "playwright":
		return pool.NewPlaywrightLauncher(pool.PlaywrightConfig{
			Headless: true,
			Install:  true,
		})
	case "simulator":
		return pool.NewSimLauncher(), nil
	default:
		return nil, fmt.Errorf("unknown launcher: %s", kind)
	}
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	addr := ":" + strconv.Itoa(port)
	logger.Infof("Prometheus metrics server listening on %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("Prometheus server error: %v", err)
		}
	}()
}
