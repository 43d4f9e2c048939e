package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	// Pool validation
	validLaunchers := map[string]bool{"simulator": true, "playwright": true}
	if !validLaunchers[c.Pool.Launcher] {
		errs = append(errs, errors.New("pool.launcher must be one of: simulator, playwright"))
	}
	if c.Pool.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("pool.max_concurrent must be positive"))
	}
	if c.Pool.MaxErrorRate <= 0 || c.Pool.MaxErrorRate > 100 {
		errs = append(errs, errors.New("pool.max_error_rate must be between 0 and 100"))
	}

	// Scaling validation
	if c.Scaling.MinInstances < 0 {
		errs = append(errs, errors.New("scaling.min_instances must not be negative"))
	}
	if c.Scaling.MaxInstances < c.Scaling.MinInstances {
		errs = append(errs, errors.New("scaling.max_instances must be >= min_instances"))
	}
	if c.Scaling.MaxInstances <= 0 {
		errs = append(errs, errors.New("scaling.max_instances must be positive"))
	}
	if c.Scaling.CooldownPeriod <= 0 {
		errs = append(errs, errors.New("scaling.cooldown_period must be positive"))
	}
	if c.Scaling.ScaleUpThreshold <= c.Scaling.ScaleDownThreshold {
		errs = append(errs, errors.New("scaling.scale_up_threshold must be greater than scale_down_threshold"))
	}
	if c.Scaling.BusinessHoursStart < 0 || c.Scaling.BusinessHoursStart > 23 {
		errs = append(errs, errors.New("scaling.business_hours_start must be between 0 and 23"))
	}
	if c.Scaling.BusinessHoursEnd < 0 || c.Scaling.BusinessHoursEnd > 23 {
		errs = append(errs, errors.New("scaling.business_hours_end must be between 0 and 23"))
	}

	// Budget validation
	if c.Budget.HourlyLimit <= 0 {
		errs = append(errs, errors.New("budget.hourly_limit must be positive"))
	}
	if c.Budget.CostPerInstance <= 0 {
		errs = append(errs, errors.New("budget.cost_per_instance must be positive"))
	}
	if c.Budget.CostPerInstance > c.Budget.HourlyLimit {
		errs = append(errs, errors.New("budget.cost_per_instance must not exceed hourly_limit"))
	}

	// Resilience validation
	if c.Resilience.Breaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("resilience.circuit_breaker.failure_threshold must be positive"))
	}
	if c.Resilience.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("resilience.retry.max_attempts must be positive"))
	}
	if c.Resilience.Retry.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("resilience.retry.backoff_multiplier must be >= 1"))
	}
	if c.Resilience.Timeout.Min > c.Resilience.Timeout.Max {
		errs = append(errs, errors.New("resilience.adaptive_timeout.min must be <= max"))
	}

	// Proxy validation
	if c.Proxy.Enabled && len(c.Proxy.Endpoints) == 0 {
		errs = append(errs, errors.New("proxy.endpoints is required when proxy.enabled is true"))
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if c.Prometheus.Enabled && (c.Prometheus.Port <= 0 || c.Prometheus.Port > 65535) {
		errs = append(errs, errors.New("prometheus.port must be between 1 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
