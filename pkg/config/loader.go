package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/browserfarm")
	}

	v.SetEnvPrefix("BROWSERFARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "browserfarm")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	// Pool defaults
	v.SetDefault("pool.launcher", "simulator")
	v.SetDefault("pool.max_concurrent", 3)
	v.SetDefault("pool.region", "us-east-1")
	v.SetDefault("pool.zone", "us-east-1a")
	v.SetDefault("pool.maintenance_delay", "30s")
	v.SetDefault("pool.max_uptime", "24h")
	v.SetDefault("pool.max_error_rate", 5.0)
	v.SetDefault("pool.max_avg_response_ms", 2000.0)

	// Scaling defaults
	v.SetDefault("scaling.enabled", true)
	v.SetDefault("scaling.tick_interval", "30s")
	v.SetDefault("scaling.cooldown_period", "2m")
	v.SetDefault("scaling.min_instances", 2)
	v.SetDefault("scaling.max_instances", 20)
	v.SetDefault("scaling.scale_up_threshold", 75.0)
	v.SetDefault("scaling.scale_down_threshold", 25.0)
	v.SetDefault("scaling.business_hours_start", 9)
	v.SetDefault("scaling.business_hours_end", 18)

	// Anti-detection defaults
	v.SetDefault("antidetect.pool_size", 50)
	v.SetDefault("antidetect.rotation_interval", "1h")

	// Budget defaults
	v.SetDefault("budget.hourly_limit", 10.0)
	v.SetDefault("budget.cost_per_instance", 0.50)
	v.SetDefault("budget.alert_threshold", 0.8)

	// Resilience defaults
	v.SetDefault("resilience.circuit_breaker.failure_threshold", 5)
	v.SetDefault("resilience.circuit_breaker.recovery_timeout", "30s")
	v.SetDefault("resilience.circuit_breaker.half_open_max_calls", 3)
	v.SetDefault("resilience.retry.max_attempts", 3)
	v.SetDefault("resilience.retry.base_delay", "1s")
	v.SetDefault("resilience.retry.max_delay", "30s")
	v.SetDefault("resilience.retry.backoff_multiplier", 2.0)
	v.SetDefault("resilience.retry.jitter", true)
	v.SetDefault("resilience.retry.retryable_errors", []string{"timeout", "network", "connection", "temporarily unavailable"})
	v.SetDefault("resilience.retry.retryable_status", []int{408, 429, 500, 502, 503, 504})
	v.SetDefault("resilience.adaptive_timeout.min", "2s")
	v.SetDefault("resilience.adaptive_timeout.max", "30s")
	v.SetDefault("resilience.adaptive_timeout.adjustment_factor", 1.5)
	v.SetDefault("resilience.adaptive_timeout.response_threshold", "1s")
	v.SetDefault("resilience.cache.max_size_bytes", 104857600)
	v.SetDefault("resilience.cache.ttl", "5m")

	// Monitor defaults
	v.SetDefault("monitor.sample_interval", "5s")
	v.SetDefault("monitor.window_size", 1000)

	// Proxy defaults
	v.SetDefault("proxy.enabled", false)

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.client_buffer", 64)
	v.SetDefault("websocket.broadcast_buffer", 256)

	// Prometheus defaults
	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9090)

	// Events defaults
	v.SetDefault("events.buffer_size", 256)
}
