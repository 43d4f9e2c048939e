package config

import "time"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Scaling    ScalingConfig    `mapstructure:"scaling"`
	AntiDetect AntiDetectConfig `mapstructure:"antidetect"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	API        APIConfig        `mapstructure:"api"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Events     EventsConfig     `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PoolConfig struct {
	Launcher         string        `mapstructure:"launcher"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	Region           string        `mapstructure:"region"`
	Zone             string        `mapstructure:"zone"`
	MaintenanceDelay time.Duration `mapstructure:"maintenance_delay"`
	MaxUptime        time.Duration `mapstructure:"max_uptime"`
	MaxErrorRate     float64       `mapstructure:"max_error_rate"`
	MaxAvgResponseMs float64       `mapstructure:"max_avg_response_ms"`
}

type ScalingConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	CooldownPeriod      time.Duration `mapstructure:"cooldown_period"`
	MinInstances        int           `mapstructure:"min_instances"`
	MaxInstances        int           `mapstructure:"max_instances"`
	ScaleUpThreshold    float64       `mapstructure:"scale_up_threshold"`
	ScaleDownThreshold  float64       `mapstructure:"scale_down_threshold"`
	BusinessHoursStart  int           `mapstructure:"business_hours_start"`
	BusinessHoursEnd    int           `mapstructure:"business_hours_end"`
}

type AntiDetectConfig struct {
	PoolSize         int           `mapstructure:"pool_size"`
	RotationInterval time.Duration `mapstructure:"rotation_interval"`
}

type BudgetConfig struct {
	HourlyLimit     float64 `mapstructure:"hourly_limit"`
	CostPerInstance float64 `mapstructure:"cost_per_instance"`
	AlertThreshold  float64 `mapstructure:"alert_threshold"`
}

type ResilienceConfig struct {
	Breaker BreakerConfig `mapstructure:"circuit_breaker"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Timeout TimeoutConfig `mapstructure:"adaptive_timeout"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
}

type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	Jitter            bool          `mapstructure:"jitter"`
	RetryableErrors   []string      `mapstructure:"retryable_errors"`
	RetryableStatus   []int         `mapstructure:"retryable_status"`
}

type TimeoutConfig struct {
	Min               time.Duration `mapstructure:"min"`
	Max               time.Duration `mapstructure:"max"`
	AdjustmentFactor  float64       `mapstructure:"adjustment_factor"`
	ResponseThreshold time.Duration `mapstructure:"response_threshold"`
}

type CacheConfig struct {
	MaxSizeBytes int64         `mapstructure:"max_size_bytes"`
	TTL          time.Duration `mapstructure:"ttl"`
}

type MonitorConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	WindowSize     int           `mapstructure:"window_size"`
}

type ProxyConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Endpoints []ProxyEndpoint `mapstructure:"endpoints"`
}

type ProxyEndpoint struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Protocol string `mapstructure:"protocol"`
	Region   string `mapstructure:"region"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
