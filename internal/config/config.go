package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:"SERVER"`

	// Hub configuration
	Hub HubConfig `env:"HUB"`

	// Logging configuration
	Logging LoggingConfig `env:"LOGGING"`

	// Metrics configuration
	Metrics MetricsConfig `env:"METRICS"`

	// Telemetry configuration
	Telemetry TelemetryConfig `env:"TELEMETRY"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// HTTP server address (REST API, OTLP ingest, WebSocket events)
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":1990"`

	// Maximum accepted request body size in bytes
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"4194304"`
}

// HubConfig holds trace hub configuration
type HubConfig struct {
	// Idle retention window for traces, measured from last write
	TraceTTL time.Duration `env:"TRACE_TTL" envDefault:"5m"`

	// Interval of the background TTL sweeper
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10s"`

	// Timeout for per-connection capability discovery calls
	DiscoveryTimeout time.Duration `env:"DISCOVERY_TIMEOUT" envDefault:"3s"`

	// Per-subscriber event queue capacity
	SubscriberBuffer int `env:"SUBSCRIBER_BUFFER" envDefault:"256"`

	// Load demo traces at startup
	SeedDemo bool `env:"SEED_DEMO" envDefault:"false"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	// Log level: "debug", "info", "warn", "error"
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Log format: "json", "text"
	Format string `env:"LOG_FORMAT" envDefault:"json"`

	// Log file path (empty for stdout)
	Output string `env:"LOG_OUTPUT" envDefault:""`

	// Enable log rotation
	Rotation bool `env:"LOG_ROTATION" envDefault:"true"`

	// Max log file size in MB
	MaxSize int `env:"LOG_MAX_SIZE" envDefault:"100"`

	// Number of backup files to keep
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"7"`

	// Max age in days
	MaxAge int `env:"LOG_MAX_AGE" envDefault:"30"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	// Enable Prometheus metrics
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Metrics server address
	Addr string `env:"METRICS_ADDR" envDefault:":9091"`
}

// TelemetryConfig holds the hub's own operational tracing configuration.
// Exported traces go outward to an external collector only; they are
// never fed back into the hub's ingest path.
type TelemetryConfig struct {
	// Enable OpenTelemetry export of the hub's own operations
	Enabled bool `env:"TELEMETRY_ENABLED" envDefault:"false"`

	// OTLP endpoint of the external collector
	Endpoint string `env:"TELEMETRY_ENDPOINT" envDefault:""`

	// Exporter type: "grpc" or "http"
	Exporter string `env:"TELEMETRY_EXPORTER" envDefault:"grpc"`

	// Disable TLS on the exporter connection
	Insecure bool `env:"TELEMETRY_INSECURE" envDefault:"true"`
}

// Load loads configuration from environment variables, then command line
// flags, then validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	// Load from environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Parse command line flags
	flag.StringVar(&cfg.Server.HTTPAddr, "http-addr", cfg.Server.HTTPAddr, "HTTP server address")
	flag.DurationVar(&cfg.Hub.TraceTTL, "trace-ttl", cfg.Hub.TraceTTL, "Idle retention window for traces")
	flag.DurationVar(&cfg.Hub.SweepInterval, "sweep-interval", cfg.Hub.SweepInterval, "TTL sweeper interval")
	flag.BoolVar(&cfg.Hub.SeedDemo, "seed-demo", cfg.Hub.SeedDemo, "Load demo traces at startup")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (json, text)")
	flag.Parse()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("http server address cannot be empty")
	}

	if c.Hub.TraceTTL <= 0 {
		return fmt.Errorf("trace ttl must be positive")
	}

	if c.Hub.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}

	if c.Hub.DiscoveryTimeout <= 0 {
		return fmt.Errorf("discovery timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
		}
		validExporters := map[string]bool{
			"grpc": true,
			"http": true,
		}
		if !validExporters[strings.ToLower(c.Telemetry.Exporter)] {
			return fmt.Errorf("invalid telemetry exporter: %s", c.Telemetry.Exporter)
		}
	}

	return nil
}
