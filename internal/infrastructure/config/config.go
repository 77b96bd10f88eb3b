package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Target    TargetConfig    `yaml:"target"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds the public listener configuration.
type ServerConfig struct {
	// ExternalHost is the host (and optional port) clients use to reach this
	// server. It is substituted into the debugger URL.
	ExternalHost  string        `envconfig:"EXTERNAL_HOST" yaml:"external_host" validate:"required"`
	Host          string        `envconfig:"HOST" yaml:"host"`
	Port          int           `envconfig:"PORT" yaml:"port" validate:"required,min=1,max=65535"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" yaml:"shutdown_grace" validate:"gte=0"`
	// MaxConnections caps concurrent client connections; 0 means no cap.
	MaxConnections int `envconfig:"MAX_CONNECTIONS" yaml:"max_connections" validate:"gte=0"`
	// TLSCertFile and TLSKeyFile, when both set, make the listener serve HTTPS.
	TLSCertFile string `envconfig:"TLS_CERT_FILE" yaml:"tls_cert_file" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `envconfig:"TLS_KEY_FILE" yaml:"tls_key_file" validate:"required_with=TLSCertFile"`
}

// TargetConfig describes the debugged browser.
type TargetConfig struct {
	Host string `envconfig:"TARGET_HOST" yaml:"host" validate:"required"`
	Port int    `envconfig:"TARGET_PORT" yaml:"port" validate:"min=1,max=65535"`
	// InsecureWebSocket makes the debugger URL use ws instead of wss.
	InsecureWebSocket bool `envconfig:"INSECURE_WS" yaml:"insecure_ws"`
	// DialTimeout bounds connection setup for forwarded traffic.
	DialTimeout time.Duration `envconfig:"TARGET_DIAL_TIMEOUT" yaml:"dial_timeout" validate:"gt=0"`
}

// DiscoveryConfig holds page discovery settings.
type DiscoveryConfig struct {
	// Retries is the number of additional attempts made while no page is ready.
	Retries    int           `envconfig:"DISCOVERY_RETRIES" yaml:"retries" validate:"gte=0"`
	RetryDelay time.Duration `envconfig:"DISCOVERY_RETRY_DELAY" yaml:"retry_delay" validate:"gte=0"`
	Timeout    time.Duration `envconfig:"DISCOVERY_TIMEOUT" yaml:"timeout" validate:"gt=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds landing page rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" validate:"required_if=Enabled true,gte=0"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" validate:"required_if=Enabled true,gte=0"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// MetricsConfig holds the optional Prometheus listener configuration.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" yaml:"addr"`
}

// Load builds configuration from defaults, an optional YAML file and the
// environment, in that order of increasing precedence. The result is not
// validated, so callers can still apply flag overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// No default tags on purpose: unset variables leave file values alone.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TLSEnabled reports whether the public listener serves HTTPS.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// Addr returns the public listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns default configuration. ExternalHost and Port have no
// sensible default and must be supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			ShutdownGrace: 10 * time.Second,
		},
		Target: TargetConfig{
			Host:              "localhost",
			Port:              9222,
			InsecureWebSocket: false,
			DialTimeout:       5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Retries:    0,
			RetryDelay: time.Second,
			Timeout:    5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
