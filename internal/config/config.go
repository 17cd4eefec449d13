// Package config loads the exporter configuration: an optional YAML file as
// the base layer, environment variables on top, defaults for anything left
// unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// defaultMaxBodySize is 25 MB in bytes.
const defaultMaxBodySize = 26214400

// TLS modes.
const (
	TLSModeOff        = "off"
	TLSModeFile       = "file"
	TLSModeSelfSigned = "self-signed"
)

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	TLS       TLSConfig       `yaml:"tls"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	SES       SESConfig       `yaml:"ses"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Listen          string        `yaml:"listen"           env:"HTTP_LISTEN"`
	MaxBodySize     int64         `yaml:"max_body_size"    env:"HTTP_MAX_BODY_SIZE"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
}

// TLSConfig selects how the HTTP listener is secured.
type TLSConfig struct {
	Mode     string `yaml:"mode"      env:"TLS_MODE"`
	CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE"`
	KeyFile  string `yaml:"key_file"  env:"TLS_KEY_FILE"`
}

// RateLimitConfig holds per-client request limits. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"   env:"RATE_LIMIT_RPS"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// SESConfig holds AWS SES credentials for template publishing.
type SESConfig struct {
	Region          string `yaml:"region"            env:"SES_REGION"`
	AccessKeyID     string `yaml:"access_key_id"     env:"SES_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SES_SECRET_ACCESS_KEY"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Disabled bool   `yaml:"disabled" env:"METRICS_DISABLED"`
	Path     string `yaml:"path"     env:"METRICS_PATH"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Defaults returns the values used for every field left unset.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Listen:          ":8080",
			MaxBodySize:     defaultMaxBodySize,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		TLS:       TLSConfig{Mode: TLSModeOff},
		RateLimit: RateLimitConfig{Burst: 20},
		Metrics:   MetricsConfig{Path: "/metrics"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. A non-empty path names a YAML file used as
// the base layer; it is an error if the file does not exist. Environment
// variables always take precedence, and empty ones are ignored.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment variables always override YAML values
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := mergo.Merge(cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	cfg.TLS.Mode = strings.ToLower(cfg.TLS.Mode)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv exports the variables of a .env file into the process
// environment without replacing variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.TLS.Mode {
	case TLSModeOff, TLSModeSelfSigned:
	case TLSModeFile:
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return errors.New("tls mode \"file\" requires cert_file and key_file")
		}
	default:
		return fmt.Errorf("unknown tls mode %q", c.TLS.Mode)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	if c.Server.MaxBodySize < 0 {
		return fmt.Errorf("max_body_size must not be negative, got %d", c.Server.MaxBodySize)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got %q", c.Metrics.Path)
	}

	return nil
}

// SESConfigured returns true if an SES region is set. Credentials fall back
// to the default AWS chain when the keys are empty.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// RateLimitEnabled returns true if per-client rate limiting is on.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimit.RPS > 0
}

// MetricsPath returns the metrics endpoint path, or "" when disabled.
func (c *Config) MetricsPath() string {
	if c.Metrics.Disabled {
		return ""
	}
	return c.Metrics.Path
}
