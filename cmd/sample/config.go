package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the config and on the command line.
const (
	backendNetHTTP = "nethttp"
	backendPooled  = "pooled"
	backendBoth    = "both"
)

// Config is the sample server configuration.
type Config struct {
	Backend   string          `yaml:"backend"`
	NetHTTP   NetHTTPConfig   `yaml:"nethttp"`
	Pooled    PooledConfig    `yaml:"pooled"`
	StaticDir string          `yaml:"static_dir"`
	Timeout   time.Duration   `yaml:"timeout"`
	BodyLimit int64           `yaml:"body_limit"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// NetHTTPConfig configures the streaming backend.
type NetHTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// PooledConfig configures the worker-pool backend.
type PooledConfig struct {
	Addr        string `yaml:"addr"`
	Workers     int    `yaml:"workers"`
	MaxBodySize int    `yaml:"max_body_size"`
}

// RateLimitConfig configures per-client rate limiting. A zero rate disables it.
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Backend: backendNetHTTP,
		NetHTTP: NetHTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
		},
		Pooled: PooledConfig{
			Addr:        ":8081",
			Workers:     8,
			MaxBodySize: 4 << 20,
		},
		Timeout:   30 * time.Second,
		BodyLimit: 1 << 20,
		Metrics: MetricsConfig{
			Namespace: "httpkit_sample",
		},
	}
}

// LoadConfig loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file, when path is set
//  3. Command line flags and HTTPKIT_* environment variables
//  4. Validation
func LoadConfig(path string, cli *CLI) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if cli != nil {
		cli.apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// loadYAMLFile reads and parses a YAML file into cfg. Fields not present in
// the YAML retain their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided CLI flag
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case backendNetHTTP, backendPooled, backendBoth:
	default:
		errs = append(errs, fmt.Errorf("backend must be one of %s, %s, %s; got %q",
			backendNetHTTP, backendPooled, backendBoth, c.Backend))
	}
	if c.runs(backendNetHTTP) && c.NetHTTP.Addr == "" {
		errs = append(errs, errors.New("nethttp.addr is required"))
	}
	if c.runs(backendPooled) {
		if c.Pooled.Addr == "" {
			errs = append(errs, errors.New("pooled.addr is required"))
		}
		if c.Pooled.Workers <= 0 {
			errs = append(errs, fmt.Errorf("pooled.workers must be positive, got %d", c.Pooled.Workers))
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.BodyLimit < 0 {
		errs = append(errs, fmt.Errorf("body_limit must not be negative, got %d", c.BodyLimit))
	}
	if c.RateLimit.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.rate must not be negative, got %v", c.RateLimit.Rate))
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit.burst must be positive when rate limiting is on"))
	}
	if c.StaticDir != "" {
		if info, err := os.Stat(c.StaticDir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("static_dir %q is not a directory", c.StaticDir))
		}
	}

	return errors.Join(errs...)
}

// runs reports whether the named backend is enabled.
func (c *Config) runs(backend string) bool {
	return c.Backend == backend || c.Backend == backendBoth
}
