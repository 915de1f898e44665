// Package config holds runtime configuration for the verification service.
// Values resolve in order: defaults, then an optional YAML file, then
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veridian/hvs/pkg/store"
)

// Config holds the verification service configuration.
type Config struct {
	// DatabasePath is the SQLite database location.
	DatabasePath string

	// Workers bounds concurrent outbound host connections.
	Workers int

	// PollInterval is how often an idle worker checks the queue.
	PollInterval time.Duration

	// ConnectTimeout bounds one manifest retrieval attempt.
	ConnectTimeout time.Duration

	// SignerKeyPath points at the PEM-encoded ed25519 report signing key.
	// Empty means an ephemeral key is generated at startup, which is fine
	// for development but makes reports unverifiable across restarts.
	SignerKeyPath string

	// SignerIssuer is the issuer claim stamped on signed reports.
	SignerIssuer string

	// ReportValidity is the validity window of a signed report.
	ReportValidity time.Duration

	// SyslogSocket, when set, enables the syslog audit backend.
	SyslogSocket string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:   store.DefaultPath(),
		Workers:        4,
		PollInterval:   5 * time.Second,
		ConnectTimeout: 30 * time.Second,
		SignerIssuer:   "hvs",
		ReportValidity: 24 * time.Hour,
		LogLevel:       "info",
	}
}

// fileConfig mirrors Config for YAML decoding. Durations are strings in the
// file ("30s", "5m") and parsed with time.ParseDuration.
type fileConfig struct {
	DatabasePath   string `yaml:"database_path"`
	Workers        *int   `yaml:"workers"`
	PollInterval   string `yaml:"poll_interval"`
	ConnectTimeout string `yaml:"connect_timeout"`
	SignerKeyPath  string `yaml:"signer_key_path"`
	SignerIssuer   string `yaml:"signer_issuer"`
	ReportValidity string `yaml:"report_validity"`
	SyslogSocket   string `yaml:"syslog_socket"`
	LogLevel       string `yaml:"log_level"`
}

// LoadFile merges settings from a YAML file into the configuration.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.DatabasePath != "" {
		c.DatabasePath = fc.DatabasePath
	}
	if fc.Workers != nil {
		c.Workers = *fc.Workers
	}
	if fc.SignerKeyPath != "" {
		c.SignerKeyPath = fc.SignerKeyPath
	}
	if fc.SignerIssuer != "" {
		c.SignerIssuer = fc.SignerIssuer
	}
	if fc.SyslogSocket != "" {
		c.SyslogSocket = fc.SyslogSocket
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.PollInterval, "poll_interval", &c.PollInterval},
		{fc.ConnectTimeout, "connect_timeout", &c.ConnectTimeout},
		{fc.ReportValidity, "report_validity", &c.ReportValidity},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if path := os.Getenv("HVS_DATABASE_PATH"); path != "" {
		c.DatabasePath = path
	}
	if workers := os.Getenv("HVS_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid HVS_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if interval := os.Getenv("HVS_POLL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid HVS_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if timeout := os.Getenv("HVS_CONNECT_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid HVS_CONNECT_TIMEOUT: %w", err)
		}
		c.ConnectTimeout = d
	}
	if key := os.Getenv("HVS_SIGNER_KEY"); key != "" {
		c.SignerKeyPath = key
	}
	if issuer := os.Getenv("HVS_SIGNER_ISSUER"); issuer != "" {
		c.SignerIssuer = issuer
	}
	if validity := os.Getenv("HVS_REPORT_VALIDITY"); validity != "" {
		d, err := time.ParseDuration(validity)
		if err != nil {
			return fmt.Errorf("invalid HVS_REPORT_VALIDITY: %w", err)
		}
		c.ReportValidity = d
	}
	if socket := os.Getenv("HVS_SYSLOG_SOCKET"); socket != "" {
		c.SyslogSocket = socket
	}
	if level := os.Getenv("HVS_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %v", c.ConnectTimeout)
	}
	if c.ReportValidity <= 0 {
		return fmt.Errorf("report validity must be positive, got %v", c.ReportValidity)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
