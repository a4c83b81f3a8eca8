// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/absmach/fluxdrain/pkg/tls"
	"github.com/absmach/fluxdrain/ratelimit"
	"github.com/absmach/fluxdrain/store"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a migration run.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Remote    RemoteConfig    `yaml:"remote"`
	Migration MigrationConfig `yaml:"migration"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SourceConfig describes the local store being drained.
type SourceConfig struct {
	Dir         string        `yaml:"dir"`         // Existing store directory
	Compression string        `yaml:"compression"` // none, s2, zstd; only affects writes
	SyncWrites  bool          `yaml:"sync_writes"` // fsync every acknowledgement
	GCInterval  time.Duration `yaml:"gc_interval"` // value log GC period
}

// RemoteConfig describes the AMQP 0.9.1 broker receiving the messages.
type RemoteConfig struct {
	URL            string        `yaml:"url"`      // amqp:// or amqps:// URL
	Username       string        `yaml:"username"` // empty connects anonymously
	Password       string        `yaml:"password"`
	Vhost          string        `yaml:"vhost"`
	ConnectionName string        `yaml:"connection_name"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	DeclareQueues  bool          `yaml:"declare_queues"` // false requires queues to exist
	TLS            tls.Config    `yaml:"tls"`
}

// MigrationConfig controls the drain itself.
type MigrationConfig struct {
	ReceiveTimeout time.Duration    `yaml:"receive_timeout"`
	Workers        int              `yaml:"workers"` // destinations drained concurrently
	Include        []string         `yaml:"include"` // path.Match patterns
	Exclude        []string         `yaml:"exclude"`
	DryRun         bool             `yaml:"dry_run"`
	RateLimit      ratelimit.Config `yaml:"rate_limit"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Endpoint        string        `yaml:"endpoint"` // OTLP gRPC endpoint
	Insecure        bool          `yaml:"insecure"`
	ServiceName     string        `yaml:"service_name"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	TracesEnabled   bool          `yaml:"traces_enabled"`
	TraceSampleRate float64       `yaml:"trace_sample_rate"` // 0.0 to 1.0
	ExportInterval  time.Duration `yaml:"export_interval"`
}

// Enabled reports whether any signal is exported.
func (t TelemetryConfig) Enabled() bool {
	return t.MetricsEnabled || t.TracesEnabled
}

// Default returns a configuration with sensible defaults. Source.Dir and
// Remote.URL have no defaults and must be provided.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Compression: "none",
			GCInterval:  store.DefaultGCInterval,
		},
		Remote: RemoteConfig{
			Vhost:          "/",
			ConnectionName: "fluxdrain",
			DialTimeout:    10 * time.Second,
			Heartbeat:      60 * time.Second,
			ConfirmTimeout: 30 * time.Second,
			DeclareQueues:  true,
		},
		Migration: MigrationConfig{
			ReceiveTimeout: time.Second,
			Workers:        1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Endpoint:        "localhost:4317",
			Insecure:        true,
			ServiceName:     "fluxdrain",
			TraceSampleRate: 1.0,
			ExportInterval:  10 * time.Second,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults. An empty
// filename returns the defaults. The result is not validated, so that
// command-line overrides can be applied first.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// PasswordIgnored reports whether a password is set without a username. The
// password is then unused and the remote is reached anonymously.
func (r RemoteConfig) PasswordIgnored() bool {
	return r.Password != "" && r.Username == ""
}

// Validate checks the configuration. It is called before any store is opened
// or connection made; the source directory must already hold a store.
func (c *Config) Validate() error {
	if c.Source.Dir == "" {
		return fmt.Errorf("source.dir cannot be empty")
	}
	if err := store.CheckDir(c.Source.Dir, false); err != nil {
		return fmt.Errorf("source.dir: %w", err)
	}
	if _, err := store.ParseCompression(c.Source.Compression); err != nil {
		return fmt.Errorf("source.compression: %w", err)
	}
	if c.Source.GCInterval < 0 {
		return fmt.Errorf("source.gc_interval cannot be negative")
	}

	// A dry run never dials the remote.
	if c.Remote.URL == "" && !c.Migration.DryRun {
		return fmt.Errorf("remote.url cannot be empty")
	}
	if c.Remote.DialTimeout < 0 || c.Remote.Heartbeat < 0 || c.Remote.ConfirmTimeout < 0 {
		return fmt.Errorf("remote timeouts cannot be negative")
	}
	if err := c.Remote.TLS.Validate(); err != nil {
		return fmt.Errorf("remote.tls: %w", err)
	}

	if c.Migration.ReceiveTimeout <= 0 {
		return fmt.Errorf("migration.receive_timeout must be positive")
	}
	if c.Migration.Workers < 1 {
		return fmt.Errorf("migration.workers must be at least 1")
	}
	for _, p := range append(append([]string{}, c.Migration.Include...), c.Migration.Exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("migration filter %q: %w", p, err)
		}
	}
	if c.Migration.RateLimit.Rate < 0 || c.Migration.RateLimit.DestinationRate < 0 {
		return fmt.Errorf("migration.rate_limit rates cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	if c.Telemetry.Enabled() {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint cannot be empty when telemetry is enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry.service_name cannot be empty when telemetry is enabled")
		}
		if c.Telemetry.TraceSampleRate < 0.0 || c.Telemetry.TraceSampleRate > 1.0 {
			return fmt.Errorf("telemetry.trace_sample_rate must be between 0.0 and 1.0")
		}
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
