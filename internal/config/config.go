// Auditstream - Atlassian Audit Event Alerting
// Copyright 2026 M. Reyes (mreyes-ops)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes-ops/auditstream

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Atlassian AtlassianConfig `koanf:"atlassian"`
	Store     StoreConfig     `koanf:"store"`
	Cache     CacheConfig     `koanf:"cache"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AtlassianConfig configures the upstream events-stream collector.
type AtlassianConfig struct {
	// Enabled turns the poller on. The API surface works without it,
	// for deployments that push events in by other means.
	Enabled bool `koanf:"enabled"`

	BaseURL           string        `koanf:"base_url"`
	OrgID             string        `koanf:"org_id"`
	APIKey            string        `koanf:"api_key"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	PageLimit         int           `koanf:"page_limit"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// StoreConfig configures the durable store.
type StoreConfig struct {
	Path            string        `koanf:"path"`
	InMemory        bool          `koanf:"in_memory"`
	ShadowTTL       time.Duration `koanf:"shadow_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// EventRetention bounds how long raw audit events are kept.
	// Zero disables expiry.
	EventRetention time.Duration `koanf:"event_retention"`
}

// CacheConfig configures the in-memory TTL cache.
type CacheConfig struct {
	DefaultTTL    time.Duration `koanf:"default_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// AlertsConfig configures alert dispatch.
type AlertsConfig struct {
	// ChannelTimeout bounds one delivery attempt per channel.
	ChannelTimeout time.Duration `koanf:"channel_timeout"`
}

// PipelineConfig configures the in-process event pipeline.
type PipelineConfig struct {
	BufferSize   int64         `koanf:"buffer_size"`
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// Validate checks invariants that would make the process misbehave at
// runtime. It is called by Load; direct construction in tests may
// skip it.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}

	if c.Atlassian.Enabled {
		if c.Atlassian.BaseURL == "" {
			return fmt.Errorf("atlassian.base_url is required when the collector is enabled")
		}
		if c.Atlassian.OrgID == "" {
			return fmt.Errorf("atlassian.org_id is required when the collector is enabled")
		}
		if c.Atlassian.APIKey == "" {
			return fmt.Errorf("atlassian.api_key is required when the collector is enabled")
		}
		if c.Atlassian.PollInterval < time.Second {
			return fmt.Errorf("atlassian.poll_interval %s is below 1s", c.Atlassian.PollInterval)
		}
	}

	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for a durable store")
	}
	if c.Store.EventRetention < 0 {
		return fmt.Errorf("store.event_retention must not be negative")
	}

	if c.Alerts.ChannelTimeout < time.Second {
		return fmt.Errorf("alerts.channel_timeout %s is below 1s", c.Alerts.ChannelTimeout)
	}

	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
