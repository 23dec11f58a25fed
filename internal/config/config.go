// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a .env file, an optional YAML file and ROLLCALL_ env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"time"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Timezone places attendance dates on the timeline for the lock check.
	// Empty means the process local zone.
	Timezone string `koanf:"timezone"`

	// LockWindow is how long after its midnight a date stays editable.
	LockWindow time.Duration `koanf:"lock_window"`

	// SessionTTL closes sessions idle for longer than this.
	SessionTTL time.Duration `koanf:"session_ttl"`

	// JanitorSchedule is the cron spec of the idle session sweep.
	JanitorSchedule string `koanf:"janitor_schedule"`

	// DigestSchedule is the cron spec of the daily attendance digest.
	DigestSchedule string `koanf:"digest_schedule"`

	// StoreBackend selects memory, postgres or remote.
	StoreBackend string `koanf:"store_backend"`

	// DatabaseDSN is required by the postgres backend.
	DatabaseDSN string `koanf:"database_dsn"`

	// RemoteURL, RemoteToken and RemoteTimeout configure the remote backend.
	RemoteURL     string        `koanf:"remote_url"`
	RemoteToken   string        `koanf:"remote_token"`
	RemoteTimeout time.Duration `koanf:"remote_timeout"`

	// RequestTimeout bounds each HTTP request handled by the server.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// StoreAPIEnabled exposes the /students and /attendance endpoints.
	StoreAPIEnabled bool `koanf:"store_api_enabled"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		LockWindow:      24 * time.Hour,
		SessionTTL:      30 * time.Minute,
		JanitorSchedule: "@every 1m",
		DigestSchedule:  "5 0 * * *",
		StoreBackend:    BackendMemory,
		RemoteTimeout:   10 * time.Second,
		RequestTimeout:  15 * time.Second,
		StoreAPIEnabled: true,
	}
}

// Location resolves Timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
