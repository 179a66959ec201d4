// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for quizctl. Values are layered
// defaults -> config file -> environment -> CLI flags.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Degraded DegradedConfig `toml:"degraded"`
	Notify   NotifyConfig   `toml:"notify"`
	Session  SessionConfig  `toml:"session"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig locates the backend and bounds each HTTP call.
type ServerConfig struct {
	BaseURL   string `toml:"base_url"`
	Timeout   string `toml:"timeout"`
	UserAgent string `toml:"user_agent"`
}

// DegradedConfig controls automatic degraded mode. Families are lists of
// path prefixes; a request whose path matches neither list is never
// synthesized. A probe_interval of "0" keeps a tripped family degraded for
// the rest of the process.
type DegradedConfig struct {
	Enabled       bool     `toml:"enabled"`
	ProbeInterval string   `toml:"probe_interval"`
	AuthPrefixes  []string `toml:"auth_prefixes"`
	DataPrefixes  []string `toml:"data_prefixes"`
}

// NotifyConfig controls user-facing warnings.
type NotifyConfig struct {
	AccessDeniedGap string `toml:"access_denied_gap"`
}

// SessionConfig selects where the session is kept between invocations.
type SessionConfig struct {
	Backend   string `toml:"backend"`
	TokenPath string `toml:"token_path"`
	RedisAddr string `toml:"redis_addr"`
	RedisKey  string `toml:"redis_key"`
}

// LoggingConfig controls log output: level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Session backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	BaseURL    string  // --base-url flag (empty = not set)
	Degraded   *bool   // --degraded flag
	LogLevel   *string // --verbose / --quiet
}

// RequestTimeout returns server.timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return parseDurationOrZero(c.Server.Timeout)
}

// ProbeInterval returns degraded.probe_interval as a duration. Zero
// disables recovery probing.
func (c *Config) ProbeInterval() time.Duration {
	return parseDurationOrZero(c.Degraded.ProbeInterval)
}

// AccessDeniedGap returns notify.access_denied_gap as a duration.
func (c *Config) AccessDeniedGap() time.Duration {
	return parseDurationOrZero(c.Notify.AccessDeniedGap)
}

// parseDurationOrZero parses a duration that Validate has already checked.
func parseDurationOrZero(s string) time.Duration {
	if s == "" || s == "0" {
		return 0
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}
