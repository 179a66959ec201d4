package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Validation range constants.
const (
	minTimeout         = 1 * time.Second
	maxTimeout         = 10 * time.Minute
	minProbeInterval   = 1 * time.Second
	minAccessDeniedGap = 100 * time.Millisecond
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDegraded(&cfg.Degraded)...)
	errs = append(errs, validateDurationMin("access_denied_gap", cfg.Notify.AccessDeniedGap, minAccessDeniedGap)...)
	errs = append(errs, validateSession(&cfg.Session)...)
	errs = append(errs, validateLogLevel(cfg.Logging.LogLevel)...)
	errs = append(errs, validateLogFormat(cfg.Logging.LogFormat)...)

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	u, err := url.Parse(s.BaseURL)

	switch {
	case s.BaseURL == "":
		errs = append(errs, errors.New("base_url: must not be empty"))
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url: scheme must be http or https, got %q", s.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base_url: missing host in %q", s.BaseURL))
	}

	errs = append(errs, validateDurationMin("timeout", s.Timeout, minTimeout)...)

	if d := parseDurationOrZero(s.Timeout); d > maxTimeout {
		errs = append(errs, fmt.Errorf("timeout: must be <= %s, got %q", maxTimeout, s.Timeout))
	}

	return errs
}

func validateDegraded(d *DegradedConfig) []error {
	var errs []error

	if d.ProbeInterval != "0" && d.ProbeInterval != "" {
		errs = append(errs, validateDurationMin("probe_interval", d.ProbeInterval, minProbeInterval)...)
	}

	errs = append(errs, validatePrefixes("auth_prefixes", d.AuthPrefixes)...)
	errs = append(errs, validatePrefixes("data_prefixes", d.DataPrefixes)...)

	for _, p := range d.AuthPrefixes {
		if slices.Contains(d.DataPrefixes, p) {
			errs = append(errs, fmt.Errorf("degraded: prefix %q is listed in both auth_prefixes and data_prefixes", p))
		}
	}

	return errs
}

func validatePrefixes(field string, prefixes []string) []error {
	var errs []error

	for _, p := range prefixes {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s: prefix %q must start with /", field, p))
		}
	}

	return errs
}

var validBackends = []string{BackendFile, BackendMemory, BackendRedis}

func validateSession(s *SessionConfig) []error {
	var errs []error

	if !slices.Contains(validBackends, s.Backend) {
		errs = append(errs, fmt.Errorf("backend: must be one of %s; got %q",
			strings.Join(validBackends, ", "), s.Backend))
	}

	if s.Backend == BackendRedis {
		if s.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr: required when backend is redis"))
		}

		if s.RedisKey == "" {
			errs = append(errs, errors.New("redis_key: must not be empty"))
		}
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

// validateDurationMin parses a Go duration string and checks it is >= min.
func validateDurationMin(field, value string, minVal time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minVal {
		return []error{fmt.Errorf("%s: must be >= %s, got %q", field, minVal, value)}
	}

	return nil
}
