package config

import (
	"errors"
	"log/slog"

	"github.com/joeshaw/envdecode"
)

// Environment variable names for overrides.
const (
	EnvConfig         = "QUIZCTL_CONFIG"
	EnvBaseURL        = "QUIZCTL_BASE_URL"
	EnvDegraded       = "QUIZCTL_DEGRADED"
	EnvSessionBackend = "QUIZCTL_SESSION_BACKEND"
)

// EnvOverrides holds values derived from environment variables. Fields are
// strings so an unset variable is distinguishable from an explicit "false".
type EnvOverrides struct {
	ConfigPath     string `env:"QUIZCTL_CONFIG"`
	BaseURL        string `env:"QUIZCTL_BASE_URL"`
	Degraded       string `env:"QUIZCTL_DEGRADED"`
	SessionBackend string `env:"QUIZCTL_SESSION_BACKEND"`
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides(logger *slog.Logger) EnvOverrides {
	var env EnvOverrides

	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		logger.Warn("ignoring environment overrides", slog.String("error", err.Error()))
		return EnvOverrides{}
	}

	if env.ConfigPath != "" || env.BaseURL != "" || env.Degraded != "" || env.SessionBackend != "" {
		logger.Debug("environment overrides",
			slog.String("config", env.ConfigPath),
			slog.String("base_url", env.BaseURL),
			slog.String("degraded", env.Degraded),
			slog.String("session_backend", env.SessionBackend),
		)
	}

	return env
}
