package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Resolved is a fully layered configuration plus the file it came from.
type Resolved struct {
	Config
	Path     string
	FromFile bool
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values.
func LoadOrDefault(path string) (*Config, bool, error) {
	if path == "" {
		return DefaultConfig(), false, nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), false, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}

	return cfg, true, nil
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, fromFile, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}

	if cli.BaseURL != "" {
		cfg.Server.BaseURL = cli.BaseURL
	}

	if cli.Degraded != nil {
		cfg.Degraded.Enabled = *cli.Degraded
	}

	if cli.LogLevel != nil {
		cfg.Logging.LogLevel = *cli.LogLevel
	}

	if cfg.Session.Backend == BackendFile && cfg.Session.TokenPath == "" {
		cfg.Session.TokenPath = DefaultTokenPath()
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &Resolved{Config: *cfg, Path: cfgPath, FromFile: fromFile}, nil
}

func applyEnv(cfg *Config, env EnvOverrides) error {
	if env.BaseURL != "" {
		cfg.Server.BaseURL = env.BaseURL
	}

	if env.Degraded != "" {
		enabled, err := strconv.ParseBool(env.Degraded)
		if err != nil {
			return fmt.Errorf("%s: must be a boolean, got %q", EnvDegraded, env.Degraded)
		}

		cfg.Degraded.Enabled = enabled
	}

	if env.SessionBackend != "" {
		cfg.Session.Backend = env.SessionBackend
	}

	return nil
}
