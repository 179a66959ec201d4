package config

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file.
const (
	defaultBaseURL         = "http://localhost:8080/api"
	defaultTimeout         = "30s"
	defaultProbeInterval   = "0"
	defaultAccessDeniedGap = "4s"
	defaultBackend         = BackendFile
	defaultRedisKey        = "quizctl:session"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// Default endpoint families. Auth covers the whole /auth tree; data covers
// the dashboard and subscription reads plus quiz traffic.
var (
	defaultAuthPrefixes = []string{"/auth"}
	defaultDataPrefixes = []string{"/dashboard", "/subscriptions", "/quizzes", "/attempts"}
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
		},
		Degraded: DegradedConfig{
			Enabled:       false,
			ProbeInterval: defaultProbeInterval,
			AuthPrefixes:  append([]string(nil), defaultAuthPrefixes...),
			DataPrefixes:  append([]string(nil), defaultDataPrefixes...),
		},
		Notify: NotifyConfig{
			AccessDeniedGap: defaultAccessDeniedGap,
		},
		Session: SessionConfig{
			Backend:  defaultBackend,
			RedisKey: defaultRedisKey,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
