package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as an annotated TOML
// summary to w. This powers "quizctl config show".
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	source := "defaults (no config file)"
	if r.FromFile {
		source = r.Path
	}

	ew.printf("# Effective configuration\n# source: %s\n\n", source)

	ew.printf("[server]\n")
	ew.printf("  base_url   = %q\n", r.Server.BaseURL)
	ew.printf("  timeout    = %q\n", r.Server.Timeout)

	if r.Server.UserAgent != "" {
		ew.printf("  user_agent = %q\n", r.Server.UserAgent)
	}

	ew.printf("\n[degraded]\n")
	ew.printf("  enabled        = %t\n", r.Degraded.Enabled)
	ew.printf("  probe_interval = %q\n", r.Degraded.ProbeInterval)
	ew.printf("  auth_prefixes  = [%s]\n", joinQuoted(r.Degraded.AuthPrefixes))
	ew.printf("  data_prefixes  = [%s]\n", joinQuoted(r.Degraded.DataPrefixes))

	ew.printf("\n[notify]\n")
	ew.printf("  access_denied_gap = %q\n", r.Notify.AccessDeniedGap)

	ew.printf("\n[session]\n")
	ew.printf("  backend    = %q\n", r.Session.Backend)

	switch r.Session.Backend {
	case BackendFile:
		ew.printf("  token_path = %q\n", r.Session.TokenPath)
	case BackendRedis:
		ew.printf("  redis_addr = %q\n", r.Session.RedisAddr)
		ew.printf("  redis_key  = %q\n", r.Session.RedisKey)
	}

	ew.printf("\n[logging]\n")
	ew.printf("  log_level  = %q\n", r.Logging.LogLevel)
	ew.printf("  log_format = %q\n", r.Logging.LogFormat)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Later writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// joinQuoted returns a comma-separated list of quoted strings.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return strings.Join(quoted, ", ")
}
