package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizctl/internal/api"
	"github.com/quizdesk/quizctl/internal/config"
	"github.com/quizdesk/quizctl/internal/session"
)

// Token state constants for status reporting.
const (
	tokenStateMissing = "missing"
	tokenStateExpired = "expired"
	tokenStateValid   = "valid"
	tokenStateOpaque  = "opaque"
)

func newStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session, token, and degraded-mode status",
		Long: `Display the session state, the signed-in identity, access token expiry,
and degraded-mode configuration.

With --check, the session is verified against the backend first; this may
renew the session or trip degraded mode, and the result is reported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, check)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "verify the session against the backend")

	return cmd
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	BaseURL     string             `json:"base_url"`
	Backend     string             `json:"session_backend"`
	State       string             `json:"state"`
	User        *identityOutput    `json:"user,omitempty"`
	TokenState  string             `json:"token_state"`
	TokenExpiry *time.Time         `json:"token_expiry,omitempty"`
	Degraded    degradedOutput     `json:"degraded"`
	Check       *statusCheckOutput `json:"check,omitempty"`
}

type degradedOutput struct {
	Enabled       bool   `json:"enabled"`
	ProbeInterval string `json:"probe_interval"`
	AuthDegraded  bool   `json:"auth_degraded"`
	DataDegraded  bool   `json:"data_degraded"`
}

type statusCheckOutput struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Renewals int64  `json:"renewals"`
}

func runStatus(cmd *cobra.Command, check bool) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	return withApp(ctx, cc, func(a *app) error {
		var chk *statusCheckOutput

		if check && a.store.AccessToken() != "" {
			_, err := a.client.Me(ctx)
			chk = &statusCheckOutput{OK: err == nil, Renewals: a.client.Refresher().Renewals()}

			if err != nil {
				chk.Error = err.Error()
			}
		}

		out := buildStatus(cc.Cfg, a.store.Snapshot(), a.client.DegradedState(), time.Now())
		out.Check = chk

		if cc.Flags.JSON {
			return printJSON(cc.Out, out)
		}

		printStatusText(cc, out)

		return nil
	})
}

// buildStatus assembles the status report from a session snapshot.
func buildStatus(cfg *config.Resolved, snap session.Snapshot, ds api.DegradedState, now time.Time) statusOutput {
	out := statusOutput{
		BaseURL:    cfg.Server.BaseURL,
		Backend:    cfg.Session.Backend,
		State:      snap.State.String(),
		TokenState: tokenStateMissing,
		Degraded: degradedOutput{
			Enabled:       cfg.Degraded.Enabled,
			ProbeInterval: cfg.Degraded.ProbeInterval,
			AuthDegraded:  ds.AuthDegraded,
			DataDegraded:  ds.DataDegraded,
		},
	}

	if snap.Identity != nil {
		id := toIdentityOutput(*snap.Identity, false)
		out.User = &id
	}

	if snap.Tokens.AccessToken == "" {
		return out
	}

	exp, ok := session.TokenExpiry(snap.Tokens.AccessToken)
	if !ok {
		out.TokenState = tokenStateOpaque
		return out
	}

	out.TokenExpiry = &exp
	out.TokenState = tokenStateValid

	if !exp.After(now) {
		out.TokenState = tokenStateExpired
	}

	return out
}

func printStatusText(cc *CLIContext, out statusOutput) {
	w := cc.Out

	fmt.Fprintf(w, "Backend:  %s\n", out.BaseURL)
	fmt.Fprintf(w, "Session:  %s (%s)\n", out.State, out.Backend)

	if out.User != nil {
		fmt.Fprintf(w, "User:     %s (%s)\n", out.User.Email, out.User.ID)
	}

	switch {
	case out.TokenExpiry != nil:
		fmt.Fprintf(w, "Token:    %s, expires %s\n", out.TokenState, formatExpiry(*out.TokenExpiry, time.Now()))
	default:
		fmt.Fprintf(w, "Token:    %s\n", out.TokenState)
	}

	mode := "off"
	if out.Degraded.Enabled {
		mode = "automatic"
	}

	fmt.Fprintf(w, "Degraded: %s (auth=%t, data=%t)\n", mode, out.Degraded.AuthDegraded, out.Degraded.DataDegraded)

	if out.Check != nil {
		if out.Check.OK {
			fmt.Fprintf(w, "Check:    ok (%d renewals)\n", out.Check.Renewals)
		} else {
			fmt.Fprintf(w, "Check:    failed: %s\n", out.Check.Error)
		}
	}
}
