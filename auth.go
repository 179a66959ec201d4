package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizctl/internal/api"
	"github.com/quizdesk/quizctl/internal/session"
)

func newLoginCmd() *cobra.Command {
	var creds api.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSignIn(cmd, creds, false)
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var creds api.Credentials

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSignIn(cmd, creds, true)
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	cmd.Flags().StringVar(&creds.Name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove saved tokens",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		RunE:  runWhoami,
	}
}

// identityOutput is the JSON schema for identity-printing commands.
type identityOutput struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

func runSignIn(cmd *cobra.Command, creds api.Credentials, register bool) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	return withApp(ctx, cc, func(a *app) error {
		signIn := a.client.Login
		if register {
			signIn = a.client.Register
		}

		res, err := signIn(ctx, creds)
		if err != nil {
			return err
		}

		placeholder := a.degraded.Tripped(api.FamilyAuth)

		if cc.Flags.JSON {
			return printJSON(cc.Out, toIdentityOutput(res.User, placeholder))
		}

		if placeholder {
			cc.Statusf("Signed in offline as %s (placeholder identity).\n", res.User.Email)
			return nil
		}

		cc.Statusf("Signed in as %s.\n", res.User.Email)

		return nil
	})
}

func runLogout(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	return withApp(ctx, cc, func(a *app) error {
		if st := a.store.State(); st != session.StateAuthenticated && st != session.StateExpired {
			cc.Statusf("Not logged in.\n")
			return nil
		}

		if err := a.client.Logout(ctx); err != nil {
			cc.Logger.Warn("backend logout failed", slog.String("error", err.Error()))
		}

		cc.Statusf("Logged out.\n")

		return nil
	})
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	return withApp(ctx, cc, func(a *app) error {
		me, err := a.client.Me(ctx)
		if errors.Is(err, api.ErrNotLoggedIn) {
			return fmt.Errorf("not logged in, run 'quizctl login' first")
		}

		if err != nil {
			return fmt.Errorf("fetching user profile: %w", err)
		}

		out := toIdentityOutput(*me, a.degraded.Tripped(api.FamilyAuth))

		if cc.Flags.JSON {
			return printJSON(cc.Out, out)
		}

		printIdentityText(cc, out)

		return nil
	})
}

func toIdentityOutput(id session.Identity, placeholder bool) identityOutput {
	return identityOutput{
		ID:          id.ID,
		Email:       id.Email,
		Name:        id.Name,
		Role:        id.Role,
		Placeholder: placeholder,
	}
}

func printIdentityText(cc *CLIContext, out identityOutput) {
	name := out.Name
	if name == "" {
		name = out.Email
	}

	fmt.Fprintf(cc.Out, "User:  %s (%s)\n", name, out.Email)
	fmt.Fprintf(cc.Out, "ID:    %s\n", out.ID)

	if out.Role != "" {
		fmt.Fprintf(cc.Out, "Role:  %s\n", out.Role)
	}

	if out.Placeholder {
		fmt.Fprintln(cc.Out, "Note:  backend unreachable, this is a placeholder identity")
	}
}
