package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quizdesk/quizctl/internal/session"
)

// Login signs in with credentials and installs the returned identity and
// tokens in the session store. While the auth family is degraded the result
// is a placeholder identity.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.signIn(ctx, LoginPath, creds)
}

// Register creates an account and signs in with it.
func (c *Client) Register(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.signIn(ctx, RegisterPath, creds)
}

func (c *Client) signIn(ctx context.Context, path string, creds Credentials) (*AuthResult, error) {
	resp, err := c.Post(ctx, path, creds)
	if err != nil {
		return nil, err
	}

	var res AuthResult
	if err := resp.Decode(&res); err != nil {
		return nil, err
	}

	if res.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("api: %s response carried no access token", path)
	}

	c.session.SetAuth(&res.User, res.Tokens)

	if resp.Synthetic {
		c.logger.Warn("backend unreachable, signed in with a placeholder identity",
			slog.String("path", path),
		)
	} else {
		c.logger.Info("signed in", slog.String("user_id", res.User.ID))
	}

	return &res, nil
}

// Logout tells the backend to end the session, then tears the local session
// down regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	var err error

	if c.session.AccessToken() != "" {
		_, err = c.Post(ctx, LogoutPath, nil)
		if err != nil && !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrSessionExpired) {
			c.logger.Warn("backend logout failed, clearing local session anyway",
				slog.String("error", err.Error()),
			)
		} else {
			err = nil
		}
	}

	c.session.Logout()

	return err
}

// Me returns the identity the backend associates with the current token.
func (c *Client) Me(ctx context.Context) (*session.Identity, error) {
	if c.session.AccessToken() == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := c.Get(ctx, MePath)
	if err != nil {
		return nil, err
	}

	var body struct {
		User session.Identity `json:"user"`
	}

	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	return &body.User, nil
}
