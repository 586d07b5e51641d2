// ABOUTME: Client for the authentication service
// ABOUTME: Issues and revokes credentials, refreshes access tokens and manages the user profile

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/transport"
)

// TokenStore is the credential store the auth client writes to.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, bool)
	RefreshToken(ctx context.Context) (string, bool)
	SetAccessToken(ctx context.Context, token string, ttl time.Duration)
	SetRefreshToken(ctx context.Context, token string, ttl time.Duration)
	Clear(ctx context.Context)
}

// Client talks to the /auth endpoints.
type Client struct {
	http  transport.Doer
	store TokenStore
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock overrides the time source used to normalize absolute expiries.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates an auth client sending through doer and storing tokens in store.
func New(doer transport.Doer, store TokenStore, opts ...Option) *Client {
	c := &Client{
		http:  doer,
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for tokens and stores them.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	return c.issue(ctx, "/auth/login", in)
}

// Register creates an account, signs it in and stores the tokens.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	return c.issue(ctx, "/auth/register", in)
}

func (c *Client) issue(ctx context.Context, path string, body interface{}) (*AuthResponse, error) {
	req, err := transport.NewRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.SkipRefresh = true

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	env, err := transport.Decode[transport.Envelope[json.RawMessage]](resp)
	if err != nil {
		return nil, err
	}
	g, err := parseGrant(env.Data, c.now())
	if err != nil {
		return nil, err
	}
	if g.AccessToken == "" {
		return nil, &apierror.Error{
			Kind:    apierror.ErrRequestFailed,
			Method:  http.MethodPost,
			Path:    path,
			Message: "Response did not include an access token",
		}
	}

	c.storeGrant(ctx, g)
	c.log.Info("Signed in", "user_id", g.User.ID)

	return &AuthResponse{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		User:         g.User,
		ExpiresIn:    g.ExpiresIn,
		TTL:          g.TTL,
	}, nil
}

// Refresh exchanges the stored refresh token for a new access token. It
// fails with ErrMissingCredential before any network call when no refresh
// token is stored, and with ErrRefreshRejected when the service answers
// with an error status.
func (c *Client) Refresh(ctx context.Context) error {
	refreshToken, ok := c.store.RefreshToken(ctx)
	if !ok {
		return apierror.MissingCredential()
	}

	req, err := transport.NewRequest(http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	req.SkipRefresh = true

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
			return apiErr.WithKind(apierror.ErrRefreshRejected)
		}
		return err
	}

	env, err := transport.Decode[transport.Envelope[json.RawMessage]](resp)
	if err != nil {
		return err
	}
	g, err := parseGrant(env.Data, c.now())
	if err != nil {
		return err
	}
	if g.AccessToken == "" {
		return &apierror.Error{
			Kind:       apierror.ErrRefreshRejected,
			Method:     http.MethodPost,
			Path:       "/auth/refresh",
			StatusCode: resp.StatusCode,
			Message:    "Refresh response did not include an access token",
		}
	}

	c.storeGrant(ctx, g)
	c.log.Debug("Stored refreshed access token", "ttl", g.TTL, "rotated_refresh", g.RefreshToken != "")
	return nil
}

func (c *Client) storeGrant(ctx context.Context, g grant) {
	c.store.SetAccessToken(ctx, g.AccessToken, g.TTL)
	if g.RefreshToken != "" {
		c.store.SetRefreshToken(ctx, g.RefreshToken, 0)
	}
}

// Logout revokes the refresh token when one is stored and always clears
// local credentials. Remote failures, offline included, are logged and
// not returned.
func (c *Client) Logout(ctx context.Context) error {
	defer c.store.Clear(ctx)

	refreshToken, ok := c.store.RefreshToken(ctx)
	if !ok {
		return nil
	}

	req, err := transport.NewRequest(http.MethodPost, "/auth/logout", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil
	}
	req.SkipRefresh = true

	if _, err := c.http.Do(ctx, req); err != nil {
		c.log.Warn("Remote logout failed, clearing local credentials", "error", err)
	}
	return nil
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	return c.user(ctx, http.MethodGet, "/auth/me", nil)
}

// Profile is an alias of CurrentUser.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	return c.CurrentUser(ctx)
}

// UpdateProfile applies a partial profile update and returns the new user.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdateRequest) (*User, error) {
	return c.user(ctx, http.MethodPatch, "/auth/profile", in)
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordRequest) error {
	req, err := transport.NewRequest(http.MethodPost, "/auth/change-password", in)
	if err != nil {
		return err
	}
	_, err = c.http.Do(ctx, req)
	return err
}

// IsAuthenticated reports whether an access token is stored.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	_, ok := c.store.AccessToken(ctx)
	return ok
}

// RefreshToken returns the stored refresh token.
func (c *Client) RefreshToken(ctx context.Context) (string, bool) {
	return c.store.RefreshToken(ctx)
}

func (c *Client) user(ctx context.Context, method, path string, body interface{}) (*User, error) {
	req, err := transport.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	u, err := transport.DecodeData[User](resp)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
