// ABOUTME: Tests for the authentication client against the fake backend
// ABOUTME: Covers sign in, refresh outcomes, offline logout and profile calls

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/credentials"
	"github.com/woragis/woragis-posts-frontend/internal/apitest"
	"github.com/woragis/woragis-posts-frontend/logger"
	"github.com/woragis/woragis-posts-frontend/pipeline"
	"github.com/woragis/woragis-posts-frontend/transport"
)

func newTestClient(t *testing.T, baseURL string) (*Client, *credentials.Store) {
	t.Helper()
	medium := credentials.NewMemoryMedium()
	t.Cleanup(func() { medium.Close() })
	store := credentials.New(medium, credentials.Interactive, credentials.WithLogger(logger.Discard()))

	tc, err := transport.New(baseURL, transport.WithLogger(logger.Discard()))
	require.NoError(t, err)

	c := New(tc, store, WithLogger(logger.Discard()))
	pipeline.New(store, c, pipeline.WithLogger(logger.Discard())).Install(tc)
	return c, store
}

func TestLogin_StoresTokens(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, store := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	resp, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, "ada", resp.User.Username)
	assert.Equal(t, time.Hour, resp.TTL)
	assert.Equal(t, 3600, resp.ExpiresIn)

	access, ok := store.AccessToken(ctx)
	require.True(t, ok)
	assert.Equal(t, resp.AccessToken, access)
	refresh, ok := store.RefreshToken(ctx)
	require.True(t, ok)
	assert.Equal(t, resp.RefreshToken, refresh)
	assert.True(t, c.IsAuthenticated(ctx))
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, store := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	_, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apierror.ErrAuthRejected)
	assert.Equal(t, "Invalid email or password", apierror.Message(err))
	assert.Zero(t, srv.Calls(http.MethodPost, "/auth/refresh"), "sign-in failures must not trigger a refresh")

	_, ok := store.AccessToken(ctx)
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	srv := apitest.New(t)
	c, store := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	resp, err := c.Register(ctx, RegisterRequest{Email: "lin@example.com", Password: "pw", Username: "lin", FirstName: "Lin"})
	require.NoError(t, err)
	assert.Equal(t, "Lin", resp.User.DisplayName())
	_, ok := store.RefreshToken(ctx)
	assert.True(t, ok)

	_, err = c.Register(ctx, RegisterRequest{Email: "lin@example.com", Password: "pw", Username: "lin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apierror.ErrRequestFailed)
	assert.Equal(t, http.StatusConflict, apierror.StatusCode(err))
	assert.Equal(t, "Email already registered", apierror.Message(err))
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apierror.ErrMissingCredential)
	assert.Equal(t, "No refresh token available", apierror.Message(err))
	assert.Zero(t, hits.Load(), "no network call without a refresh token")
}

func TestRefresh_StoresNewAccessToken(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, store := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	login, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, c.Refresh(ctx))

	access, _ := store.AccessToken(ctx)
	assert.NotEqual(t, login.AccessToken, access)
	refresh, _ := store.RefreshToken(ctx)
	assert.Equal(t, login.RefreshToken, refresh, "refresh token kept when not rotated")
}

func TestRefresh_SnakeCaseRotation(t *testing.T) {
	srv := apitest.New(t)
	srv.RefreshStyle = apitest.SnakeExpiresAt
	srv.RotateRefresh = true
	srv.AddUser("ada@example.com", "secret", "ada")
	c, store := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	login, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, c.Refresh(ctx))

	refresh, ok := store.RefreshToken(ctx)
	require.True(t, ok)
	assert.NotEqual(t, login.RefreshToken, refresh)
	access, ok := store.AccessToken(ctx)
	require.True(t, ok)
	assert.NotEqual(t, login.AccessToken, access)
}

func TestRefresh_Rejected(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, _ := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	login, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	srv.RevokeRefresh(login.RefreshToken)

	err = c.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierror.ErrRefreshRejected)
	assert.Equal(t, http.StatusUnauthorized, apierror.StatusCode(err))
	assert.Equal(t, "Invalid refresh token", apierror.Message(err))
}

func TestRefresh_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, store := newTestClient(t, srv.URL)
	srv.Close()

	ctx := context.Background()
	store.SetRefreshToken(ctx, "rt", 0)

	err := c.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierror.ErrNetworkFailure)
	assert.False(t, errors.Is(err, apierror.ErrRefreshRejected))
}

func TestLogout_RevokesAndClears(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, store := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	_, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, 1, srv.ActiveRefreshTokens())

	require.NoError(t, c.Logout(ctx))
	assert.Zero(t, srv.ActiveRefreshTokens())
	assert.False(t, c.IsAuthenticated(ctx))
	_, ok := store.RefreshToken(ctx)
	assert.False(t, ok)
}

func TestLogout_Offline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, store := newTestClient(t, srv.URL)
	srv.Close()

	ctx := context.Background()
	store.SetAccessToken(ctx, "at", 0)
	store.SetRefreshToken(ctx, "rt", 0)

	require.NoError(t, c.Logout(ctx))

	_, ok := store.AccessToken(ctx)
	assert.False(t, ok)
	_, ok = store.RefreshToken(ctx)
	assert.False(t, ok)
}

func TestProfileCalls(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, _ := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	_, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	me, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", me.Username)

	bio := "Writes about distributed systems"
	updated, err := c.UpdateProfile(ctx, ProfileUpdateRequest{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, "ada", updated.Username)

	profile, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, bio, profile.Bio)
}

func TestChangePassword(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, _ := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	_, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	err = c.ChangePassword(ctx, ChangePasswordRequest{OldPassword: "wrong", NewPassword: "next"})
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", apierror.Message(err))

	require.NoError(t, c.ChangePassword(ctx, ChangePasswordRequest{OldPassword: "secret", NewPassword: "next"}))

	_, err = c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "next"})
	assert.NoError(t, err)
}

func TestProtectedCall_RefreshesTransparently(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", "ada")
	c, store := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	login, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	srv.ExpireAccess(login.AccessToken)

	me, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", me.Username)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, "/auth/refresh"))
	assert.Equal(t, 2, srv.Calls(http.MethodGet, "/auth/me"))

	access, _ := store.AccessToken(ctx)
	assert.NotEqual(t, login.AccessToken, access)
}
