// ABOUTME: Reactive container for the authentication session
// ABOUTME: Runs lifecycle operations against the auth client and notifies subscribers of each new state

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/auth"
)

// Fallback messages used when an error carries no text of its own.
const (
	InitializeFailed     = "Failed to initialize auth"
	LoginFailed          = "Login failed"
	RegistrationFailed   = "Registration failed"
	LogoutFailed         = "Logout failed"
	ProfileUpdateFailed  = "Profile update failed"
	PasswordChangeFailed = "Password change failed"
)

// Authenticator is the part of the auth client the container drives.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
	CurrentUser(ctx context.Context) (*auth.User, error)
	Login(ctx context.Context, in auth.LoginRequest) (*auth.AuthResponse, error)
	Register(ctx context.Context, in auth.RegisterRequest) (*auth.AuthResponse, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, in auth.ProfileUpdateRequest) (*auth.User, error)
	ChangePassword(ctx context.Context, in auth.ChangePasswordRequest) error
}

// Container holds the current State. Subscribers always see the latest
// state; intermediate states may be skipped for slow readers.
type Container struct {
	auth Authenticator
	log  *slog.Logger

	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the container logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) { c.log = l }
}

// New creates a signed-out container.
func New(a Authenticator, opts ...Option) *Container {
	c := &Container{
		auth: a,
		log:  slog.Default(),
		subs: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that immediately receives the current state
// and then every subsequent one. cancel closes the channel.
func (c *Container) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan State, 1)
	ch <- c.state
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// apply runs a transition and publishes the result.
func (c *Container) apply(next func(State) State) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = next(c.state)
	for _, ch := range c.subs {
		// Replace an unread state; only this goroutine sends, so the
		// send below never blocks.
		select {
		case <-ch:
		default:
		}
		ch <- c.state
	}
	return c.state
}

func (c *Container) set(s State) State {
	return c.apply(func(State) State { return s })
}

// Initialize restores the session from stored credentials. With no stored
// access token it ends signed out without a network call.
func (c *Container) Initialize(ctx context.Context) State {
	c.apply(Pending)

	if !c.auth.IsAuthenticated(ctx) {
		return c.set(SignedOut(""))
	}

	user, err := c.auth.CurrentUser(ctx)
	if err != nil {
		c.log.Warn("Session restore failed", "error", err)
		return c.set(SignedOut(apierror.MessageOr(err, InitializeFailed)))
	}
	c.log.Debug("Session restored", "user_id", user.ID)
	return c.set(SignedIn(user))
}

// Login signs in and returns the issued credentials.
func (c *Container) Login(ctx context.Context, email, password string) (*auth.AuthResponse, error) {
	c.apply(Begin)

	resp, err := c.auth.Login(ctx, auth.LoginRequest{Email: email, Password: password})
	if err != nil {
		c.fail(err, LoginFailed)
		return nil, err
	}
	c.set(SignedIn(&resp.User))
	return resp, nil
}

// Register creates an account and signs it in.
func (c *Container) Register(ctx context.Context, in auth.RegisterRequest) (*auth.AuthResponse, error) {
	c.apply(Begin)

	resp, err := c.auth.Register(ctx, in)
	if err != nil {
		c.fail(err, RegistrationFailed)
		return nil, err
	}
	c.set(SignedIn(&resp.User))
	return resp, nil
}

// Logout signs out. Local credentials are cleared by the auth client even
// when the remote call fails.
func (c *Container) Logout(ctx context.Context) error {
	c.apply(Pending)

	if err := c.auth.Logout(ctx); err != nil {
		c.fail(err, LogoutFailed)
		return err
	}
	c.set(SignedOut(""))
	return nil
}

// UpdateProfile applies a profile change and refreshes the held user.
func (c *Container) UpdateProfile(ctx context.Context, in auth.ProfileUpdateRequest) (*auth.User, error) {
	user, err := c.auth.UpdateProfile(ctx, in)
	if err != nil {
		c.fail(err, ProfileUpdateFailed)
		return nil, err
	}
	c.apply(func(s State) State { return ProfileUpdated(s, user) })
	return user, nil
}

// ChangePassword changes the password. Only failures touch the state.
func (c *Container) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	err := c.auth.ChangePassword(ctx, auth.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword})
	if err != nil {
		c.fail(err, PasswordChangeFailed)
		return err
	}
	return nil
}

func (c *Container) fail(err error, fallback string) {
	msg := apierror.MessageOr(err, fallback)
	c.apply(func(s State) State { return Failed(s, msg) })
}
