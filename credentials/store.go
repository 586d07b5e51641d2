// ABOUTME: Credential store holding the access and refresh bearer tokens
// ABOUTME: Delegates persistence and expiry to a Medium and is gated by an explicit Surface capability

package credentials

import (
	"context"
	"log/slog"
	"time"
)

// Names under which tokens are persisted.
const (
	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"
)

// Lifetimes applied when the issuing response omits one.
const (
	DefaultAccessTTL  = 3600 * time.Second
	DefaultRefreshTTL = 604800 * time.Second
)

// Medium persists named string values with an expiry. Expired values must
// read as absent.
type Medium interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	Set(ctx context.Context, name, value string, ttl time.Duration) error
	Delete(ctx context.Context, name string) error
}

// Surface reports whether credentials may be touched in the current
// execution context. A headless surface (server rendering, batch jobs
// sharing a process with a user session) turns every store operation into
// a no-op.
type Surface interface {
	Interactive() bool
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func() bool

func (f SurfaceFunc) Interactive() bool { return f() }

var (
	Interactive Surface = SurfaceFunc(func() bool { return true })
	Headless    Surface = SurfaceFunc(func() bool { return false })
)

// Store is the single writer of persisted tokens. It never returns errors:
// medium failures are logged and reads degrade to absent.
type Store struct {
	medium  Medium
	surface Surface
	log     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for medium failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a store over medium. A nil surface means Interactive.
func New(medium Medium, surface Surface, opts ...Option) *Store {
	if surface == nil {
		surface = Interactive
	}
	s := &Store{
		medium:  medium,
		surface: surface,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessToken returns the stored access token, if any.
func (s *Store) AccessToken(ctx context.Context) (string, bool) {
	return s.get(ctx, AccessTokenName)
}

// RefreshToken returns the stored refresh token, if any.
func (s *Store) RefreshToken(ctx context.Context) (string, bool) {
	return s.get(ctx, RefreshTokenName)
}

// SetAccessToken overwrites the access token. ttl <= 0 uses DefaultAccessTTL.
func (s *Store) SetAccessToken(ctx context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	s.set(ctx, AccessTokenName, token, ttl)
}

// SetRefreshToken overwrites the refresh token. ttl <= 0 uses DefaultRefreshTTL.
func (s *Store) SetRefreshToken(ctx context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	s.set(ctx, RefreshTokenName, token, ttl)
}

// Clear removes both tokens. Idempotent.
func (s *Store) Clear(ctx context.Context) {
	if !s.surface.Interactive() {
		return
	}
	for _, name := range []string{AccessTokenName, RefreshTokenName} {
		if err := s.medium.Delete(ctx, name); err != nil {
			s.log.Warn("Failed to delete credential", "name", name, "error", err)
		}
	}
	s.log.Debug("Credentials cleared")
}

func (s *Store) get(ctx context.Context, name string) (string, bool) {
	if !s.surface.Interactive() {
		return "", false
	}
	value, ok, err := s.medium.Get(ctx, name)
	if err != nil {
		s.log.Warn("Failed to read credential", "name", name, "error", err)
		return "", false
	}
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (s *Store) set(ctx context.Context, name, value string, ttl time.Duration) {
	if !s.surface.Interactive() {
		return
	}
	if err := s.medium.Set(ctx, name, value, ttl); err != nil {
		s.log.Warn("Failed to store credential", "name", name, "error", err)
		return
	}
	s.log.Debug("Credential stored", "name", name, "ttl", ttl)
}
