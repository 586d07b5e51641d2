// ABOUTME: Authenticated request pipeline installed as transport hooks
// ABOUTME: Attaches bearer tokens and recovers from 401s with one coordinated refresh and a single replay

package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/woragis/woragis-posts-frontend/transport"
)

// Tokens is the credential view the pipeline needs.
type Tokens interface {
	AccessToken(ctx context.Context) (string, bool)
	Clear(ctx context.Context)
}

// Refresher exchanges the stored refresh token for new credentials and
// stores them. It must fail without a network call when no refresh token
// is stored.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) error

func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// State is the position of a call in the incoming stage.
type State int

const (
	// Sent: dispatched, response not yet classified.
	Sent State = iota
	// AuthRejected: 401 on a call that has not been retried; refresh pending.
	AuthRejected
	// Replaying: refresh succeeded; the call is resent once and that outcome is final.
	Replaying
	// Failed: refresh failed; credentials are cleared and the refresh error returned.
	Failed
)

func (s State) String() string {
	switch s {
	case Sent:
		return "sent"
	case AuthRejected:
		return "auth_rejected"
	case Replaying:
		return "replaying"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transition records a state change for one call.
type Transition struct {
	Method string
	Path   string
	From   State
	To     State
}

// Pipeline owns the refresh flight shared by every client it is installed on.
type Pipeline struct {
	tokens   Tokens
	flight   *refreshFlight
	log      *slog.Logger
	observer func(Transition)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// New creates a pipeline reading tokens and refreshing through refresher.
func New(tokens Tokens, refresher Refresher, opts ...Option) *Pipeline {
	p := &Pipeline{
		tokens: tokens,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.flight = &refreshFlight{
		refresher: refresher,
		tokens:    tokens,
		log:       p.log,
	}
	return p
}

// Install registers the outgoing and incoming hooks on c. Installing the
// same pipeline on several clients makes them share one refresh flight.
func (p *Pipeline) Install(c *transport.Client) {
	c.AddRequestHook(p.attach)
	c.AddResponseHook(p.intercept)
}

// Refresh forces a refresh through the shared flight.
func (p *Pipeline) Refresh(ctx context.Context) error {
	return p.flight.join(ctx, "")
}

// Refreshes reports how many refresh calls have been started.
func (p *Pipeline) Refreshes() int64 {
	return p.flight.started.Load()
}

// attach replaces any Authorization header with the current access token.
// A missing token is not an error; the server decides.
func (p *Pipeline) attach(ctx context.Context, req *transport.Request) error {
	req.Header.Del("Authorization")
	if token, ok := p.tokens.AccessToken(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// intercept drives the incoming state machine for one response.
func (p *Pipeline) intercept(ctx context.Context, req *transport.Request, resp *transport.Response, err error, replay transport.Replay) (*transport.Response, error) {
	if !rejected(req, resp, err) {
		return resp, err
	}
	p.transition(req, Sent, AuthRejected)

	// Mark before handing off so neither the original nor the replay can
	// start another cycle.
	req.Retried = true
	pending := req.Clone()
	staleToken := bearerToken(req.Header)

	if ferr := p.flight.join(ctx, staleToken); ferr != nil {
		p.transition(req, AuthRejected, Failed)
		return nil, ferr
	}

	p.transition(req, AuthRejected, Replaying)
	pending.Header.Del("Authorization")
	return replay(ctx, pending)
}

// rejected reports whether a response enters AuthRejected. Everything else
// passes through untouched.
func rejected(req *transport.Request, resp *transport.Response, err error) bool {
	if err != nil || resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusUnauthorized && !req.Retried && !req.SkipRefresh
}

func (p *Pipeline) transition(req *transport.Request, from, to State) {
	p.log.Debug("Request state changed",
		"method", req.Method,
		"path", req.Path,
		"from", from.String(),
		"to", to.String(),
	)
	if p.observer != nil {
		p.observer(Transition{Method: req.Method, Path: req.Path, From: from, To: to})
	}
}

func bearerToken(h http.Header) string {
	v := h.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return v[7:]
	}
	return ""
}
