// ABOUTME: Builds the complete client graph from configuration
// ABOUTME: One credential store and one refresh pipeline shared by the auth and posts transports

package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/sync/errgroup"

	"github.com/woragis/woragis-posts-frontend/auth"
	"github.com/woragis/woragis-posts-frontend/config"
	"github.com/woragis/woragis-posts-frontend/content"
	"github.com/woragis/woragis-posts-frontend/credentials"
	"github.com/woragis/woragis-posts-frontend/pipeline"
	"github.com/woragis/woragis-posts-frontend/session"
	"github.com/woragis/woragis-posts-frontend/transport"
)

// overviewConcurrency bounds parallel count requests.
const overviewConcurrency = 4

// Client is the assembled library.
type Client struct {
	Config   *config.Config
	Store    *credentials.Store
	Auth     *auth.Client
	Content  *content.Catalog
	Session  *session.Container
	Pipeline *pipeline.Pipeline

	closers []func() error
	log     *slog.Logger
}

type options struct {
	logger     *slog.Logger
	medium     credentials.Medium
	httpClient *http.Client
	observer   func(pipeline.Transition)
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger passed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMedium overrides the credential medium selected by configuration.
func WithMedium(m credentials.Medium) Option {
	return func(o *options) { o.medium = m }
}

// WithHTTPClient sets the base HTTP client for both transports.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithObserver receives every pipeline state transition.
func WithObserver(fn func(pipeline.Transition)) Option {
	return func(o *options) { o.observer = fn }
}

// New wires the client graph. Close releases the credential medium.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{Config: cfg, log: o.logger}

	var jar http.CookieJar
	medium := o.medium
	if medium == nil {
		var err error
		medium, jar, err = c.openMedium(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	surface := credentials.Headless
	if cfg.InteractiveTokens {
		surface = credentials.Interactive
	}
	c.Store = credentials.New(medium, surface, credentials.WithLogger(o.logger))

	transportOpts := []transport.Option{
		transport.WithTimeout(cfg.Timeout()),
		transport.WithLogger(o.logger),
		transport.WithProxy(cfg.AllProxy),
	}
	if o.httpClient != nil {
		transportOpts = append(transportOpts, transport.WithHTTPClient(o.httpClient))
	}
	if jar != nil {
		transportOpts = append(transportOpts, transport.WithCredentials(jar))
	}

	authHTTP, err := transport.New(cfg.AuthAPIURL, transportOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create auth transport: %w", err)
	}
	postsHTTP, err := transport.New(cfg.PostsAPIURL, transportOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create posts transport: %w", err)
	}

	c.Auth = auth.New(authHTTP, c.Store, auth.WithLogger(o.logger))

	pipelineOpts := []pipeline.Option{pipeline.WithLogger(o.logger)}
	if o.observer != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithObserver(o.observer))
	}
	c.Pipeline = pipeline.New(c.Store, c.Auth, pipelineOpts...)
	c.Pipeline.Install(authHTTP)
	c.Pipeline.Install(postsHTTP)

	c.Content = content.New(postsHTTP)
	c.Session = session.New(c.Auth, session.WithLogger(o.logger))

	c.log.Debug("Client initialized",
		"posts_api", cfg.PostsAPIURL,
		"auth_api", cfg.AuthAPIURL,
		"credential_store", cfg.CredentialStore,
		"interactive", cfg.InteractiveTokens,
	)
	return c, nil
}

// openMedium selects the credential medium named by cfg.CredentialStore.
// The cookie medium also returns the jar both transports must share.
func (c *Client) openMedium(ctx context.Context, cfg *config.Config) (credentials.Medium, http.CookieJar, error) {
	switch cfg.CredentialStore {
	case config.StoreMemory:
		m := credentials.NewMemoryMedium()
		c.closers = append(c.closers, m.Close)
		return m, nil, nil
	case config.StoreCookie:
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		m, err := credentials.NewCookieMedium(jar, cfg.AuthAPIURL)
		if err != nil {
			return nil, nil, err
		}
		return m, jar, nil
	case config.StoreRedis:
		rdb, err := credentials.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		m := credentials.NewRedisMedium(rdb, cfg.RedisKeyPrefix)
		c.closers = append(c.closers, m.Close)
		return m, nil, nil
	case config.StoreFile, "":
		return credentials.NewFileMedium(cfg.CredentialsFile), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
}

// Close releases resources held by the credential medium.
func (c *Client) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// CollectionTotal is the item count of one collection.
type CollectionTotal struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

// Overview counts every collection concurrently. Requests that hit an
// expired token share one refresh.
func (c *Client) Overview(ctx context.Context) ([]CollectionTotal, error) {
	names := c.Content.Names()
	totals := make([]CollectionTotal, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, name := range names {
		g.Go(func() error {
			rc, err := c.Content.Records(name)
			if err != nil {
				return err
			}
			n, err := rc.Count(gctx)
			if err != nil {
				return fmt.Errorf("failed to count %s: %w", name, err)
			}
			totals[i] = CollectionTotal{Name: name, Total: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return totals, nil
}
