// ABOUTME: HTTP transport for the posts and auth APIs with interception hooks
// ABOUTME: Applies base URL, default headers, cookie credentials and timeout; hooks may rewrite or replay calls

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/woragis/woragis-posts-frontend/apierror"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 10 << 20

	// RequestIDHeader carries a per-attempt correlation ID.
	RequestIDHeader = "X-Request-ID"
)

// RequestHook runs before every network attempt, replays included. It may
// rewrite req. Returning an error aborts the call.
type RequestHook func(ctx context.Context, req *Request) error

// Replay resends req through the full client, hooks included, and returns
// its outcome.
type Replay func(ctx context.Context, req *Request) (*Response, error)

// ResponseHook runs after every network attempt. resp is nil when err
// reports a network failure. The hook returns the outcome seen by the
// caller; it may substitute the result of replay.
type ResponseHook func(ctx context.Context, req *Request, resp *Response, err error, replay Replay) (*Response, error)

// Doer executes API requests. Status codes >= 400 are returned as
// *apierror.Error.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client sends requests relative to a base URL.
type Client struct {
	baseURL    string
	headers    http.Header
	httpClient *http.Client
	log        *slog.Logger

	mu            sync.RWMutex
	requestHooks  []RequestHook
	responseHooks []ResponseHook
}

type options struct {
	headers    http.Header
	jar        http.CookieJar
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	allProxy   string
}

// Option configures a Client.
type Option func(*options)

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(o *options) { o.headers.Set(key, value) }
}

// WithCredentials attaches a cookie jar so cookies are sent with every
// request, including cross-origin ones.
func WithCredentials(jar http.CookieJar) Option {
	return func(o *options) { o.jar = jar }
}

// WithTimeout overrides the 30 second per-attempt ceiling.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient supplies the underlying client. Timeout and jar options
// still apply to a copy of it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProxy tunnels connections through an ssh+socks5 jumpbox URL.
func WithProxy(allProxy string) Option {
	return func(o *options) { o.allProxy = allProxy }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := &options{
		headers: make(http.Header),
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	o.headers.Set("Content-Type", "application/json")
	o.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(o)
	}

	if !strings.Contains(baseURL, "://") {
		return nil, fmt.Errorf("base URL %q must include a scheme", baseURL)
	}

	hc := &http.Client{}
	if o.httpClient != nil {
		cp := *o.httpClient
		hc = &cp
	}
	hc.Timeout = o.timeout
	if o.jar != nil {
		hc.Jar = o.jar
	}

	if o.allProxy != "" {
		dial, err := socks5Dialer(o.allProxy)
		if err != nil {
			return nil, err
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.Proxy = nil
		tr.DialContext = dial
		hc.Transport = tr
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    o.headers,
		httpClient: hc,
		log:        o.logger,
	}, nil
}

// BaseURL returns the URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AddRequestHook appends an outgoing hook. Hooks run in registration order.
func (c *Client) AddRequestHook(h RequestHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestHooks = append(c.requestHooks, h)
}

// AddResponseHook appends an incoming hook. Hooks run in registration order,
// each seeing the outcome produced by the previous one.
func (c *Client) AddResponseHook(h ResponseHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseHooks = append(c.responseHooks, h)
}

// Do sends req through the hooks and converts error statuses into
// *apierror.Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, apierror.FromResponse(req.Method, req.Path, resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// roundTrip runs request hooks, sends once, then runs response hooks.
// Status codes are not interpreted here so hooks can react to them.
func (c *Client) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	c.mu.RLock()
	reqHooks := c.requestHooks
	respHooks := c.responseHooks
	c.mu.RUnlock()

	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for _, h := range reqHooks {
		if err := h(ctx, req); err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, req)
	for _, h := range respHooks {
		resp, err = h(ctx, req, resp, err, c.roundTrip)
	}
	if err == nil && resp == nil {
		return nil, fmt.Errorf("%s %s: response hook returned no response", req.Method, req.Path)
	}
	return resp, err
}

// send performs a single network attempt.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	requestID := uuid.New().String()
	httpReq.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn("Request failed",
			"request_id", requestID,
			"method", req.Method,
			"path", req.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, apierror.Network(ctx, req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, apierror.Network(ctx, req.Method, req.Path, fmt.Errorf("failed to read response: %w", err))
	}

	c.log.Debug("Request completed",
		"request_id", requestID,
		"method", req.Method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"retried", req.Retried,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (c *Client) resolve(req *Request) string {
	u := c.baseURL
	if p := strings.TrimLeft(req.Path, "/"); p != "" {
		u += "/" + p
	}
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}
