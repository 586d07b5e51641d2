// ABOUTME: Generic CRUD client for one REST collection
// ABOUTME: Create, paginated list, get, partial update and idempotent delete over the authenticated transport

package resource

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/transport"
)

// Pagination defaults applied when a caller passes zero or a negative value.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Page is one page of a collection listing.
type Page[T any] struct {
	Items []T                `json:"items"`
	Meta  transport.PageMeta `json:"meta"`
}

// Client operates on the collection rooted at a path relative to the
// transport's base URL.
type Client[T any] struct {
	http transport.Doer
	path string
}

// New creates a client for collectionPath, e.g. "/posts".
func New[T any](doer transport.Doer, collectionPath string) *Client[T] {
	return &Client[T]{
		http: doer,
		path: "/" + strings.Trim(collectionPath, "/"),
	}
}

// Path returns the collection path.
func (c *Client[T]) Path() string {
	return c.path
}

// ItemPath joins the collection path, an escaped item ID and any further
// segments.
func (c *Client[T]) ItemPath(id string, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.path)
	b.WriteString("/")
	b.WriteString(url.PathEscape(id))
	for _, s := range segments {
		b.WriteString("/")
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// Create posts a new item and returns the stored representation.
func (c *Client[T]) Create(ctx context.Context, in interface{}) (*T, error) {
	return c.send(ctx, http.MethodPost, c.path, in)
}

// List returns one page. Zero or negative arguments take the defaults.
func (c *Client[T]) List(ctx context.Context, page, limit int) (*Page[T], error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return c.ListQuery(ctx, q)
}

// ListQuery lists with caller-built query parameters.
func (c *Client[T]) ListQuery(ctx context.Context, q url.Values) (*Page[T], error) {
	req, err := transport.NewRequest(http.MethodGet, c.path, nil)
	if err != nil {
		return nil, err
	}
	req.Query = q

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	body, err := transport.Decode[transport.Paginated[T]](resp)
	if err != nil {
		return nil, err
	}
	items := body.Data
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Meta: body.Meta}, nil
}

// Count returns the collection total reported by the first page.
func (c *Client[T]) Count(ctx context.Context) (int, error) {
	page, err := c.List(ctx, 1, 1)
	if err != nil {
		return 0, err
	}
	return page.Meta.Total, nil
}

// Get fetches one item. A missing item yields apierror.ErrNotFound.
func (c *Client[T]) Get(ctx context.Context, id string) (*T, error) {
	return c.send(ctx, http.MethodGet, c.ItemPath(id), nil)
}

// Update applies a partial update with PATCH.
func (c *Client[T]) Update(ctx context.Context, id string, patch interface{}) (*T, error) {
	return c.send(ctx, http.MethodPatch, c.ItemPath(id), patch)
}

// Replace overwrites an item with PUT.
func (c *Client[T]) Replace(ctx context.Context, id string, body interface{}) (*T, error) {
	return c.send(ctx, http.MethodPut, c.ItemPath(id), body)
}

// Delete removes an item. Deleting an item that does not exist succeeds.
func (c *Client[T]) Delete(ctx context.Context, id string) error {
	return c.Remove(ctx, c.ItemPath(id))
}

// Remove issues DELETE on path, treating 404 as success.
func (c *Client[T]) Remove(ctx context.Context, path string) error {
	req, err := transport.NewRequest(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if _, err := c.http.Do(ctx, req); err != nil && !errors.Is(err, apierror.ErrNotFound) {
		return err
	}
	return nil
}

func (c *Client[T]) send(ctx context.Context, method, path string, body interface{}) (*T, error) {
	return Call[T](ctx, c.http, method, path, body)
}

// Call sends one request and decodes the envelope data as V. It serves
// endpoints beside the CRUD set, such as nested collections.
func Call[V any](ctx context.Context, doer transport.Doer, method, path string, body interface{}) (*V, error) {
	req, err := transport.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := doer.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	v, err := transport.DecodeData[V](resp)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
