// ABOUTME: Multi-platform publication management client
// ABOUTME: Filtered listing, platforms, publish and retry per platform, bulk publish and media uploads

package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/woragis/woragis-posts-frontend/resource"
	"github.com/woragis/woragis-posts-frontend/transport"
)

// Listing defaults for publications, which page by offset.
const (
	DefaultPublicationLimit  = 20
	DefaultPublicationOffset = 0
)

type Publication struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Content     string                `json:"content,omitempty"`
	Excerpt     string                `json:"excerpt,omitempty"`
	ContentType string                `json:"contentType,omitempty"`
	ContentID   string                `json:"contentId,omitempty"`
	Status      string                `json:"status,omitempty"`
	IsArchived  bool                  `json:"isArchived,omitempty"`
	ScheduledAt *time.Time            `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	Platforms   []PublicationPlatform `json:"platforms,omitempty"`
}

// Platform is a publishing destination such as a blog or social network.
type Platform struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicationPlatform is the publishing state of one publication on one platform.
type PublicationPlatform struct {
	ID            string     `json:"id"`
	PublicationID string     `json:"publicationId"`
	PlatformID    string     `json:"platformId"`
	Status        string     `json:"status"`
	ExternalID    string     `json:"externalId,omitempty"`
	ExternalURL   string     `json:"externalUrl,omitempty"`
	Error         string     `json:"error,omitempty"`
	RetryCount    int        `json:"retryCount,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
}

type PublicationMedia struct {
	ID            string    `json:"id"`
	PublicationID string    `json:"publicationId"`
	PlatformID    string    `json:"platformId,omitempty"`
	MediaType     string    `json:"mediaType"`
	URL           string    `json:"url,omitempty"`
	Filename      string    `json:"filename,omitempty"`
	Size          int64     `json:"size,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CreatePublicationRequest struct {
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
	ContentType string     `json:"contentType,omitempty"`
	ContentID   string     `json:"contentId,omitempty"`
	Status      string     `json:"status,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type UpdatePublicationRequest struct {
	Title       *string    `json:"title,omitempty"`
	Content     *string    `json:"content,omitempty"`
	Excerpt     *string    `json:"excerpt,omitempty"`
	Status      *string    `json:"status,omitempty"`
	IsArchived  *bool      `json:"isArchived,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type PublishRequest struct {
	CustomContent string     `json:"customContent,omitempty"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
}

type BulkPublishRequest struct {
	PlatformIDs []string   `json:"platformIds"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type CreatePlatformRequest struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Config map[string]string `json:"config,omitempty"`
}

// PublicationFilter narrows a listing. Zero Limit means the default page size.
type PublicationFilter struct {
	Status      string
	ContentType string
	IsArchived  *bool
	Limit       int
	Offset      int
}

func (f PublicationFilter) query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.ContentType != "" {
		q.Set("contentType", f.ContentType)
	}
	if f.IsArchived != nil {
		q.Set("isArchived", strconv.FormatBool(*f.IsArchived))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPublicationLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = DefaultPublicationOffset
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}

// Publications manages publications and their distribution.
type Publications struct {
	*resource.Client[Publication]
	http transport.Doer
}

func newPublications(doer transport.Doer) *Publications {
	return &Publications{
		Client: resource.New[Publication](doer, "/publications"),
		http:   doer,
	}
}

// List returns publications matching filter.
func (p *Publications) List(ctx context.Context, filter PublicationFilter) (*resource.Page[Publication], error) {
	return p.ListQuery(ctx, filter.query())
}

// Update replaces the editable fields with PUT.
func (p *Publications) Update(ctx context.Context, id string, in UpdatePublicationRequest) (*Publication, error) {
	return p.Replace(ctx, id, in)
}

// Platforms lists the configured publishing destinations.
func (p *Publications) Platforms(ctx context.Context) ([]Platform, error) {
	return list[Platform](ctx, p.http, p.Path()+"/platforms")
}

func (p *Publications) CreatePlatform(ctx context.Context, in CreatePlatformRequest) (*Platform, error) {
	return resource.Call[Platform](ctx, p.http, http.MethodPost, p.Path()+"/platforms", in)
}

// Publish sends a publication to one platform. A nil request posts an empty object.
func (p *Publications) Publish(ctx context.Context, id, platformID string, in *PublishRequest) (*PublicationPlatform, error) {
	if in == nil {
		in = &PublishRequest{}
	}
	return resource.Call[PublicationPlatform](ctx, p.http, http.MethodPost, p.ItemPath(id, "publish", platformID), in)
}

// Unpublish removes a publication from one platform.
func (p *Publications) Unpublish(ctx context.Context, id, platformID string) error {
	return p.Remove(ctx, p.ItemPath(id, "publish", platformID))
}

// PublishStatus lists the per-platform publishing state of a publication.
func (p *Publications) PublishStatus(ctx context.Context, id string) ([]PublicationPlatform, error) {
	return list[PublicationPlatform](ctx, p.http, p.ItemPath(id, "publish"))
}

// RetryPublish re-attempts a failed publish.
func (p *Publications) RetryPublish(ctx context.Context, id, platformID string) (*PublicationPlatform, error) {
	return resource.Call[PublicationPlatform](ctx, p.http, http.MethodPost, p.ItemPath(id, "publish", platformID, "retry"), nil)
}

// BulkPublish publishes to several platforms in one call.
func (p *Publications) BulkPublish(ctx context.Context, id string, in BulkPublishRequest) ([]PublicationPlatform, error) {
	out, err := resource.Call[[]PublicationPlatform](ctx, p.http, http.MethodPost, p.ItemPath(id, "publish", "bulk"), in)
	if err != nil {
		return nil, err
	}
	return nonNil(*out), nil
}

// UploadMedia attaches a file for a platform as multipart form data.
func (p *Publications) UploadMedia(ctx context.Context, id, platformID, mediaType, filename string, r io.Reader) (*PublicationMedia, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read media %s: %w", filename, err)
	}
	req, err := transport.NewMultipartRequest(http.MethodPost, p.ItemPath(id, "media"),
		map[string]string{
			"platformId": platformID,
			"mediaType":  mediaType,
		},
		transport.MultipartFile{Field: "file", Filename: filename, Content: data},
	)
	if err != nil {
		return nil, err
	}

	resp, err := p.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	media, err := transport.DecodeData[PublicationMedia](resp)
	if err != nil {
		return nil, err
	}
	return &media, nil
}

func (p *Publications) Media(ctx context.Context, id string) ([]PublicationMedia, error) {
	return list[PublicationMedia](ctx, p.http, p.ItemPath(id, "media"))
}

func (p *Publications) DeleteMedia(ctx context.Context, id, mediaID string) error {
	return p.Remove(ctx, p.ItemPath(id, "media", mediaID))
}

// list fetches an unpaginated array, never returning nil.
func list[V any](ctx context.Context, doer transport.Doer, path string) ([]V, error) {
	out, err := resource.Call[[]V](ctx, doer, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return nonNil(*out), nil
}

func nonNil[V any](s []V) []V {
	if s == nil {
		return []V{}
	}
	return s
}
