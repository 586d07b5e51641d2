// ABOUTME: Content entities served by the posts service
// ABOUTME: Posts with their taxonomy, portfolio collections, comments and publication records

package content

import (
	"fmt"
	"time"
)

// Status is the editorial state shared by most content types.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

type Skill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// PostAsset is a generated image attached to a post.
type PostAsset struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"` // thumbnail, featured or og-image
	URL         string     `json:"url,omitempty"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
}

type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Status      Status     `json:"status,omitempty"`
	AuthorID    string     `json:"authorId,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Skills      []Skill    `json:"skills,omitempty"`
	Categories  []Category `json:"categories,omitempty"`
	Tags        []Tag      `json:"tags,omitempty"`
}

type CreatePostRequest struct {
	Title   string `json:"title"`
	Slug    string `json:"slug,omitempty"`
	Content string `json:"content,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Status  Status `json:"status,omitempty"`
}

// UpdatePostRequest carries only the fields to change.
type UpdatePostRequest struct {
	Title   *string `json:"title,omitempty"`
	Slug    *string `json:"slug,omitempty"`
	Content *string `json:"content,omitempty"`
	Excerpt *string `json:"excerpt,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

type ProblemSolution struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Slug               string    `json:"slug"`
	ProblemDescription string    `json:"problemDescription,omitempty"`
	Solution           string    `json:"solution,omitempty"`
	Status             Status    `json:"status,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type CaseStudy struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type TechnicalWriting struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content,omitempty"`
	Status    Status    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SystemDesign struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ImpactMetric struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Metric    *float64  `json:"metric,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AIMLIntegration struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Report struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

type PostComment struct {
	ID        string        `json:"id"`
	PostID    string        `json:"postId"`
	Content   string        `json:"content"`
	AuthorID  string        `json:"authorId,omitempty"`
	Status    CommentStatus `json:"status,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Record is an untyped item, used where the collection is chosen at runtime.
type Record map[string]interface{}

// Text returns a string field or "".
func (r Record) Text(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
