// ABOUTME: Tests for the collection catalog and the posts client
// ABOUTME: Verifies collection routing and slug lookup against the fake backend

package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/internal/apitest"
	"github.com/woragis/woragis-posts-frontend/logger"
	"github.com/woragis/woragis-posts-frontend/transport"
)

func newCatalog(t *testing.T) (*Catalog, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	access, _ := srv.IssueTokens(srv.AddUser("ada@example.com", "secret", "ada"))

	tc, err := transport.New(srv.BaseURL(),
		transport.WithHeader("Authorization", "Bearer "+access),
		transport.WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	return New(tc), srv
}

func TestCatalog_Paths(t *testing.T) {
	c := New(nil)

	paths := map[string]string{
		PostsPath:             c.Posts.Path(),
		ProblemSolutionsPath:  c.ProblemSolutions.Path(),
		CaseStudiesPath:       c.CaseStudies.Path(),
		TechnicalWritingsPath: c.TechnicalWritings.Path(),
		SystemDesignsPath:     c.SystemDesigns.Path(),
		ReportsPath:           c.Reports.Path(),
		ImpactMetricsPath:     c.ImpactMetrics.Path(),
		AIMLIntegrationsPath:  c.AIMLIntegrations.Path(),
		PublicationsPath:      c.Publications.Path(),
	}
	for want, got := range paths {
		assert.Equal(t, want, got)
	}
}

func TestCatalog_Records(t *testing.T) {
	c := New(nil)

	assert.Equal(t, []string{
		"aiml-integrations", "case-studies", "impact-metrics", "posts", "problem-solutions",
		"publications", "reports", "system-designs", "technical-writings",
	}, c.Names())

	rc, err := c.Records("case-studies")
	require.NoError(t, err)
	assert.Equal(t, "/case-studies", rc.Path())

	_, err = c.Records("recipes")
	assert.EqualError(t, err, `unknown collection "recipes"`)
}

func TestPosts_Lifecycle(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	created, err := c.Posts.Create(ctx, CreatePostRequest{
		Title:   "Single-flight refresh",
		Slug:    "single-flight-refresh",
		Excerpt: "One refresh for many 401s",
		Status:  StatusDraft,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	bySlug, err := c.Posts.GetBySlug(ctx, "single-flight-refresh")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)

	published := StatusPublished
	updated, err := c.Posts.Update(ctx, created.ID, UpdatePostRequest{Status: &published})
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, updated.Status)
	assert.Equal(t, "Single-flight refresh", updated.Title)

	require.NoError(t, c.Posts.Delete(ctx, created.ID))
	_, err = c.Posts.GetBySlug(ctx, "single-flight-refresh")
	assert.ErrorIs(t, err, apierror.ErrNotFound)
}

func TestPosts_TypedListing(t *testing.T) {
	c, srv := newCatalog(t)
	ctx := context.Background()
	srv.Seed("impact-metrics",
		map[string]interface{}{"title": "Latency", "metric": 42.5, "unit": "ms"},
		map[string]interface{}{"title": "Adoption"},
	)

	page, err := c.ImpactMetrics.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.Items[0].Metric)
	assert.Equal(t, 42.5, *page.Items[0].Metric)
	assert.Equal(t, "ms", page.Items[0].Unit)
	assert.Nil(t, page.Items[1].Metric)
}

func TestRecords_Untyped(t *testing.T) {
	c, srv := newCatalog(t)
	ctx := context.Background()
	srv.Seed("reports", map[string]interface{}{"title": "Q3", "type": "quarterly", "pages": 12})

	rc, err := c.Records("reports")
	require.NoError(t, err)
	page, err := rc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	r := page.Items[0]
	assert.Equal(t, "Q3", r.Text("title"))
	assert.Equal(t, "12", r.Text("pages"))
	assert.Empty(t, r.Text("missing"))
}
