// ABOUTME: Typed clients for every collection of the posts service
// ABOUTME: Shares one authenticated transport so all collections use the same refresh flight

package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/woragis/woragis-posts-frontend/resource"
	"github.com/woragis/woragis-posts-frontend/transport"
)

// Collection paths relative to the posts API root.
const (
	PostsPath             = "/posts"
	ProblemSolutionsPath  = "/problem-solutions"
	CaseStudiesPath       = "/case-studies"
	TechnicalWritingsPath = "/technical-writings"
	SystemDesignsPath     = "/system-designs"
	ReportsPath           = "/reports"
	ImpactMetricsPath     = "/impact-metrics"
	AIMLIntegrationsPath  = "/aiml-integrations"
	PublicationsPath      = "/publications"
)

// Posts adds slug lookup to the post collection.
type Posts struct {
	*resource.Client[Post]
	http transport.Doer
}

// GetBySlug fetches a post by its URL slug.
func (p *Posts) GetBySlug(ctx context.Context, slug string) (*Post, error) {
	return resource.Call[Post](ctx, p.http, http.MethodGet, p.Path()+"/slug/"+url.PathEscape(slug), nil)
}

// Catalog groups the collection clients.
type Catalog struct {
	Posts             *Posts
	ProblemSolutions  *resource.Client[ProblemSolution]
	CaseStudies       *resource.Client[CaseStudy]
	TechnicalWritings *resource.Client[TechnicalWriting]
	SystemDesigns     *resource.Client[SystemDesign]
	Reports           *resource.Client[Report]
	ImpactMetrics     *resource.Client[ImpactMetric]
	AIMLIntegrations  *resource.Client[AIMLIntegration]
	Publications      *Publications

	records map[string]*resource.Client[Record]
}

// New builds a catalog sending through doer.
func New(doer transport.Doer) *Catalog {
	c := &Catalog{
		Posts:             &Posts{Client: resource.New[Post](doer, PostsPath), http: doer},
		ProblemSolutions:  resource.New[ProblemSolution](doer, ProblemSolutionsPath),
		CaseStudies:       resource.New[CaseStudy](doer, CaseStudiesPath),
		TechnicalWritings: resource.New[TechnicalWriting](doer, TechnicalWritingsPath),
		SystemDesigns:     resource.New[SystemDesign](doer, SystemDesignsPath),
		Reports:           resource.New[Report](doer, ReportsPath),
		ImpactMetrics:     resource.New[ImpactMetric](doer, ImpactMetricsPath),
		AIMLIntegrations:  resource.New[AIMLIntegration](doer, AIMLIntegrationsPath),
		Publications:      newPublications(doer),
		records:           make(map[string]*resource.Client[Record]),
	}
	for _, path := range []string{
		PostsPath, ProblemSolutionsPath, CaseStudiesPath, TechnicalWritingsPath, SystemDesignsPath,
		ReportsPath, ImpactMetricsPath, AIMLIntegrationsPath, PublicationsPath,
	} {
		rc := resource.New[Record](doer, path)
		c.records[rc.Path()[1:]] = rc
	}
	return c
}

// Names returns the collection names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.records))
	for name := range c.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records returns an untyped client for a collection chosen by name,
// e.g. "case-studies".
func (c *Catalog) Records(name string) (*resource.Client[Record], error) {
	rc, ok := c.records[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return rc, nil
}
