package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lacs-team/appfun-api/internal/core"
)

// defaultStaticRoutes are the always-present pages of the listing app.
var defaultStaticRoutes = []string{
	"/",
	"/about",
	"/software",
	"/categories",
	"/tags",
	"/search",
}

// SitemapServiceOptions groups dependencies for SitemapService.
type SitemapServiceOptions struct {
	// Catalog supplies the software detail pages. Optional; without it the
	// sitemap carries only the static routes.
	Catalog core.CatalogClient

	// BaseURL is the public origin all locations are rendered under.
	BaseURL string

	// StaticRoutes overrides the default static page list.
	StaticRoutes []string

	// CacheTTL bounds how long a rendered sitemap is served before the
	// catalog is consulted again.
	CacheTTL time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// SitemapService renders the sitemap for the public site. Catalog failures
// degrade to a static-only sitemap instead of erroring, so the route stays
// useful while the content API is down.
type SitemapService struct {
	catalog core.CatalogClient
	baseURL string
	static  []string
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache cachedSitemap
}

type cachedSitemap struct {
	body       []byte
	renderedAt time.Time
}

// NewSitemapService constructs a new SitemapService.
func NewSitemapService(opts SitemapServiceOptions) *SitemapService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	static := opts.StaticRoutes
	if static == nil {
		static = defaultStaticRoutes
	}
	return &SitemapService{
		catalog: opts.Catalog,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		static:  static,
		ttl:     opts.CacheTTL,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// urlSet is the sitemap.org urlset document.
type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Render returns the sitemap XML, serving a cached copy while it is fresh.
func (s *SitemapService) Render(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cache.body != nil && now.Sub(s.cache.renderedAt) < s.ttl {
		return s.cache.body, nil
	}

	body, err := s.render(ctx)
	if err != nil {
		return nil, err
	}

	s.cache = cachedSitemap{body: body, renderedAt: now}
	return body, nil
}

func (s *SitemapService) render(ctx context.Context) ([]byte, error) {
	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}

	for _, route := range s.static {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.baseURL + route})
	}

	for _, entry := range s.listEntries(ctx) {
		u := sitemapURL{Loc: s.baseURL + "/software/" + entry.Slug}
		if entry.UpdatedAt != nil {
			u.LastMod = entry.UpdatedAt.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// listEntries fetches detail pages from the catalog, degrading to none on
// failure.
func (s *SitemapService) listEntries(ctx context.Context) []core.CatalogEntry {
	if s.catalog == nil {
		return nil
	}
	entries, err := s.catalog.ListEntries(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "catalog listing failed; sitemap degrades to static routes", "error", err)
		return nil
	}
	return entries
}
