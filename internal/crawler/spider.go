package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

// DefaultIgnorePatterns keeps the crawl away from links that end the
// session or download files.
var DefaultIgnorePatterns = []string{
	"/accounts/logout/*",
	"/logout*",
	"*.pdf",
	"*.zip",
}

// Page is a page fetched during a crawl.
type Page struct {
	// URL is the final URL after redirects.
	URL string

	// Route is the path of URL, which is what a manifest stores.
	Route model.Route

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header of the response.
	ContentType string

	// Title is the document title of HTML pages.
	Title string

	// Depth is the number of links followed from the start URL.
	Depth int
}

// IsHTML reports whether the page was served as HTML.
func (p *Page) IsHTML() bool {
	return strings.Contains(p.ContentType, "text/html")
}

// OK reports whether the page answered with a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Spider crawls the application under test.
// It manages a queue of URLs to visit and respects depth and page limits.
type Spider struct {
	// client performs the HTTP requests.
	client *http.Client

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of pages to crawl.
	maxPages int

	// delay is the time to wait between requests.
	delay time.Duration

	// userAgent is the User-Agent header to use.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// cookies are sent with every request, e.g. an established session.
	cookies []*http.Cookie

	// ignorePatterns are URL path patterns to skip during crawling.
	ignorePatterns []string

	// followPatterns restrict the crawl to matching paths when set.
	followPatterns []string

	logger *slog.Logger

	// visited tracks URLs already visited to avoid duplicates.
	visited map[string]bool

	// mutex protects visited and pageCount.
	mutex sync.Mutex

	// pageCount tracks pages crawled.
	pageCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to crawl.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithSpiderUserAgent sets a custom User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithSpiderMaxBodySize sets the maximum response body size.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithCookies sends the given cookies with every request.
func WithCookies(cookies []*http.Cookie) SpiderOption {
	return func(s *Spider) {
		s.cookies = cookies
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger for crawl progress.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a new Spider with the given HTTP client.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:         client,
		maxDepth:       3,
		maxPages:       200,
		userAgent:      "a11yscan route discovery",
		maxBodySize:    5 * 1024 * 1024,
		ignorePatterns: DefaultIgnorePatterns,
		logger:         slog.Default(),
		visited:        make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// Crawl starts crawling from the given URL and returns all fetched pages
// in visiting order. Pages that fail to load are logged and skipped.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]*Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("invalid start URL %q: scheme must be http or https", startURL)
	}
	if start.Path == "" {
		start.Path = "/"
	}

	pages := make([]*Page, 0)
	queue := []queueItem{{url: start.String(), depth: 0}}

	for len(queue) > 0 && s.count() < s.maxPages {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if s.isVisited(item.url) {
			continue
		}
		s.markVisited(item.url)

		page, links, err := s.fetchPage(ctx, item.url, item.depth)
		if err != nil {
			s.logger.Debug("fetch failed", "url", item.url, "error", err)
			continue
		}

		// A redirect may land on a page that was already crawled or
		// leave the origin entirely.
		if page.URL != item.url {
			final, err := url.Parse(page.URL)
			if err != nil || !sameOrigin(start, final) || s.isVisited(page.URL) {
				continue
			}
			s.markVisited(page.URL)
		}

		pages = append(pages, page)
		s.increment()
		s.logger.Debug("crawled page", "route", page.Route, "status", page.StatusCode, "depth", page.Depth)

		if item.depth < s.maxDepth {
			for _, link := range links {
				u, err := url.Parse(link)
				if err != nil || !sameOrigin(start, u) {
					continue
				}
				if !s.isVisited(link) && s.shouldCrawl(link) {
					queue = append(queue, queueItem{url: link, depth: item.depth + 1})
				}
			}
		}

		if s.delay > 0 && len(queue) > 0 {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	return pages, nil
}

// fetchPage fetches a single page and extracts its title and links.
func (s *Spider) fetchPage(ctx context.Context, pageURL string, depth int) (*Page, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page := &Page{
		URL:         finalURL,
		Route:       routeOf(finalURL),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Depth:       depth,
	}

	if !page.IsHTML() {
		return page, nil, nil
	}

	parser, err := NewParser(finalURL)
	if err != nil {
		return page, nil, nil //nolint:nilerr // the page itself was fetched
	}
	result, err := parser.Parse(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return page, nil, nil //nolint:nilerr // unparsable pages still count as visited
	}
	page.Title = result.Title

	return page, result.InternalLinks, nil
}

// routeOf returns the path of rawURL with query and fragment dropped.
func routeOf(rawURL string) model.Route {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.Route(rawURL).Normalize()
	}
	return model.Route(u.Path).Normalize()
}

// Routes returns the sorted, de-duplicated routes of pages that loaded
// as HTML with a 2xx status.
func Routes(pages []*Page) []model.Route {
	seen := make(map[model.Route]bool)
	routes := make([]model.Route, 0, len(pages))
	for _, p := range pages {
		if !p.OK() || !p.IsHTML() || seen[p.Route] {
			continue
		}
		seen[p.Route] = true
		routes = append(routes, p.Route)
	}
	slices.Sort(routes)
	return routes
}

func (s *Spider) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pageCount
}

func (s *Spider) increment() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pageCount++
}

// isVisited checks if a URL has been visited.
func (s *Spider) isVisited(pageURL string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visited[normalizeURL(pageURL)]
}

// markVisited marks a URL as visited.
func (s *Spider) markVisited(pageURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited[normalizeURL(pageURL)] = true
}

// normalizeURL normalizes a URL for deduplication.
// Fragments are dropped and scheme and host are lowercased.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// Reset clears the spider's state, allowing it to be reused.
func (s *Spider) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited = make(map[string]bool)
	s.pageCount = 0
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesVisited: s.pageCount,
		URLsSeen:     len(s.visited),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages successfully crawled.
	PagesVisited int

	// URLsSeen is the number of unique URLs encountered.
	URLsSeen int
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
// Ignore patterns win over follow patterns.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/1/"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.Contains(ext, "/") {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}

	matched, err := path.Match(pattern, p)
	if err != nil {
		return false
	}
	return matched
}
