package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/a11yscan/internal/browser"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/session"
)

// Check names used in results and assertion errors.
const (
	CheckWindow   = "window"
	CheckDocument = "document"
	CheckTitle    = "title"
	CheckAudit    = "accessibility"
)

// Root expectations.
const (
	DefaultRootTitle   = "Dashboard"
	DefaultRootCharset = "UTF-8"
)

// StatusPolicy decides how an audited route whose main document is not 2xx
// is reported.
type StatusPolicy string

const (
	// PolicyFail reports the route as a failed check.
	PolicyFail StatusPolicy = "fail"

	// PolicySkip reports the route as skipped.
	PolicySkip StatusPolicy = "skip"
)

// ErrNoAuthenticator is returned when a route requires a session and the
// Runner has no way to establish one.
var ErrNoAuthenticator = errors.New("route requires a session but no credentials are configured")

// Navigator loads routes.
type Navigator interface {
	Navigate(ctx context.Context, route string) (browser.Navigation, error)
}

// Page is the browser surface the root checks need.
type Page interface {
	Navigator
	Evaluate(ctx context.Context, expression string, res any) error
	Title(ctx context.Context) (string, error)
}

// CookieJar drops and restores the session cookies between route groups.
type CookieJar interface {
	ClearCookies(ctx context.Context) error
	SetCookies(ctx context.Context, cookies []browser.Cookie) error
}

// Auditor injects the accessibility engine into the current page and scans it.
type Auditor interface {
	Inject(ctx context.Context) error
	Scan(ctx context.Context, filter model.ImpactFilter) ([]model.Violation, error)
}

// Runner executes the checks of one run. It is not safe for concurrent use;
// checks share the page and run one after another.
type Runner struct {
	page             Page
	auditor          Auditor
	sessions         *session.Cache
	filter           model.ImpactFilter
	rootTitle        string
	rootCharset      string
	rootRequiresAuth bool
	policy           StatusPolicy
	loginPage        func(location string) bool
	logger           *slog.Logger

	// jar is nil when page cannot manage cookies.
	jar CookieJar

	// signedIn is true while the page may carry session cookies.
	signedIn bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithImpactFilter sets the impacts that fail an audit.
func WithImpactFilter(filter model.ImpactFilter) Option {
	return func(r *Runner) {
		if !filter.IsEmpty() {
			r.filter = filter
		}
	}
}

// WithAuthenticator sets how the session for protected routes is established.
func WithAuthenticator(auth session.Authenticator, creds session.Credentials) Option {
	return func(r *Runner) {
		if auth != nil {
			r.sessions = session.NewCache(auth, creds)
		}
	}
}

// WithRootTitle sets the substring the root title must contain.
func WithRootTitle(title string) Option {
	return func(r *Runner) {
		if title != "" {
			r.rootTitle = title
		}
	}
}

// WithRootCharset sets the exact charset the root document must declare.
func WithRootCharset(charset string) Option {
	return func(r *Runner) {
		if charset != "" {
			r.rootCharset = charset
		}
	}
}

// WithRootRequiresAuth makes the root checks establish the session first.
func WithRootRequiresAuth(requiresAuth bool) Option {
	return func(r *Runner) {
		r.rootRequiresAuth = requiresAuth
	}
}

// WithStatusPolicy sets how non-2xx audited routes are reported.
func WithStatusPolicy(policy StatusPolicy) Option {
	return func(r *Runner) {
		if policy != "" {
			r.policy = policy
		}
	}
}

// WithLoginPage sets how the login page is recognised. A route that needs a
// session and lands there fails instead of auditing the login form.
func WithLoginPage(onLoginPage func(location string) bool) Option {
	return func(r *Runner) {
		r.loginPage = onLoginPage
	}
}

// New creates a Runner over page and auditor.
func New(page Page, auditor Auditor, opts ...Option) *Runner {
	r := &Runner{
		page:        page,
		auditor:     auditor,
		filter:      model.DefaultImpactFilter(),
		rootTitle:   DefaultRootTitle,
		rootCharset: DefaultRootCharset,
		policy:      PolicyFail,
		logger:      slog.Default(),
	}
	if jar, ok := page.(CookieJar); ok {
		r.jar = jar
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ImpactFilter returns the impacts that fail an audit.
func (r *Runner) ImpactFilter() model.ImpactFilter {
	return r.filter
}

// SessionEstablished reports whether the run has an authenticated session.
func (r *Runner) SessionEstablished() bool {
	return r.sessions != nil && r.sessions.Established()
}

// SessionRestored reports whether the session came from the session store.
func (r *Runner) SessionRestored() bool {
	if r.sessions == nil {
		return false
	}
	s := r.sessions.Session()
	return s != nil && s.Restored
}

// signIn establishes the shared session on first use. When the cookies
// were cleared for an earlier logged-out route they are put back.
func (r *Runner) signIn(ctx context.Context) error {
	if r.sessions == nil {
		return ErrNoAuthenticator
	}
	sess, err := r.sessions.Get(ctx)
	if err != nil {
		r.signedIn = true
		return fmt.Errorf("failed to establish session: %w", err)
	}
	if !r.signedIn && r.jar != nil && sess != nil {
		if err := r.jar.SetCookies(ctx, sess.Live(time.Now())); err != nil {
			return fmt.Errorf("failed to restore session cookies: %w", err)
		}
	}
	r.signedIn = true
	return nil
}

// signOut removes the session cookies from the page. The cached session
// stays established for later routes.
func (r *Runner) signOut(ctx context.Context) error {
	if !r.signedIn || r.jar == nil {
		return nil
	}
	if err := r.jar.ClearCookies(ctx); err != nil {
		return fmt.Errorf("failed to clear session cookies: %w", err)
	}
	r.signedIn = false
	return nil
}

// prepare puts the page in the authenticated or anonymous state.
func (r *Runner) prepare(ctx context.Context, requiresAuth bool) error {
	if requiresAuth {
		return r.signIn(ctx)
	}
	return r.signOut(ctx)
}

// openRoot loads "/" for a root check.
func (r *Runner) openRoot(ctx context.Context, check string) error {
	if err := r.prepare(ctx, r.rootRequiresAuth); err != nil {
		return err
	}
	nav, err := r.page.Navigate(ctx, "/")
	if err != nil {
		return fmt.Errorf("failed to load /: %w", err)
	}
	if !nav.OK() {
		return &model.AssertionError{
			Check:    check,
			Route:    "/",
			Expected: "a 2xx status",
			Actual:   strconv.Itoa(nav.StatusCode),
		}
	}
	return nil
}

// RunWindowCheck asserts that the root page's window exposes a top property.
func (r *Runner) RunWindowCheck(ctx context.Context) error {
	if err := r.openRoot(ctx, CheckWindow); err != nil {
		return err
	}
	var hasTop bool
	if err := r.page.Evaluate(ctx, `'top' in window`, &hasTop); err != nil {
		return fmt.Errorf("failed to inspect window: %w", err)
	}
	if !hasTop {
		return &model.AssertionError{
			Check:    CheckWindow,
			Route:    "/",
			Expected: "window to have property top",
			Actual:   "no property top",
		}
	}
	return nil
}

// RunDocumentCheck asserts that the root document's charset equals the
// expected charset exactly.
func (r *Runner) RunDocumentCheck(ctx context.Context) error {
	if err := r.openRoot(ctx, CheckDocument); err != nil {
		return err
	}
	var charset string
	if err := r.page.Evaluate(ctx, `document.charset`, &charset); err != nil {
		return fmt.Errorf("failed to read document charset: %w", err)
	}
	if charset != r.rootCharset {
		return &model.AssertionError{
			Check:    CheckDocument,
			Route:    "/",
			Expected: fmt.Sprintf("charset %q", r.rootCharset),
			Actual:   fmt.Sprintf("%q", charset),
		}
	}
	return nil
}

// RunTitleCheck asserts that the root document's title contains the
// expected title.
func (r *Runner) RunTitleCheck(ctx context.Context) error {
	if err := r.openRoot(ctx, CheckTitle); err != nil {
		return err
	}
	title, err := r.page.Title(ctx)
	if err != nil {
		return fmt.Errorf("failed to read title: %w", err)
	}
	if !strings.Contains(title, r.rootTitle) {
		return &model.AssertionError{
			Check:    CheckTitle,
			Route:    "/",
			Expected: fmt.Sprintf("title containing %q", r.rootTitle),
			Actual:   fmt.Sprintf("%q", title),
		}
	}
	return nil
}

// RootCheck is one named check of the root document.
type RootCheck struct {
	Name string
	Run  func(context.Context) error
}

// RootChecks returns the window, document and title checks in order.
func (r *Runner) RootChecks() []RootCheck {
	return []RootCheck{
		{Name: "window has top", Run: r.RunWindowCheck},
		{Name: "document charset is " + r.rootCharset, Run: r.RunDocumentCheck},
		{Name: "title contains " + r.rootTitle, Run: r.RunTitleCheck},
	}
}

// RunRootCheck runs c and converts its outcome into a result.
func (r *Runner) RunRootCheck(ctx context.Context, c RootCheck) model.CheckResult {
	start := time.Now()
	err := c.Run(ctx)
	res := model.NewCheckResult(c.Name, model.KindRoot, "/", err)
	res.Duration = time.Since(start)
	r.logResult(res)
	return res
}

// RunRootChecks runs every root check, each yielding its own result.
func (r *Runner) RunRootChecks(ctx context.Context) []model.CheckResult {
	checks := r.RootChecks()
	results := make([]model.CheckResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, r.RunRootCheck(ctx, c))
	}
	return results
}

// RunAccessibilityAudit audits each route in order. When requiresAuth is
// set, the shared session is established before the first route is
// visited. Every route yields one result regardless of earlier failures.
func (r *Runner) RunAccessibilityAudit(ctx context.Context, routes []model.Route, requiresAuth bool) []model.CheckResult {
	results := make([]model.CheckResult, 0, len(routes))
	for _, route := range routes {
		results = append(results, r.auditRoute(ctx, route.Normalize(), requiresAuth))
	}
	return results
}

// AuditGroup audits a route group and labels the results with its name.
func (r *Runner) AuditGroup(ctx context.Context, group model.RouteGroup) []model.CheckResult {
	r.logger.Info("auditing route group", "group", group.Name, "routes", group.Len(), "needs_session", group.RequiresAuth)
	results := r.RunAccessibilityAudit(ctx, group.Routes, group.RequiresAuth)
	for i := range results {
		results[i].Group = group.Name
	}
	return results
}

func (r *Runner) auditRoute(ctx context.Context, route model.Route, requiresAuth bool) model.CheckResult {
	start := time.Now()
	status, err := r.AuditRoute(ctx, route, requiresAuth)
	res := model.NewCheckResult(CheckAudit+" "+route.String(), model.KindAudit, route, err)
	res.StatusCode = status
	res.Duration = time.Since(start)
	r.logResult(res)
	return res
}

// AuditRoute audits a single route and returns the main document status.
// Routes that do not require a session are loaded without session cookies.
// Qualifying violations are reported as an *model.AssertionError.
func (r *Runner) AuditRoute(ctx context.Context, route model.Route, requiresAuth bool) (int, error) {
	if err := r.prepare(ctx, requiresAuth); err != nil {
		return 0, err
	}

	nav, err := r.page.Navigate(ctx, route.String())
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", route, err)
	}
	if requiresAuth && r.loginPage != nil && r.loginPage(nav.URL) && !r.loginPage(route.String()) {
		return nav.StatusCode, &model.AssertionError{
			Check:    CheckAudit,
			Route:    route,
			Expected: "an authenticated page",
			Actual:   "redirected to " + nav.Path(),
		}
	}
	if !nav.OK() {
		if r.policy == PolicySkip {
			return nav.StatusCode, fmt.Errorf("%w: %s returned %d %s", model.ErrSkipped, route,
				nav.StatusCode, http.StatusText(nav.StatusCode))
		}
		return nav.StatusCode, &model.AssertionError{
			Check:    CheckAudit,
			Route:    route,
			Expected: "a 2xx status",
			Actual:   fmt.Sprintf("%d %s", nav.StatusCode, http.StatusText(nav.StatusCode)),
		}
	}

	if err := r.auditor.Inject(ctx); err != nil {
		return nav.StatusCode, fmt.Errorf("failed to inject axe-core into %s: %w", route, err)
	}
	violations, err := r.auditor.Scan(ctx, r.filter)
	if err != nil {
		return nav.StatusCode, fmt.Errorf("failed to audit %s: %w", route, err)
	}
	if len(violations) > 0 {
		return nav.StatusCode, &model.AssertionError{
			Check:      CheckAudit,
			Route:      route,
			Expected:   "no " + r.filter.String() + " violations",
			Actual:     strconv.Itoa(len(violations)),
			Violations: violations,
		}
	}
	return nav.StatusCode, nil
}

func (r *Runner) logResult(res model.CheckResult) {
	switch res.Status {
	case model.StatusPassed:
		r.logger.Debug("check passed", "check", res.Name, "duration", res.Duration)
	case model.StatusSkipped:
		r.logger.Info("check skipped", "check", res.Name, "reason", res.Message)
	default:
		r.logger.Warn("check "+string(res.Status), "check", res.Name, "reason", res.Message)
	}
}
