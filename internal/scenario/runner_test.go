package scenario

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/nao1215/a11yscan/internal/browser"
	"github.com/nao1215/a11yscan/internal/browser/browsertest"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/session"
)

// fakeAuditor returns scripted violations for the route last loaded in page.
type fakeAuditor struct {
	page       *browsertest.Fake
	violations map[string][]model.Violation
	injectErr  error
	scanErr    error
	injects    int
}

func (a *fakeAuditor) Inject(_ context.Context) error {
	a.injects++
	return a.injectErr
}

func (a *fakeAuditor) Scan(_ context.Context, filter model.ImpactFilter) ([]model.Violation, error) {
	if a.scanErr != nil {
		return nil, a.scanErr
	}
	navs := a.page.Navigations()
	if len(navs) == 0 {
		return nil, nil
	}
	return filter.Filter(a.violations[navs[len(navs)-1]]), nil
}

// countingAuth records how often a session is requested.
type countingAuth struct {
	calls int
	err   error
}

func (a *countingAuth) EstablishSession(_ context.Context, creds session.Credentials) (*session.Session, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &session.Session{Username: creds.Username}, nil
}

var creds = session.Credentials{Username: "user", Password: "pass"}

// rootEvaluator answers the root document probes.
func rootEvaluator(hasTop bool, charset string) func(string, string) (any, error) {
	return func(_, expr string) (any, error) {
		switch expr {
		case `'top' in window`:
			return hasTop, nil
		case `document.charset`:
			return charset, nil
		}
		return nil, errors.New("unexpected expression " + expr)
	}
}

// TestRootChecks tests the window, document and title checks.
func TestRootChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		title   string
		hasTop  bool
		charset string
		status  int
		check   func(*Runner, context.Context) error
		wantErr bool
	}{
		{"window has top", "Dashboard", true, "UTF-8", 0, (*Runner).RunWindowCheck, false},
		{"window without top", "Dashboard", false, "UTF-8", 0, (*Runner).RunWindowCheck, true},
		{"charset UTF-8", "Dashboard", true, "UTF-8", 0, (*Runner).RunDocumentCheck, false},
		{"charset is case sensitive", "Dashboard", true, "utf-8", 0, (*Runner).RunDocumentCheck, true},
		{"charset ISO-8859-1", "Dashboard", true, "ISO-8859-1", 0, (*Runner).RunDocumentCheck, true},
		{"title contains Dashboard", "My Dashboard | App", true, "UTF-8", 0, (*Runner).RunTitleCheck, false},
		{"title without Dashboard", "Log in", true, "UTF-8", 0, (*Runner).RunTitleCheck, true},
		{"title is case sensitive", "dashboard", true, "UTF-8", 0, (*Runner).RunTitleCheck, true},
		{"root returns 500", "Dashboard", true, "UTF-8", http.StatusInternalServerError, (*Runner).RunTitleCheck, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := browsertest.New(map[string]browsertest.Page{"/": {Title: tt.title, Status: tt.status}})
			page.Evaluator = rootEvaluator(tt.hasTop, tt.charset)
			r := New(page, &fakeAuditor{page: page})

			err := tt.check(r, context.Background())
			if tt.wantErr {
				if !errors.Is(err, model.ErrAssertion) {
					t.Errorf("expected assertion error, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if page.NavigationCount("/") != 1 {
				t.Errorf("expected one navigation to /, got %v", page.Navigations())
			}
		})
	}
}

// TestRunRootChecks tests that every root check yields its own result.
func TestRunRootChecks(t *testing.T) {
	t.Parallel()

	page := browsertest.New(map[string]browsertest.Page{"/": {Title: "Welcome"}})
	page.Evaluator = rootEvaluator(true, "UTF-8")
	r := New(page, &fakeAuditor{page: page})

	results := r.RunRootChecks(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []model.CheckStatus{model.StatusPassed, model.StatusPassed, model.StatusFailed}
	for i, res := range results {
		if res.Status != want[i] {
			t.Errorf("result %d (%s): got %s, want %s", i, res.Name, res.Status, want[i])
		}
		if res.Kind != model.KindRoot || res.Route != "/" {
			t.Errorf("unexpected result %+v", res)
		}
	}
	if !strings.Contains(results[2].Message, `"Welcome"`) {
		t.Errorf("expected actual title in message: %s", results[2].Message)
	}
}

// TestRootChecksCustomExpectations tests configured root expectations.
func TestRootChecksCustomExpectations(t *testing.T) {
	t.Parallel()

	page := browsertest.New(map[string]browsertest.Page{"/": {Title: "Overview"}})
	page.Evaluator = rootEvaluator(true, "ISO-8859-1")
	auth := &countingAuth{}
	r := New(page, &fakeAuditor{page: page},
		WithRootTitle("Overview"),
		WithRootCharset("ISO-8859-1"),
		WithRootRequiresAuth(true),
		WithAuthenticator(auth, creds),
	)

	for _, res := range r.RunRootChecks(context.Background()) {
		if res.Status != model.StatusPassed {
			t.Errorf("%s: %s %s", res.Name, res.Status, res.Message)
		}
	}
	if auth.calls != 1 {
		t.Errorf("expected one login, got %d", auth.calls)
	}
}

// TestRunAccessibilityAudit tests per-route audits.
func TestRunAccessibilityAudit(t *testing.T) {
	t.Parallel()

	contrast := model.Violation{ID: "color-contrast", Impact: model.ImpactSerious,
		Nodes: []model.ViolationNode{{Target: []string{".btn"}}}}
	region := model.Violation{ID: "region", Impact: model.ImpactModerate}

	newPage := func() *browsertest.Fake {
		return browsertest.New(map[string]browsertest.Page{
			"/cases/":          {},
			"/cases/1/view/":   {},
			"/cases/2/view/":   {},
			"/accounts/login/": {},
		})
	}

	t.Run("failure does not stop later routes", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		auditor := &fakeAuditor{page: page, violations: map[string][]model.Violation{
			"/cases/1/view/": {contrast, region},
			"/cases/2/view/": {region},
		}}
		r := New(page, auditor, WithAuthenticator(&countingAuth{}, creds))

		routes := []model.Route{"/cases/", "/cases/1/view/", "/cases/2/view/"}
		results := r.RunAccessibilityAudit(context.Background(), routes, true)
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		want := []model.CheckStatus{model.StatusPassed, model.StatusFailed, model.StatusPassed}
		for i, res := range results {
			if res.Status != want[i] {
				t.Errorf("%s: got %s, want %s (%s)", res.Route, res.Status, want[i], res.Message)
			}
		}
		if len(results[1].Violations) != 1 || results[1].Violations[0].ID != "color-contrast" {
			t.Errorf("expected only the serious violation, got %+v", results[1].Violations)
		}
		if auditor.injects != 3 {
			t.Errorf("expected 3 injections, got %d", auditor.injects)
		}
	})

	t.Run("session established at most once", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		auth := &countingAuth{}
		r := New(page, &fakeAuditor{page: page}, WithAuthenticator(auth, creds))

		r.RunAccessibilityAudit(context.Background(), []model.Route{"/cases/1/view/", "/cases/2/view/"}, true)
		r.RunAccessibilityAudit(context.Background(), []model.Route{"/cases/"}, true)
		if auth.calls != 1 {
			t.Errorf("expected one login, got %d", auth.calls)
		}
		if !r.SessionEstablished() {
			t.Error("expected session to be established")
		}
	})

	t.Run("logged out routes never log in", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		auth := &countingAuth{}
		r := New(page, &fakeAuditor{page: page}, WithAuthenticator(auth, creds))

		results := r.AuditGroup(context.Background(), model.NewRouteGroup(model.GroupLoggedOut, false, []string{"/accounts/login/"}))
		if auth.calls != 0 {
			t.Errorf("expected no login, got %d", auth.calls)
		}
		if results[0].Group != model.GroupLoggedOut || results[0].Status != model.StatusPassed {
			t.Errorf("unexpected result %+v", results[0])
		}
	})

	t.Run("login failure is remembered", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		auth := &countingAuth{err: session.ErrLoginFailed}
		r := New(page, &fakeAuditor{page: page}, WithAuthenticator(auth, creds))

		results := r.RunAccessibilityAudit(context.Background(), []model.Route{"/cases/", "/cases/1/view/"}, true)
		for _, res := range results {
			if res.Status != model.StatusError {
				t.Errorf("%s: expected error, got %s", res.Route, res.Status)
			}
		}
		if auth.calls != 1 {
			t.Errorf("expected one login attempt, got %d", auth.calls)
		}
		if len(page.Navigations()) != 0 {
			t.Errorf("expected no navigation without a session, got %v", page.Navigations())
		}
	})

	t.Run("no authenticator", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		results := New(page, &fakeAuditor{page: page}).RunAccessibilityAudit(context.Background(), []model.Route{"/cases/"}, true)
		if results[0].Status != model.StatusError || !strings.Contains(results[0].Message, ErrNoAuthenticator.Error()) {
			t.Errorf("unexpected result %+v", results[0])
		}
	})

	t.Run("status policy", func(t *testing.T) {
		t.Parallel()
		for policy, want := range map[StatusPolicy]model.CheckStatus{
			PolicyFail: model.StatusFailed,
			PolicySkip: model.StatusSkipped,
		} {
			page := newPage()
			auditor := &fakeAuditor{page: page}
			r := New(page, auditor, WithStatusPolicy(policy))
			results := r.RunAccessibilityAudit(context.Background(), []model.Route{"/missing/"}, false)
			if results[0].Status != want || results[0].StatusCode != http.StatusNotFound {
				t.Errorf("%s: unexpected result %+v", policy, results[0])
			}
			if auditor.injects != 0 {
				t.Errorf("%s: expected no audit of a missing page", policy)
			}
		}
	})

	t.Run("inject and scan errors", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		r := New(page, &fakeAuditor{page: page, injectErr: errors.New("csp blocked script")})
		if res := r.RunAccessibilityAudit(context.Background(), []model.Route{"/cases/"}, false); res[0].Status != model.StatusError {
			t.Errorf("expected error, got %+v", res[0])
		}

		r = New(page, &fakeAuditor{page: page, scanErr: errors.New("axe timed out")})
		if res := r.RunAccessibilityAudit(context.Background(), []model.Route{"/cases/"}, false); res[0].Status != model.StatusError {
			t.Errorf("expected error, got %+v", res[0])
		}
	})

	t.Run("custom impacts", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		auditor := &fakeAuditor{page: page, violations: map[string][]model.Violation{"/cases/": {region}}}
		filter, err := model.NewImpactFilter([]string{"moderate"})
		if err != nil {
			t.Fatal(err)
		}
		r := New(page, auditor, WithImpactFilter(filter))
		res := r.RunAccessibilityAudit(context.Background(), []model.Route{"cases/"}, false)
		if res[0].Status != model.StatusFailed || res[0].Route != "/cases/" {
			t.Errorf("unexpected result %+v", res[0])
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		results := New(page, &fakeAuditor{page: page}).RunAccessibilityAudit(ctx, []model.Route{"/cases/", "/cases/1/view/"}, false)
		if len(results) != 2 {
			t.Fatalf("expected a result per route, got %d", len(results))
		}
		for _, res := range results {
			if res.Status != model.StatusError {
				t.Errorf("%s: expected error, got %s", res.Route, res.Status)
			}
		}
	})
}

// cookieAuth logs in by setting a session cookie on page.
type cookieAuth struct {
	page  *browsertest.Fake
	calls int
}

func (a *cookieAuth) EstablishSession(ctx context.Context, creds session.Credentials) (*session.Session, error) {
	a.calls++
	cookies := []browser.Cookie{{Name: "sessionid", Value: "abc", Path: "/"}}
	if err := a.page.SetCookies(ctx, cookies); err != nil {
		return nil, err
	}
	return &session.Session{Username: creds.Username, Cookies: cookies}, nil
}

// cookieAuditor records how many cookies the page carried at each scan.
type cookieAuditor struct {
	page    *browsertest.Fake
	cookies map[string]int
}

func (a *cookieAuditor) Inject(_ context.Context) error { return nil }

func (a *cookieAuditor) Scan(ctx context.Context, _ model.ImpactFilter) ([]model.Violation, error) {
	cookies, err := a.page.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	navs := a.page.Navigations()
	a.cookies[navs[len(navs)-1]] = len(cookies)
	return nil, nil
}

// TestSessionCookiesFollowGroups tests that logged-out routes are loaded
// without the session and logged-in routes get it back.
func TestSessionCookiesFollowGroups(t *testing.T) {
	t.Parallel()

	page := browsertest.New(map[string]browsertest.Page{
		"/cases/":          {},
		"/cases/1/view/":   {},
		"/accounts/login/": {},
	})
	auth := &cookieAuth{page: page}
	auditor := &cookieAuditor{page: page, cookies: make(map[string]int)}
	r := New(page, auditor, WithAuthenticator(auth, creds))
	ctx := context.Background()

	r.AuditGroup(ctx, model.NewRouteGroup(model.GroupLoggedIn, true, []string{"/cases/"}))
	r.AuditGroup(ctx, model.NewRouteGroup(model.GroupLoggedOut, false, []string{"/accounts/login/"}))
	if !r.SessionEstablished() {
		t.Error("expected session to stay established after a logged-out route")
	}
	r.AuditGroup(ctx, model.NewRouteGroup(model.GroupLoggedIn, true, []string{"/cases/1/view/"}))

	want := map[string]int{"/cases/": 1, "/accounts/login/": 0, "/cases/1/view/": 1}
	for route, n := range want {
		if auditor.cookies[route] != n {
			t.Errorf("%s: scanned with %d cookies, expected %d", route, auditor.cookies[route], n)
		}
	}
	if auth.calls != 1 {
		t.Errorf("expected one login, got %d", auth.calls)
	}
}

// TestAuditRouteBouncedToLogin tests that a protected route redirected to
// the login page fails instead of auditing the login form.
func TestAuditRouteBouncedToLogin(t *testing.T) {
	t.Parallel()

	newPage := func() *browsertest.Fake {
		return browsertest.New(map[string]browsertest.Page{
			"/cases/":          {RedirectTo: "/accounts/login/"},
			"/accounts/login/": {},
		})
	}

	t.Run("logged-in route on the login page fails", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		login := session.NewLogin(page, session.DefaultLoginForm())
		r := New(page, &fakeAuditor{page: page},
			WithAuthenticator(&countingAuth{}, creds),
			WithLoginPage(login.OnLoginPage))

		results := r.RunAccessibilityAudit(context.Background(), []model.Route{"/cases/"}, true)
		if results[0].Status != model.StatusFailed {
			t.Fatalf("expected failure, got %s %s", results[0].Status, results[0].Message)
		}
		if !strings.Contains(results[0].Message, "redirected to /accounts/login/") {
			t.Errorf("unexpected message %q", results[0].Message)
		}
	})

	t.Run("logged-out login route passes", func(t *testing.T) {
		t.Parallel()
		page := newPage()
		login := session.NewLogin(page, session.DefaultLoginForm())
		r := New(page, &fakeAuditor{page: page}, WithLoginPage(login.OnLoginPage))

		results := r.RunAccessibilityAudit(context.Background(), []model.Route{"/accounts/login/"}, false)
		if results[0].Status != model.StatusPassed {
			t.Errorf("expected pass, got %s %s", results[0].Status, results[0].Message)
		}
	})
}
