// Package browsertest provides an in-memory browser.Browser for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"

	"github.com/nao1215/a11yscan/internal/browser"
)

// Origin is the base URL reported by Fake locations.
const Origin = "http://app.test"

// ErrNoEvaluator is returned by Evaluate when Fake.Evaluator is nil.
var ErrNoEvaluator = errors.New("browsertest: no evaluator configured")

// Page is one route served by Fake.
type Page struct {
	// Status is the HTTP status. Zero means 200.
	Status int

	// Title is the document title.
	Title string

	// RedirectTo is the route the browser ends up on after loading.
	RedirectTo string

	// Err makes navigation to the route fail.
	Err error
}

// Fake is a scripted browser. Routes that are not in Pages load as 404.
// It is safe for concurrent use.
type Fake struct {
	// Pages maps routes to their pages.
	Pages map[string]Page

	// Evaluator answers Evaluate and EvaluateAsync. route is the current
	// route. The returned value is JSON encoded and decoded into res.
	Evaluator func(route, expression string) (any, error)

	// OnClick runs after a click is recorded.
	OnClick func(f *Fake, selector string) error

	mu          sync.Mutex
	current     string
	cookies     []browser.Cookie
	navigations []string
	filled      map[string]string
	clicks      []string
	closed      bool
}

// New returns a Fake serving pages.
func New(pages map[string]Page) *Fake {
	if pages == nil {
		pages = make(map[string]Page)
	}
	return &Fake{Pages: pages, filled: make(map[string]string)}
}

// Navigate implements browser.Browser.
func (f *Fake) Navigate(ctx context.Context, route string) (browser.Navigation, error) {
	if err := ctx.Err(); err != nil {
		return browser.Navigation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return browser.Navigation{}, browser.ErrClosed
	}

	f.navigations = append(f.navigations, route)
	page, ok := f.Pages[route]
	if !ok {
		f.current = route
		return browser.Navigation{URL: Origin + route, StatusCode: http.StatusNotFound}, nil
	}
	if page.Err != nil {
		return browser.Navigation{}, page.Err
	}

	f.current = route
	if page.RedirectTo != "" {
		f.current = page.RedirectTo
	}
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	return browser.Navigation{URL: Origin + f.current, StatusCode: status}, nil
}

// Evaluate implements browser.Browser.
func (f *Fake) Evaluate(ctx context.Context, expression string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	route, eval, closed := f.current, f.Evaluator, f.closed
	f.mu.Unlock()
	if closed {
		return browser.ErrClosed
	}
	if eval == nil {
		return ErrNoEvaluator
	}

	v, err := eval(route, expression)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, res)
}

// EvaluateAsync implements browser.Browser.
func (f *Fake) EvaluateAsync(ctx context.Context, expression string, res any) error {
	return f.Evaluate(ctx, expression, res)
}

// Title implements browser.Browser.
func (f *Fake) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pages[f.current].Title, nil
}

// Location implements browser.Browser.
func (f *Fake) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return Origin + f.current, nil
}

// Fill implements browser.Browser.
func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filled == nil {
		f.filled = make(map[string]string)
	}
	f.filled[selector] = value
	return nil
}

// Click implements browser.Browser.
func (f *Fake) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.clicks = append(f.clicks, selector)
	onClick := f.OnClick
	f.mu.Unlock()

	if onClick != nil {
		return onClick(f, selector)
	}
	return nil
}

// Cookies implements browser.Browser.
func (f *Fake) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.cookies), nil
}

// SetCookies implements browser.Browser. Cookies replace existing cookies
// with the same name.
func (f *Fake) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cookies {
		f.cookies = slices.DeleteFunc(f.cookies, func(old browser.Cookie) bool { return old.Name == c.Name })
		f.cookies = append(f.cookies, c)
	}
	return nil
}

// ClearCookies implements browser.Browser.
func (f *Fake) ClearCookies(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = nil
	return nil
}

// Close implements browser.Browser.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Redirect moves the fake to route, as a form submission would.
func (f *Fake) Redirect(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = route
}

// Navigations returns the routes passed to Navigate in order.
func (f *Fake) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.navigations)
}

// NavigationCount returns how often route was navigated to.
func (f *Fake) NavigationCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.navigations {
		if r == route {
			n++
		}
	}
	return n
}

// Filled returns the value filled into selector.
func (f *Fake) Filled(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filled[selector]
}

// Clicks returns the clicked selectors in order.
func (f *Fake) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.clicks)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ browser.Browser = (*Fake)(nil)
