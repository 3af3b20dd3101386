package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/a11yscan/internal/log"
)

// Default browser settings.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultWindowWidth  = 1280
	DefaultWindowHeight = 1024
)

// Chrome implements Browser with chromedp.
type Chrome struct {
	base    *url.URL
	timeout time.Duration
	logger  *slog.Logger

	mu          sync.Mutex
	closed      bool
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

// Option configures a Chrome instance.
type Option func(*chromeOptions)

type chromeOptions struct {
	logger        *slog.Logger
	timeout       time.Duration
	execPath      string
	headful       bool
	userAgent     string
	width, height int
	trace         bool
}

// WithLogger sets the logger. chromedp's own messages are forwarded to it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *chromeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimeout bounds every browser call.
func WithTimeout(d time.Duration) Option {
	return func(o *chromeOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithExecPath sets the Chrome executable. By default chromedp searches
// the usual install locations.
func WithExecPath(path string) Option {
	return func(o *chromeOptions) {
		o.execPath = path
	}
}

// WithHeadful shows the browser window.
func WithHeadful(headful bool) Option {
	return func(o *chromeOptions) {
		o.headful = headful
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *chromeOptions) {
		o.userAgent = ua
	}
}

// WithWindowSize sets the viewport size.
func WithWindowSize(width, height int) Option {
	return func(o *chromeOptions) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithProtocolTrace logs every DevTools frame at debug level.
func WithProtocolTrace(trace bool) Option {
	return func(o *chromeOptions) {
		o.trace = trace
	}
}

// NewChrome starts a browser for the application at baseURL.
// The browser lives until Close is called; ctx only bounds startup.
func NewChrome(ctx context.Context, baseURL string, opts ...Option) (*Chrome, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	o := &chromeOptions{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		width:   DefaultWindowWidth,
		height:  DefaultWindowHeight,
	}
	for _, opt := range opts {
		opt(o)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.WindowSize(o.width, o.height),
	)
	if o.headful {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if o.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.execPath))
	}
	if o.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(o.userAgent))
	}

	// The browser outlives the startup context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(log.Printf(o.logger, slog.LevelDebug)),
		chromedp.WithErrorf(log.Printf(o.logger, slog.LevelWarn)),
	}
	if o.trace {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(log.Printf(o.logger, slog.LevelDebug)))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	c := &Chrome{
		base:        base,
		timeout:     o.timeout,
		logger:      o.logger,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	// The first Run allocates the browser and must use the tab context
	// itself; a timeout context here would stop the browser when it ends.
	// Startup is still abandoned when ctx ends.
	stop := context.AfterFunc(ctx, tabCancel)
	err = chromedp.Run(tabCtx)
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	c.logger.Debug("chrome started", "base_url", base.String())
	return c, nil
}

// run executes actions on the tab, bounded by the timeout and by ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel, err := c.callContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return c.callError(ctx, err)
	}
	return nil
}

func (c *Chrome) callContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}

	runCtx, cancel := context.WithTimeout(c.tabCtx, c.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

// callError prefers the caller's cancellation over chromedp's own error.
func (c *Chrome) callError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("browser call exceeded %s: %w", c.timeout, err)
	}
	return err
}

// Navigate loads route and reports the main document status.
func (c *Chrome) Navigate(ctx context.Context, route string) (Navigation, error) {
	target, err := ResolveURL(c.base, route)
	if err != nil {
		return Navigation{}, err
	}

	runCtx, cancel, err := c.callContext(ctx)
	if err != nil {
		return Navigation{}, err
	}
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(target))
	if err != nil {
		return Navigation{}, fmt.Errorf("failed to navigate to %s: %w", target, c.callError(ctx, err))
	}

	nav := Navigation{URL: target}
	if resp != nil {
		nav.StatusCode = int(resp.Status)
		if resp.URL != "" {
			nav.URL = resp.URL
		}
	}
	c.logger.Debug("navigated", "url", nav.URL, "status", nav.StatusCode)
	return nav, nil
}

// Evaluate runs expression and decodes its JSON value into res.
func (c *Chrome) Evaluate(ctx context.Context, expression string, res any) error {
	return c.run(ctx, chromedp.Evaluate(expression, res))
}

// EvaluateAsync runs expression, awaits the returned promise and decodes
// its JSON value into res.
func (c *Chrome) EvaluateAsync(ctx context.Context, expression string, res any) error {
	return c.run(ctx, chromedp.Evaluate(expression, res, awaitPromise))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// Title returns the document title.
func (c *Chrome) Title(ctx context.Context) (string, error) {
	var title string
	if err := c.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// Location returns the current URL.
func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Fill waits for the element and sets its value.
func (c *Chrome) Fill(ctx context.Context, selector, value string) error {
	return c.run(ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
}

// Click waits for the element to be visible and clicks it.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Cookies returns the cookies that apply to the base URL.
func (c *Chrome) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().WithUrls([]string{c.base.String()}).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, rc := range raw {
		cookies = append(cookies, fromNetworkCookie(rc))
	}
	return cookies, nil
}

// SetCookies installs cookies in the browser.
func (c *Chrome) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		params = append(params, toCookieParam(ck))
	}
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// ClearCookies removes every browser cookie.
func (c *Chrome) ClearCookies(ctx context.Context) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.ClearBrowserCookies().Do(ctx)
	}))
}

// Close shuts down the tab and the browser process.
// It is safe to call more than once.
func (c *Chrome) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := chromedp.Cancel(c.tabCtx)
	c.tabCancel()
	c.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}

func fromNetworkCookie(rc *network.Cookie) Cookie {
	ck := Cookie{
		Name:     rc.Name,
		Value:    rc.Value,
		Domain:   rc.Domain,
		Path:     rc.Path,
		Secure:   rc.Secure,
		HTTPOnly: rc.HTTPOnly,
		SameSite: rc.SameSite.String(),
	}
	// Session cookies report a negative expiry.
	if !rc.Session && rc.Expires > 0 {
		sec, frac := math.Modf(rc.Expires)
		ck.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return ck
}

func toCookieParam(ck Cookie) *network.CookieParam {
	p := &network.CookieParam{
		Name:     ck.Name,
		Value:    ck.Value,
		Domain:   ck.Domain,
		Path:     ck.Path,
		Secure:   ck.Secure,
		HTTPOnly: ck.HTTPOnly,
	}
	if ck.SameSite != "" {
		p.SameSite = network.CookieSameSite(ck.SameSite)
	}
	if !ck.Expires.IsZero() {
		expires := cdp.TimeSinceEpoch(ck.Expires)
		p.Expires = &expires
	}
	return p
}

var _ Browser = (*Chrome)(nil)
