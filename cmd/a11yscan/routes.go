package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/crawler"
	"github.com/nao1215/a11yscan/internal/log"
	"github.com/nao1215/a11yscan/internal/model"
)

// NewRoutesCmd creates the routes command.
func NewRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show or discover the routes that are audited",
		Long: `Routes prints the route groups a run would audit, or discovers the
routes of an application by following its links.`,
	}

	cmd.AddCommand(newRoutesListCmd())
	cmd.AddCommand(newRoutesDiscoverCmd())
	return cmd
}

func newRoutesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [target-url]",
		Short: "Print the route groups a run would audit",
		Long: `List prints the logged-in and logged-out route groups after the
configuration file, --routes-file and the group filters are applied.
Without a target the built-in manifest is shown.

Examples:
  a11yscan routes list
  a11yscan routes list -r routes.jsonc https://staging.example.com
  a11yscan routes list --source > routes.jsonc`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRoutesListCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file path")
	cmd.Flags().StringP("routes-file", "r", "", "JSONC route manifest")
	cmd.Flags().Bool("logged-in-only", false, "Only list routes that need a session")
	cmd.Flags().Bool("logged-out-only", false, "Only list routes that are visited without a session")
	cmd.Flags().Bool("source", false, "Print the built-in manifest as JSONC")
	cmd.MarkFlagsMutuallyExclusive("logged-in-only", "logged-out-only")
	return cmd
}

func runRoutesListCmd(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	flags := cmd.Flags()

	source, err := flags.GetBool("source")
	if err != nil {
		return err
	}
	if source {
		_, err := out.Write(config.DefaultRouteManifestSource())
		return err
	}

	cfg := config.NewConfig()
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return err
	}
	if cfg.RoutesFile, err = flags.GetString("routes-file"); err != nil {
		return err
	}
	if cfg.LoggedInOnly, err = flags.GetBool("logged-in-only"); err != nil {
		return err
	}
	if cfg.LoggedOutOnly, err = flags.GetBool("logged-out-only"); err != nil {
		return err
	}
	if cfg.TargetConfigs, err = loadTargetConfigs(cfg.ConfigFilePath); err != nil {
		return err
	}

	target := cfg.TargetConfigs.BaseURL
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" {
		// Any valid URL resolves to the defaults section.
		target = "http://localhost"
	}

	t, err := cfg.ResolveTarget(target)
	if err != nil {
		return err
	}
	printRouteGroups(out, t.Groups)
	return nil
}

// printRouteGroups writes one block per group.
func printRouteGroups(out io.Writer, groups []model.RouteGroup) {
	total := 0
	for _, g := range groups {
		auth := "no session"
		if g.RequiresAuth {
			auth = "session"
		}
		fmt.Fprintf(out, "%s (%d routes, %s):\n", g.Name, g.Len(), auth)
		for _, r := range g.Routes {
			fmt.Fprintf(out, "  %s\n", r)
		}
		fmt.Fprintln(out)
		total += g.Len()
	}
	fmt.Fprintf(out, "%d routes in %d groups\n", total, len(groups))
}

func newRoutesDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover <target-url>",
		Short: "Discover routes by following links",
		Long: `Discover fetches the target and follows same-origin links to list the
routes that answer with an HTML page. The cookie and headers of the target
in the configuration file are sent, so a session cookie copied from a
browser discovers logged-in routes.

Use --manifest to print a route manifest that can be edited and passed to
'a11yscan run --routes-file'.

Examples:
  a11yscan routes discover http://localhost:8000
  a11yscan routes discover --depth 2 --manifest http://localhost:8000 > routes.jsonc`,
		Args: cobra.ExactArgs(1),
		RunE: runRoutesDiscoverCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file path")
	cmd.Flags().Int("depth", config.DefaultCrawlDepth, "Maximum link depth to follow")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages, "Maximum number of pages to fetch")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay, "Delay between requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Bool("manifest", false, "Print the routes as a route manifest")
	return cmd
}

func runRoutesDiscoverCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	cfg := config.NewConfig()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return err
	}
	if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
		return err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	manifest, err := flags.GetBool("manifest")
	if err != nil {
		return err
	}
	if cfg.TargetConfigs, err = loadTargetConfigs(cfg.ConfigFilePath); err != nil {
		return err
	}

	t, err := cfg.ResolveTarget(args[0])
	if err != nil {
		return err
	}

	logger := log.NewCommandLogger(os.Stderr, getVerboseFlag(cmd))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	routes, err := discoverRoutes(ctx, cfg, t, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if manifest {
		return writeDiscoveredManifest(out, routes, t.Cookie != "")
	}
	for _, r := range routes {
		fmt.Fprintln(out, r)
	}
	return nil
}

// discoverRoutes crawls the target and returns its HTML routes.
func discoverRoutes(ctx context.Context, cfg *config.Config, t *config.Target, logger *slog.Logger) ([]model.Route, error) {
	cookies, err := parseCookieHeader(t.Cookie)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &headerTransport{headers: t.Headers, base: http.DefaultTransport},
	}

	spider := crawler.NewSpider(client,
		crawler.WithMaxDepth(cfg.CrawlDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithSpiderUserAgent(cfg.UserAgent),
		crawler.WithSpiderMaxBodySize(cfg.MaxBodySize),
		crawler.WithCookies(cookies),
		crawler.WithIgnorePatterns(slices.Concat(crawler.DefaultIgnorePatterns, t.IgnorePatterns)),
		crawler.WithSpiderLogger(logger),
	)

	start := time.Now()
	pages, err := spider.Crawl(ctx, t.BaseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("crawl failed: %w", err)
	}
	routes := crawler.Routes(pages)

	stats := spider.Stats()
	logger.Info("discovery completed",
		"pages", stats.PagesVisited,
		"urls", stats.URLsSeen,
		"routes", len(routes),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if len(routes) == 0 {
		return nil, errors.New("no HTML routes found")
	}
	return routes, nil
}

// parseCookieHeader splits a Cookie header value such as "a=1; b=2".
func parseCookieHeader(header string) ([]*http.Cookie, error) {
	if header == "" {
		return nil, nil
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie in configuration: %w", err)
	}
	return cookies, nil
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// writeDiscoveredManifest prints routes as a manifest. Routes found with a
// session cookie go to the logged-in group.
func writeDiscoveredManifest(out io.Writer, routes []model.Route, withSession bool) error {
	m := config.RouteManifest{LoggedIn: []string{}, LoggedOut: []string{}}
	for _, r := range routes {
		if withSession {
			m.LoggedIn = append(m.LoggedIn, r.String())
		} else {
			m.LoggedOut = append(m.LoggedOut, r.String())
		}
	}

	fmt.Fprintln(out, "// Discovered by a11yscan routes discover. Review before use.")
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
