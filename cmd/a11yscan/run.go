package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/a11yscan/internal/axe"
	"github.com/nao1215/a11yscan/internal/browser"
	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/database"
	"github.com/nao1215/a11yscan/internal/log"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/pipeline"
	"github.com/nao1215/a11yscan/internal/scenario"
	"github.com/nao1215/a11yscan/internal/session"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	impacts := &impactValue{names: model.DefaultIncludedImpacts}

	cmd := &cobra.Command{
		Use:   "run [target-url...]",
		Short: "Run the accessibility checks against a web application",
		Long: `Run visits the application in headless Chrome and performs:
- Root checks: the window object, the document charset and the page title
- An axe-core audit of every logged-in route, using one login per run
- An axe-core audit of every logged-out route

Any violation with an included impact fails the route, and any failing
check makes the command exit with status 1. Results are stored in the
history database for "a11yscan compare".

Examples:
  # Check a local development server
  A11YSCAN_PASSWORD=secret a11yscan run http://localhost:8000

  # Only audit the public pages
  a11yscan run --logged-out-only https://staging.example.com

  # Fail on every impact and write a JUnit report for CI
  a11yscan run -i critical,serious,moderate,minor --junit -o report.xml https://staging.example.com

  # Use a custom route manifest
  a11yscan run -r routes.jsonc https://staging.example.com

Configuration file (.a11yscan) example:
  defaults:
    login:
      username: "auditor@example.com"
    audit:
      includedImpacts: [critical, serious]
  targets:
    "https://staging.example.com":
      statusPolicy: skip`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunCmd(cmd, args, impacts)
		},
	}

	// Scenario flags
	cmd.Flags().VarP(impacts, "impact", "i",
		"axe-core impact that fails a route (critical, serious, moderate, minor); repeatable")
	cmd.Flags().Bool("logged-in-only", false, "Only audit routes that need a session")
	cmd.Flags().Bool("logged-out-only", false, "Only audit routes that are visited without a session")
	cmd.Flags().StringP("routes-file", "r", "", "JSONC route manifest overriding the configured routes")
	cmd.Flags().Bool("skip-root-checks", false, "Skip the window, charset and title checks")
	cmd.Flags().String("status-policy", "",
		"How routes that do not answer 2xx are reported: fail or skip (default fail)")
	cmd.Flags().String("username", "", "Login username (default from the configuration file or "+config.EnvUsername+")")
	cmd.Flags().String("password-file", "", "Read the login password from a file instead of "+config.EnvPassword)
	cmd.Flags().Bool("no-session-cache", false, "Do not restore or persist the logged-in session")

	// Browser flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each browser operation")
	cmd.Flags().String("chrome-path", "", "Chrome executable (default: search the usual locations)")
	cmd.Flags().Bool("headful", false, "Show the browser window")
	cmd.Flags().String("axe-script", "", "Local axe.min.js (default: download and cache axe-core)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of targets checked concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .a11yscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false, "Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report")
	cmd.Flags().Bool("html", false, "Output HTML report")
	cmd.Flags().Bool("junit", false, "Output JUnit XML report")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false, "Do not store the results in the history database")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown", "html", "junit")
	cmd.MarkFlagsMutuallyExclusive("logged-in-only", "logged-out-only")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string, impacts *impactValue) error {
	cfg, err := buildConfig(cmd, args, impacts)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewCommandLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	passwordFile, err := cmd.Flags().GetString("password-file")
	if err != nil {
		return err
	}
	cfg.Password, err = newPasswordSource(passwordFile).Read(usernameHint(cfg))
	if err != nil {
		return err
	}

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	reports, err := runChecks(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	for _, r := range reports {
		if r.Failed() {
			return errChecksFailed
		}
	}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags, the environment
// and the configuration file.
func buildConfig(cmd *cobra.Command, args []string, impacts *impactValue) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.IncludedImpacts = impacts.Values()

	if cfg.LoggedInOnly, err = flags.GetBool("logged-in-only"); err != nil {
		return nil, err
	}
	if cfg.LoggedOutOnly, err = flags.GetBool("logged-out-only"); err != nil {
		return nil, err
	}
	if cfg.RoutesFile, err = flags.GetString("routes-file"); err != nil {
		return nil, err
	}
	if cfg.SkipRootChecks, err = flags.GetBool("skip-root-checks"); err != nil {
		return nil, err
	}
	if cfg.StatusPolicy, err = flags.GetString("status-policy"); err != nil {
		return nil, err
	}
	if cfg.Username, err = flags.GetString("username"); err != nil {
		return nil, err
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv(config.EnvUsername)
	}

	noSessionCache, err := flags.GetBool("no-session-cache")
	if err != nil {
		return nil, err
	}
	cfg.SessionCache = !noSessionCache
	cfg.SessionKey = os.Getenv(config.EnvSessionKey)

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ChromePath, err = flags.GetString("chrome-path"); err != nil {
		return nil, err
	}
	if cfg.Headful, err = flags.GetBool("headful"); err != nil {
		return nil, err
	}
	if cfg.AxeScript, err = flags.GetString("axe-script"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.HTMLReport, err = flags.GetBool("html"); err != nil {
		return nil, err
	}
	if cfg.JUnitReport, err = flags.GetBool("junit"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = config.XDGDataDir()

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.TargetConfigs, err = loadTargetConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Targets = args
	if len(cfg.Targets) == 0 && cfg.TargetConfigs.BaseURL != "" {
		cfg.Targets = []string{cfg.TargetConfigs.BaseURL}
	}
	for i, t := range cfg.Targets {
		cfg.Targets[i] = config.NormalizeTarget(t)
	}

	return cfg, nil
}

// loadTargetConfigs loads the configuration file.
// If the user explicitly specified a path, a missing file is an error;
// otherwise an empty configuration is used.
func loadTargetConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return &config.File{Targets: make(map[string]config.TargetConfig)}, nil
	}

	cf, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return cf, nil
}

// usernameHint returns the username shown in the password prompt.
// It is empty when no target needs a session, which skips the prompt.
func usernameHint(cfg *config.Config) string {
	for _, raw := range cfg.Targets {
		t, err := cfg.ResolveTarget(raw)
		if err != nil {
			continue
		}
		if t.HasLoggedInRoutes() || t.RootRequiresAuth {
			return t.Login.Username
		}
	}
	return ""
}

// runEnv holds what every target of one invocation shares.
type runEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	script string
	store  *session.Store
}

// runChecks runs the suite against every target and writes the reports.
func runChecks(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) ([]*model.RunReport, error) {
	if len(cfg.Targets) == 0 {
		return nil, errors.New("no targets provided (specify a base URL or set baseURL in the configuration file)")
	}

	logger.Info("starting run",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Resolve every target up front so configuration errors surface before
	// any browser starts.
	for _, raw := range cfg.Targets {
		if _, err := cfg.ResolveTarget(raw); err != nil {
			return nil, err
		}
	}

	src := &axe.Source{
		Path:     cfg.AxeScript,
		URL:      cfg.AxeURL,
		CacheDir: filepath.Join(config.XDGCacheDir(), "axe"),
		Logger:   logger,
	}
	script, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load axe-core: %w", err)
	}

	env := &runEnv{cfg: cfg, logger: logger, script: script}
	env.store = openSessionStore(cfg, logger)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	out, closeOut, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return nil, err
	}
	defer closeOut()

	bp := pipeline.NewBatchProcessor(env.newPipeline,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	reports := make([]*model.RunReport, len(cfg.Targets))
	var mu sync.Mutex
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(report *model.RunReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = report
		if len(cfg.Targets) > 1 {
			fmt.Fprintf(os.Stderr, "[%d/%d] Run completed: %s\n", index+1, len(cfg.Targets), report.Target)
		}

		if err := outputReport(cfg, report, out); err != nil {
			logger.Error("report failed", "target", report.Target, "error", err)
		}
		if err := saveRunReport(ctx, db, report, logger); err != nil {
			logger.Error("failed to save run report", "target", report.Target, "error", err)
		}
	})
	logger.Info("run completed", "elapsed", time.Since(startTime).Round(time.Millisecond))

	return compactReports(reports), err
}

// compactReports drops the slots of targets that never started.
func compactReports(reports []*model.RunReport) []*model.RunReport {
	out := reports[:0]
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// openSessionStore returns the encrypted session store, or nil when
// persistence is disabled or no passphrase is configured.
func openSessionStore(cfg *config.Config, logger *slog.Logger) *session.Store {
	if !cfg.SessionCache {
		return nil
	}
	store, err := session.NewStore(sessionDir(), cfg.SessionKey)
	if err != nil {
		if errors.Is(err, session.ErrNoPassphrase) {
			logger.Debug("session cache disabled", "reason", err)
		} else {
			logger.Warn("session cache disabled", "error", err)
		}
		return nil
	}
	return store
}

// sessionDir is where sealed sessions are kept.
func sessionDir() string {
	return filepath.Join(config.XDGCacheDir(), "sessions")
}

// newPipeline starts a browser for report.Target and builds its pipeline.
// It implements pipeline.Factory.
func (e *runEnv) newPipeline(ctx context.Context, report *model.RunReport) (*pipeline.Pipeline, func(), error) {
	t, err := e.cfg.ResolveTarget(report.Target)
	if err != nil {
		return nil, nil, err
	}
	report.IncludedImpacts = t.Impacts.Names()

	logger := e.logger.With("target", t.BaseURL)

	chrome, err := browser.NewChrome(ctx, t.BaseURL,
		browser.WithLogger(logger),
		browser.WithTimeout(e.cfg.Timeout),
		browser.WithExecPath(e.cfg.ChromePath),
		browser.WithHeadful(e.cfg.Headful),
		browser.WithUserAgent(e.cfg.UserAgent),
		browser.WithWindowSize(config.DefaultWindowWidth, config.DefaultWindowHeight),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	cleanup := func() {
		if err := chrome.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}

	scanner := axe.NewScanner(chrome, e.script, axe.WithLogger(logger))

	form := session.LoginForm{
		Path:             t.Login.Path,
		UsernameSelector: t.Login.UsernameSelector,
		PasswordSelector: t.Login.PasswordSelector,
		SubmitSelector:   t.Login.SubmitSelector,
	}.WithDefaults()
	login := session.NewLogin(chrome, form,
		session.WithLoginLogger(logger),
		session.WithWaitTimeout(e.cfg.Timeout),
	)
	var auth session.Authenticator = login
	if e.store != nil {
		auth = session.NewPersistent(chrome, login, e.store, t.BaseURL,
			session.WithPersistentLogger(logger))
	}

	runner := scenario.New(chrome, scanner,
		scenario.WithLogger(logger),
		scenario.WithImpactFilter(t.Impacts),
		scenario.WithAuthenticator(auth, session.Credentials{
			Username: t.Login.Username,
			Password: e.cfg.Password,
		}),
		scenario.WithRootTitle(t.RootTitle),
		scenario.WithRootCharset(t.RootCharset),
		scenario.WithRootRequiresAuth(t.RootRequiresAuth),
		scenario.WithStatusPolicy(scenario.StatusPolicy(t.StatusPolicy)),
		scenario.WithLoginPage(login.OnLoginPage),
	)

	p := pipeline.DefaultPipeline(runner, t.Groups,
		[]pipeline.Option{pipeline.WithLogger(logger)},
		pipeline.WithPipelineSkipRootChecks(t.SkipRootChecks),
		pipeline.WithPipelineAuditOptions(pipeline.WithAuditLogger(logger)),
	)
	return p, cleanup, nil
}

// saveRunReport saves the run report to the database if enabled.
// If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *database.HistoryDB, report *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveRunReport(ctx, report)
	if err != nil {
		return err
	}

	logger.Info("run report saved to database", "target", report.Target, "id", id)
	return nil
}
