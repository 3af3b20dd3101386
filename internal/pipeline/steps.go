package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/scenario"
)

// RootCheckStep runs one check of the root document.
type RootCheckStep struct {
	runner *scenario.Runner
	check  scenario.RootCheck
}

// NewRootCheckStep creates a step for check.
func NewRootCheckStep(runner *scenario.Runner, check scenario.RootCheck) *RootCheckStep {
	return &RootCheckStep{runner: runner, check: check}
}

// Name returns the step name.
func (s *RootCheckStep) Name() string {
	return "root: " + s.check.Name
}

// Do executes the check and records its result.
func (s *RootCheckStep) Do(ctx context.Context, report *model.RunReport) error {
	report.AddResult(s.runner.RunRootCheck(ctx, s.check))
	recordSession(s.runner, report)
	return nil
}

// AuditStep audits every route of a group.
type AuditStep struct {
	runner *scenario.Runner
	group  model.RouteGroup
	logger *slog.Logger
}

// AuditStepOption configures an AuditStep.
type AuditStepOption func(*AuditStep)

// WithAuditLogger sets a custom logger for the audit step.
func WithAuditLogger(logger *slog.Logger) AuditStepOption {
	return func(s *AuditStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAuditStep creates an audit step for group.
func NewAuditStep(runner *scenario.Runner, group model.RouteGroup, opts ...AuditStepOption) *AuditStep {
	s := &AuditStep{
		runner: runner,
		group:  group,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *AuditStep) Name() string {
	return "audit: " + strings.ReplaceAll(s.group.Name, " ", "-")
}

// Do audits the group's routes and records one result per route.
func (s *AuditStep) Do(ctx context.Context, report *model.RunReport) error {
	failed := 0
	for _, res := range s.runner.AuditGroup(ctx, s.group) {
		if res.Status.IsFailure() {
			failed++
		}
		report.AddResult(res)
	}
	recordSession(s.runner, report)

	s.logger.Info("route group audited",
		"group", s.group.Name,
		"routes", s.group.Len(),
		"failed", failed,
	)
	return nil
}

func recordSession(runner *scenario.Runner, report *model.RunReport) {
	if runner.SessionEstablished() {
		report.SessionEstablished = true
		report.SessionRestored = runner.SessionRestored()
	}
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// SkipRootChecks leaves out the window, document and title checks.
	SkipRootChecks bool

	// AuditOptions are passed to every audit step.
	AuditOptions []AuditStepOption
}

// DefaultPipelineOption configures the default pipeline.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSkipRootChecks leaves out the root document checks.
func WithPipelineSkipRootChecks(skip bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SkipRootChecks = skip
	}
}

// WithPipelineAuditOptions sets options for the audit steps.
func WithPipelineAuditOptions(opts ...AuditStepOption) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.AuditOptions = append(c.AuditOptions, opts...)
	}
}

// DefaultPipeline creates a pipeline with the root checks followed by one
// audit step per non-empty route group, in the order given.
// The pipeline continues on error so every check produces a result.
func DefaultPipeline(runner *scenario.Runner, groups []model.RouteGroup, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(append([]Option{WithContinueOnError(true)}, pipelineOpts...)...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	if !cfg.SkipRootChecks {
		for _, check := range runner.RootChecks() {
			p.AddStep(NewRootCheckStep(runner, check))
		}
	}
	for _, g := range groups {
		if g.Len() == 0 {
			continue
		}
		p.AddStep(NewAuditStep(runner, g, cfg.AuditOptions...))
	}

	return p
}
