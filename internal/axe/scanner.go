package axe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/a11yscan/internal/model"
)

// ErrNotInjected is returned when axe is not available after injection.
var ErrNotInjected = errors.New("axe-core is not available in the page")

// Evaluator runs JavaScript in the current page.
// browser.Browser satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, res any) error
	EvaluateAsync(ctx context.Context, expression string, res any) error
}

// Scanner injects axe-core and runs audits.
type Scanner struct {
	page    Evaluator
	script  string
	logger  *slog.Logger
	options runOptions
}

// runOptions is the subset of axe.run options a11yscan sets.
type runOptions struct {
	ResultTypes []string           `json:"resultTypes"`
	RunOnly     *runOnly           `json:"runOnly,omitempty"`
	Rules       map[string]ruleOpt `json:"rules,omitempty"`
}

type runOnly struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type ruleOpt struct {
	Enabled bool `json:"enabled"`
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTags restricts the audit to rules carrying one of the tags
// (for example "wcag2a", "wcag2aa").
func WithTags(tags ...string) Option {
	return func(s *Scanner) {
		if len(tags) > 0 {
			s.options.RunOnly = &runOnly{Type: "tag", Values: tags}
		}
	}
}

// WithDisabledRules turns individual rules off.
func WithDisabledRules(ids ...string) Option {
	return func(s *Scanner) {
		if len(ids) == 0 {
			return
		}
		if s.options.Rules == nil {
			s.options.Rules = make(map[string]ruleOpt)
		}
		for _, id := range ids {
			s.options.Rules[id] = ruleOpt{Enabled: false}
		}
	}
}

// NewScanner creates a Scanner that injects script into page.
func NewScanner(page Evaluator, script string, opts ...Option) *Scanner {
	s := &Scanner{
		page:    page,
		script:  script,
		logger:  slog.Default(),
		options: runOptions{ResultTypes: []string{"violations"}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const presentExpr = `typeof window.axe === 'object' && typeof window.axe.run === 'function'`

// Inject loads axe-core into the current page unless it is already there.
// A navigation discards it, so Inject is called once per page.
func (s *Scanner) Inject(ctx context.Context) error {
	var present bool
	if err := s.page.Evaluate(ctx, presentExpr, &present); err != nil {
		return fmt.Errorf("failed to probe for axe-core: %w", err)
	}
	if present {
		return nil
	}

	if err := s.page.Evaluate(ctx, s.script+"\n;("+presentExpr+")", &present); err != nil {
		return fmt.Errorf("failed to inject axe-core: %w", err)
	}
	if !present {
		return ErrNotInjected
	}
	s.logger.Debug("axe-core injected")
	return nil
}

// Scan runs axe.run on the document and returns the violations whose
// impact passes filter, in axe-core's order.
func (s *Scanner) Scan(ctx context.Context, filter model.ImpactFilter) ([]model.Violation, error) {
	expr, err := s.runExpression()
	if err != nil {
		return nil, err
	}

	var all []model.Violation
	if err := s.page.EvaluateAsync(ctx, expr, &all); err != nil {
		return nil, fmt.Errorf("axe.run failed: %w", err)
	}

	violations := filter.Filter(all)
	s.logger.Debug("axe scan finished",
		"violations", len(all),
		"qualifying", len(violations),
		"included_impacts", filter.String(),
	)
	return violations, nil
}

// runExpression builds the axe.run call. Node targets are flattened to
// strings because selectors inside shadow roots are nested arrays.
func (s *Scanner) runExpression() (string, error) {
	opts, err := json.Marshal(s.options)
	if err != nil {
		return "", fmt.Errorf("failed to encode axe options: %w", err)
	}
	return `axe.run(document, ` + string(opts) + `).then(function (r) {
  return r.violations.map(function (v) {
    return {
      id: v.id,
      impact: v.impact,
      description: v.description,
      help: v.help,
      helpUrl: v.helpUrl,
      tags: v.tags,
      nodes: v.nodes.map(function (n) {
        return {
          target: n.target.map(function (t) { return Array.isArray(t) ? t.join(' ') : String(t); }),
          html: n.html,
          failureSummary: n.failureSummary || ''
        };
      })
    };
  });
})`, nil
}
