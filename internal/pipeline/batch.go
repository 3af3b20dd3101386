package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/a11yscan/internal/model"
)

// Factory builds the pipeline for one target. It may fill report fields
// such as the impact filter, and returns a cleanup function that releases
// the target's browser.
type Factory func(ctx context.Context, report *model.RunReport) (*Pipeline, func(), error)

// BatchProcessor runs the suite against multiple targets concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
// Within one target every check still runs sequentially.
type BatchProcessor struct {
	// factory creates a fresh pipeline for each target.
	factory Factory

	// concurrency is the maximum number of targets run at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed run reports.
	// Access is synchronized via mutex.
	results []*model.RunReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent targets.
// Default is 2 if not specified; every target starts its own browser.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 2,
		results:     make([]*model.RunReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the suite against every target.
// Reports are returned in target order, including reports of targets
// whose browser could not start. The error is non-nil only when the batch
// was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.RunReport, len(targets))
	bp.mu.Unlock()

	err := bp.run(ctx, targets, func(report *model.RunReport, i int) {
		bp.mu.Lock()
		bp.results[i] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback runs the suite against every target and calls
// callback as each target finishes. The callback is called from the
// goroutine that ran the target, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.RunReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	return bp.run(ctx, targets, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, targets []string, done func(*model.RunReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("running target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			report := bp.runTarget(ctx, target)
			done(report, i)

			if report.Failed() {
				bp.logger.Warn("target failed", "target", target)
			} else {
				bp.logger.Info("target passed", "target", target)
			}
			// A failing target must not cancel the others.
			return nil
		})
	}

	return g.Wait()
}

func (bp *BatchProcessor) runTarget(ctx context.Context, target string) *model.RunReport {
	report := model.NewRunReport(target)
	defer report.Finish()

	p, cleanup, err := bp.factory(ctx, report)
	if err != nil {
		bp.logger.Error("failed to prepare target", "target", target, "error", err)
		report.Error = err.Error()
		return report
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := p.Execute(ctx, report); err != nil {
		bp.logger.Warn("run ended early", "target", target, "error", err)
	}
	return report
}
