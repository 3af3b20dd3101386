// Package pipeline executes the checks of a run as an ordered list of steps.
//
// Each step receives the run report and appends its check results to it.
// The default pipeline runs the three root document checks followed by one
// accessibility audit step per route group. A failing check is recorded in
// the report and never stops the steps after it; only cancellation does.
//
// BatchProcessor runs the pipeline against several targets concurrently
// with errgroup. Each target gets its own pipeline, browser and session.
package pipeline
