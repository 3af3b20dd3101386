// Package model defines the core data structures used throughout a11yscan.
//
// This package contains the following main types:
//   - Route and RouteGroup: the page paths that are checked
//   - Impact and ImpactFilter: axe-core severity levels and the audit filter
//   - Violation: a single accessibility rule failure reported by axe-core
//   - CheckResult: the outcome of one independent check
//   - RunReport and Summary: the result of one run against one target
//   - AssertionError: the single failure kind raised by checks
//
// Models live in their own package so that the runner, storage and report
// packages can share them without import cycles. All types serialize to
// JSON for report output and database storage.
package model
