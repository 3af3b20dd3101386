// Package scenario runs the page-verification checks against the
// application under test.
//
// A Runner owns one browser page for the whole run. The root checks load
// "/" and assert document properties (the window exposes top, the charset
// is UTF-8, the title names the dashboard). The accessibility audit visits
// each route of a group in order, injects axe-core, and asserts that no
// violation of an included impact is present. Every check produces its own
// model.CheckResult; a failing route never stops the routes after it.
//
// Routes that require authentication share one session. It is established
// through the configured authenticator the first time such a route is
// visited and reused for the rest of the run.
package scenario
