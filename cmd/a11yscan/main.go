// Package main provides the entry point for the a11yscan CLI.
//
// a11yscan drives a headless Chrome through the pages of a web application,
// logs in once for the routes that need a session, and runs axe-core on
// every page. Any accessibility violation of an included impact fails the run.
//
// Usage:
//
//	a11yscan run https://app.example.com
//	a11yscan compare https://app.example.com
//
// See --help for all available options.
package main

// main is the entry point for a11yscan.
func main() {
	Execute()
}
