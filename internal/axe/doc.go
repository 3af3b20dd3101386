// Package axe runs the axe-core accessibility engine inside a browser page.
//
// axe-core is JavaScript; a11yscan does not implement any accessibility
// rules itself. Source locates the axe.min.js script (a local file, or a
// download cached under the XDG cache directory), Scanner injects it into
// the current page and runs axe.run against the whole document.
//
// Results are decoded into model.Violation values and filtered by impact in
// Go, so the same includedImpacts semantics apply whatever axe version is
// loaded.
package axe
