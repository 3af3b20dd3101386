// Package browser drives a headless Chrome through the DevTools protocol.
//
// The Browser interface is the narrow surface the rest of a11yscan needs:
// navigate to a route and learn the document status, evaluate JavaScript,
// read the title and location, fill and submit forms, and move cookies in
// and out of the browser. Chrome implements it on top of chromedp.
//
// A Chrome instance owns one browser process with a single tab. Routes are
// resolved against the base URL given at construction, so callers pass
// relative paths such as "/cases/1/view/".
//
// Every call is bounded by the configured timeout and by the caller's
// context, whichever ends first. Cancelling a call never closes the tab;
// only Close does.
package browser
