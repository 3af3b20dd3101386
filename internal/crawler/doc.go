// Package crawler discovers the routes of the application under test.
//
// # Architecture
//
// The Spider performs a breadth-first crawl from a start URL over plain
// HTTP, following same-origin links only. Depth and page limits bound the
// crawl, and glob patterns exclude paths such as logout links that would
// end the session being crawled with.
//
// # Components
//
//   - Spider: coordinates the crawl and tracks visited URLs
//   - Parser: HTML parser that extracts the title and links of a page
//
// # Usage
//
//	spider := crawler.NewSpider(http.DefaultClient, crawler.WithMaxDepth(2))
//	pages, err := spider.Crawl(ctx, "https://app.example.com/")
//	routes := crawler.Routes(pages)
//
// The crawler does not execute JavaScript. Routes that are only reachable
// through client-side navigation have to be added to the manifest by hand.
package crawler
