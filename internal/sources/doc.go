// Package sources fetches raw job postings from external boards.
//
// Each board kind implements Adapter and is looked up through a Registry.
// Adapters share a Client that honors robots.txt, routes every request
// through the source's resilience.Guard, takes a slot from the global
// request budget, applies the per-request timeout, and decodes non-UTF-8
// HTML. A malformed listing becomes a ParseError on its page; the rest of
// the page is kept.
package sources
