// Package ingest runs ingestion cycles across all enabled sources.
//
// Coordinator.RunOnce schedules each enabled source once on a bounded worker
// pool. Workers fetch through the shared sources.Client, which enforces the
// per-source guards and a global in-flight request budget. Fetched pages flow
// over a channel to a single writer goroutine, the only place jobs are
// written; pages of one source are written in fetch order.
//
// When the run timeout or shutdown arrives, adapters are asked to stop after
// their current page and get a grace period before their context is
// cancelled. Pages already fetched are still written.
//
// A run refuses to start when the store's startup integrity check failed.
// Dry runs classify postings with read-only lookups and write nothing.
package ingest
