// Package events publishes pipeline lifecycle events to pluggable sinks.
//
// The coordinator emits scrape_started and scrape_completed per source and
// new_job or job_updated per written posting. A Bus fans each event out to
// its sinks: the structured log, an in-memory Recorder used by tests and the
// CLI, and optionally a Redis pub/sub channel carrying JSON payloads.
//
// Publishing is best effort. A failing sink is logged and never stops the
// pipeline.
package events
