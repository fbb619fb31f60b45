// Package resilience guards calls to external job sources.
//
// Each source gets a Guard combining a token-bucket rate limiter, jittered
// exponential backoff for throttling and server errors, and a three-state
// circuit breaker with exponential cooldown. A Registry owns one Guard per
// source id and exposes breaker snapshots for run summaries.
package resilience
