// Package services defines shared utilities consumed by the ingestion
// pipeline, the storage layer and the source adapters.
//
// Key responsibilities:
//   - Context helpers that stamp source identifiers and run identifiers for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the pipeline's error taxonomy (retryable, isolated, fatal).
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
