// Package store persists deduplicated jobs and the integrity, backup, and
// ingestion-run records in an embedded SQLite database.
//
// Open applies connection pragmas (WAL, foreign keys, busy timeout,
// synchronous, cache size) on every pooled connection and, for an existing
// file, runs a read-only quick_check before migrations touch it. A failed
// check aborts the open with services.ErrIntegrity so nothing writes to a
// damaged file.
//
// All writes go through a process-wide mutex plus SQLite busy retries;
// exhausting the retries surfaces services.ErrWriteContention. Reads use
// the pool directly and are not blocked by the writer under WAL.
//
// Schema changes are numbered files under migrations/ applied in order.
package store
