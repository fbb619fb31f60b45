// Package integrity verifies the job database and keeps restorable
// snapshots of it.
//
// Manager records the read-only startup check made by store.Open, runs the
// scheduled full check (integrity_check plus foreign_key_check), and takes
// VACUUM INTO snapshots that are verified with quick_check before they are
// recorded. Snapshot files are named jobs-YYYYMMDDTHHMMSSZ.db and pruned to
// the configured retention.
//
// Restore replaces a closed database with a verified snapshot and removes
// stale WAL sidecars.
package integrity
