// Package daemon runs jobsieve as a long-lived scheduler.
//
// It wires the ingest coordinator and the integrity manager into cron
// schedules, holds a flock on the data directory so only one instance writes
// to the database, and stops by soft-stopping the in-flight run and waiting
// for scheduled jobs to return. Scheduled work itself lives in the ingest and
// integrity packages; the daemon only decides when it runs.
package daemon
