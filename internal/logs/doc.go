// Package logs reads the daemon log file for `jobsieve logs`.
//
// Tail returns the last lines of the log or everything written after a byte
// offset, optionally waiting for new lines, so the CLI can follow a running
// daemon with bounded memory. A Filter narrows output to one run, source or
// event type and understands both the console and JSON log formats.
package logs
