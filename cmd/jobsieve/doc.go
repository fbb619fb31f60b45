// Package main hosts the jobsieve CLI entrypoint and command graph.
//
// The Cobra command tree runs ingestion once or as a scheduled daemon, exposes
// integrity checks, snapshots and restores, and lists scored jobs. Config
// resolution, logger construction and store opening live in the command
// context so subcommands only describe what they print.
package main
