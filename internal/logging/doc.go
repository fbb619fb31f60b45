// Package logging builds the structured slog loggers used across jobsieve.
//
// It owns the console and JSON handlers, standard field keys, and helpers
// that tag log lines with the source, run, and correlation identifiers
// carried on a context. WarnWithContext and ErrorWithContext enforce the
// event_type / error_hint / impact triple on operator-facing problems.
package logging
