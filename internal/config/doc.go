// Package config loads, normalizes, and validates jobsieve configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file when present, and honours
// environment fallbacks such as ADZUNA_APP_KEY. The Config type centralizes
// every knob the daemon and CLI need: source definitions, rate-limit and
// breaker thresholds, scoring weights, ghost heuristics, and the integrity and
// backup schedule.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, inherited per-source limits, and clear validation errors.
package config
