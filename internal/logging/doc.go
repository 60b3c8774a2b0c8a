// Package logging assembles structured slog loggers and formatting helpers used
// across vidqueue.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so encode and queue code can tag
// log lines with project IDs, file positions, and stages. The package also
// provides a no-op logger for tests and wiring code that cannot fail, and a
// progress sampler that keeps per-line encoder progress out of the log.
package logging
