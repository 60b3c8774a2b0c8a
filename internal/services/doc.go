// Package services defines shared utilities consumed by the encode path and the
// queue runner.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, file positions, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and CauseOf which turns
//     an encode error into the closed FailureCause set recorded on a file.
//
// Use these helpers when wiring new encode or queue logic so failure
// classification and observability stay uniform.
package services
