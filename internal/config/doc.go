// Package config loads, normalizes, and validates vidqueue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// VIDQUEUE_NTFY_TOPIC. The Config type centralizes every knob the queue runner
// and CLI need: where state and logs live, which encoder binaries to drive,
// the default encode settings handed to new projects, and how long a silent
// encoder is tolerated before it is treated as hung.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
