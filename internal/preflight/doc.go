// Package preflight provides readiness checks for the filesystem paths and
// external binaries vidqueue depends on.
//
// The checks run in two places:
//   - "vidqueue check" prints every result so a fresh install can be
//     diagnosed before queuing hours of work.
//   - "vidqueue run" refuses to start when a required check fails.
//
// Optional checks (ffprobe without strict probing) are reported but never
// block a run.
package preflight
