// Package encoding supervises the external encoder for one file at a time.
//
// Invoker probes the source duration, spawns a single ffmpeg process in its own
// process group, parses `time=HH:MM:SS.ff` progress from stderr into monotonic
// fractions, and enforces a liveness timeout. Cancellation escalates from
// SIGTERM to SIGKILL after a grace period and removes any partial output.
// Success requires a zero exit status and a non-empty destination file.
//
// FileRunner wraps the invoker for a queue.FileTask: it moves the task through
// Processing into a terminal status and records size-delta metrics measured
// from the files on disk.
package encoding
