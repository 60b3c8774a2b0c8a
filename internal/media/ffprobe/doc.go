// Package ffprobe wraps the ffprobe binary.
//
// Duration runs the cheap single-value probe used before every encode to obtain
// the progress denominator. Inspect decodes the full JSON stream/format report
// and is used when validating candidate source files.
package ffprobe
