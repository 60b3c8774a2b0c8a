package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vidqueue/internal/procgroup"
)

// waitDelay bounds how long a canceled probe may hold its output pipes open.
const waitDelay = 2 * time.Second

// Result is the subset of `ffprobe -show_format -show_streams -of json`
// output that ingest validation reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type Format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// VideoStreamCount returns how many streams ffprobe classified as video.
func (r Result) VideoStreamCount() int {
	n := 0
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			n++
		}
	}
	return n
}

// Inspect probes path for its container format and streams.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	out, err := probe(ctx, binary, path, "-hide_banner", "-show_format", "-show_streams", "-of", "json")
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: decode output: %w", err)
	}
	return result, nil
}

// Duration returns the container duration of path in seconds. A missing,
// zero, or non-numeric duration is an error so callers decide whether to go
// on without one.
func Duration(ctx context.Context, binary, path string) (float64, error) {
	out, err := probe(ctx, binary, path, "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1")
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	return ParseDuration(string(out))
}

// ParseDuration reads seconds from the first line of a duration probe.
func ParseDuration(output string) (float64, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	line = strings.TrimSpace(line)
	seconds, err := strconv.ParseFloat(line, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, fmt.Errorf("ffprobe duration: unusable value %q", line)
	}
	return seconds, nil
}

func probe(ctx context.Context, binary, path string, args ...string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	argv := append([]string{"-v", "error"}, args...)
	argv = append(argv, "--", path)

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, binary, argv...) //nolint:gosec
	cmd.Stderr = &stderr
	procgroup.Configure(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd) }
	cmd.WaitDelay = waitDelay
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
