package preflight

import (
	"context"

	"vidqueue/internal/config"
	"vidqueue/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// minFreeBytes is the free space below which the output root is reported as
// failing. Compressed output is usually a fraction of the source, so this
// only catches a volume that is effectively full.
const minFreeBytes = 1 << 30

// RunAll executes every readiness check for cfg: directory access for the
// output, state, and log directories, free space on the output volume, the
// external binaries, and the configured video encoder.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output root", cfg.Paths.OutputRoot),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Output volume", cfg.Paths.OutputRoot, minFreeBytes),
	}

	binaries := deps.CheckBinaries(deps.Requirements(cfg))
	ffmpegFound := false
	for _, status := range binaries {
		results = append(results, fromStatus(status))
		if status.Name == "FFmpeg" && status.Available {
			ffmpegFound = true
			results = append(results, fromStatus(deps.CheckEncoder(ctx, status.Command, cfg.Settings.VideoCodec)))
		}
	}
	if !ffmpegFound {
		results = append(results, Result{
			Name:   "Encoder " + cfg.Settings.VideoCodec,
			Detail: "skipped (ffmpeg unavailable)",
		})
	}
	return results
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

func fromStatus(status deps.Status) Result {
	detail := status.Detail
	if status.Available && detail == "" {
		detail = status.Command
	}
	return Result{
		Name:     status.Name,
		Passed:   status.Available,
		Optional: status.Optional,
		Detail:   detail,
	}
}
