package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"vidqueue/internal/config"
)

// Requirement is an external binary the encode pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional requirements only degrade behavior when missing.
	Optional bool
}

// Status is a Requirement after lookup. Command holds the resolved path when
// Available, and Detail explains any failure.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Requirements lists the binaries the configured encoder needs. ffprobe is
// optional unless strict probing is on, since a missing probe only costs the
// progress denominator.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Encoder.FFmpegBinary, Description: "Encodes every queued file"},
		{
			Name:        "FFprobe",
			Command:     cfg.Encoder.FFprobeBinary,
			Description: "Reads source duration for progress and validates input files",
			Optional:    !cfg.Encoder.StrictProbe,
		},
	}
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		statuses[i] = lookup(req)
	}
	return statuses
}

func lookup(req Requirement) Status {
	st := Status{Requirement: req}
	if req.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	resolved, err := exec.LookPath(req.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return st
	}
	st.Command = resolved
	st.Available = true
	return st
}
