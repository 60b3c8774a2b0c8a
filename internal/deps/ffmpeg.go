package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CheckEncoder reports whether ffmpeg lists codec among its encoders. The
// configured video codec has to be compiled in (libx265 is not in every
// build), so a missing binary and a missing encoder are both reported here.
func CheckEncoder(ctx context.Context, ffmpegBinary, codec string) Status {
	codec = strings.TrimSpace(codec)
	result := Status{Requirement: Requirement{
		Name:        "Encoder " + codec,
		Command:     ffmpegBinary,
		Description: "Video encoder used for compression",
	}}
	if codec == "" {
		result.Detail = "no video codec configured"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, ffmpegBinary, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if !encoderListed(out, codec) {
		result.Detail = fmt.Sprintf("ffmpeg was built without %s", codec)
		return result
	}
	result.Available = true
	return result
}

// encoderListed scans `ffmpeg -encoders` output, whose rows look like
// " V....D libx265              libx265 H.265 / HEVC". Rows before the
// " ------" separator are the flag legend.
func encoderListed(output []byte, codec string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !listing {
			listing = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		if fields[1] == codec {
			return true
		}
	}
	return false
}
