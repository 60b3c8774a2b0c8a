package encoding

import (
	"strconv"
	"strings"

	"vidqueue/internal/queue"
)

// BuildArgs maps EncodeSettings to ffmpeg arguments. Empty settings are
// skipped; the destination is always the final argument.
func BuildArgs(src, dst string, settings queue.EncodeSettings) []string {
	args := []string{"-hide_banner", "-y", "-i", src}

	add := func(flag, value string) {
		if value = strings.TrimSpace(value); value != "" {
			args = append(args, flag, value)
		}
	}

	add("-c:v", settings.VideoCodec)
	add("-profile:v", settings.Profile)
	add("-preset", settings.Preset)
	if settings.CRF >= 0 {
		args = append(args, "-crf", strconv.Itoa(settings.CRF))
	}
	add("-pix_fmt", settings.PixelFormat)
	add("-x265-params", settings.X265Params)
	add("-color_primaries", settings.ColorPrimaries)
	add("-color_trc", settings.ColorTransfer)
	add("-colorspace", settings.ColorSpace)
	add("-tag:v", settings.Tag)
	add("-movflags", settings.MovFlags)
	add("-c:a", settings.AudioCodec)
	add("-b:a", settings.AudioBitrate)

	for _, extra := range settings.ExtraArgs {
		if extra = strings.TrimSpace(extra); extra != "" {
			args = append(args, extra)
		}
	}
	return append(args, dst)
}
