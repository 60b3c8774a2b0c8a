package encoding

import (
	"context"

	"vidqueue/internal/media/ffprobe"
)

// durationProbe is the ffprobe function used by the invoker.
// It is a package-level variable so tests can override it.
var durationProbe = ffprobe.Duration

// SetProbeForTests overrides the duration probe during tests.
func SetProbeForTests(fn func(context.Context, string, string) (float64, error)) func() {
	previous := durationProbe
	durationProbe = fn
	return func() {
		durationProbe = previous
	}
}
