package testsupport

import (
	"path/filepath"
	"testing"

	"vidqueue/internal/config"
)

// ConfigOption adjusts a test config after the temp layout is applied.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory, with metrics
// and notifications off and encoder timeouts short enough for supervision
// tests.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputRoot = filepath.Join(base, "output")
	cfg.Encoder.ProbeTimeoutSeconds = 5
	cfg.Encoder.LivenessTimeoutSeconds = 10
	cfg.Encoder.GracePeriodSeconds = 1
	cfg.Metrics.Bind = ""
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithStateBackend selects the snapshot backend.
func WithStateBackend(backend string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.State.Backend = backend
	}
}

// WithEncoderScripts installs shell scripts as the ffmpeg and ffprobe binaries.
func WithEncoderScripts(ffmpegBody, ffprobeBody string) ConfigOption {
	return func(t testing.TB, base string, cfg *config.Config) {
		bin := filepath.Join(base, "bin")
		cfg.Encoder.FFmpegBinary = WriteScript(t, filepath.Join(bin, "ffmpeg"), ffmpegBody)
		cfg.Encoder.FFprobeBinary = WriteScript(t, filepath.Join(bin, "ffprobe"), ffprobeBody)
	}
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
