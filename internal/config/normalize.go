package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeSettings()
	c.normalizeIngest()
	c.normalizeState()
	c.normalizeNotifications()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.OutputRoot, err = expandPath(strings.TrimSpace(c.Paths.OutputRoot)); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Encoder.ProbeTimeoutSeconds == 0 {
		c.Encoder.ProbeTimeoutSeconds = defaultProbeTimeout
	}
	if c.Encoder.LivenessTimeoutSeconds == 0 {
		c.Encoder.LivenessTimeoutSeconds = defaultLivenessTimeout
	}
	if c.Encoder.GracePeriodSeconds == 0 {
		c.Encoder.GracePeriodSeconds = defaultGracePeriod
	}
}

func (c *Config) normalizeSettings() {
	s := &c.Settings
	s.VideoCodec = strings.TrimSpace(s.VideoCodec)
	if s.VideoCodec == "" {
		s.VideoCodec = Default().Settings.VideoCodec
	}
	s.Preset = strings.TrimSpace(s.Preset)
	s.Profile = strings.TrimSpace(s.Profile)
	s.X265Params = strings.TrimSpace(s.X265Params)
	s.PixelFormat = strings.TrimSpace(s.PixelFormat)
	if s.PixelFormat == "" {
		s.PixelFormat = Default().Settings.PixelFormat
	}
	s.AudioCodec = strings.TrimSpace(s.AudioCodec)
	if s.AudioCodec == "" {
		s.AudioCodec = Default().Settings.AudioCodec
	}
	s.AudioBitrate = strings.TrimSpace(s.AudioBitrate)
	if len(s.ExtraArgs) > 0 {
		args := make([]string, 0, len(s.ExtraArgs))
		for _, arg := range s.ExtraArgs {
			if arg = strings.TrimSpace(arg); arg != "" {
				args = append(args, arg)
			}
		}
		s.ExtraArgs = args
	}
}

func (c *Config) normalizeIngest() {
	exts := make([]string, 0, len(c.Ingest.Extensions))
	seen := make(map[string]struct{}, len(c.Ingest.Extensions))
	for _, ext := range c.Ingest.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Ingest.Extensions = exts
	c.Ingest.OutputSuffix = strings.Trim(strings.TrimSpace(c.Ingest.OutputSuffix), "_")
	if c.Ingest.OutputSuffix == "" {
		c.Ingest.OutputSuffix = defaultOutputSuffix
	}
}

func (c *Config) normalizeState() {
	if value, ok := os.LookupEnv("VIDQUEUE_STATE_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.State.Backend = value
	}
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if c.State.Backend == "" {
		c.State.Backend = defaultStateBackend
	}
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("VIDQUEUE_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
