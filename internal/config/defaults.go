package config

const (
	defaultStateDir        = "~/.local/share/vidqueue"
	defaultLogDir          = "~/.local/share/vidqueue/logs"
	defaultOutputRoot      = "~/Videos/compressed"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultProbeTimeout    = 30
	defaultLivenessTimeout = 300
	defaultGracePeriod     = 5
	defaultStateBackend    = "json"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultOutputSuffix    = "compressed"
	defaultNotifyTimeout   = 10
)

var defaultExtensions = []string{".mov", ".mp4"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			OutputRoot: defaultOutputRoot,
		},
		Encoder: Encoder{
			FFmpegBinary:           defaultFFmpegBinary,
			FFprobeBinary:          defaultFFprobeBinary,
			ProbeTimeoutSeconds:    defaultProbeTimeout,
			LivenessTimeoutSeconds: defaultLivenessTimeout,
			GracePeriodSeconds:     defaultGracePeriod,
		},
		Settings: Settings{
			VideoCodec:     "libx265",
			Preset:         "medium",
			CRF:            12,
			Profile:        "main10",
			X265Params:     "profile=main10",
			PixelFormat:    "yuv420p10le",
			ColorPrimaries: "bt709",
			ColorTransfer:  "bt709",
			ColorSpace:     "bt709",
			Tag:            "hvc1",
			MovFlags:       "+faststart",
			AudioCodec:     "aac",
			AudioBitrate:   "320k",
		},
		Ingest: Ingest{
			Extensions:   append([]string(nil), defaultExtensions...),
			Recursive:    true,
			OutputSuffix: defaultOutputSuffix,
		},
		State: State{
			Backend: defaultStateBackend,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Project:        true,
			Queue:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
