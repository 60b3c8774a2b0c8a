package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	OutputRoot string `toml:"output_root"`
}

// Encoder contains external encoder binaries and supervision timeouts.
type Encoder struct {
	FFmpegBinary           string `toml:"ffmpeg_binary"`
	FFprobeBinary          string `toml:"ffprobe_binary"`
	ProbeTimeoutSeconds    int    `toml:"probe_timeout_seconds"`
	LivenessTimeoutSeconds int    `toml:"liveness_timeout_seconds"`
	GracePeriodSeconds     int    `toml:"grace_period_seconds"`
	StrictProbe            bool   `toml:"strict_probe"`
}

// Settings holds the default encode settings copied onto new projects.
type Settings struct {
	VideoCodec     string   `toml:"video_codec"`
	Preset         string   `toml:"preset"`
	CRF            int      `toml:"crf"`
	Profile        string   `toml:"profile"`
	X265Params     string   `toml:"x265_params"`
	PixelFormat    string   `toml:"pixel_format"`
	ColorPrimaries string   `toml:"color_primaries"`
	ColorTransfer  string   `toml:"color_transfer"`
	ColorSpace     string   `toml:"color_space"`
	Tag            string   `toml:"tag"`
	MovFlags       string   `toml:"movflags"`
	AudioCodec     string   `toml:"audio_codec"`
	AudioBitrate   string   `toml:"audio_bitrate"`
	ExtraArgs      []string `toml:"extra_args"`
}

// Ingest controls how directories are turned into projects.
type Ingest struct {
	Extensions   []string `toml:"extensions"`
	Recursive    bool     `toml:"recursive"`
	OutputSuffix string   `toml:"output_suffix"`
}

// State selects the snapshot persistence backend.
type State struct {
	Backend string `toml:"backend"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Project        bool   `toml:"project"`
	Queue          bool   `toml:"queue"`
	Errors         bool   `toml:"errors"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidqueue.
//
// Configuration sections by subsystem:
//   - Paths: state, log, and output directories
//   - Encoder: ffmpeg/ffprobe binaries and supervision timeouts
//   - Settings: default encode settings for new projects
//   - Ingest: directory scanning and output naming
//   - State: snapshot backend (json, sqlite, pebble)
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus listener
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Encoder       Encoder       `toml:"encoder"`
	Settings      Settings      `toml:"settings"`
	Ingest        Ingest        `toml:"ingest"`
	State         State         `toml:"state"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidqueue/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidqueue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The output root is
// created on a best-effort basis so a missing external drive does not block
// inspecting the queue.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputRoot) != "" {
		_ = os.MkdirAll(c.Paths.OutputRoot, 0o755)
	}
	return nil
}

// ProbeTimeout returns the duration probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Encoder.ProbeTimeoutSeconds) * time.Second
}

// LivenessTimeout returns the maximum silence tolerated from a running encoder.
func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.Encoder.LivenessTimeoutSeconds) * time.Second
}

// GracePeriod returns the wait between terminate and kill on cancellation.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Encoder.GracePeriodSeconds) * time.Second
}

// LockPath returns the single-instance lock file guarding the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "vidqueue.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
