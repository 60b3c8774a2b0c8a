package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vidqueue/internal/config"
	"vidqueue/internal/services"
)

// Status represents the lifecycle of a project or file task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCanceled,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions happen without a retry.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Mode is the queue-level run state.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeRunning   Mode = "running"
	ModePaused    Mode = "paused"
	ModeCanceling Mode = "canceling"
)

// EncodeSettings describes the target codec, quality, and container flags for
// every file in a project. Values are passed through to the encoder untouched.
type EncodeSettings struct {
	VideoCodec     string   `json:"video_codec"`
	Preset         string   `json:"preset,omitempty"`
	CRF            int      `json:"crf"`
	Profile        string   `json:"profile,omitempty"`
	X265Params     string   `json:"x265_params,omitempty"`
	PixelFormat    string   `json:"pixel_format,omitempty"`
	ColorPrimaries string   `json:"color_primaries,omitempty"`
	ColorTransfer  string   `json:"color_transfer,omitempty"`
	ColorSpace     string   `json:"color_space,omitempty"`
	Tag            string   `json:"tag,omitempty"`
	MovFlags       string   `json:"movflags,omitempty"`
	AudioCodec     string   `json:"audio_codec,omitempty"`
	AudioBitrate   string   `json:"audio_bitrate,omitempty"`
	ExtraArgs      []string `json:"extra_args,omitempty"`
}

// Validate reports the first setting the encoder could not run with.
func (s EncodeSettings) Validate() error {
	switch {
	case strings.TrimSpace(s.VideoCodec) == "":
		return errors.New("video codec is required")
	case s.CRF < 0 || s.CRF > 51:
		return fmt.Errorf("crf must be between 0 and 51, got %d", s.CRF)
	case strings.TrimSpace(s.PixelFormat) == "":
		return errors.New("pixel format is required")
	case strings.TrimSpace(s.AudioCodec) == "":
		return errors.New("audio codec is required")
	}
	for i, arg := range s.ExtraArgs {
		switch strings.TrimSpace(arg) {
		case "":
			return fmt.Errorf("extra arg %d is empty", i)
		case "-i":
			return fmt.Errorf("extra arg %d: additional inputs are not allowed", i)
		}
	}
	return nil
}

// SettingsFromConfig copies the configured defaults into a project-owned value.
func SettingsFromConfig(s config.Settings) EncodeSettings {
	settings := EncodeSettings{
		VideoCodec:     s.VideoCodec,
		Preset:         s.Preset,
		CRF:            s.CRF,
		Profile:        s.Profile,
		X265Params:     s.X265Params,
		PixelFormat:    s.PixelFormat,
		ColorPrimaries: s.ColorPrimaries,
		ColorTransfer:  s.ColorTransfer,
		ColorSpace:     s.ColorSpace,
		Tag:            s.Tag,
		MovFlags:       s.MovFlags,
		AudioCodec:     s.AudioCodec,
		AudioBitrate:   s.AudioBitrate,
	}
	if len(s.ExtraArgs) > 0 {
		settings.ExtraArgs = append([]string(nil), s.ExtraArgs...)
	}
	return settings
}

// FileResult captures the outcome of one encode attempt.
type FileResult struct {
	OriginalSizeBytes   int64                 `json:"original_size_bytes"`
	CompressedSizeBytes int64                 `json:"compressed_size_bytes"`
	BytesSaved          int64                 `json:"bytes_saved"`
	PercentReduction    float64               `json:"percent_reduction"`
	DurationSeconds     float64               `json:"duration_seconds"`
	Cause               services.FailureCause `json:"cause,omitempty"`
	Message             string                `json:"message,omitempty"`
}

// Duration returns the wall time spent processing the file.
func (r FileResult) Duration() time.Duration {
	return time.Duration(r.DurationSeconds * float64(time.Second))
}

// FileTask is one source-to-destination compression unit.
type FileTask struct {
	SourcePath      string      `json:"source_path"`
	DestinationPath string      `json:"destination_path"`
	Status          Status      `json:"status"`
	Progress        float64     `json:"progress"`
	Result          *FileResult `json:"result,omitempty"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// Reset returns the task to Pending for a fresh attempt.
func (f *FileTask) Reset() {
	f.Status = StatusPending
	f.Progress = 0
	f.Result = nil
	f.StartedAt = nil
	f.CompletedAt = nil
}

// Project is a batch of files compressed with shared settings.
type Project struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Files       []FileTask     `json:"files"`
	Settings    EncodeSettings `json:"settings"`
	OutputRoot  string         `json:"output_root"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to observers.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Files = make([]FileTask, len(p.Files))
	for i, file := range p.Files {
		cp.Files[i] = file
		if file.Result != nil {
			result := *file.Result
			cp.Files[i].Result = &result
		}
		cp.Files[i].StartedAt = cloneTime(file.StartedAt)
		cp.Files[i].CompletedAt = cloneTime(file.CompletedAt)
	}
	if len(p.Settings.ExtraArgs) > 0 {
		cp.Settings.ExtraArgs = append([]string(nil), p.Settings.ExtraArgs...)
	}
	cp.StartedAt = cloneTime(p.StartedAt)
	cp.CompletedAt = cloneTime(p.CompletedAt)
	return &cp
}

// FileCounts tallies file statuses within a project.
type FileCounts struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Canceled   int
}

// Finished returns the number of files that reached a terminal state.
func (c FileCounts) Finished() int {
	return c.Completed + c.Failed + c.Canceled
}

// Counts tallies the project's file statuses.
func (p *Project) Counts() FileCounts {
	counts := FileCounts{Total: len(p.Files)}
	for _, file := range p.Files {
		switch file.Status {
		case StatusProcessing:
			counts.Processing++
		case StatusCompleted:
			counts.Completed++
		case StatusFailed:
			counts.Failed++
		case StatusCanceled:
			counts.Canceled++
		default:
			counts.Pending++
		}
	}
	return counts
}

// Progress returns finished files over total, refined by the fraction of the
// file currently processing.
func (p *Project) Progress() float64 {
	if len(p.Files) == 0 {
		return 0
	}
	counts := p.Counts()
	done := float64(counts.Finished())
	for _, file := range p.Files {
		if file.Status == StatusProcessing {
			done += clampFraction(file.Progress)
			break
		}
	}
	return done / float64(len(p.Files))
}

// DeriveStatus computes a project's status from its files: Completed when every
// file completed, Failed when at least one failed and nothing is left to run,
// Canceled when any file was canceled before finishing, otherwise Pending or
// Processing.
func DeriveStatus(files []FileTask) Status {
	var pending, processing, failed, canceled int
	for _, file := range files {
		switch file.Status {
		case StatusProcessing:
			processing++
		case StatusFailed:
			failed++
		case StatusCanceled:
			canceled++
		case StatusCompleted:
		default:
			pending++
		}
	}
	switch {
	case processing > 0:
		return StatusProcessing
	case pending > 0:
		return StatusPending
	case canceled > 0:
		return StatusCanceled
	case failed > 0:
		return StatusFailed
	default:
		return StatusCompleted
	}
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
