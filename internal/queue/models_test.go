package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidqueue/internal/config"
	"vidqueue/internal/queue"
)

func files(statuses ...queue.Status) []queue.FileTask {
	out := make([]queue.FileTask, len(statuses))
	for i, status := range statuses {
		out[i] = queue.FileTask{SourcePath: "in", DestinationPath: "out", Status: status}
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		files []queue.FileTask
		want  queue.Status
	}{
		{"all completed", files(queue.StatusCompleted, queue.StatusCompleted), queue.StatusCompleted},
		{"one failed", files(queue.StatusCompleted, queue.StatusFailed, queue.StatusCompleted), queue.StatusFailed},
		{"canceled midway", files(queue.StatusCompleted, queue.StatusCanceled, queue.StatusCanceled), queue.StatusCanceled},
		{"failed and canceled", files(queue.StatusFailed, queue.StatusCanceled), queue.StatusCanceled},
		{"still pending", files(queue.StatusFailed, queue.StatusPending), queue.StatusPending},
		{"processing wins", files(queue.StatusProcessing, queue.StatusPending), queue.StatusProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queue.DeriveStatus(tt.files))
		})
	}
}

func TestProjectProgressAndCounts(t *testing.T) {
	project := &queue.Project{Files: files(queue.StatusCompleted, queue.StatusFailed, queue.StatusProcessing, queue.StatusPending)}
	project.Files[2].Progress = 0.5

	counts := project.Counts()
	assert.Equal(t, 4, counts.Total)
	assert.Equal(t, 2, counts.Finished())
	assert.Equal(t, 1, counts.Processing)
	assert.Equal(t, 1, counts.Pending)
	assert.InDelta(t, 2.5/4, project.Progress(), 1e-9)

	empty := &queue.Project{}
	assert.Zero(t, empty.Progress())
}

func TestCloneIsDeep(t *testing.T) {
	project := &queue.Project{
		ID:       "p1",
		Files:    files(queue.StatusCompleted),
		Settings: queue.EncodeSettings{ExtraArgs: []string{"-an"}},
	}
	project.Files[0].Result = &queue.FileResult{BytesSaved: 10}

	clone := project.Clone()
	clone.Files[0].Result.BytesSaved = 99
	clone.Files[0].Status = queue.StatusFailed
	clone.Settings.ExtraArgs[0] = "-vn"

	assert.Equal(t, int64(10), project.Files[0].Result.BytesSaved)
	assert.Equal(t, queue.StatusCompleted, project.Files[0].Status)
	assert.Equal(t, "-an", project.Settings.ExtraArgs[0])
}

func TestComputeSizeMetrics(t *testing.T) {
	m := queue.ComputeSizeMetrics(1_000_000_000, 250_000_000)
	assert.Equal(t, int64(750_000_000), m.BytesSaved)
	assert.InDelta(t, 75.0, m.PercentReduction, 1e-9)

	zero := queue.ComputeSizeMetrics(0, 100)
	assert.Zero(t, zero.PercentReduction)
	assert.Equal(t, int64(-100), zero.BytesSaved)

	var result queue.FileResult
	m.Apply(&result)
	assert.Equal(t, int64(1_000_000_000), result.OriginalSizeBytes)
	assert.Equal(t, int64(250_000_000), result.CompressedSizeBytes)
}

func TestParseStatusAndSettingsFromConfig(t *testing.T) {
	status, ok := queue.ParseStatus(" Completed ")
	require.True(t, ok)
	assert.Equal(t, queue.StatusCompleted, status)
	_, ok = queue.ParseStatus("review")
	assert.False(t, ok)
	assert.True(t, queue.StatusCanceled.IsTerminal())
	assert.False(t, queue.StatusProcessing.IsTerminal())

	defaults := config.Default()
	defaults.Settings.ExtraArgs = []string{"-map", "0"}
	settings := queue.SettingsFromConfig(defaults.Settings)
	assert.Equal(t, "libx265", settings.VideoCodec)
	assert.Equal(t, 12, settings.CRF)
	defaults.Settings.ExtraArgs[0] = "changed"
	assert.Equal(t, "-map", settings.ExtraArgs[0])
}

func TestEncodeSettingsValidate(t *testing.T) {
	valid := queue.SettingsFromConfig(config.Default().Settings)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*queue.EncodeSettings)
		want   string
	}{
		{"no codec", func(s *queue.EncodeSettings) { s.VideoCodec = " " }, "video codec"},
		{"negative crf", func(s *queue.EncodeSettings) { s.CRF = -1 }, "crf"},
		{"crf too high", func(s *queue.EncodeSettings) { s.CRF = 52 }, "crf"},
		{"no pixel format", func(s *queue.EncodeSettings) { s.PixelFormat = "" }, "pixel format"},
		{"no audio codec", func(s *queue.EncodeSettings) { s.AudioCodec = "" }, "audio codec"},
		{"blank extra arg", func(s *queue.EncodeSettings) { s.ExtraArgs = []string{"-map", " "} }, "extra arg 1"},
		{"second input", func(s *queue.EncodeSettings) { s.ExtraArgs = []string{"-i", "other.mov"} }, "inputs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := valid
			tt.mutate(&settings)
			err := settings.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	edge := valid
	edge.CRF = 0
	assert.NoError(t, edge.Validate())
	edge.CRF = 51
	assert.NoError(t, edge.Validate())
}
