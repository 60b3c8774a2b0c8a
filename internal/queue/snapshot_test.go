package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidqueue/internal/queue"
)

func sampleSnapshot() queue.Snapshot {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	processing := queue.Project{
		ID:        "proj-a",
		Name:      "Holiday",
		Status:    queue.StatusProcessing,
		CreatedAt: started,
		StartedAt: &started,
		Files:     files(queue.StatusCompleted, queue.StatusProcessing, queue.StatusPending),
	}
	processing.Files[0].Result = &queue.FileResult{OriginalSizeBytes: 100, CompressedSizeBytes: 40, BytesSaved: 60, PercentReduction: 60}
	processing.Files[1].Progress = 0.42
	processing.Files[1].StartedAt = &started

	waiting := queue.Project{
		ID:        "proj-b",
		Name:      "Archive",
		Status:    queue.StatusPending,
		CreatedAt: started,
		Files:     files(queue.StatusPending),
	}
	return queue.Snapshot{
		Version:  queue.SnapshotVersion,
		Mode:     queue.ModeRunning,
		Cursor:   "proj-a",
		Projects: []queue.Project{processing, waiting},
	}
}

func TestRecoverSnapshotResetsProcessing(t *testing.T) {
	recovered, reset := queue.RecoverSnapshot(sampleSnapshot())

	assert.Equal(t, 1, reset)
	assert.Equal(t, queue.ModeIdle, recovered.Mode)
	assert.Empty(t, recovered.Cursor)

	project, ok := recovered.Find("proj-a")
	require.True(t, ok)
	assert.Equal(t, queue.StatusPending, project.Status)
	assert.Equal(t, queue.StatusCompleted, project.Files[0].Status)
	require.NotNil(t, project.Files[0].Result)
	assert.Equal(t, int64(60), project.Files[0].Result.BytesSaved)
	assert.Equal(t, queue.StatusPending, project.Files[1].Status)
	assert.Zero(t, project.Files[1].Progress)
	assert.Nil(t, project.Files[1].StartedAt)
	assert.Equal(t, queue.StatusPending, project.Files[2].Status)
}

func TestRecoverSnapshotDoesNotMutateInput(t *testing.T) {
	original := sampleSnapshot()
	_, _ = queue.RecoverSnapshot(original)
	assert.Equal(t, queue.StatusProcessing, original.Projects[0].Files[1].Status)
}

func TestUnmarshalSnapshotIsForwardCompatible(t *testing.T) {
	doc := []byte(`{
		"version": 7,
		"future_field": {"anything": true},
		"projects": [
			{"id": "p1", "name": "One", "status": "bogus", "extra": 1,
			 "files": [
				{"source_path": "/in/a.mov", "destination_path": "/out/a.mp4"},
				{"source_path": "/in/b.mov", "destination_path": "/out/b.mp4", "status": "completed", "progress": 3}
			 ]}
		]
	}`)

	snapshot, err := queue.UnmarshalSnapshot(doc)
	require.NoError(t, err)
	assert.Equal(t, queue.ModeIdle, snapshot.Mode)
	require.Len(t, snapshot.Projects, 1)
	project := snapshot.Projects[0]
	assert.Equal(t, queue.StatusPending, project.Status)
	assert.Equal(t, queue.StatusPending, project.Files[0].Status)
	assert.Zero(t, project.Files[0].Progress)
	assert.Equal(t, queue.StatusCompleted, project.Files[1].Status)
	assert.Equal(t, 1.0, project.Files[1].Progress)

	_, err = queue.UnmarshalSnapshot([]byte("{not json"))
	assert.Error(t, err)
}
