package workflow_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/testsupport"
	"vidqueue/internal/workflow"
)

func TestManagerProcessesProjectsInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	specs := []workflow.ProjectSpec{
		h.project(t, "alpha", 2, 100),
		h.project(t, "bravo", 1, 100),
		h.project(t, "charlie", 2, 100),
	}
	var ids []string
	var wantOrder []string
	for _, spec := range specs {
		ids = append(ids, h.enqueue(t, spec).ID)
		for _, file := range spec.Files {
			wantOrder = append(wantOrder, file.SourcePath)
		}
	}

	require.NoError(t, h.manager.Start(ctx))
	h.waitIdle(t)

	assert.Equal(t, wantOrder, h.encoder.calls())
	for _, id := range ids {
		project := h.projectByID(t, id)
		assert.Equal(t, queue.StatusCompleted, project.Status)
		assert.NotNil(t, project.CompletedAt)
		for _, file := range project.Files {
			require.NotNil(t, file.Result)
			assert.Equal(t, int64(75), file.Result.BytesSaved)
			assert.InDelta(t, 75.0, file.Result.PercentReduction, 1e-9)
		}
	}

	results := h.manager.Results()
	assert.Equal(t, 5, results.Totals.Completed)
	assert.Equal(t, int64(375), results.Totals.BytesSaved)

	events := h.closeAndCollect(t)
	processing := 0
	var statusOrder []string
	for _, evt := range events {
		if evt.Type != workflow.EventProjectStatusChanged {
			continue
		}
		switch evt.Status {
		case queue.StatusProcessing:
			processing++
			statusOrder = append(statusOrder, evt.ProjectID)
		case queue.StatusCompleted:
			processing--
		}
		require.LessOrEqual(t, processing, 1, "more than one project processing at once")
	}
	assert.Equal(t, ids, statusOrder)

	var modes []queue.Mode
	for _, evt := range events {
		if evt.Type == workflow.EventQueueModeChanged {
			modes = append(modes, evt.Mode)
		}
	}
	assert.Equal(t, []queue.Mode{queue.ModeRunning, queue.ModeIdle}, modes)
}

func TestManagerContinuesPastFailedFile(t *testing.T) {
	h := newHarness(t)
	spec := h.project(t, "mixed", 3, 100)
	h.encoder.set(spec.Files[1].SourcePath, step{fail: true})
	project := h.enqueue(t, spec)

	require.NoError(t, h.manager.Start(context.Background()))
	h.waitIdle(t)

	got := h.projectByID(t, project.ID)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusFailed, queue.StatusCompleted}, fileStatuses(got))
	assert.Equal(t, "1 of 3 files failed", got.Error)
	require.NotNil(t, got.Files[1].Result)
	assert.Equal(t, services.CauseNonZeroExit, got.Files[1].Result.Cause)
	assert.NotEmpty(t, got.Files[1].Result.Message)

	results := h.closeAndCollect(t)
	fileResults := 0
	for _, evt := range results {
		if evt.Type == workflow.EventFileResult {
			fileResults++
		}
	}
	assert.Equal(t, 3, fileResults)
}

func TestManagerCancelCurrentKeepsOtherProjectsPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.project(t, "first", 2, 100)
	h.encoder.set(first.Files[0].SourcePath, step{block: true})
	p1 := h.enqueue(t, first)
	p2 := h.enqueue(t, h.project(t, "second", 1, 100))

	require.NoError(t, h.manager.Start(ctx))
	h.waitStarted(t, first.Files[0].SourcePath)
	require.NoError(t, h.manager.CancelCurrent(ctx))
	h.waitIdle(t)

	got1 := h.projectByID(t, p1.ID)
	assert.Equal(t, queue.StatusCanceled, got1.Status)
	assert.Equal(t, []queue.Status{queue.StatusCanceled, queue.StatusCanceled}, fileStatuses(got1))
	assert.Equal(t, queue.StatusPending, h.projectByID(t, p2.ID).Status)
	assert.Equal(t, queue.ModeIdle, h.manager.Status().Mode)

	_, err := os.Stat(first.Files[0].DestinationPath)
	assert.True(t, os.IsNotExist(err), "canceled output should not exist")
	assert.Len(t, h.encoder.calls(), 1)
}

func TestManagerCancelQueueCancelsPendingProjects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.project(t, "first", 1, 100)
	h.encoder.set(first.Files[0].SourcePath, step{block: true})
	p1 := h.enqueue(t, first)
	p2 := h.enqueue(t, h.project(t, "second", 2, 100))

	require.NoError(t, h.manager.Start(ctx))
	h.waitStarted(t, first.Files[0].SourcePath)
	require.NoError(t, h.manager.CancelQueue(ctx))
	h.waitIdle(t)

	assert.Equal(t, queue.StatusCanceled, h.projectByID(t, p1.ID).Status)
	got2 := h.projectByID(t, p2.ID)
	assert.Equal(t, queue.StatusCanceled, got2.Status)
	assert.Equal(t, []queue.Status{queue.StatusCanceled, queue.StatusCanceled}, fileStatuses(got2))

	persisted, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.ModeIdle, persisted.Mode)
	for _, project := range persisted.Projects {
		assert.Equal(t, queue.StatusCanceled, project.Status)
	}
}

func TestManagerCancelWhileIdleIsInvalid(t *testing.T) {
	h := newHarness(t)
	err := h.manager.CancelQueue(context.Background())
	assert.ErrorIs(t, err, services.ErrInvalidOperation)
	assert.ErrorIs(t, h.manager.Pause(context.Background()), services.ErrInvalidOperation)
}

func TestManagerPauseWaitsForFileBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "paused", 2, 100)
	release := make(chan struct{})
	h.encoder.set(spec.Files[0].SourcePath, step{block: true, release: release})
	project := h.enqueue(t, spec)

	require.NoError(t, h.manager.Start(ctx))
	h.waitStarted(t, spec.Files[0].SourcePath)
	require.NoError(t, h.manager.Pause(ctx))
	close(release)

	require.Eventually(t, func() bool {
		return h.projectByID(t, project.ID).Files[0].Status == queue.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// The in-flight file finished but the next one must not start while paused.
	time.Sleep(100 * time.Millisecond)
	got := h.projectByID(t, project.ID)
	assert.Equal(t, queue.StatusPending, got.Files[1].Status)
	assert.Equal(t, queue.StatusProcessing, got.Status)
	assert.Equal(t, queue.ModePaused, h.manager.Status().Mode)
	assert.Len(t, h.encoder.calls(), 1)

	require.NoError(t, h.manager.Resume(ctx))
	h.waitIdle(t)
	assert.Equal(t, queue.StatusCompleted, h.projectByID(t, project.ID).Status)
}

func TestManagerCancelWhilePausedCancelsRemainingFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "paused", 3, 100)
	release := make(chan struct{})
	h.encoder.set(spec.Files[0].SourcePath, step{block: true, release: release})
	project := h.enqueue(t, spec)

	require.NoError(t, h.manager.Start(ctx))
	h.waitStarted(t, spec.Files[0].SourcePath)
	require.NoError(t, h.manager.Pause(ctx))
	close(release)
	require.Eventually(t, func() bool {
		return h.projectByID(t, project.ID).Files[0].Status == queue.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.manager.CancelCurrent(ctx))
	h.waitIdle(t)

	got := h.projectByID(t, project.ID)
	assert.Equal(t, queue.StatusCanceled, got.Status)
	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusCanceled, queue.StatusCanceled}, fileStatuses(got))
	assert.Equal(t, "canceled with 1 of 3 files completed", got.Error)
}

func TestManagerReorderChangesProcessingOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.enqueue(t, h.project(t, "a", 1, 100))
	b := h.enqueue(t, h.project(t, "b", 1, 100))
	cSpec := h.project(t, "c", 1, 100)
	c := h.enqueue(t, cSpec)

	require.NoError(t, h.manager.Reorder(ctx, c.ID, 0))
	snapshot := h.manager.Snapshot()
	require.Len(t, snapshot.Projects, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{snapshot.Projects[0].ID, snapshot.Projects[1].ID, snapshot.Projects[2].ID})

	persisted, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.ID, persisted.Projects[0].ID)

	require.NoError(t, h.manager.Start(ctx))
	h.waitIdle(t)
	assert.Equal(t, cSpec.Files[0].SourcePath, h.encoder.calls()[0])
}

func TestManagerRejectsEditsOnNonPendingProjects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "busy", 1, 100)
	h.encoder.set(spec.Files[0].SourcePath, step{block: true})
	busy := h.enqueue(t, spec)
	other := h.enqueue(t, h.project(t, "other", 1, 100))

	require.NoError(t, h.manager.Start(ctx))
	h.waitStarted(t, spec.Files[0].SourcePath)

	before := h.manager.Snapshot()
	assert.ErrorIs(t, h.manager.Reorder(ctx, busy.ID, 1), services.ErrInvalidOperation)
	assert.ErrorIs(t, h.manager.Remove(ctx, busy.ID), services.ErrInvalidOperation)
	assert.ErrorIs(t, h.manager.Clear(ctx), services.ErrInvalidOperation)
	assert.ErrorIs(t, h.manager.Reorder(ctx, "missing", 0), services.ErrNotFound)
	assert.ErrorIs(t, h.manager.Reorder(ctx, other.ID, 5), services.ErrValidation)
	after := h.manager.Snapshot()
	assert.Equal(t, before.Projects[0].ID, after.Projects[0].ID)
	assert.Equal(t, before.Projects[1].ID, after.Projects[1].ID)

	require.NoError(t, h.manager.Remove(ctx, other.ID))
	assert.Len(t, h.manager.Snapshot().Projects, 1)

	require.NoError(t, h.manager.CancelQueue(ctx))
	h.waitIdle(t)
	assert.ErrorIs(t, h.manager.Remove(ctx, busy.ID), services.ErrInvalidOperation)
	require.NoError(t, h.manager.Clear(ctx))
	assert.Empty(t, h.manager.Snapshot().Projects)
}

func TestManagerEnqueueValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	valid := h.project(t, "valid", 1, 10)

	tests := []struct {
		name   string
		mutate func(*workflow.ProjectSpec)
	}{
		{"no files", func(s *workflow.ProjectSpec) { s.Files = nil }},
		{"no name", func(s *workflow.ProjectSpec) { s.Name = "  " }},
		{"missing source", func(s *workflow.ProjectSpec) { s.Files[0].SourcePath += ".gone" }},
		{"destination overwrites source", func(s *workflow.ProjectSpec) { s.Files[0].DestinationPath = s.Files[0].SourcePath }},
		{"empty destination", func(s *workflow.ProjectSpec) { s.Files[0].DestinationPath = "" }},
		{"negative crf", func(s *workflow.ProjectSpec) {
			s.Settings = queue.SettingsFromConfig(h.cfg.Settings)
			s.Settings.CRF = -4
		}},
		{"empty pixel format", func(s *workflow.ProjectSpec) {
			s.Settings = queue.SettingsFromConfig(h.cfg.Settings)
			s.Settings.PixelFormat = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			spec.Files = append([]workflow.FileSpec(nil), valid.Files...)
			tt.mutate(&spec)
			_, err := h.manager.Enqueue(ctx, spec)
			assert.ErrorIs(t, err, services.ErrValidation)
		})
	}
	assert.Empty(t, h.manager.Snapshot().Projects)

	project := h.enqueue(t, valid)
	assert.Equal(t, h.cfg.Settings.VideoCodec, project.Settings.VideoCodec)
	assert.Equal(t, h.cfg.Paths.OutputRoot, project.OutputRoot)
	assert.Equal(t, queue.StatusPending, project.Status)
	assert.NotEmpty(t, project.ID)

	added := h.closeAndCollect(t)
	require.NotEmpty(t, added)
	assert.Equal(t, workflow.EventProjectAdded, added[len(added)-1].Type)
}

func TestManagerRestoreRecoversInterruptedRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "interrupted", 3, 100)
	now := time.Now().UTC()
	interrupted := queue.Snapshot{
		Version: queue.SnapshotVersion,
		Mode:    queue.ModeRunning,
		Cursor:  "proj-1",
		Projects: []queue.Project{{
			ID:       "proj-1",
			Name:     "interrupted",
			Status:   queue.StatusProcessing,
			Settings: queue.SettingsFromConfig(h.cfg.Settings),
			Files: []queue.FileTask{
				{SourcePath: spec.Files[0].SourcePath, DestinationPath: spec.Files[0].DestinationPath, Status: queue.StatusCompleted, Progress: 1,
					Result: &queue.FileResult{OriginalSizeBytes: 100, CompressedSizeBytes: 25, BytesSaved: 75, PercentReduction: 75}},
				{SourcePath: spec.Files[1].SourcePath, DestinationPath: spec.Files[1].DestinationPath, Status: queue.StatusProcessing, Progress: 0.6, StartedAt: &now},
				{SourcePath: spec.Files[2].SourcePath, DestinationPath: spec.Files[2].DestinationPath, Status: queue.StatusPending},
			},
			CreatedAt: now,
		}},
	}
	require.NoError(t, h.store.Save(ctx, interrupted))

	require.NoError(t, h.manager.Restore(ctx))
	got := h.projectByID(t, "proj-1")
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusPending, queue.StatusPending}, fileStatuses(got))
	assert.Zero(t, got.Files[1].Progress)
	assert.Nil(t, got.Files[1].StartedAt)
	assert.Equal(t, queue.ModeIdle, h.manager.Status().Mode)

	require.NoError(t, h.manager.Start(ctx))
	h.waitIdle(t)
	assert.Equal(t, []string{spec.Files[1].SourcePath, spec.Files[2].SourcePath}, h.encoder.calls())
	assert.Equal(t, queue.StatusCompleted, h.projectByID(t, "proj-1").Status)
}

func TestManagerRestoreCorruptSnapshotStartsEmpty(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.store.Location(), []byte("{not json"), 0o644))

	require.NoError(t, h.manager.Restore(context.Background()))
	status := h.manager.Status()
	assert.Equal(t, queue.ModeIdle, status.Mode)
	assert.Zero(t, status.Projects)
	assert.NotEmpty(t, status.LastError)

	h.enqueue(t, h.project(t, "fresh", 1, 10))
	persisted, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted.Projects, 1)
}

func TestManagerPersistenceFailureKeepsOperating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := &flakyStore{Store: testsupport.MustOpenStore(t, cfg)}
	h := newHarnessWithStore(t, cfg, store)
	store.setFailing(true)

	project, err := h.manager.Enqueue(context.Background(), h.project(t, "unsaved", 1, 100))
	require.ErrorIs(t, err, services.ErrPersistence)
	require.NotNil(t, project)
	assert.Len(t, h.manager.Snapshot().Projects, 1)
	assert.Contains(t, h.manager.Status().LastError, "disk full")

	err = h.manager.Start(context.Background())
	require.ErrorIs(t, err, services.ErrPersistence)
	h.waitIdle(t)
	assert.Equal(t, queue.StatusCompleted, h.projectByID(t, project.ID).Status)

	events := h.closeAndCollect(t)
	var persistenceErrors int
	for _, evt := range events {
		if evt.Type == workflow.EventPersistenceError {
			persistenceErrors++
			assert.Contains(t, evt.Err, "disk full")
		}
	}
	assert.Positive(t, persistenceErrors)
}

func TestManagerEventsFollowDurableState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	inner := testsupport.MustOpenStore(t, cfg)
	h := newHarnessWithStore(t, cfg, &slowStore{Store: inner, delay: 30 * time.Millisecond})
	ctx := context.Background()
	release := make(chan struct{})
	spec := h.project(t, "durable", 1, 100)
	h.encoder.set(spec.Files[0].SourcePath, step{block: true, release: release})
	project := h.enqueue(t, spec)

	events, unsubscribe := h.manager.Subscribe(256)
	defer unsubscribe()
	require.NoError(t, h.manager.Start(ctx))

	timeout := time.After(10 * time.Second)
	sawRunning := false
	for {
		var evt workflow.Event
		select {
		case evt = <-events:
		case <-timeout:
			t.Fatal("queue never returned to idle")
		}
		switch evt.Type {
		case workflow.EventQueueModeChanged:
			persisted, err := inner.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, evt.Mode, persisted.Mode, "mode event delivered before it was saved")
			if evt.Mode == queue.ModeRunning {
				sawRunning = true
			}
			if evt.Mode == queue.ModeIdle && sawRunning {
				return
			}
		case workflow.EventProjectStatusChanged:
			persisted, err := inner.Load(ctx)
			require.NoError(t, err)
			got, ok := persisted.Find(project.ID)
			require.True(t, ok)
			require.Equal(t, evt.Status, got.Status, "status event delivered before it was saved")
			if evt.Status == queue.StatusProcessing {
				close(release)
			}
		}
	}
}

func TestManagerWorkerClaimsProjectBeforeEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		spec := h.project(t, "claim"+strconv.Itoa(i), 1, 10)
		project := h.enqueue(t, spec)
		require.NoError(t, h.manager.Start(ctx))

		err := h.manager.Remove(ctx, project.ID)
		h.waitIdle(t)
		if err == nil {
			assert.NotContains(t, h.encoder.calls(), spec.Files[0].SourcePath, "removed project was still encoded")
			_, ok := h.manager.Snapshot().Find(project.ID)
			assert.False(t, ok)
			continue
		}
		require.ErrorIs(t, err, services.ErrInvalidOperation)
		assert.Equal(t, queue.StatusCompleted, h.projectByID(t, project.ID).Status)
	}
}

func TestManagerRunningProjectIsProcessingOnceClaimed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "claimed", 1, 100)
	h.encoder.set(spec.Files[0].SourcePath, step{block: true})
	project := h.enqueue(t, spec)

	require.NoError(t, h.manager.Start(ctx))
	h.waitStarted(t, spec.Files[0].SourcePath)

	snapshot := h.manager.Snapshot()
	got, ok := snapshot.Find(project.ID)
	require.True(t, ok)
	assert.Equal(t, queue.StatusProcessing, got.Status)
	assert.Equal(t, project.ID, snapshot.Cursor)
	assert.NotNil(t, got.StartedAt)
	assert.ErrorIs(t, h.manager.Remove(ctx, project.ID), services.ErrInvalidOperation)

	persisted, err := h.store.Load(ctx)
	require.NoError(t, err)
	saved, ok := persisted.Find(project.ID)
	require.True(t, ok)
	assert.Equal(t, queue.StatusProcessing, saved.Status)
}

func TestManagerRetryRerunsOnlyUnfinishedFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "retry", 3, 100)
	h.encoder.set(spec.Files[1].SourcePath, step{fail: true})
	project := h.enqueue(t, spec)

	assert.ErrorIs(t, h.manager.Retry(ctx, project.ID), services.ErrInvalidOperation)

	require.NoError(t, h.manager.Start(ctx))
	h.waitIdle(t)
	require.Equal(t, queue.StatusFailed, h.projectByID(t, project.ID).Status)

	h.encoder.set(spec.Files[1].SourcePath, step{})
	require.NoError(t, h.manager.Retry(ctx, project.ID))
	got := h.projectByID(t, project.ID)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusPending, queue.StatusCompleted}, fileStatuses(got))

	require.NoError(t, h.manager.Start(ctx))
	h.waitIdle(t)
	assert.Equal(t, queue.StatusCompleted, h.projectByID(t, project.ID).Status)
	calls := h.encoder.calls()
	assert.Len(t, calls, 4)
	assert.Equal(t, spec.Files[1].SourcePath, calls[3])
}

func TestManagerCloseRequeuesInFlightFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "shutdown", 2, 100)
	h.encoder.set(spec.Files[0].SourcePath, step{block: true})
	project := h.enqueue(t, spec)

	require.NoError(t, h.manager.Start(ctx))
	h.waitStarted(t, spec.Files[0].SourcePath)
	h.manager.Close()

	persisted, err := h.store.Load(ctx)
	require.NoError(t, err)
	got, ok := persisted.Find(project.ID)
	require.True(t, ok)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, []queue.Status{queue.StatusPending, queue.StatusPending}, fileStatuses(*got))
	assert.Equal(t, queue.ModeIdle, persisted.Mode)
	assert.ErrorIs(t, h.manager.Start(ctx), services.ErrInvalidOperation)
}

func TestManagerFileProgressNeverDecreases(t *testing.T) {
	h := newHarness(t)
	spec := h.project(t, "progress", 1, 100)
	h.encoder.set(spec.Files[0].SourcePath, step{progress: []float64{0.2, 0.5, 0.4, 0.5, 0.9}})
	h.enqueue(t, spec)

	require.NoError(t, h.manager.Start(context.Background()))
	h.waitIdle(t)
	h.closeAndCollect(t)

	last := -1.0
	updates := 0
	for _, evt := range h.events.ofType(workflow.EventFileProgress) {
		if !evt.Determinate {
			continue
		}
		updates++
		require.GreaterOrEqual(t, evt.Fraction, last)
		last = evt.Fraction
	}
	assert.Equal(t, 5, updates)
	assert.Equal(t, 0.9, last)
}

func TestManagerStatusCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spec := h.project(t, "fails", 1, 100)
	h.encoder.set(spec.Files[0].SourcePath, step{fail: true})
	h.enqueue(t, spec)
	h.enqueue(t, h.project(t, "ok", 1, 100))
	require.NoError(t, h.manager.Start(ctx))
	h.waitIdle(t)
	h.enqueue(t, h.project(t, "later", 1, 100))

	status := h.manager.Status()
	assert.Equal(t, 3, status.Projects)
	assert.Equal(t, 1, status.Counts[queue.StatusFailed])
	assert.Equal(t, 1, status.Counts[queue.StatusCompleted])
	assert.Equal(t, 1, status.Counts[queue.StatusPending])
	assert.Nil(t, status.Active)

	offline := workflow.StatusFromSnapshot(h.manager.Snapshot())
	assert.Equal(t, status.Counts, offline.Counts)
}
