package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"vidqueue/internal/encoding"
	"vidqueue/internal/logging"
	"vidqueue/internal/notifications"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
)

// runProject encodes project's files in order. project is already
// Processing (see claimLocked). A failed file does not stop the project; a
// cancel at any boundary or during a file marks what is left Canceled. On
// shutdown the interrupted file and the project go back to Pending.
func (m *Manager) runProject(ctx context.Context, project *queue.Project) {
	m.mu.Lock()
	projectID := project.ID
	settings := project.Settings
	settings.ExtraArgs = append([]string(nil), project.Settings.ExtraArgs...)
	m.unlock()

	logger := m.logger.With(logging.String(logging.FieldProjectID, projectID))
	logger.Info("project started",
		logging.String(logging.FieldEventType, "project_started"),
		logging.String("name", project.Name),
		logging.Int("files", len(project.Files)),
	)
	projectCtx := services.WithProjectID(ctx, projectID)

	for i := 0; ; i++ {
		m.mu.Lock()
		if i >= len(project.Files) {
			m.unlock()
			break
		}
		switch m.awaitBoundaryLocked(ctx) {
		case boundaryShutdown:
			m.requeueLocked(project)
			_ = m.persistLocked(ctx, "project requeue")
			m.unlock()
			return
		case boundaryCancel:
			m.cancelRemainingLocked(project, "canceled before start")
			_ = m.persistLocked(ctx, "project canceled")
			summary := SummarizeProject(project)
			m.unlock()
			m.projectFinished(logger, summary)
			return
		}
		if project.Files[i].Status != queue.StatusPending {
			m.unlock()
			continue
		}
		task := project.Files[i]
		fileCtx, cancel := context.WithCancel(services.WithStage(services.WithFileIndex(projectCtx, i), "encode"))
		m.fileCancel = cancel
		m.unlock()

		index := i
		err := m.runner.RunFile(fileCtx, &task, settings,
			func() { m.fileStarted(ctx, project, index, task) },
			func(p encoding.FileProgress) { m.fileProgress(project, index, task.Progress, p) },
		)
		cancel()

		m.mu.Lock()
		m.fileCancel = nil
		if ctx.Err() != nil && services.IsCancellation(err) {
			task.Reset()
			project.Files[index] = task
			m.requeueLocked(project)
			_ = m.persistLocked(ctx, "project requeue")
			m.unlock()
			return
		}
		project.Files[index] = task
		m.recordFileLocked(ctx, project, index)
		m.unlock()
	}

	m.mu.Lock()
	m.finalizeProjectLocked(project)
	_ = m.persistLocked(ctx, "project finished")
	summary := SummarizeProject(project)
	m.unlock()
	m.projectFinished(logger, summary)
}

// claimLocked marks project Processing under the same lock hold that
// selected it; Remove and Reorder never see the worker's next project as
// Pending.
func (m *Manager) claimLocked(ctx context.Context, project *queue.Project) {
	started := m.now().UTC()
	if project.StartedAt == nil {
		project.StartedAt = &started
	}
	project.CompletedAt = nil
	project.Error = ""
	m.cursor = project.ID
	m.setProjectStatusLocked(project, queue.StatusProcessing)
	_ = m.persistLocked(ctx, "project start")
}

func (m *Manager) fileStarted(ctx context.Context, project *queue.Project, index int, task queue.FileTask) {
	m.mu.Lock()
	defer m.unlock()
	project.Files[index] = task
	_ = m.persistLocked(ctx, "file start")
	m.publishLocked(Event{
		Type:            EventFileProgress,
		ProjectID:       project.ID,
		FileIndex:       index,
		Status:          task.Status,
		ProjectProgress: project.Progress(),
	})
}

// fileProgress mirrors the worker-local task's progress into shared state.
// fraction never decreases because the file runner only raises it.
func (m *Manager) fileProgress(project *queue.Project, index int, fraction float64, p encoding.FileProgress) {
	m.mu.Lock()
	defer m.unlock()
	file := &project.Files[index]
	if fraction > file.Progress {
		file.Progress = fraction
	}
	m.publishLocked(Event{
		Type:            EventFileProgress,
		ProjectID:       project.ID,
		FileIndex:       index,
		Status:          file.Status,
		Fraction:        file.Progress,
		Determinate:     p.Determinate,
		ProjectProgress: project.Progress(),
		Elapsed:         p.Elapsed,
		ETA:             p.ETA,
	})
}

func (m *Manager) recordFileLocked(ctx context.Context, project *queue.Project, index int) {
	file := project.Files[index]
	m.metrics.observeFile(file)
	switch file.Status {
	case queue.StatusCompleted:
		m.runStats.completed++
		if file.Result != nil {
			m.runStats.bytesSaved += file.Result.BytesSaved
		}
	case queue.StatusFailed:
		m.runStats.failed++
	}
	_ = m.persistLocked(ctx, "file finished")

	evt := Event{
		Type:            EventFileResult,
		ProjectID:       project.ID,
		FileIndex:       index,
		Status:          file.Status,
		Fraction:        file.Progress,
		ProjectProgress: project.Progress(),
	}
	if file.Result != nil {
		result := *file.Result
		evt.Result = &result
	}
	m.publishLocked(evt)
}

// finalizeProjectLocked derives the terminal status once no file is left to
// run and releases the cursor.
func (m *Manager) finalizeProjectLocked(project *queue.Project) {
	status := queue.DeriveStatus(project.Files)
	if !status.IsTerminal() {
		return
	}
	completed := m.now().UTC()
	project.CompletedAt = &completed
	counts := project.Counts()
	switch status {
	case queue.StatusFailed:
		project.Error = fmt.Sprintf("%d of %d files failed", counts.Failed, counts.Total)
	case queue.StatusCanceled:
		project.Error = fmt.Sprintf("canceled with %d of %d files completed", counts.Completed, counts.Total)
	default:
		project.Error = ""
	}
	if m.cursor == project.ID {
		m.cursor = ""
	}
	m.metrics.observeProject(status)
	m.setProjectStatusLocked(project, status)
}

// requeueLocked returns an interrupted project to Pending so the next run
// restarts its unfinished files.
func (m *Manager) requeueLocked(project *queue.Project) {
	for i := range project.Files {
		if project.Files[i].Status == queue.StatusProcessing {
			project.Files[i].Reset()
		}
	}
	if m.cursor == project.ID {
		m.cursor = ""
	}
	m.setProjectStatusLocked(project, queue.StatusPending)
	m.logger.Info("project interrupted; requeued",
		logging.String(logging.FieldEventType, "project_requeued"),
		logging.String(logging.FieldProjectID, project.ID),
	)
}

func (m *Manager) projectFinished(logger *slog.Logger, summary ProjectResult) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "project_finished"),
		logging.String("status", string(summary.Status)),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("canceled", summary.Canceled),
		logging.Int64("bytes_saved", summary.BytesSaved),
	}
	if summary.Status == queue.StatusFailed {
		logging.WarnWithContext(logger, "project finished with failures", "project_finished",
			append(attrs,
				logging.String(logging.FieldErrorHint, "run 'vidqueue results' for per-file causes"),
				logging.String(logging.FieldImpact, "failed files were not compressed"),
			)...,
		)
	} else {
		logger.Info("project finished", logging.Args(attrs...)...)
	}

	m.notifyAsync("project finished", func(ctx context.Context, n notifications.Service) error {
		return n.NotifyProjectFinished(ctx, notifications.ProjectSummary{
			Name:       summary.Name,
			Status:     string(summary.Status),
			Completed:  summary.Completed,
			Failed:     summary.Failed,
			Canceled:   summary.Canceled,
			BytesSaved: summary.BytesSaved,
			Duration:   summary.Elapsed,
		})
	})
}
