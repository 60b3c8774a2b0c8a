package workflow

import (
	"context"

	"vidqueue/internal/logging"
	"vidqueue/internal/notifications"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
)

type boundary int

const (
	boundaryProceed boundary = iota
	boundaryCancel
	boundaryShutdown
)

// run is the single worker. It processes the first Pending project until the
// queue drains, is canceled, or the manager closes.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		project, ok := m.nextProject(ctx)
		if !ok {
			return
		}
		m.runProject(ctx, project)
	}
}

// nextProject claims the next Pending project, or settles the queue back to
// Idle when there is nothing left to do.
func (m *Manager) nextProject(ctx context.Context) (*queue.Project, bool) {
	m.mu.Lock()
	defer m.unlock()

	switch m.awaitBoundaryLocked(ctx) {
	case boundaryShutdown:
		m.shutdownLocked()
		return nil, false
	case boundaryCancel:
		m.finishCancelLocked(ctx)
		return nil, false
	}

	for _, project := range m.projects {
		if project.Status == queue.StatusPending {
			m.claimLocked(ctx, project)
			return project, true
		}
	}

	m.setModeLocked(queue.ModeIdle)
	_ = m.persistLocked(ctx, "drain")
	stats := m.runStats
	elapsed := m.now().Sub(m.runStart)
	m.logger.Info("queue drained",
		logging.String(logging.FieldEventType, "queue_drained"),
		logging.Int("files_completed", stats.completed),
		logging.Int("files_failed", stats.failed),
		logging.Int64("bytes_saved", stats.bytesSaved),
		logging.Duration("elapsed", elapsed),
	)
	m.notifyAsync("queue completed", func(ctx context.Context, n notifications.Service) error {
		return n.NotifyQueueCompleted(ctx, stats.completed, stats.failed, stats.bytesSaved, elapsed)
	})
	return nil, false
}

// awaitBoundaryLocked parks the worker while the queue is Paused and reports
// what to do at this file or project boundary. m.mu is released while parked.
func (m *Manager) awaitBoundaryLocked(ctx context.Context) boundary {
	for m.mode == queue.ModePaused {
		changed := m.changed
		m.unlock()
		select {
		case <-changed:
		case <-ctx.Done():
		}
		m.mu.Lock()
		if ctx.Err() != nil {
			break
		}
	}
	switch {
	case ctx.Err() != nil:
		return boundaryShutdown
	case m.mode == queue.ModeCanceling:
		return boundaryCancel
	default:
		return boundaryProceed
	}
}

// finishCancelLocked completes a cancel request once no file is running.
func (m *Manager) finishCancelLocked(ctx context.Context) {
	canceled := 0
	if m.scope == cancelQueue {
		for _, project := range m.projects {
			if project.Status != queue.StatusPending {
				continue
			}
			m.cancelRemainingLocked(project, "queue canceled")
			canceled++
		}
	}
	m.logger.Info("queue canceled",
		logging.String(logging.FieldEventType, "queue_canceled"),
		logging.Bool("whole_queue", m.scope == cancelQueue),
		logging.Int("pending_projects_canceled", canceled),
	)
	m.setModeLocked(queue.ModeIdle)
	_ = m.persistLocked(ctx, "cancel")
}

// shutdownLocked leaves the queue as a restart would find it.
func (m *Manager) shutdownLocked() {
	m.setModeLocked(queue.ModeIdle)
	_ = m.persistLocked(context.Background(), "shutdown")
}

// cancelRemainingLocked marks every unfinished file Canceled and the project
// with it.
func (m *Manager) cancelRemainingLocked(project *queue.Project, reason string) {
	now := m.now().UTC()
	for i := range project.Files {
		file := &project.Files[i]
		if file.Status.IsTerminal() {
			continue
		}
		file.Status = queue.StatusCanceled
		file.CompletedAt = &now
		if file.Result == nil {
			file.Result = &queue.FileResult{Cause: services.CauseCanceled, Message: reason}
		}
		m.metrics.observeFile(*file)
		result := *file.Result
		m.publishLocked(Event{Type: EventFileResult, ProjectID: project.ID, FileIndex: i, Status: file.Status, Result: &result})
	}
	m.finalizeProjectLocked(project)
}
