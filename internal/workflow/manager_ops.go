package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vidqueue/internal/logging"
	"vidqueue/internal/notifications"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
)

// FileSpec names one source file and where its compressed copy goes.
type FileSpec struct {
	SourcePath      string
	DestinationPath string
}

// ProjectSpec is the caller's description of a project to enqueue.
// A zero Settings value means the configured defaults.
type ProjectSpec struct {
	Name       string
	OutputRoot string
	Settings   queue.EncodeSettings
	Files      []FileSpec
}

// Control operations apply their change in memory and persist it before
// returning. If the write fails the change still stands; the returned error
// wraps services.ErrPersistence so the caller knows durability is not
// guaranteed yet.

// Enqueue validates spec and appends it as a Pending project. It is accepted
// in every queue mode.
func (m *Manager) Enqueue(ctx context.Context, spec ProjectSpec) (*queue.Project, error) {
	project, err := m.buildProject(spec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.unlock()
	if err := m.ensureOpenLocked("enqueue"); err != nil {
		return nil, err
	}
	m.projects = append(m.projects, project)
	m.refreshProjectGaugeLocked()
	m.logger.Info("project enqueued",
		logging.String(logging.FieldEventType, "project_enqueued"),
		logging.String(logging.FieldProjectID, project.ID),
		logging.String("name", project.Name),
		logging.Int("files", len(project.Files)),
	)
	persistErr := m.persistLocked(ctx, "enqueue")
	m.publishLocked(Event{Type: EventProjectAdded, ProjectID: project.ID, FileIndex: -1, Status: project.Status, Project: project.Clone()})
	return project.Clone(), persistErr
}

func (m *Manager) buildProject(spec ProjectSpec) (*queue.Project, error) {
	invalid := func(msg string) error {
		return services.Wrap(services.ErrValidation, "queue", "enqueue", msg, nil)
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, invalid("project name is required")
	}
	if len(spec.Files) == 0 {
		return nil, invalid("project has no files")
	}

	settings := spec.Settings
	if strings.TrimSpace(settings.VideoCodec) == "" {
		if m.cfg == nil {
			return nil, invalid("video codec is required")
		}
		settings = queue.SettingsFromConfig(m.cfg.Settings)
	}
	if err := settings.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", "invalid settings", err)
	}
	outputRoot := strings.TrimSpace(spec.OutputRoot)
	if outputRoot == "" && m.cfg != nil {
		outputRoot = m.cfg.Paths.OutputRoot
	}

	files := make([]queue.FileTask, 0, len(spec.Files))
	seen := make(map[string]struct{}, len(spec.Files))
	for i, file := range spec.Files {
		src := strings.TrimSpace(file.SourcePath)
		dst := strings.TrimSpace(file.DestinationPath)
		if src == "" || dst == "" {
			return nil, invalid(fmt.Sprintf("file %d: source and destination are required", i))
		}
		if filepath.Clean(src) == filepath.Clean(dst) {
			return nil, invalid(fmt.Sprintf("file %d: destination would overwrite source %s", i, src))
		}
		info, err := os.Stat(src)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("file %d: source unreadable", i), err)
		}
		if !info.Mode().IsRegular() {
			return nil, invalid(fmt.Sprintf("file %d: %s is not a regular file", i, src))
		}
		if _, dup := seen[filepath.Clean(dst)]; dup {
			return nil, invalid(fmt.Sprintf("file %d: duplicate destination %s", i, dst))
		}
		seen[filepath.Clean(dst)] = struct{}{}
		files = append(files, queue.FileTask{SourcePath: src, DestinationPath: dst, Status: queue.StatusPending})
	}

	return &queue.Project{
		ID:         uuid.NewString(),
		Name:       name,
		Files:      files,
		Settings:   settings,
		OutputRoot: outputRoot,
		Status:     queue.StatusPending,
		CreatedAt:  m.now().UTC(),
	}, nil
}

// Start moves an Idle queue to Running and launches the worker. It is a no-op
// when already Running, resumes a Paused queue, and leaves an empty queue Idle.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.unlock()
	if err := m.ensureOpenLocked("start"); err != nil {
		return err
	}
	switch m.mode {
	case queue.ModeRunning:
		return nil
	case queue.ModePaused:
		return m.resumeLocked(ctx)
	case queue.ModeCanceling:
		return services.Wrap(services.ErrInvalidOperation, "queue", "start", "cancellation in progress", nil)
	}

	pending := 0
	for _, project := range m.projects {
		if project.Status == queue.StatusPending {
			pending++
		}
	}
	if pending == 0 {
		m.logger.Info("queue start ignored; nothing pending", logging.String(logging.FieldEventType, "queue_empty"))
		return nil
	}

	m.runStart = m.now()
	m.runStats = runStats{}
	m.setModeLocked(queue.ModeRunning)
	persistErr := m.persistLocked(ctx, "start")

	runID := uuid.NewString()
	m.logger.Info("queue run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String(logging.FieldCorrelationID, runID),
		logging.Int("pending_projects", pending),
	)
	m.wg.Add(1)
	go m.run(services.WithRequestID(m.baseCtx, runID))
	m.notifyAsync("queue start", func(ctx context.Context, n notifications.Service) error {
		return n.NotifyQueueStarted(ctx, pending)
	})
	return persistErr
}

// Pause lets the file currently encoding finish and holds the worker before
// the next file or project.
func (m *Manager) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.unlock()
	switch m.mode {
	case queue.ModePaused:
		return nil
	case queue.ModeRunning:
		m.setModeLocked(queue.ModePaused)
		return m.persistLocked(ctx, "pause")
	default:
		return services.Wrap(services.ErrInvalidOperation, "queue", "pause", "queue is "+string(m.mode), nil)
	}
}

// Resume continues a Paused queue from the next pending unit.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.unlock()
	return m.resumeLocked(ctx)
}

func (m *Manager) resumeLocked(ctx context.Context) error {
	switch m.mode {
	case queue.ModeRunning:
		return nil
	case queue.ModePaused:
		m.setModeLocked(queue.ModeRunning)
		return m.persistLocked(ctx, "resume")
	default:
		return services.Wrap(services.ErrInvalidOperation, "queue", "resume", "queue is "+string(m.mode), nil)
	}
}

// CancelCurrent stops the processing project. Its unfinished files become
// Canceled; other Pending projects stay queued and the queue returns to Idle.
func (m *Manager) CancelCurrent(ctx context.Context) error {
	return m.requestCancel(ctx, cancelCurrent)
}

// CancelQueue stops the processing project and cancels every Pending project.
func (m *Manager) CancelQueue(ctx context.Context) error {
	return m.requestCancel(ctx, cancelQueue)
}

func (m *Manager) requestCancel(ctx context.Context, scope cancelScope) error {
	m.mu.Lock()
	defer m.unlock()
	switch m.mode {
	case queue.ModeRunning, queue.ModePaused:
	case queue.ModeCanceling:
		if scope > m.scope {
			m.scope = scope
		}
		return nil
	default:
		return services.Wrap(services.ErrInvalidOperation, "queue", "cancel", "queue is idle", nil)
	}

	m.scope = scope
	if m.fileCancel != nil {
		m.fileCancel()
	}
	m.setModeLocked(queue.ModeCanceling)
	return m.persistLocked(ctx, "cancel")
}

// Reorder moves a Pending project to newIndex. Any other status is rejected
// with services.ErrInvalidOperation and the order is left unchanged.
func (m *Manager) Reorder(ctx context.Context, id string, newIndex int) error {
	m.mu.Lock()
	defer m.unlock()
	from := m.indexLocked(id)
	if from < 0 {
		return services.Wrap(services.ErrNotFound, "queue", "reorder", "no project with id "+id, nil)
	}
	project := m.projects[from]
	if project.Status != queue.StatusPending {
		return services.Wrap(services.ErrInvalidOperation, "queue", "reorder", "project is "+string(project.Status), nil)
	}
	if newIndex < 0 || newIndex >= len(m.projects) {
		return services.Wrap(services.ErrValidation, "queue", "reorder", fmt.Sprintf("index %d out of range [0,%d)", newIndex, len(m.projects)), nil)
	}
	if from == newIndex {
		return nil
	}

	reordered := make([]*queue.Project, 0, len(m.projects))
	reordered = append(reordered, m.projects[:from]...)
	reordered = append(reordered, m.projects[from+1:]...)
	reordered = append(reordered[:newIndex], append([]*queue.Project{project}, reordered[newIndex:]...)...)
	m.projects = reordered

	m.logger.Info("project reordered",
		logging.String(logging.FieldProjectID, id),
		logging.Int("from", from),
		logging.Int("to", newIndex),
	)
	persistErr := m.persistLocked(ctx, "reorder")
	m.publishLocked(Event{Type: EventQueueChanged, ProjectID: id, FileIndex: -1})
	return persistErr
}

// Remove drops a Pending project from the queue.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return services.Wrap(services.ErrNotFound, "queue", "remove", "no project with id "+id, nil)
	}
	if status := m.projects[idx].Status; status != queue.StatusPending {
		return services.Wrap(services.ErrInvalidOperation, "queue", "remove", "project is "+string(status), nil)
	}
	m.projects = append(m.projects[:idx], m.projects[idx+1:]...)
	m.refreshProjectGaugeLocked()
	m.logger.Info("project removed", logging.String(logging.FieldProjectID, id))
	persistErr := m.persistLocked(ctx, "remove")
	m.publishLocked(Event{Type: EventQueueChanged, ProjectID: id, FileIndex: -1})
	return persistErr
}

// Clear empties the queue. It is refused while a project is processing.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.unlock()
	for _, project := range m.projects {
		if project.Status == queue.StatusProcessing {
			return services.Wrap(services.ErrInvalidOperation, "queue", "clear", "project "+project.ID+" is processing", nil)
		}
	}
	if len(m.projects) == 0 {
		return nil
	}
	removed := len(m.projects)
	m.projects = nil
	m.refreshProjectGaugeLocked()
	m.logger.Info("queue cleared", logging.Int("removed", removed))
	persistErr := m.persistLocked(ctx, "clear")
	m.publishLocked(Event{Type: EventQueueChanged, FileIndex: -1})
	return persistErr
}

// Retry re-queues a Failed or Canceled project at the tail. Completed files
// are kept; every other file goes back to Pending.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return services.Wrap(services.ErrNotFound, "queue", "retry", "no project with id "+id, nil)
	}
	project := m.projects[idx]
	if project.Status != queue.StatusFailed && project.Status != queue.StatusCanceled {
		return services.Wrap(services.ErrInvalidOperation, "queue", "retry", "project is "+string(project.Status), nil)
	}

	reset := 0
	for i := range project.Files {
		if project.Files[i].Status != queue.StatusCompleted {
			project.Files[i].Reset()
			reset++
		}
	}
	project.Error = ""
	project.StartedAt = nil
	project.CompletedAt = nil
	m.projects = append(append(m.projects[:idx], m.projects[idx+1:]...), project)
	m.setProjectStatusLocked(project, queue.StatusPending)

	m.logger.Info("project requeued",
		logging.String(logging.FieldEventType, "project_retried"),
		logging.String(logging.FieldProjectID, id),
		logging.Int("files_reset", reset),
	)
	persistErr := m.persistLocked(ctx, "retry")
	m.publishLocked(Event{Type: EventQueueChanged, ProjectID: id, FileIndex: -1})
	return persistErr
}
