package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vidqueue/internal/config"
	"vidqueue/internal/encoding"
	"vidqueue/internal/logging"
	"vidqueue/internal/notifications"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
)

// FileJobRunner encodes one file task in place. *encoding.FileRunner is the
// production implementation.
type FileJobRunner interface {
	RunFile(ctx context.Context, task *queue.FileTask, settings queue.EncodeSettings, onStart func(), onProgress func(encoding.FileProgress)) error
}

type cancelScope int

const (
	cancelNone cancelScope = iota
	cancelCurrent
	cancelQueue
)

// Manager owns the queue state and the single worker that processes it.
type Manager struct {
	cfg      *config.Config
	store    queue.Store
	runner   FileJobRunner
	logger   *slog.Logger
	notifier notifications.Service
	metrics  *Metrics
	bus      *eventBus
	now      func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	notifyWG   sync.WaitGroup

	mu         sync.Mutex
	projects   []*queue.Project
	mode       queue.Mode
	cursor     string
	scope      cancelScope
	fileCancel context.CancelFunc
	changed    chan struct{}
	lastErr    error
	closed     bool
	// outbox holds events raised under mu until the critical section that
	// raised them has persisted; unlock delivers them.
	outbox []Event
	runStart   time.Time
	runStats   runStats
}

type runStats struct {
	completed  int
	failed     int
	bytesSaved int64
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier overrides the notification service built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithMetrics shares a collector set, typically one registered for /metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a manager around store and runner. The queue starts
// empty and Idle; call Restore to load the persisted snapshot.
func NewManager(cfg *config.Config, store queue.Store, runner FileJobRunner, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		store:      store,
		runner:     runner,
		logger:     logging.NewComponentLogger(logger, "queue"),
		notifier:   notifications.NewService(cfg),
		metrics:    NewMetrics(),
		bus:        newEventBus(),
		now:        time.Now,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		mode:       queue.ModeIdle,
		changed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics.setMode(m.mode)
	return m
}

// NewManagerFromConfig wires the ffmpeg invoker and file runner described by
// cfg into a new Manager.
func NewManagerFromConfig(cfg *config.Config, store queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	invoker := encoding.NewInvoker(encoding.InvokerConfigFromConfig(cfg), logger)
	return NewManager(cfg, store, encoding.NewFileRunner(invoker, logger), logger, opts...)
}

// Metrics returns the collectors this manager updates.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Restore loads the persisted snapshot. Files and projects left Processing by
// an interrupted run go back to Pending. A missing snapshot leaves the queue
// empty; an unreadable or corrupt one is logged as lost state and the queue
// starts empty and Idle rather than failing.
func (m *Manager) Restore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.unlock()
	if m.mode != queue.ModeIdle {
		return services.Wrap(services.ErrInvalidOperation, "queue", "restore", "queue is active", nil)
	}

	snapshot, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, queue.ErrNotFound):
		m.logger.Info("no persisted queue found; starting empty", logging.String("location", m.store.Location()))
		m.refreshProjectGaugeLocked()
		return nil
	case err != nil:
		m.lastErr = err
		logging.WarnWithContext(m.logger, "queue snapshot unreadable; starting with an empty queue", "queue_state_lost",
			logging.Error(err),
			logging.String("location", m.store.Location()),
			logging.String(logging.FieldErrorHint, "inspect or remove the state file; the next save overwrites it"),
			logging.String(logging.FieldImpact, "previously queued projects were not restored"),
		)
		m.projects = nil
		m.refreshProjectGaugeLocked()
		return nil
	}

	recovered, reset := queue.RecoverSnapshot(snapshot)
	m.projects = make([]*queue.Project, 0, len(recovered.Projects))
	for i := range recovered.Projects {
		m.projects = append(m.projects, recovered.Projects[i].Clone())
	}
	m.mode = queue.ModeIdle
	m.cursor = ""
	m.refreshProjectGaugeLocked()

	m.logger.Info("queue restored",
		logging.String(logging.FieldEventType, "queue_restored"),
		logging.Int("projects", len(m.projects)),
		logging.Int("files_reset", reset),
	)
	if reset > 0 {
		_ = m.persistLocked(ctx, "restore")
	}
	return nil
}

// Subscribe registers an observer. Events are delivered in the order the
// manager raised them, after the state they describe has been saved. When more
// than buffer events are waiting, new file-progress events are dropped for
// that subscriber; status, result, mode and error events never are. Call the
// returned function to unsubscribe.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	return m.bus.subscribe(buffer)
}

// DroppedEvents reports how many file-progress events were discarded for slow
// subscribers.
func (m *Manager) DroppedEvents() uint64 {
	return m.bus.droppedCount()
}

// Snapshot returns a deep copy of the current queue state.
func (m *Manager) Snapshot() queue.Snapshot {
	m.mu.Lock()
	defer m.unlock()
	return m.snapshotLocked()
}

// Wait blocks until the queue is Idle or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	for m.mode != queue.ModeIdle {
		changed := m.changed
		m.unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
	}
	m.unlock()
	return nil
}

// Close stops the worker. An in-flight file is terminated and, like a crash,
// returned to Pending so the next run restarts it. Subscriber channels are
// closed. The store is left open for the caller to close.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.unlock()
		return
	}
	m.closed = true
	m.unlock()

	m.baseCancel()
	m.wg.Wait()
	m.notifyWG.Wait()
	m.bus.close()
}

func (m *Manager) snapshotLocked() queue.Snapshot {
	snapshot := queue.Snapshot{
		Version:  queue.SnapshotVersion,
		Mode:     m.mode,
		Cursor:   m.cursor,
		Projects: make([]queue.Project, 0, len(m.projects)),
		SavedAt:  m.now().UTC(),
	}
	for _, project := range m.projects {
		snapshot.Projects = append(snapshot.Projects, *project.Clone())
	}
	return snapshot
}

// persistLocked writes the current state. A failure is recorded and published
// but the in-memory transition stands.
func (m *Manager) persistLocked(ctx context.Context, operation string) error {
	err := m.store.Save(context.WithoutCancel(ctx), m.snapshotLocked())
	if err == nil {
		return nil
	}
	m.lastErr = err
	m.metrics.persistFailure()
	logging.ErrorWithContext(m.logger, "queue snapshot write failed", "queue_persist_failed",
		logging.Error(err),
		logging.String("operation", operation),
		logging.String("location", m.store.Location()),
		logging.String(logging.FieldErrorHint, "check free space and permissions on the state directory"),
		logging.String(logging.FieldImpact, "queue changes are not durable until a later write succeeds"),
	)
	m.publishLocked(Event{Type: EventPersistenceError, FileIndex: -1, Err: err.Error()})
	m.notifyErrorAsync(err, "queue snapshot ("+operation+")")
	return err
}

func (m *Manager) publishLocked(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = m.now()
	}
	m.outbox = append(m.outbox, evt)
}

// unlock releases mu after handing queued events to the bus. Transitions
// persist before they unlock, so a subscriber never sees a state change that
// has not been written (or reported as a persistence error) first.
func (m *Manager) unlock() {
	for _, evt := range m.outbox {
		m.bus.publish(evt)
	}
	clear(m.outbox)
	m.outbox = m.outbox[:0]
	m.mu.Unlock()
}

func (m *Manager) setModeLocked(mode queue.Mode) {
	if m.mode == mode {
		return
	}
	previous := m.mode
	m.mode = mode
	if mode == queue.ModeIdle {
		m.scope = cancelNone
		m.cursor = ""
	}
	m.metrics.setMode(mode)
	m.logger.Info("queue mode changed",
		logging.String(logging.FieldEventType, "queue_mode_changed"),
		logging.String("from", string(previous)),
		logging.String("to", string(mode)),
	)
	m.publishLocked(Event{Type: EventQueueModeChanged, FileIndex: -1, Mode: mode})
	m.broadcastLocked()
}

// broadcastLocked wakes anything waiting on a state change.
func (m *Manager) broadcastLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) setProjectStatusLocked(project *queue.Project, status queue.Status) {
	if project.Status == status {
		return
	}
	project.Status = status
	m.publishLocked(Event{
		Type:            EventProjectStatusChanged,
		ProjectID:       project.ID,
		FileIndex:       -1,
		Status:          status,
		ProjectProgress: project.Progress(),
	})
	m.refreshProjectGaugeLocked()
}

func (m *Manager) refreshProjectGaugeLocked() {
	counts := make(map[queue.Status]int, len(m.projects))
	for _, project := range m.projects {
		counts[project.Status]++
	}
	m.metrics.setProjectCounts(counts)
}

func (m *Manager) indexLocked(id string) int {
	for i, project := range m.projects {
		if project.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) findLocked(id string) (*queue.Project, error) {
	idx := m.indexLocked(id)
	if idx < 0 {
		return nil, services.Wrap(services.ErrNotFound, "queue", "find project", "no project with id "+id, nil)
	}
	return m.projects[idx], nil
}

func (m *Manager) ensureOpenLocked(operation string) error {
	if m.closed {
		return services.Wrap(services.ErrInvalidOperation, "queue", operation, "manager is closed", nil)
	}
	return nil
}
