package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vidqueue/internal/config"
	"vidqueue/internal/logging"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/workflow"
)

// ErrAlreadyRunning is returned by Open when another process holds the lock.
var ErrAlreadyRunning = errors.New("another vidqueue instance is using this state directory")

// Daemon holds the single-instance lock, the snapshot store, and the
// workflow manager for one state directory.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   queue.Store
	manager *workflow.Manager
	metrics *metricsServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	closed  atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	StatePath    string
	LockFilePath string
	MetricsAddr  string
}

type options struct {
	runner       workflow.FileJobRunner
	managerOpts  []workflow.ManagerOption
	serveMetrics bool
}

// Option configures Open.
type Option func(*options)

// WithRunner replaces the ffmpeg-backed file runner.
func WithRunner(runner workflow.FileJobRunner) Option {
	return func(o *options) { o.runner = runner }
}

// WithManagerOptions forwards options to the workflow manager.
func WithManagerOptions(opts ...workflow.ManagerOption) Option {
	return func(o *options) { o.managerOpts = append(o.managerOpts, opts...) }
}

// WithMetricsServer serves /metrics on cfg.Metrics.Bind once Start is called.
// Offline edits leave it off.
func WithMetricsServer() Option {
	return func(o *options) { o.serveMetrics = true }
}

// Open acquires the lock for cfg's state directory, opens the store, and
// restores the queue. A corrupt snapshot is logged and the queue starts
// empty; Open still succeeds.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "open", "config is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	lockPath := cfg.LockPath()
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	store, err := queue.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	var manager *workflow.Manager
	if o.runner != nil {
		manager = workflow.NewManager(cfg, store, o.runner, logger, o.managerOpts...)
	} else {
		manager = workflow.NewManagerFromConfig(cfg, store, logger, o.managerOpts...)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  manager,
		lockPath: lockPath,
		lock:     lock,
	}
	if o.serveMetrics {
		d.metrics = newMetricsServer(cfg.Metrics.Bind, manager.Metrics(), d.logger)
	}

	if err := manager.Restore(ctx); err != nil {
		d.logger.Warn("queue restore reported an error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_restore_failed"),
		)
	}
	return d, nil
}

// Manager returns the workflow manager for queue operations.
func (d *Daemon) Manager() *workflow.Manager {
	return d.manager
}

// Start brings up the metrics endpoint, if configured, and starts processing.
// The metrics endpoint keeps serving until Close so a drained queue can still
// be scraped.
func (d *Daemon) Start(ctx context.Context) error {
	if d.closed.Load() {
		return errors.New("daemon is closed")
	}
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	if err := d.metrics.start(); err != nil {
		d.running.Store(false)
		return err
	}
	if err := d.manager.Start(ctx); err != nil {
		if !errors.Is(err, services.ErrPersistence) {
			d.metrics.stop()
			d.running.Store(false)
			return fmt.Errorf("start queue: %w", err)
		}
		d.logger.Warn("queue started but its state was not saved", logging.Error(err))
	}
	d.logger.Info("vidqueue started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("state", d.store.Location()),
	)
	return nil
}

// Wait blocks until the queue returns to Idle or ctx is done.
func (d *Daemon) Wait(ctx context.Context) error {
	return d.manager.Wait(ctx)
}

// Close stops the worker, closes the store, and releases the lock.
func (d *Daemon) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.manager.Close()
	d.metrics.stop()

	var errs []error
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release lock", logging.Error(err))
	}
	if d.running.Swap(false) {
		d.logger.Info("vidqueue stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	}
	return errors.Join(errs...)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.manager.Status(),
		StatePath:    d.store.Location(),
		LockFilePath: d.lockPath,
		MetricsAddr:  d.metrics.addr(),
	}
}

// Locked reports whether another process currently holds the lock for cfg.
func Locked(cfg *config.Config) (bool, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
