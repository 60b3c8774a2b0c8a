package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vidqueue/internal/config"
	"vidqueue/internal/encoding"
	"vidqueue/internal/logging"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/testsupport"
	"vidqueue/internal/workflow"
)

// step scripts what the fake encoder does for one source path.
type step struct {
	fail     bool
	block    bool
	release  chan struct{}
	progress []float64
	output   int64
}

// scriptedEncoder implements encoding.Runner without spawning processes.
type scriptedEncoder struct {
	mu      sync.Mutex
	plan    map[string]step
	order   []string
	started chan string
}

func newScriptedEncoder() *scriptedEncoder {
	return &scriptedEncoder{plan: make(map[string]step), started: make(chan string, 64)}
}

func (e *scriptedEncoder) set(src string, s step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plan[src] = s
}

func (e *scriptedEncoder) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func (e *scriptedEncoder) Run(ctx context.Context, src, dst string, _ queue.EncodeSettings, onProgress func(encoding.Progress)) encoding.Result {
	e.mu.Lock()
	s := e.plan[src]
	e.order = append(e.order, src)
	e.mu.Unlock()
	e.started <- src

	for _, fraction := range s.progress {
		onProgress(encoding.Progress{Fraction: fraction, Determinate: true, Elapsed: time.Duration(fraction * float64(10*time.Second))})
	}
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}
	if s.block {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err == nil {
			_ = os.WriteFile(dst, []byte("partial"), 0o644)
		}
		select {
		case <-ctx.Done():
			_ = os.Remove(dst)
			return canceled(ctx.Err())
		case <-s.release:
		}
	}
	if s.fail {
		_ = os.Remove(dst)
		return encoding.Result{
			Cause:    services.CauseNonZeroExit,
			Err:      services.Wrap(services.ErrEncodeNonZeroExit, "encoding", "run encoder", "exit status 1", nil),
			WallTime: time.Second,
		}
	}
	size := s.output
	if size == 0 {
		size = 25
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return encoding.Result{Cause: services.CauseSpawnError, Err: err}
	}
	if err := os.WriteFile(dst, make([]byte, size), 0o644); err != nil {
		return encoding.Result{Cause: services.CauseSpawnError, Err: err}
	}
	return encoding.Result{Success: true, WallTime: time.Second}
}

func canceled(cause error) encoding.Result {
	return encoding.Result{
		Cause: services.CauseCanceled,
		Err:   services.Wrap(services.ErrCancellationRequested, "encoding", "run encoder", "canceled", cause),
	}
}

// flakyStore fails every Save while failing is set.
type flakyStore struct {
	queue.Store
	mu      sync.Mutex
	failing bool
}

func (s *flakyStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *flakyStore) Save(ctx context.Context, snapshot queue.Snapshot) error {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return services.Wrap(services.ErrPersistence, "queue", "save snapshot", "", errors.New("disk full"))
	}
	return s.Store.Save(ctx, snapshot)
}

// slowStore delays every Save so observers can race the write.
type slowStore struct {
	queue.Store
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, snapshot queue.Snapshot) error {
	time.Sleep(s.delay)
	return s.Store.Save(ctx, snapshot)
}

type harness struct {
	cfg     *config.Config
	store   queue.Store
	encoder *scriptedEncoder
	manager *workflow.Manager
	events  *eventRecorder
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	return newHarnessWithStore(t, cfg, store)
}

func newHarnessWithStore(t *testing.T, cfg *config.Config, store queue.Store) *harness {
	t.Helper()
	encoder := newScriptedEncoder()
	mgr := workflow.NewManager(cfg, store, encoding.NewFileRunner(encoder, logging.NewNop()), logging.NewNop())
	h := &harness{cfg: cfg, store: store, encoder: encoder, manager: mgr, events: record(mgr)}
	t.Cleanup(mgr.Close)
	return h
}

// project writes n source files of size bytes and returns a spec for them.
func (h *harness) project(t *testing.T, name string, n int, size int64) workflow.ProjectSpec {
	t.Helper()
	inDir := filepath.Join(testsupport.BaseDir(h.cfg), "input", name)
	spec := workflow.ProjectSpec{Name: name}
	for i := 0; i < n; i++ {
		src := filepath.Join(inDir, "clip"+strconv.Itoa(i)+".mov")
		testsupport.WriteFile(t, src, size)
		spec.Files = append(spec.Files, workflow.FileSpec{
			SourcePath:      src,
			DestinationPath: filepath.Join(h.cfg.Paths.OutputRoot, name, "clip"+strconv.Itoa(i)+"_compressed.mp4"),
		})
	}
	return spec
}

func (h *harness) enqueue(t *testing.T, spec workflow.ProjectSpec) *queue.Project {
	t.Helper()
	project, err := h.manager.Enqueue(context.Background(), spec)
	require.NoError(t, err)
	return project
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.manager.Wait(ctx), "queue did not return to idle")
}

func (h *harness) waitStarted(t *testing.T, src string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-h.encoder.started:
			if got == src {
				return
			}
		case <-timeout:
			t.Fatalf("encoder never started %s", src)
		}
	}
}

func (h *harness) projectByID(t *testing.T, id string) queue.Project {
	t.Helper()
	snapshot := h.manager.Snapshot()
	project, ok := snapshot.Find(id)
	require.True(t, ok, "project %s not in snapshot", id)
	return *project
}

// closeAndCollect stops the manager and returns every event it published.
func (h *harness) closeAndCollect(t *testing.T) []workflow.Event {
	t.Helper()
	h.manager.Close()
	select {
	case <-h.events.done:
	case <-time.After(5 * time.Second):
		t.Fatal("event channel was not closed")
	}
	return h.events.all()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []workflow.Event
	done   chan struct{}
}

func record(mgr *workflow.Manager) *eventRecorder {
	ch, _ := mgr.Subscribe(4096)
	r := &eventRecorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for evt := range ch {
			r.mu.Lock()
			r.events = append(r.events, evt)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *eventRecorder) all() []workflow.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]workflow.Event(nil), r.events...)
}

func (r *eventRecorder) ofType(kind workflow.EventType) []workflow.Event {
	var out []workflow.Event
	for _, evt := range r.all() {
		if evt.Type == kind {
			out = append(out, evt)
		}
	}
	return out
}

func fileStatuses(project queue.Project) []queue.Status {
	out := make([]queue.Status, len(project.Files))
	for i, file := range project.Files {
		out[i] = file.Status
	}
	return out
}

