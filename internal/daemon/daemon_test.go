package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidqueue/internal/daemon"
	"vidqueue/internal/encoding"
	"vidqueue/internal/logging"
	"vidqueue/internal/queue"
	"vidqueue/internal/testsupport"
	"vidqueue/internal/workflow"
)

type copyEncoder struct{}

func (copyEncoder) Run(_ context.Context, _ string, dst string, _ queue.EncodeSettings, onProgress func(encoding.Progress)) encoding.Result {
	if onProgress != nil {
		onProgress(encoding.Progress{Fraction: 1, Determinate: true})
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return encoding.Result{Err: err}
	}
	if err := os.WriteFile(dst, make([]byte, 10), 0o644); err != nil {
		return encoding.Result{Err: err}
	}
	return encoding.Result{Success: true, WallTime: time.Millisecond}
}

func TestOpenEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := encoding.NewFileRunner(copyEncoder{}, logging.NewNop())

	first, err := daemon.Open(context.Background(), cfg, logging.NewNop(), daemon.WithRunner(runner))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	locked, err := daemon.Locked(cfg)
	if err != nil || !locked {
		t.Fatalf("expected lock to be held, locked=%v err=%v", locked, err)
	}
	if _, err := daemon.Open(context.Background(), cfg, logging.NewNop(), daemon.WithRunner(runner)); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if locked, _ := daemon.Locked(cfg); locked {
		t.Fatal("expected lock to be released after Close")
	}

	second, err := daemon.Open(context.Background(), cfg, logging.NewNop(), daemon.WithRunner(runner))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = second.Close()
}

func TestRunDrainsQueueAndPersists(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStateBackend(queue.BackendSQLite))
	runner := encoding.NewFileRunner(copyEncoder{}, logging.NewNop())
	ctx := context.Background()

	d, err := daemon.Open(ctx, cfg, logging.NewNop(), daemon.WithRunner(runner))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	src := filepath.Join(testsupport.BaseDir(cfg), "in", "clip.mov")
	testsupport.WriteFile(t, src, 100)
	project, err := d.Manager().Enqueue(ctx, workflow.ProjectSpec{
		Name:  "Trip",
		Files: []workflow.FileSpec{{SourcePath: src, DestinationPath: filepath.Join(cfg.Paths.OutputRoot, "Trip", "clip_compressed.mp4")}},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := daemon.Open(ctx, cfg, logging.NewNop(), daemon.WithRunner(runner))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	snapshot := reopened.Manager().Snapshot()
	got, ok := snapshot.Find(project.ID)
	if !ok {
		t.Fatalf("project %s missing after reopen", project.ID)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("status after reopen = %q, want completed", got.Status)
	}
	if reopened.Status().Workflow.Mode != queue.ModeIdle {
		t.Fatalf("mode after reopen = %q", reopened.Status().Workflow.Mode)
	}
}

func TestMetricsServerServesQueueMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.Bind = "127.0.0.1:0"
	runner := encoding.NewFileRunner(copyEncoder{}, logging.NewNop())
	ctx := context.Background()

	d, err := daemon.Open(ctx, cfg, logging.NewNop(), daemon.WithRunner(runner), daemon.WithMetricsServer())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := d.Status().MetricsAddr
	if addr == "" {
		t.Fatal("expected metrics address")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, name := range []string{"vidqueue_queue_mode", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
