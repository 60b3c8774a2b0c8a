package encoding

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidqueue/internal/logging"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/testsupport"
)

type fakeRunner struct {
	outputSize int64
	progress   []float64
	result     Result
}

func (f *fakeRunner) Run(_ context.Context, _ string, dst string, _ queue.EncodeSettings, onProgress func(Progress)) Result {
	for _, fraction := range f.progress {
		onProgress(Progress{Fraction: fraction, Determinate: true})
	}
	if f.outputSize > 0 {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return Result{Cause: services.CauseSpawnError, Err: err}
		}
		if err := os.WriteFile(dst, make([]byte, f.outputSize), 0o644); err != nil {
			return Result{Cause: services.CauseSpawnError, Err: err}
		}
	}
	r := f.result
	r.WallTime = 2 * time.Second
	return r
}

func newTask(t *testing.T, sourceSize int64) *queue.FileTask {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mov")
	testsupport.WriteFile(t, src, sourceSize)
	return &queue.FileTask{
		SourcePath:      src,
		DestinationPath: filepath.Join(dir, "out", "clip_compressed.mp4"),
		Status:          queue.StatusPending,
	}
}

func TestRunFileCompletedRecordsSizeMetrics(t *testing.T) {
	task := newTask(t, 1000)
	runner := NewFileRunner(&fakeRunner{outputSize: 250, progress: []float64{0.25, 0.5, 1}, result: Result{Success: true}}, logging.NewNop())

	var started bool
	var observed []float64
	err := runner.RunFile(context.Background(), task, queue.EncodeSettings{}, func() {
		started = true
		if task.Status != queue.StatusProcessing {
			t.Errorf("onStart saw status %q", task.Status)
		}
	}, func(p FileProgress) {
		observed = append(observed, p.Fraction)
		if p.SourcePath != task.SourcePath {
			t.Errorf("progress source = %q", p.SourcePath)
		}
	})
	if err != nil {
		t.Fatalf("RunFile returned error: %v", err)
	}
	if !started {
		t.Fatal("onStart was not called")
	}
	if len(observed) != 3 {
		t.Fatalf("expected one progress event per callback, got %d", len(observed))
	}
	if task.Status != queue.StatusCompleted || task.Progress != 1 {
		t.Fatalf("unexpected task state: %+v", task)
	}
	res := task.Result
	if res == nil {
		t.Fatal("expected result")
	}
	if res.OriginalSizeBytes != 1000 || res.CompressedSizeBytes != 250 || res.BytesSaved != 750 {
		t.Fatalf("unexpected sizes: %+v", res)
	}
	if res.PercentReduction != 75 {
		t.Fatalf("PercentReduction = %v, want 75", res.PercentReduction)
	}
	if res.DurationSeconds != 2 {
		t.Fatalf("DurationSeconds = %v", res.DurationSeconds)
	}
	if task.StartedAt == nil || task.CompletedAt == nil {
		t.Fatal("expected timestamps to be set")
	}
}

func TestRunFileFailureKeepsCause(t *testing.T) {
	task := newTask(t, 100)
	failure := services.Wrap(services.ErrEncodeNonZeroExit, "encoding", "run encoder", "exit status 1", nil)
	runner := NewFileRunner(&fakeRunner{result: Result{Cause: services.CauseNonZeroExit, Err: failure}}, logging.NewNop())

	err := runner.RunFile(context.Background(), task, queue.EncodeSettings{}, nil, nil)
	if !errors.Is(err, services.ErrEncodeNonZeroExit) {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != queue.StatusFailed {
		t.Fatalf("status = %q", task.Status)
	}
	if task.Result.Cause != services.CauseNonZeroExit || task.Result.Message == "" {
		t.Fatalf("unexpected result: %+v", task.Result)
	}
}

func TestRunFileCanceled(t *testing.T) {
	task := newTask(t, 100)
	runner := NewFileRunner(&fakeRunner{progress: []float64{0.4}, result: canceledResult(context.Canceled)}, logging.NewNop())

	err := runner.RunFile(context.Background(), task, queue.EncodeSettings{}, nil, nil)
	if !services.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if task.Status != queue.StatusCanceled {
		t.Fatalf("status = %q", task.Status)
	}
	if task.Progress != 0.4 {
		t.Fatalf("progress should keep last reported fraction, got %v", task.Progress)
	}
}

func TestRunFileMissingSourceFails(t *testing.T) {
	task := &queue.FileTask{SourcePath: filepath.Join(t.TempDir(), "gone.mov"), DestinationPath: "/tmp/out.mp4"}
	runner := NewFileRunner(&fakeRunner{result: Result{Success: true}}, logging.NewNop())

	err := runner.RunFile(context.Background(), task, queue.EncodeSettings{}, nil, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != queue.StatusFailed || task.Result.Cause != services.CauseValidation {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestRunFileProgressNeverDecreases(t *testing.T) {
	task := newTask(t, 100)
	runner := NewFileRunner(&fakeRunner{outputSize: 10, progress: []float64{0.6, 0.3}, result: Result{Success: true}}, logging.NewNop())

	var seen []float64
	_ = runner.RunFile(context.Background(), task, queue.EncodeSettings{}, nil, func(FileProgress) {
		seen = append(seen, task.Progress)
	})
	if len(seen) != 2 || seen[1] != 0.6 {
		t.Fatalf("task progress regressed: %v", seen)
	}
}
