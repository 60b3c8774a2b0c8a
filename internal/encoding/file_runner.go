package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vidqueue/internal/fileutil"
	"vidqueue/internal/logging"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
)

// Runner is the encoder contract the file runner depends on.
type Runner interface {
	Run(ctx context.Context, src, dst string, settings queue.EncodeSettings, onProgress func(Progress)) Result
}

// FileProgress is a progress observation scoped to one file task.
type FileProgress struct {
	Progress
	SourcePath string
}

// FileRunner drives a Runner for a single FileTask and records the outcome on
// the task in place.
type FileRunner struct {
	runner Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewFileRunner wraps runner. Passing an *Invoker is the normal case.
func NewFileRunner(runner Runner, logger *slog.Logger) *FileRunner {
	return &FileRunner{
		runner: runner,
		logger: logging.NewComponentLogger(logger, "file_runner"),
		now:    time.Now,
	}
}

// RunFile moves task from Pending through Processing into Completed, Failed,
// or Canceled. onStart is called once the task is Processing; onProgress is
// called once per encoder progress callback. Both may be nil and are invoked
// on the calling goroutine. The returned error is nil on success and otherwise
// carries the services marker for the failure cause.
func (r *FileRunner) RunFile(ctx context.Context, task *queue.FileTask, settings queue.EncodeSettings, onStart func(), onProgress func(FileProgress)) error {
	if task == nil {
		return services.Wrap(services.ErrValidation, "encoding", "run file", "task is required", nil)
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String("source", task.SourcePath))

	started := r.now()
	task.Status = queue.StatusProcessing
	task.Progress = 0
	task.Result = nil
	task.StartedAt = &started
	task.CompletedAt = nil
	if onStart != nil {
		onStart()
	}

	originalSize, sizeErr := fileutil.FileSize(task.SourcePath)
	if sizeErr != nil {
		err := services.Wrap(services.ErrValidation, "encoding", "stat source", "source file unreadable", sizeErr)
		r.finish(task, queue.StatusFailed, &queue.FileResult{Cause: services.CauseValidation, Message: err.Error()})
		logger.Error("file failed", logging.Error(err), logging.String(logging.FieldEventType, "file_failed"))
		return err
	}

	sampler := logging.NewProgressSampler(5)
	result := r.runner.Run(ctx, task.SourcePath, task.DestinationPath, settings, func(p Progress) {
		if p.Determinate && p.Fraction > task.Progress {
			task.Progress = p.Fraction
		}
		percent := -1.0
		if p.Determinate {
			percent = p.Fraction * 100
		}
		if sampler.ShouldLog(percent, task.SourcePath) {
			attrs := []logging.Attr{logging.Duration("media_time", p.Elapsed)}
			if p.Determinate {
				attrs = append(attrs, logging.Float64("progress_percent", percent))
			}
			if p.ETA > 0 {
				attrs = append(attrs, logging.String("eta", FormatETA(p.ETA)))
			}
			logger.Debug("encode progress", logging.Args(attrs...)...)
		}
		if onProgress != nil {
			onProgress(FileProgress{Progress: p, SourcePath: task.SourcePath})
		}
	})

	fileResult := &queue.FileResult{
		OriginalSizeBytes: originalSize,
		DurationSeconds:   result.WallTime.Seconds(),
		Cause:             result.Cause,
	}

	switch {
	case result.Success:
		compressedSize, err := fileutil.FileSize(task.DestinationPath)
		if err != nil || compressedSize <= 0 {
			err = services.Wrap(services.ErrMissingOutput, "encoding", "measure output", "output vanished after encode", err)
			fileResult.Cause = services.CauseMissingOutput
			fileResult.Message = err.Error()
			r.finish(task, queue.StatusFailed, fileResult)
			logger.Error("file failed", logging.Error(err), logging.String(logging.FieldEventType, "file_failed"))
			return err
		}
		queue.ComputeSizeMetrics(originalSize, compressedSize).Apply(fileResult)
		task.Progress = 1
		r.finish(task, queue.StatusCompleted, fileResult)
		logger.Info("file completed",
			logging.String(logging.FieldEventType, "file_completed"),
			logging.Int64("original_bytes", fileResult.OriginalSizeBytes),
			logging.Int64("compressed_bytes", fileResult.CompressedSizeBytes),
			logging.String("reduction", fmt.Sprintf("%.1f%%", fileResult.PercentReduction)),
			logging.Duration("elapsed", result.WallTime),
		)
		return nil

	case result.Cause == services.CauseCanceled:
		fileResult.Message = "canceled"
		r.finish(task, queue.StatusCanceled, fileResult)
		logger.Info("file canceled", logging.String(logging.FieldEventType, "file_canceled"))
		if result.Err != nil {
			return result.Err
		}
		return services.Wrap(services.ErrCancellationRequested, "encoding", "run file", "canceled", nil)

	default:
		err := result.Err
		if err == nil {
			err = services.Wrap(services.ErrExternalTool, "encoding", "run file", "encoder failed", nil)
		}
		if fileResult.Cause == services.CauseNone {
			fileResult.Cause = services.CauseOf(err)
		}
		fileResult.Message = strings.TrimSpace(err.Error())
		r.finish(task, queue.StatusFailed, fileResult)
		logging.ErrorWithContext(logger, "file failed", "file_failed",
			logging.Error(err),
			logging.String("cause", string(fileResult.Cause)),
			logging.String(logging.FieldErrorHint, hintForCause(fileResult.Cause)),
		)
		return err
	}
}

func (r *FileRunner) finish(task *queue.FileTask, status queue.Status, result *queue.FileResult) {
	completed := r.now()
	task.Status = status
	task.Result = result
	task.CompletedAt = &completed
}

func hintForCause(cause services.FailureCause) string {
	switch cause {
	case services.CauseSpawnError:
		return "check encoder.ffmpeg_binary and run 'vidqueue check'"
	case services.CauseTimeout:
		return "encoder stalled; raise encoder.liveness_timeout_seconds if the source is slow to decode"
	case services.CauseNonZeroExit:
		return "inspect the ffmpeg error output in the log"
	case services.CauseMissingOutput:
		return "check free space and permissions on the output directory"
	case services.CauseProbeUnavailable:
		return "verify ffprobe can read the source or disable encoder.strict_probe"
	default:
		return "check logs for details"
	}
}
