package encoding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vidqueue/internal/config"
	"vidqueue/internal/fileutil"
	"vidqueue/internal/logging"
	"vidqueue/internal/procgroup"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
)

const (
	stderrTailLines = 8
	drainTimeout    = 2 * time.Second
)

// InvokerConfig carries the binaries and supervision timeouts for the encoder.
type InvokerConfig struct {
	FFmpegBinary    string
	FFprobeBinary   string
	ProbeTimeout    time.Duration
	LivenessTimeout time.Duration
	GracePeriod     time.Duration
	StrictProbe     bool
}

// InvokerConfigFromConfig extracts the encoder section of the configuration.
func InvokerConfigFromConfig(cfg *config.Config) InvokerConfig {
	if cfg == nil {
		return InvokerConfig{}
	}
	return InvokerConfig{
		FFmpegBinary:    cfg.Encoder.FFmpegBinary,
		FFprobeBinary:   cfg.Encoder.FFprobeBinary,
		ProbeTimeout:    cfg.ProbeTimeout(),
		LivenessTimeout: cfg.LivenessTimeout(),
		GracePeriod:     cfg.GracePeriod(),
		StrictProbe:     cfg.Encoder.StrictProbe,
	}
}

// Result is the outcome of one encoder invocation.
type Result struct {
	Success  bool
	Cause    services.FailureCause
	Err      error
	ExitCode int
	// ProbeFailed is set when the duration probe failed and progress was
	// reported as elapsed time only.
	ProbeFailed bool
	MediaTime   time.Duration
	WallTime    time.Duration
}

// Invoker runs and supervises the external encoder for one file per call.
type Invoker struct {
	cfg    InvokerConfig
	logger *slog.Logger
}

// NewInvoker constructs an invoker, filling unset fields with defaults.
func NewInvoker(cfg InvokerConfig, logger *slog.Logger) *Invoker {
	if strings.TrimSpace(cfg.FFmpegBinary) == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(cfg.FFprobeBinary) == "" {
		cfg.FFprobeBinary = "ffprobe"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = 5 * time.Minute
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	return &Invoker{cfg: cfg, logger: logging.NewComponentLogger(logger, "encoder")}
}

// Run encodes src into dst and blocks until the encoder exits, times out, or
// ctx is canceled. onProgress is called once per recognized progress line and
// may be nil. The spawned process never outlives this call.
func (inv *Invoker) Run(ctx context.Context, src, dst string, settings queue.EncodeSettings, onProgress func(Progress)) Result {
	started := time.Now()
	logger := logging.WithContext(ctx, inv.logger).With(
		logging.String("source", src),
		logging.String("destination", dst),
	)
	finish := func(r Result) Result {
		r.WallTime = time.Since(started)
		return r
	}

	if err := ctx.Err(); err != nil {
		return finish(canceledResult(err))
	}

	total, probeErr := inv.probe(ctx, src)
	if probeErr != nil {
		if ctx.Err() != nil {
			return finish(canceledResult(ctx.Err()))
		}
		if inv.cfg.StrictProbe {
			err := services.Wrap(services.ErrProbeUnavailable, "encoding", "probe duration", "strict probing is enabled", probeErr)
			return finish(Result{Cause: services.CauseProbeUnavailable, Err: err, ProbeFailed: true})
		}
		logging.WarnWithContext(logger, "duration probe failed; progress will report elapsed time only",
			"probe_unavailable",
			logging.Error(probeErr),
			logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the source is readable"),
			logging.String(logging.FieldImpact, "progress fraction unknown for this file"),
		)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		err = services.Wrap(services.ErrProcessSpawn, "encoding", "prepare output", "create output directory", err)
		return finish(Result{Cause: services.CauseSpawnError, Err: err, ProbeFailed: probeErr != nil})
	}

	result := inv.supervise(ctx, logger, src, dst, settings, total, onProgress)
	result.ProbeFailed = probeErr != nil
	return finish(result)
}

func (inv *Invoker) probe(ctx context.Context, src string) (time.Duration, error) {
	probeCtx, cancel := context.WithTimeout(ctx, inv.cfg.ProbeTimeout)
	defer cancel()
	seconds, err := durationProbe(probeCtx, inv.cfg.FFprobeBinary, src)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

type stderrSummary struct {
	tail []string
}

func (inv *Invoker) supervise(ctx context.Context, logger *slog.Logger, src, dst string, settings queue.EncodeSettings, total time.Duration, onProgress func(Progress)) Result {
	args := BuildArgs(src, dst, settings)
	cmd := exec.Command(inv.cfg.FFmpegBinary, args...)
	procgroup.Configure(cmd)

	stderrReader, stderrWriter, err := os.Pipe()
	if err != nil {
		err = services.Wrap(services.ErrProcessSpawn, "encoding", "start encoder", "create stderr pipe", err)
		return Result{Cause: services.CauseSpawnError, Err: err}
	}
	defer stderrReader.Close()
	cmd.Stderr = stderrWriter

	logger.Info("launching encoder",
		logging.String("command", inv.cfg.FFmpegBinary+" "+strings.Join(args, " ")),
		logging.Duration("media_duration", total),
	)
	if err := cmd.Start(); err != nil {
		_ = stderrWriter.Close()
		err = services.Wrap(services.ErrProcessSpawn, "encoding", "start encoder", inv.cfg.FFmpegBinary, err)
		return Result{Cause: services.CauseSpawnError, Err: err}
	}
	_ = stderrWriter.Close()

	progressCh := make(chan time.Duration, 64)
	summaryCh := make(chan stderrSummary, 1)
	done := make(chan struct{})
	defer close(done)
	go readStderr(stderrReader, progressCh, summaryCh, done)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	exited := false
	defer func() {
		if !exited {
			_ = procgroup.Kill(cmd)
			<-waitCh
		}
	}()

	tracker := newProgressTracker(total, nil)
	liveness := time.NewTimer(inv.cfg.LivenessTimeout)
	defer liveness.Stop()

	emit := func(elapsed time.Duration) {
		p := tracker.observe(elapsed)
		if onProgress != nil {
			onProgress(p)
		}
	}

	for {
		select {
		case elapsed, ok := <-progressCh:
			if !ok {
				progressCh = nil
				continue
			}
			if !liveness.Stop() {
				select {
				case <-liveness.C:
				default:
				}
			}
			liveness.Reset(inv.cfg.LivenessTimeout)
			emit(elapsed)

		case waitErr := <-waitCh:
			exited = true
			drainProgress(progressCh, emit)
			summary := collectSummary(summaryCh)
			return inv.classifyExit(logger, dst, waitErr, summary, tracker.maxElapsed)

		case <-liveness.C:
			logging.WarnWithContext(logger, "encoder produced no progress within liveness timeout; terminating",
				"encode_timeout",
				logging.Duration("liveness_timeout", inv.cfg.LivenessTimeout),
				logging.String(logging.FieldErrorHint, "check the source file or raise encoder.liveness_timeout_seconds"),
				logging.String(logging.FieldImpact, "file marked failed"),
			)
			inv.escalate(logger, cmd, waitCh)
			exited = true
			inv.removePartial(logger, dst)
			err := services.Wrap(services.ErrEncodeTimeout, "encoding", "supervise encoder",
				fmt.Sprintf("no progress for %s", inv.cfg.LivenessTimeout), nil)
			return Result{Cause: services.CauseTimeout, Err: err, ExitCode: exitCode(cmd), MediaTime: tracker.maxElapsed}

		case <-ctx.Done():
			logger.Info("encoder cancellation requested", logging.Duration("grace_period", inv.cfg.GracePeriod))
			inv.escalate(logger, cmd, waitCh)
			exited = true
			inv.removePartial(logger, dst)
			result := canceledResult(ctx.Err())
			result.ExitCode = exitCode(cmd)
			result.MediaTime = tracker.maxElapsed
			return result
		}
	}
}

// escalate sends SIGTERM to the encoder's process group, waits for the grace
// period, and then sends SIGKILL. It returns once the process has been reaped.
func (inv *Invoker) escalate(logger *slog.Logger, cmd *exec.Cmd, waitCh <-chan error) {
	if err := procgroup.Terminate(cmd); err != nil {
		logger.Debug("terminate encoder failed", logging.Error(err))
	}
	grace := time.NewTimer(inv.cfg.GracePeriod)
	defer grace.Stop()
	select {
	case <-waitCh:
		return
	case <-grace.C:
	}
	logging.WarnWithContext(logger, "encoder ignored terminate signal; killing",
		"encoder_killed",
		logging.Duration("grace_period", inv.cfg.GracePeriod),
		logging.String(logging.FieldImpact, "encoder process group force-killed"),
	)
	if err := procgroup.Kill(cmd); err != nil {
		logger.Debug("kill encoder failed", logging.Error(err))
	}
	<-waitCh
}

func (inv *Invoker) classifyExit(logger *slog.Logger, dst string, waitErr error, summary stderrSummary, mediaTime time.Duration) Result {
	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		inv.removePartial(logger, dst)
		message := fmt.Sprintf("exit status %d", code)
		if tail := strings.Join(summary.tail, " | "); tail != "" {
			message += ": " + tail
		}
		err := services.Wrap(services.ErrEncodeNonZeroExit, "encoding", "run encoder", message, nil)
		return Result{Cause: services.CauseNonZeroExit, Err: err, ExitCode: code, MediaTime: mediaTime}
	}

	size, statErr := fileutil.FileSize(dst)
	if statErr != nil || size <= 0 {
		inv.removePartial(logger, dst)
		detail := "output file is empty"
		if statErr != nil {
			detail = "output file missing"
		}
		err := services.Wrap(services.ErrMissingOutput, "encoding", "validate output", detail, statErr)
		return Result{Cause: services.CauseMissingOutput, Err: err, MediaTime: mediaTime}
	}
	return Result{Success: true, MediaTime: mediaTime}
}

func (inv *Invoker) removePartial(logger *slog.Logger, dst string) {
	if err := fileutil.RemoveIfExists(dst); err != nil {
		logging.WarnWithContext(logger, "failed to remove partial output",
			"partial_output_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the destination file manually"),
			logging.String(logging.FieldImpact, "incomplete file left in output directory"),
		)
	}
}

func readStderr(r *os.File, progressCh chan<- time.Duration, summaryCh chan<- stderrSummary, done <-chan struct{}) {
	defer close(progressCh)
	var summary stderrSummary
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesWithCR)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if elapsed, ok := ParseProgressLine(line); ok {
			select {
			case progressCh <- elapsed:
			case <-done:
				return
			}
			continue
		}
		summary.tail = append(summary.tail, line)
		if len(summary.tail) > stderrTailLines {
			summary.tail = summary.tail[1:]
		}
	}
	summaryCh <- summary
}

// drainProgress delivers progress lines buffered before exit. A grandchild
// holding the pipe open must not stall completion, so draining is bounded.
func drainProgress(progressCh <-chan time.Duration, emit func(time.Duration)) {
	if progressCh == nil {
		return
	}
	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	for {
		select {
		case elapsed, ok := <-progressCh:
			if !ok {
				return
			}
			emit(elapsed)
		case <-deadline.C:
			return
		}
	}
}

func collectSummary(summaryCh <-chan stderrSummary) stderrSummary {
	select {
	case s := <-summaryCh:
		return s
	default:
		return stderrSummary{}
	}
}

func canceledResult(cause error) Result {
	err := services.Wrap(services.ErrCancellationRequested, "encoding", "run encoder", "canceled", cause)
	return Result{Cause: services.CauseCanceled, Err: err}
}

func exitCode(cmd *exec.Cmd) int {
	if cmd == nil || cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
