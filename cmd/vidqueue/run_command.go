package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidqueue/internal/daemon"
	"vidqueue/internal/ingest"
	"vidqueue/internal/logging"
	"vidqueue/internal/preflight"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var name string
	var validate bool
	var cams bool
	var skipChecks bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "run [dir]...",
		Short: "Queue the given directories and process everything pending",
		Long: `Run takes the queue lock, restores the persisted queue, queues any
directories given as arguments, and compresses pending projects in order
until the queue drains.

Signals while running:
  SIGINT   cancel the queue (the current file is stopped; press again to exit
           immediately and resume the interrupted file next run)
  SIGTERM  exit immediately; the interrupted file is restarted next run
  SIGUSR1  pause after the current file, or resume if paused`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && (len(args) > 1 || cams) {
				return fmt.Errorf("--name applies to a single directory")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !skipChecks {
				results := preflight.RunAll(cmd.Context(), cfg)
				if preflight.Failed(results) {
					reportChecks(newReporter(out), results)
					return errors.New("preflight checks failed; fix the errors above or pass --skip-checks")
				}
			}

			logger, err := ctx.consoleLogger()
			if err != nil {
				return err
			}
			d, err := daemon.Open(cmd.Context(), cfg, logger, daemon.WithMetricsServer())
			if errors.Is(err, daemon.ErrAlreadyRunning) {
				return fmt.Errorf("a vidqueue run is already in progress for %s", cfg.Paths.StateDir)
			}
			if err != nil {
				return err
			}
			defer d.Close()
			manager := d.Manager()

			if len(args) > 0 {
				if _, err := enqueueDirs(cmd, ctx, manager, args, ingest.Options{Name: name, Validate: validate}, cams); err != nil {
					return err
				}
			}

			runCtx, stop := context.WithCancel(cmd.Context())
			defer stop()

			printerDone := make(chan struct{})
			events, unsubscribe := manager.Subscribe(256)
			if !noProgress && isTerminal(os.Stderr) {
				printer := newProgressPrinter(os.Stderr, manager.Snapshot())
				go func() {
					defer close(printerDone)
					printer.consume(events)
				}()
			} else {
				go func() {
					defer close(printerDone)
					for range events {
					}
				}()
			}
			defer func() {
				unsubscribe()
				<-printerDone
			}()

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
			defer signal.Stop(sigCh)
			go handleRunSignals(runCtx, sigCh, manager, stop, logger)

			if err := d.Start(runCtx); err != nil {
				return err
			}
			if err := d.Wait(runCtx); err != nil {
				fmt.Fprintln(out, "Stopped; the interrupted file will restart on the next run")
				return nil
			}

			summary := manager.Results()
			if len(summary.Projects) > 0 {
				rows, totals := buildResultRows(summary)
				fmt.Fprint(out, renderTable(resultColumns, rows, totals))
			}
			if summary.Totals.Failed > 0 {
				return fmt.Errorf("%d files failed; see 'vidqueue results --failures'", summary.Totals.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name for a single directory")
	cmd.Flags().BoolVar(&validate, "validate", false, "Probe each file and skip files without a video stream")
	cmd.Flags().BoolVar(&cams, "cams", false, "Treat each argument as a shoot folder and queue its CAM subfolders")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Start without running preflight checks")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the live progress line")
	return cmd
}

// handleRunSignals maps process signals onto queue operations until ctx is
// done. The first SIGINT cancels the queue; a second, or any SIGTERM, stops
// the run outright.
func handleRunSignals(ctx context.Context, sigCh <-chan os.Signal, manager *workflow.Manager, stop context.CancelFunc, logger *slog.Logger) {
	interrupted := false
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				toggle := manager.Pause
				if manager.Status().Mode == queue.ModePaused {
					toggle = manager.Resume
				}
				if err := toggle(ctx); err != nil && !errors.Is(err, services.ErrPersistence) {
					logger.Warn("pause toggle ignored", logging.Args(logging.Error(err))...)
				}
			case os.Interrupt:
				if interrupted {
					stop()
					return
				}
				interrupted = true
				logger.Info("interrupt received; canceling queue (interrupt again to exit now)")
				if err := manager.CancelQueue(ctx); err != nil && !errors.Is(err, services.ErrPersistence) {
					logger.Warn("cancel ignored", logging.Args(logging.Error(err))...)
				}
			default:
				stop()
				return
			}
		}
	}
}
