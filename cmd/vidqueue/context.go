package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vidqueue/internal/config"
	"vidqueue/internal/daemon"
	"vidqueue/internal/logging"
	"vidqueue/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// consoleLogger logs to stdout and the log file; used by run.
func (c *commandContext) consoleLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// fileLogger keeps short-lived commands quiet on the terminal while still
// recording what they changed.
func (c *commandContext) fileLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "vidqueue.log")
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{logPath},
	})
}

// withDaemon opens the queue under the state lock for an offline edit and
// closes it afterwards.
func (c *commandContext) withDaemon(ctx context.Context, fn func(*daemon.Daemon) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.fileLogger()
	if err != nil {
		return err
	}
	d, err := daemon.Open(ctx, cfg, logger)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return fmt.Errorf("queue is locked by a running vidqueue process; wait for it to finish or stop it first")
	}
	if err != nil {
		return err
	}
	fnErr := fn(d)
	closeErr := d.Close()
	return errors.Join(fnErr, closeErr)
}

// loadSnapshot reads the persisted queue without taking the lock. When no
// run holds the lock, interrupted work is shown as Pending, matching what
// the next run will restore.
func (c *commandContext) loadSnapshot(ctx context.Context) (queue.Snapshot, bool, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return queue.Snapshot{}, false, err
	}
	locked, err := daemon.Locked(cfg)
	if err != nil {
		return queue.Snapshot{}, false, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		if locked {
			return queue.Snapshot{}, true, fmt.Errorf("queue state is held by a running vidqueue process: %w", err)
		}
		return queue.Snapshot{}, false, err
	}
	defer store.Close()

	snapshot, err := store.Load(ctx)
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return queue.Snapshot{Mode: queue.ModeIdle}, locked, nil
	case err != nil:
		return queue.Snapshot{}, locked, err
	}
	if !locked {
		snapshot, _ = queue.RecoverSnapshot(snapshot)
	}
	return snapshot, locked, nil
}

// skipConfigLoad annotates commands that must run without a loadable config.
const skipConfigLoad = "skipConfigLoad"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
