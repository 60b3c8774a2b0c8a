package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vidqueue/internal/daemon"
	"vidqueue/internal/ingest"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/workflow"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var validate bool
	var cams bool

	cmd := &cobra.Command{
		Use:   "add <dir>...",
		Short: "Queue each directory of videos as a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && (len(args) > 1 || cams) {
				return fmt.Errorf("--name applies to a single directory")
			}
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				_, err := enqueueDirs(cmd, ctx, d.Manager(), args, ingest.Options{Name: name, Validate: validate}, cams)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name (defaults to the folder name)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Probe each file and skip files without a video stream")
	cmd.Flags().BoolVar(&cams, "cams", false, "Treat each argument as a shoot folder and queue its CAM subfolders")
	return cmd
}

// enqueueDirs builds and enqueues one project per directory. With cams set,
// each argument is expanded to its camera subfolders first.
func enqueueDirs(cmd *cobra.Command, ctx *commandContext, manager *workflow.Manager, args []string, opts ingest.Options, cams bool) ([]*queue.Project, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.fileLogger()
	if err != nil {
		return nil, err
	}
	scanner := ingest.NewScanner(cfg, logger)
	out := cmd.OutOrStdout()

	dirs := args
	if cams {
		dirs = nil
		for _, root := range args {
			found, err := ingest.FindCamFolders(root)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				fmt.Fprintf(out, "No camera folders under %s\n", root)
			}
			dirs = append(dirs, found...)
		}
	}

	var added []*queue.Project
	for _, dir := range dirs {
		spec, skipped, err := scanner.BuildProject(cmd.Context(), dir, opts)
		for _, s := range skipped {
			fmt.Fprintf(out, "  skipped %s: %s\n", s.Path, s.Reason)
		}
		if err != nil {
			return added, fmt.Errorf("%s: %w", dir, err)
		}
		project, err := manager.Enqueue(cmd.Context(), spec)
		switch {
		case project != nil && errors.Is(err, services.ErrPersistence):
			fmt.Fprintf(out, "  warning: %s queued but not saved: %v\n", project.Name, err)
		case err != nil:
			return added, fmt.Errorf("%s: %w", dir, err)
		}
		fmt.Fprintf(out, "Queued %s (%s): %d files -> %s\n", project.Name, shortID(project.ID), len(project.Files), project.OutputRoot)
		added = append(added, project)
	}
	return added, nil
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue mode, counts, and projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, locked, err := ctx.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			summary := workflow.StatusFromSnapshot(snapshot)
			if asJSON {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			rep := newReporter(out)
			rep.section("Queue")
			modeLevel := levelInfo
			if summary.Mode == queue.ModeRunning {
				modeLevel = levelOK
			}
			rep.line(modeLevel, "Mode", string(summary.Mode))
			rep.line(levelInfo, "Run in progress", yesNo(locked))
			if a := summary.Active; a != nil {
				rep.line(levelOK, "Active project", fmt.Sprintf("%s %s (%d/%d files)", a.Name, formatPercent(a.Progress), a.FilesDone, a.FilesTotal))
				if a.FileIndex >= 0 {
					rep.line(levelInfo, "Current file", a.FileSource+" "+formatPercent(a.FileProgress))
				}
			}
			rep.blank()

			if len(snapshot.Projects) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprint(out, renderTable(countColumns, buildStatusCountRows(summary.Counts), nil))
			fmt.Fprint(out, renderTable(queueColumns, buildQueueRows(snapshot), nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the summary as JSON")
	return cmd
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var showFailures bool

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Summarize sizes, savings, and outcomes per project",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, _, err := ctx.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			summary := workflow.SummarizeResults(snapshot)
			if asJSON {
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			if len(summary.Projects) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			rows, totals := buildResultRows(summary)
			fmt.Fprint(out, renderTable(resultColumns, rows, totals))
			if showFailures {
				if failures := buildFailureRows(snapshot); len(failures) > 0 {
					fmt.Fprint(out, renderTable(failureColumns, failures, nil))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the results as JSON")
	cmd.Flags().BoolVar(&showFailures, "failures", false, "List failed files with their cause")
	return cmd
}

// newEditCommands returns the offline queue edits. Each one takes the state
// lock, so they fail fast while a run is in progress.
func newEditCommands(ctx *commandContext) []*cobra.Command {
	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a pending project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, ctx, args[0], "Removed", func(c context.Context, m *workflow.Manager, id string) error {
				return m.Remove(c, id)
			})
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder <id> <position>",
		Short: "Move a pending project to a new queue position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("position must be an integer: %w", err)
			}
			return editProject(cmd, ctx, args[0], "Moved", func(c context.Context, m *workflow.Manager, id string) error {
				return m.Reorder(c, id, position)
			})
		},
	}

	retry := &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-queue the unfinished files of a failed or canceled project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProject(cmd, ctx, args[0], "Re-queued", func(c context.Context, m *workflow.Manager, id string) error {
				return m.Retry(c, id)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every project from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				count := len(d.Manager().Snapshot().Projects)
				if err := d.Manager().Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d projects\n", count)
				return nil
			})
		},
	}

	return []*cobra.Command{remove, reorder, retry, clearCmd}
}

func editProject(cmd *cobra.Command, ctx *commandContext, prefix, verb string, edit func(context.Context, *workflow.Manager, string) error) error {
	return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
		manager := d.Manager()
		snapshot := manager.Snapshot()
		id, err := resolveProjectID(snapshot, prefix)
		if err != nil {
			return err
		}
		if err := edit(cmd.Context(), manager, id); err != nil {
			return err
		}
		name := id
		if project, ok := snapshot.Find(id); ok {
			name = project.Name
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, name, shortID(id))
		return nil
	})
}
