package main

import (
	"errors"

	"github.com/spf13/cobra"

	"vidqueue/internal/daemon"
	"vidqueue/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, ffmpeg/ffprobe, and the configured encoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rep := newReporter(cmd.OutOrStdout())

			results := preflight.RunAll(cmd.Context(), cfg)
			reportChecks(rep, results)

			rep.blank()
			rep.section("State")
			rep.line(levelInfo, "Backend", cfg.State.Backend)
			locked, err := daemon.Locked(cfg)
			switch {
			case err != nil:
				rep.line(levelWarn, "Lock", err.Error())
			case locked:
				rep.line(levelInfo, "Lock", "held by a running vidqueue")
			default:
				rep.line(levelOK, "Lock", "free")
			}

			if preflight.Failed(results) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}
}

func reportChecks(rep *reporter, results []preflight.Result) {
	rep.section("Checks")
	for _, r := range results {
		lvl := levelOK
		if !r.Passed {
			lvl = levelError
			if r.Optional {
				lvl = levelWarn
			}
		}
		rep.line(lvl, r.Name, r.Detail)
	}
}
