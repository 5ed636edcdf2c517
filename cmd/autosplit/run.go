package main

import (
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"autosplit/internal/journal"
	"autosplit/internal/logging"
	"autosplit/internal/preflight"
	"autosplit/internal/workflow"
)

func runSplit(cmd *cobra.Command, ctx *commandContext, url string) error {
	cfg, err := ctx.ensureConfig(cmd)
	if err != nil {
		return err
	}

	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		stderr := cmd.ErrOrStderr()
		colorize := shouldColorize(stderr)
		for _, result := range failed {
			fmt.Fprintln(stderr, renderStatusLine(result.Name, statusError, result.Detail, colorize))
		}
		return fmt.Errorf("preflight failed: %d check(s) did not pass; run `autosplit deps` for details", len(failed))
	}

	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("autosplit-%s.log", time.Now().UTC().Format("20060102T150405Z")))
	logger, err := ctx.newLogger(cfg, cmd.ErrOrStderr(), logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(signalCtx, cfg.Journal.Path)
		if err != nil {
			logging.WarnWithContext(logger, "run journal unavailable", "journal_open_failed",
				logging.Error(err),
				logging.String("path", cfg.Journal.Path),
				logging.String(logging.FieldErrorHint, "check journal.path or set journal.enabled = false"),
				logging.String(logging.FieldImpact, "this run will not appear in `autosplit runs`"),
			)
			store = nil
		} else {
			defer store.Close()
		}
	}

	progress := newProgressReporter(cmd.OutOrStdout(), ctx.progressEnabled() && shouldColorize(cmd.OutOrStdout()))
	runner, err := workflow.NewRunner(cfg, workflow.Options{
		URL:      url,
		RunID:    runID,
		Journal:  store,
		Observer: progress.Observe,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	summary, runErr := runner.Run(signalCtx)
	progress.Finish()
	printSummary(cmd.OutOrStdout(), summary, logPath)
	return runErr
}

func printSummary(out io.Writer, summary workflow.Summary, logPath string) {
	fmt.Fprintf(out, "Run %s %s after %s of media\n", summary.RunID, summary.Status, formatClock(summary.FinalDuration))
	if len(summary.Segments) > 0 {
		rows := make([][]string, 0, len(summary.Segments))
		for _, seg := range summary.Segments {
			end := formatClock(seg.End)
			if seg.Open {
				end = "-"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", seg.Ordinal),
				seg.Label,
				formatClock(seg.Start),
				end,
			})
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Label", "Start", "End"}, rows, []columnAlignment{alignRight, alignLeft, alignRight, alignRight}))
	}
	fmt.Fprintf(out, "Clips written: %d", len(summary.Clips))
	if summary.FailedExports > 0 {
		fmt.Fprintf(out, " (%d failed)", summary.FailedExports)
	}
	fmt.Fprintln(out)
	if strings.TrimSpace(logPath) != "" {
		fmt.Fprintf(out, "Log: %s\n", logPath)
	}
}

// formatClock renders seconds as H:MM:SS.
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
