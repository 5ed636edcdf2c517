package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"autosplit/internal/config"
	"autosplit/internal/journal"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, ctx, func(store *journal.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						string(run.Status),
						run.StartedAt.Local().Format(time.DateTime),
						formatClock(run.FinalDuration),
						strconv.Itoa(run.SegmentCount),
						strconv.Itoa(run.FailedExports),
						run.SourceURL,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Status", "Started", "Media", "Segments", "Failed", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "segments [run-id]",
		Short: "List the segments of a run (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, ctx, func(store *journal.Store) error {
				run, err := resolveRun(cmd.Context(), store, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s (%s) %s\n", run.ID, run.Status, run.SourceURL)
				if run.ErrorMessage != "" {
					fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
				}

				segments, err := store.ListSegments(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if len(segments) == 0 {
					fmt.Fprintln(out, "No segments recorded")
					return nil
				}
				rows := make([][]string, 0, len(segments))
				for _, seg := range segments {
					status := string(seg.ExportStatus)
					if seg.ErrorMessage != "" && seg.ExportStatus == journal.ExportFailed {
						status += ": " + seg.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.Itoa(seg.Ordinal),
						seg.Label,
						formatClock(seg.Start),
						formatClock(seg.End),
						status,
						filepath.Base(seg.OutputPath),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Label", "Start", "End", "Export", "File"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func resolveRun(ctx context.Context, store *journal.Store, args []string) (*journal.Run, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		id := strings.TrimSpace(args[0])
		run, err := store.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return run, nil
	}
	run, err := store.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("no runs recorded")
	}
	return run, nil
}

func withJournal(cmd *cobra.Command, ctx *commandContext, fn func(*journal.Store) error) error {
	cfg, err := ctx.ensureConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("run journal is disabled; set journal.enabled = true in %s", configHint(ctx))
	}
	store, err := journal.Open(cmd.Context(), cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func configHint(ctx *commandContext) string {
	if ctx.configFlag != nil && strings.TrimSpace(*ctx.configFlag) != "" {
		return strings.TrimSpace(*ctx.configFlag)
	}
	if path, err := config.DefaultConfigPath(); err == nil {
		return path
	}
	return "the config file"
}
