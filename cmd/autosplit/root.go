package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var errMissingURL = errors.New("missing stream URL")

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool
	var flags runFlags

	ctx := newCommandContext(&configFlag, &verbose, &flags)

	rootCmd := &cobra.Command{
		Use:           "autosplit <url>",
		Short:         "Split a robotics livestream into per-match clips",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) || (!cmd.HasParent() && len(args) == 0) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
				fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
				return errMissingURL
			}
			return runSplit(cmd, ctx, strings.TrimSpace(args[0]))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for finished clips")
	rootCmd.Flags().Float64VarP(&flags.frameIncrement, "frame-increment", "f", 0, "Seconds between sampled frames")
	rootCmd.Flags().IntVarP(&flags.maxAttempts, "max-attempts", "m", 0, "Download rounds without new data before the stream is considered over")
	rootCmd.Flags().StringVarP(&flags.searchString, "search-string", "s", "", "Text that marks the match overlay")
	rootCmd.Flags().StringVarP(&flags.template, "template", "t", "", "Picture of the overlay; detects it by similarity instead of the search string")
	rootCmd.Flags().Float64Var(&flags.threshold, "template-threshold", 0, "Minimum similarity (0-1] for a template match")
	rootCmd.Flags().StringVar(&flags.overlayArea, "overlay-area", "", "Overlay detection area as x,y,w,h fractions")
	rootCmd.Flags().StringVar(&flags.matchArea, "match-area", "", "Match label area as x,y,w,h fractions")
	rootCmd.Flags().BoolVar(&flags.progress, "progress", false, "Show a progress bar of the probe position")

	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDepsCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newSegmentsCommand(ctx))

	return rootCmd
}
