package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"autosplit/internal/config"
	"autosplit/internal/logging"
	"autosplit/internal/ocr"
)

// runFlags mirror configuration values; only flags set on the command line
// override the loaded file.
type runFlags struct {
	outputDir      string
	frameIncrement float64
	maxAttempts    int
	searchString   string
	overlayArea    string
	matchArea      string
	template       string
	threshold      float64
	progress       bool
}

type commandContext struct {
	configFlag *string
	verbose    *bool
	flags      *runFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool, flags *runFlags) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
		flags:      flags,
	}
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
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
		if !cmd.HasParent() {
			if err := c.applyOverrides(cmd, cfg); err != nil {
				c.configErr = err
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if c.flags == nil {
		return nil
	}
	changed := cmd.Flags().Changed
	if changed("output-dir") {
		cfg.Paths.OutputDir = c.flags.outputDir
	}
	if changed("frame-increment") {
		cfg.Detection.FrameIncrement = c.flags.frameIncrement
	}
	if changed("max-attempts") {
		cfg.Detection.StallThreshold = c.flags.maxAttempts
	}
	if changed("search-string") {
		cfg.Detection.OverlayKeyword = c.flags.searchString
	}
	if changed("template") {
		cfg.Detection.OverlayTemplate = c.flags.template
	}
	if changed("template-threshold") {
		cfg.Detection.TemplateThreshold = c.flags.threshold
	}
	if changed("overlay-area") {
		region, err := ocr.ParseRegion(c.flags.overlayArea)
		if err != nil {
			return fmt.Errorf("--overlay-area: %w", err)
		}
		cfg.SetOverlayRegion(region)
	}
	if changed("match-area") {
		region, err := ocr.ParseRegion(c.flags.matchArea)
		if err != nil {
			return fmt.Errorf("--match-area: %w", err)
		}
		cfg.SetMatchRegion(region)
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *commandContext) verboseEnabled() bool {
	return c.verbose != nil && *c.verbose
}

func (c *commandContext) progressEnabled() bool {
	return c.flags != nil && c.flags.progress
}

// newLogger writes console output to w and, when filePath is set, a JSON copy
// of every record to that file.
func (c *commandContext) newLogger(cfg *config.Config, w io.Writer, filePath string) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if c.verboseEnabled() {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:    level,
		Format:   cfg.Logging.Format,
		Output:   w,
		FilePath: filePath,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
