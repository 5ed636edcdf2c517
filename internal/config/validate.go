package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"autosplit/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateDownload,
		c.validateDetection,
		c.validateTools,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
	}
	return nil
}

func (c *Config) validateDownload() error {
	if strings.ContainsAny(c.Download.BaseName, `/\`) {
		return fmt.Errorf("download.base_name must not contain path separators, got %q", c.Download.BaseName)
	}
	if strings.ContainsAny(c.Download.Extension, `/\`) {
		return fmt.Errorf("download.extension must not contain path separators, got %q", c.Download.Extension)
	}
	if c.Download.SettleSeconds < 0 {
		return errors.New("download.settle_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.FrameIncrement <= 0 {
		return fmt.Errorf("detection.frame_increment must be positive, got %v", d.FrameIncrement)
	}
	if d.StallThreshold < 1 {
		return fmt.Errorf("detection.stall_threshold must be at least 1, got %d", d.StallThreshold)
	}
	if d.StallBackoffSeconds < 0 {
		return errors.New("detection.stall_backoff_seconds must be >= 0")
	}
	if d.OverlayKeyword == "" {
		return errors.New("detection.overlay_keyword must be set")
	}
	if d.MatchThreshold < 0 || d.MatchThreshold > 100 {
		return fmt.Errorf("detection.match_threshold must be between 0 and 100, got %d", d.MatchThreshold)
	}
	if len(d.OverlayArea) != 4 {
		return fmt.Errorf("detection.overlay_area needs 4 values (x, y, width, height), got %d", len(d.OverlayArea))
	}
	if err := c.OverlayRegion().Validate(); err != nil {
		return fmt.Errorf("detection.overlay_area: %w", err)
	}
	if len(d.MatchArea) != 4 {
		return fmt.Errorf("detection.match_area needs 4 values (x, y, width, height), got %d", len(d.MatchArea))
	}
	if err := c.MatchRegion().Validate(); err != nil {
		return fmt.Errorf("detection.match_area: %w", err)
	}
	if d.TemplateThreshold <= 0 || d.TemplateThreshold > 1 {
		return fmt.Errorf("detection.template_threshold must be in (0, 1], got %v", d.TemplateThreshold)
	}
	if d.OverlayTemplate != "" {
		info, err := os.Stat(d.OverlayTemplate)
		if err != nil {
			return fmt.Errorf("detection.overlay_template: %w", err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("detection.overlay_template %s is not a file", d.OverlayTemplate)
		}
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.OMPThreadLimit < 1 {
		return fmt.Errorf("tools.omp_thread_limit must be at least 1, got %d", c.Tools.OMPThreadLimit)
	}
	if strings.TrimSpace(c.Export.Extension) == "" {
		return errors.New("export.extension must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
