package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	if err := c.normalizeDetection(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeExport()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
		def   string
	}{
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.download_dir", &c.Paths.DownloadDir, defaultDownloadDir},
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir()},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultYtDlpBinary
	}
	c.Download.Format = strings.TrimSpace(c.Download.Format)
	if c.Download.Format == "" {
		c.Download.Format = defaultDownloadFormat
	}
	c.Download.BaseName = strings.TrimSpace(c.Download.BaseName)
	if c.Download.BaseName == "" {
		c.Download.BaseName = defaultBaseName
	}
	c.Download.Extension = strings.TrimPrefix(strings.TrimSpace(c.Download.Extension), ".")
	if c.Download.Extension == "" {
		c.Download.Extension = defaultDownloadExtension
	}
	args := c.Download.ExtraArgs[:0]
	for _, arg := range c.Download.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Download.ExtraArgs = args
}

func (c *Config) normalizeDetection() error {
	if c.Detection.FrameIncrement == 0 {
		c.Detection.FrameIncrement = defaultFrameIncrement
	}
	if c.Detection.StallThreshold == 0 {
		c.Detection.StallThreshold = defaultStallThreshold
	}
	c.Detection.IntroLabel = strings.TrimSpace(c.Detection.IntroLabel)
	if c.Detection.IntroLabel == "" {
		c.Detection.IntroLabel = defaultIntroLabel
	}
	if len(c.Detection.OverlayArea) == 0 {
		c.Detection.OverlayArea = append([]float64(nil), defaultOverlayArea...)
	}
	if len(c.Detection.MatchArea) == 0 {
		c.Detection.MatchArea = append([]float64(nil), defaultMatchArea...)
	}
	if c.Detection.TemplateThreshold == 0 {
		c.Detection.TemplateThreshold = defaultTemplateThreshold
	}
	if template := strings.TrimSpace(c.Detection.OverlayTemplate); template != "" {
		expanded, err := expandPath(template)
		if err != nil {
			return fmt.Errorf("detection.overlay_template: %w", err)
		}
		c.Detection.OverlayTemplate = expanded
	} else {
		c.Detection.OverlayTemplate = ""
	}
	return nil
}

func (c *Config) normalizeTools() {
	defaults := Default().Tools
	for _, field := range []struct {
		value *string
		def   string
	}{
		{&c.Tools.FFmpeg, defaults.FFmpeg},
		{&c.Tools.FFprobe, defaults.FFprobe},
		{&c.Tools.Tesseract, defaults.Tesseract},
		{&c.Tools.Convert, defaults.Convert},
		{&c.Tools.Compare, defaults.Compare},
	} {
		*field.value = strings.TrimSpace(*field.value)
		if *field.value == "" {
			*field.value = field.def
		}
	}
	if c.Tools.OMPThreadLimit == 0 {
		c.Tools.OMPThreadLimit = defaultOMPThreadLimit
	}
}

func (c *Config) normalizeExport() {
	c.Export.Extension = strings.TrimPrefix(strings.TrimSpace(c.Export.Extension), ".")
	if c.Export.Extension == "" {
		c.Export.Extension = defaultExportExtension
	}
}

func (c *Config) normalizeJournal() error {
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
	expanded, err := expandPath(strings.TrimSpace(c.Journal.Path))
	if err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	c.Journal.Path = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
