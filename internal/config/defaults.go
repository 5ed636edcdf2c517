package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath          = "~/.config/autosplit/config.toml"
	projectConfigName          = "autosplit.toml"
	defaultOutputDir           = "."
	defaultDownloadDir         = "."
	defaultLogDir              = "~/.local/share/autosplit/logs"
	defaultJournalPath         = "~/.local/share/autosplit/journal.db"
	defaultYtDlpBinary         = "yt-dlp"
	defaultDownloadFormat      = "b"
	defaultBaseName            = "stream"
	defaultDownloadExtension   = "mp4"
	defaultSettleSeconds       = 2
	defaultFrameIncrement      = 5
	defaultStallThreshold      = 30
	defaultStallBackoffSeconds = 20
	defaultOverlayKeyword      = "CH"
	defaultTemplateThreshold   = 0.7
	defaultIntroLabel          = "Intro"
	defaultExportExtension     = "mp4"
	defaultOMPThreadLimit      = 1
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var (
	defaultOverlayArea = []float64{0.0, 0.77, 0.1, 0.055}
	defaultMatchArea   = []float64{0.53, 0.773148148, 0.3, 0.05}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   defaultOutputDir,
			DownloadDir: defaultDownloadDir,
			WorkDir:     defaultWorkDir(),
			LogDir:      defaultLogDir,
		},
		Download: Download{
			Binary:        defaultYtDlpBinary,
			Format:        defaultDownloadFormat,
			BaseName:      defaultBaseName,
			Extension:     defaultDownloadExtension,
			SettleSeconds: defaultSettleSeconds,
		},
		Detection: Detection{
			FrameIncrement:      defaultFrameIncrement,
			StallThreshold:      defaultStallThreshold,
			StallBackoffSeconds: defaultStallBackoffSeconds,
			OverlayKeyword:      defaultOverlayKeyword,
			IntroLabel:          defaultIntroLabel,
			OverlayArea:         append([]float64(nil), defaultOverlayArea...),
			MatchArea:           append([]float64(nil), defaultMatchArea...),
			TemplateThreshold:   defaultTemplateThreshold,
		},
		Tools: Tools{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			Tesseract:      "tesseract",
			Convert:        "convert",
			Compare:        "compare",
			OMPThreadLimit: defaultOMPThreadLimit,
		},
		Export: Export{
			Extension:      defaultExportExtension,
			SanitizeLabels: true,
		},
		Journal: Journal{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkDir() string {
	if base, ok := os.LookupEnv("TMPDIR"); ok && strings.TrimSpace(base) != "" {
		return base
	}
	return filepath.Clean(os.TempDir())
}
