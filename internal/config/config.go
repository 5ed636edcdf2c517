package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"autosplit/internal/ocr"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir   string `toml:"output_dir"`
	DownloadDir string `toml:"download_dir"`
	WorkDir     string `toml:"work_dir"`
	LogDir      string `toml:"log_dir"`
}

// Download contains yt-dlp settings.
type Download struct {
	Binary        string   `toml:"binary"`
	Format        string   `toml:"format"`
	BaseName      string   `toml:"base_name"`
	Extension     string   `toml:"extension"`
	ExtraArgs     []string `toml:"extra_args"`
	SettleSeconds float64  `toml:"settle_seconds"`
}

// Detection contains the probing cadence and overlay calibration.
type Detection struct {
	FrameIncrement      float64   `toml:"frame_increment"`
	StallThreshold      int       `toml:"stall_threshold"`
	StallBackoffSeconds float64   `toml:"stall_backoff_seconds"`
	OverlayKeyword      string    `toml:"overlay_keyword"`
	IntroLabel          string    `toml:"intro_label"`
	OverlayArea         []float64 `toml:"overlay_area"`
	MatchArea           []float64 `toml:"match_area"`
	// MatchThreshold enables grayscale thresholding of the label crop (percent, 0 disables).
	MatchThreshold int `toml:"match_threshold"`
	// OverlayTemplate, when set, replaces the keyword check with an image
	// comparison of the overlay crop against this picture.
	OverlayTemplate   string  `toml:"overlay_template"`
	TemplateThreshold float64 `toml:"template_threshold"`
}

// Tools names the external binaries.
type Tools struct {
	FFmpeg         string `toml:"ffmpeg"`
	FFprobe        string `toml:"ffprobe"`
	Tesseract      string `toml:"tesseract"`
	Convert        string `toml:"convert"`
	Compare        string `toml:"compare"`
	OMPThreadLimit int    `toml:"omp_thread_limit"`
}

// Export contains clip output settings.
type Export struct {
	Extension      string `toml:"extension"`
	SanitizeLabels bool   `toml:"sanitize_labels"`
}

// Journal contains run history settings.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for autosplit.
//
// Configuration sections:
//   - Paths: clip output, download, scratch and log directories
//   - Download: yt-dlp binary, format and file naming
//   - Detection: probe step, end-of-stream threshold and overlay regions
//   - Tools: ffmpeg, ffprobe, tesseract and ImageMagick binaries
//   - Export: clip container and file name handling
//   - Journal: SQLite run history
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Download  Download  `toml:"download"`
	Detection Detection `toml:"detection"`
	Tools     Tools     `toml:"tools"`
	Export    Export    `toml:"export"`
	Journal   Journal   `toml:"journal"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Normalize re-applies path expansion and defaults, used after CLI overrides.
func (c *Config) Normalize() error {
	return c.normalize()
}

// EnsureDirectories creates the directories a run writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.DownloadDir, c.Paths.WorkDir, c.Paths.LogDir}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OverlayRegion returns the overlay detection area.
func (c *Config) OverlayRegion() ocr.Region {
	return regionFromSlice(c.Detection.OverlayArea)
}

// MatchRegion returns the match label area.
func (c *Config) MatchRegion() ocr.Region {
	return regionFromSlice(c.Detection.MatchArea)
}

// SetOverlayRegion stores r as the overlay detection area.
func (c *Config) SetOverlayRegion(r ocr.Region) {
	c.Detection.OverlayArea = []float64{r.X, r.Y, r.Width, r.Height}
}

// SetMatchRegion stores r as the match label area.
func (c *Config) SetMatchRegion(r ocr.Region) {
	c.Detection.MatchArea = []float64{r.X, r.Y, r.Width, r.Height}
}

// FrameStep is the probe increment.
func (c *Config) FrameStep() time.Duration {
	return secondsToDuration(c.Detection.FrameIncrement)
}

// StallBackoff is the wait between download rounds that produced no data.
func (c *Config) StallBackoff() time.Duration {
	return secondsToDuration(c.Detection.StallBackoffSeconds)
}

// SettleDelay is the wait after each download invocation.
func (c *Config) SettleDelay() time.Duration {
	return secondsToDuration(c.Download.SettleSeconds)
}

// TesseractEnv returns the environment entries passed to tesseract.
func (c *Config) TesseractEnv() []string {
	return []string{fmt.Sprintf("OMP_THREAD_LIMIT=%d", c.Tools.OMPThreadLimit)}
}

func regionFromSlice(values []float64) ocr.Region {
	if len(values) != 4 {
		return ocr.Region{}
	}
	return ocr.Region{X: values[0], Y: values[1], Width: values[2], Height: values[3]}
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
