package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"autosplit/internal/config"
	"autosplit/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// Requirements lists the external binaries a run invokes.
func Requirements(cfg *config.Config) []deps.Requirement {
	reqs := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Download.Binary,
			Description: "Required for downloading the stream",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for frame extraction and clip export",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Required for measuring downloaded duration",
		},
		{
			Name:        "Tesseract",
			Command:     cfg.Tools.Tesseract,
			Description: "Required for reading overlay text",
		},
		{
			Name:        "ImageMagick convert",
			Command:     cfg.Tools.Convert,
			Description: "Required for cropping overlay regions",
		},
	}
	if cfg.Detection.OverlayTemplate != "" {
		reqs = append(reqs, deps.Requirement{
			Name:        "ImageMagick compare",
			Command:     cfg.Tools.Compare,
			Description: "Required for overlay template matching",
		})
	}
	return reqs
}

// CheckSystemDeps evaluates every binary named by the config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(Requirements(cfg))
}
