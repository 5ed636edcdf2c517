// Package frames grabs single still images from a media file with ffmpeg.
package frames

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"autosplit/internal/fileutil"
	"autosplit/internal/services"
)

// FrameName is the file reused for every extracted frame.
const FrameName = "current.png"

// ErrFrameUnavailable means ffmpeg ran but produced no usable image, which
// happens when the timestamp lands past the decodable end of a growing file.
var ErrFrameUnavailable = errors.New("frame unavailable")

// Sampler extracts frames into a scratch directory.
type Sampler struct {
	binary  string
	scratch string
	exec    services.Executor
}

// NewSampler constructs a Sampler writing into scratchDir.
func NewSampler(binary, scratchDir string, exec services.Executor) (*Sampler, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if strings.TrimSpace(scratchDir) == "" {
		return nil, errors.New("scratch directory required")
	}
	if exec == nil {
		exec = services.CommandExecutor{}
	}
	return &Sampler{binary: binary, scratch: scratchDir, exec: exec}, nil
}

// FramePath is where Extract writes its output.
func (s *Sampler) FramePath() string {
	return filepath.Join(s.scratch, FrameName)
}

// Extract writes the frame at ts seconds of media to FramePath.
func (s *Sampler) Extract(ctx context.Context, media string, ts float64) (string, error) {
	out := s.FramePath()
	if err := fileutil.RemoveIfExists(out); err != nil {
		return "", fmt.Errorf("remove stale frame: %w", err)
	}

	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "warning", "-y",
		"-ss", FormatSeconds(ts),
		"-i", media,
		"-update", "1",
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
	var lastLine string
	err := s.exec.Run(ctx, s.binary, args, func(line string) {
		if strings.TrimSpace(line) != "" {
			lastLine = line
		}
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if services.IsToolMissing(err) {
			return "", services.Wrap(services.ErrExternalTool, "frames", "extract", "ffmpeg not found", err)
		}
		return "", fmt.Errorf("%w at %ss: %s: %v", ErrFrameUnavailable, FormatSeconds(ts), lastLine, err)
	}
	if !fileutil.NonEmpty(out) {
		return "", fmt.Errorf("%w at %ss", ErrFrameUnavailable, FormatSeconds(ts))
	}
	return out, nil
}

// FormatSeconds renders seconds for ffmpeg time arguments without trailing zeros.
func FormatSeconds(v float64) string {
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
