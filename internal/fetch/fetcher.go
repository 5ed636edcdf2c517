package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autosplit/internal/fileutil"
	"autosplit/internal/logging"
	"autosplit/internal/services"
	"autosplit/internal/services/ytdlp"
)

// TranscriptName is the scratch file that receives the download tool's output.
const TranscriptName = "download-output.txt"

// Downloader performs one continue-mode download attempt.
type Downloader interface {
	Download(ctx context.Context, url, outputTemplate string, transcript io.Writer) (ytdlp.Result, error)
}

// DurationProber reports the playable length of a media file in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// State is the fetcher's view of the local media file.
type State struct {
	MediaPath     string
	KnownDuration float64
	LastFragment  int
	HasFragment   bool
	EmptyFetches  int
}

// Outcome reports the result of one EnsureDurationAtLeast call.
type Outcome struct {
	Grew          bool
	Duration      float64
	MediaPath     string
	MarkerWritten bool
	MarkerSkipped bool
	Fragment      int
	Downloaded    bool
}

// Options configures a Fetcher.
type Options struct {
	URL         string
	DownloadDir string
	ScratchDir  string
	BaseName    string
	Extension   string
	SettleDelay time.Duration
	Sleep       func(context.Context, time.Duration) error
	Logger      *slog.Logger
}

// Fetcher grows a local media file by repeatedly invoking the download tool.
type Fetcher struct {
	url         string
	downloadDir string
	scratchDir  string
	baseName    string
	extension   string
	settle      time.Duration
	sleep       func(context.Context, time.Duration) error
	downloader  Downloader
	prober      DurationProber
	logger      *slog.Logger
	state       State
}

// New constructs a Fetcher.
func New(downloader Downloader, prober DurationProber, opts Options) (*Fetcher, error) {
	if downloader == nil {
		return nil, errors.New("fetch: downloader required")
	}
	if prober == nil {
		return nil, errors.New("fetch: prober required")
	}
	if strings.TrimSpace(opts.URL) == "" {
		return nil, services.Wrap(services.ErrValidation, "fetch", "init", "source url required", nil)
	}
	if strings.TrimSpace(opts.DownloadDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "init", "download directory required", nil)
	}
	base := strings.TrimSpace(opts.BaseName)
	if base == "" {
		base = "stream"
	}
	ext := strings.TrimPrefix(strings.TrimSpace(opts.Extension), ".")
	if ext == "" {
		ext = "mp4"
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = services.Sleep
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	f := &Fetcher{
		url:         strings.TrimSpace(opts.URL),
		downloadDir: opts.DownloadDir,
		scratchDir:  opts.ScratchDir,
		baseName:    base,
		extension:   ext,
		settle:      opts.SettleDelay,
		sleep:       sleep,
		downloader:  downloader,
		prober:      prober,
		logger:      logging.NewComponentLogger(logger, "fetch"),
	}
	f.state.MediaPath = f.basePath()
	return f, nil
}

// State returns a copy of the current fetch state.
func (f *Fetcher) State() State {
	return f.state
}

// OutputTemplate is the -o argument handed to the download tool.
func (f *Fetcher) OutputTemplate() string {
	return filepath.Join(f.downloadDir, f.baseName+".%(ext)s")
}

func (f *Fetcher) basePath() string {
	return filepath.Join(f.downloadDir, f.baseName+"."+f.extension)
}

func (f *Fetcher) partPath() string {
	return f.basePath() + ".part"
}

// MarkerPath is the resume marker location beside the media file.
func (f *Fetcher) MarkerPath() string {
	return f.basePath() + ".ytdl"
}

// EnsureDurationAtLeast returns immediately when more than target seconds are
// already on disk. Otherwise it runs one download round and re-probes.
func (f *Fetcher) EnsureDurationAtLeast(ctx context.Context, target float64) (Outcome, error) {
	if f.state.KnownDuration > target {
		return Outcome{
			Grew:      true,
			Duration:  f.state.KnownDuration,
			MediaPath: f.state.MediaPath,
			Fragment:  f.state.LastFragment,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Downloaded: true}
	result, err := f.download(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		if services.IsToolMissing(err) {
			return Outcome{}, err
		}
		logging.WarnWithContext(f.logger, "download attempt failed; treating as no new data",
			"fetch_stall",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "source may have ended or be temporarily unreachable"),
			logging.String(logging.FieldImpact, "counts toward the end-of-stream threshold"),
		)
	}
	if err := f.sleep(ctx, f.settle); err != nil {
		return Outcome{}, err
	}

	if result.HasFragments && result.TotalFragments > f.state.LastFragment {
		f.state.LastFragment = result.TotalFragments
		f.state.HasFragment = true
	}
	outcome.Fragment = f.state.LastFragment

	if fileutil.Exists(f.MarkerPath()) {
		outcome.MarkerSkipped = true
		f.logger.Debug("resume marker already present; leaving it to the download tool",
			logging.String("marker", f.MarkerPath()))
	} else if f.state.HasFragment && f.state.LastFragment > 0 {
		if err := writeMarker(f.MarkerPath(), f.state.LastFragment); err != nil {
			logging.WarnWithContext(f.logger, "resume marker write failed", "marker_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check download directory permissions"),
				logging.String(logging.FieldImpact, "next download round may restart from the first fragment"),
			)
		} else {
			outcome.MarkerWritten = true
			f.logger.Debug("resume marker written", logging.Int("fragment", f.state.LastFragment))
			if fileutil.Exists(f.basePath()) {
				if err := os.Rename(f.basePath(), f.partPath()); err != nil {
					f.logger.Warn("rename media to partial failed", logging.Error(err))
				}
			}
		}
	}

	f.state.MediaPath = f.resolveMediaPath()
	outcome.MediaPath = f.state.MediaPath

	previous := f.state.KnownDuration
	if duration, err := f.prober.Duration(ctx, f.state.MediaPath); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		f.logger.Debug("duration probe failed; keeping previous duration",
			logging.String("media", f.state.MediaPath),
			logging.Error(err))
	} else if duration > previous {
		f.state.KnownDuration = duration
	}

	outcome.Duration = f.state.KnownDuration
	outcome.Grew = f.state.KnownDuration > previous
	if outcome.Grew {
		f.state.EmptyFetches = 0
	} else {
		f.state.EmptyFetches++
	}

	f.logger.Info("download round complete",
		logging.String(logging.FieldEventType, "fetch_round"),
		logging.Float64("known_seconds", f.state.KnownDuration),
		logging.Bool("grew", outcome.Grew),
		logging.Int("fragment", f.state.LastFragment),
		logging.Int("empty_fetches", f.state.EmptyFetches),
	)
	return outcome, nil
}

func (f *Fetcher) download(ctx context.Context) (ytdlp.Result, error) {
	transcript := io.Discard
	if f.scratchDir != "" {
		path := filepath.Join(f.scratchDir, TranscriptName)
		file, err := os.Create(path)
		if err != nil {
			return ytdlp.Result{}, fmt.Errorf("create transcript: %w", err)
		}
		defer file.Close()
		transcript = file
	}
	return f.downloader.Download(ctx, f.url, f.OutputTemplate(), transcript)
}

func (f *Fetcher) resolveMediaPath() string {
	if fileutil.Exists(f.partPath()) {
		return f.partPath()
	}
	return f.basePath()
}
