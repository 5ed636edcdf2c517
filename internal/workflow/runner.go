package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"autosplit/internal/config"
	"autosplit/internal/export"
	"autosplit/internal/fetch"
	"autosplit/internal/frames"
	"autosplit/internal/journal"
	"autosplit/internal/logging"
	"autosplit/internal/media/ffprobe"
	"autosplit/internal/ocr"
	"autosplit/internal/segmenter"
	"autosplit/internal/services"
	"autosplit/internal/services/ytdlp"
	"autosplit/internal/workdir"
)

// Dependencies overrides the external tools. Nil fields use the binaries
// named in the configuration.
type Dependencies struct {
	Downloader    fetch.Downloader
	Prober        fetch.DurationProber
	FrameExec     services.Executor
	ConvertExec   services.Executor
	TesseractExec services.Executor
	CompareExec   services.Executor
	ExportExec    services.Executor
}

// Options configures a Runner.
type Options struct {
	URL      string
	RunID    string
	Journal  *journal.Store
	Observer segmenter.Observer
	Logger   *slog.Logger
	Deps     Dependencies
	Sleep    func(context.Context, time.Duration) error
}

// Summary describes a finished run.
type Summary struct {
	RunID         string
	Status        journal.RunStatus
	Segments      []segmenter.Segment
	Clips         []string
	FinalDuration float64
	FailedExports int
	Samples       int
}

// Runner executes one split of a source URL.
type Runner struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
}

// NewRunner validates opts and returns a Runner.
func NewRunner(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "config required", nil)
	}
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.URL == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "init", "source url required", nil)
	}
	if strings.TrimSpace(opts.RunID) == "" {
		opts.RunID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, opts: opts, logger: logger}, nil
}

// RunID returns the identifier of the run.
func (r *Runner) RunID() string { return r.opts.RunID }

// Run drives the segmentation loop to completion and waits for every clip
// export. Cancelling ctx stops the loop; exports already started still finish.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	ctx = services.WithRunID(ctx, r.opts.RunID)
	base := logging.WithContext(ctx, r.logger)
	logger := logging.NewComponentLogger(base, "workflow")
	summary := Summary{RunID: r.opts.RunID, Status: journal.RunFailed}

	ws, err := workdir.Acquire(r.cfg.Paths.WorkDir, r.cfg.Paths.DownloadDir, r.opts.RunID)
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "workflow", "prepare workspace", "", err)
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the scratch directory manually"),
				logging.String(logging.FieldImpact, "stale files remain under the work directory"),
			)
		}
	}()

	logger.Info("run starting",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("url", r.opts.URL),
		logging.String("scratch", ws.ScratchDir()),
		logging.String("output_dir", r.cfg.Paths.OutputDir),
	)

	rec := newRecorder(r.opts.Journal, r.opts.RunID, logger)
	rec.startRun(ctx, r.opts.URL)

	exporter, err := r.newExporter(rec, base)
	if err != nil {
		rec.finishRun(ctx, journal.RunFailed, 0, err)
		return summary, err
	}
	loop, err := r.newLoop(ws.ScratchDir(), exporter, base)
	if err != nil {
		rec.finishRun(ctx, journal.RunFailed, 0, err)
		return summary, err
	}

	state, loopErr := loop.Run(ctx)
	summary.Segments = state.Segments()
	summary.FinalDuration = state.Known
	summary.Samples = state.Samples

	if pending := exporter.Pending(); pending > 0 {
		logger.Info("waiting for clip exports", logging.Int("pending", pending))
	}
	exportErr := exporter.Wait(context.WithoutCancel(ctx))
	for _, task := range exporter.Tasks() {
		if task.Err() != nil {
			summary.FailedExports++
			continue
		}
		if !task.Skipped {
			summary.Clips = append(summary.Clips, task.OutputPath)
		}
	}

	summary.Status = runStatus(loopErr, exportErr)
	runErr := errors.Join(loopErr, exportErr)
	rec.finishRun(ctx, summary.Status, summary.FinalDuration, runErr)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("status", string(summary.Status)),
		logging.Int("segments", len(summary.Segments)),
		logging.Int("clips", len(summary.Clips)),
		logging.Int("failed_exports", summary.FailedExports),
		logging.Float64("final_seconds", summary.FinalDuration),
	}
	switch summary.Status {
	case journal.RunCompleted:
		logger.Info("run complete", logging.Args(attrs...)...)
	case journal.RunInterrupted:
		logging.WarnWithContext(logger, "run interrupted", "run_interrupted",
			append(attrs,
				logging.String(logging.FieldErrorHint, "rerun with the same url to resume the download"),
				logging.String(logging.FieldImpact, "the last segment was not exported"))...)
	default:
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			append(attrs, logging.Error(runErr))...)
	}

	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func runStatus(loopErr, exportErr error) journal.RunStatus {
	switch {
	case loopErr == nil && exportErr == nil:
		return journal.RunCompleted
	case errors.Is(loopErr, context.Canceled), errors.Is(loopErr, context.DeadlineExceeded):
		if exportErr != nil {
			return journal.RunFailed
		}
		return journal.RunInterrupted
	default:
		return journal.RunFailed
	}
}

func (r *Runner) newLoop(scratch string, exporter *export.Exporter, logger *slog.Logger) (*segmenter.Loop, error) {
	cfg := r.cfg
	deps := r.opts.Deps

	downloader := deps.Downloader
	if downloader == nil {
		client, err := ytdlp.New(cfg.Download.Binary,
			ytdlp.WithFormat(cfg.Download.Format),
			ytdlp.WithExtraArgs(cfg.Download.ExtraArgs),
		)
		if err != nil {
			return nil, err
		}
		downloader = client
	}
	prober := deps.Prober
	if prober == nil {
		prober = ffprobe.Prober{Binary: cfg.Tools.FFprobe}
	}

	fetcher, err := fetch.New(downloader, prober, fetch.Options{
		URL:         r.opts.URL,
		DownloadDir: cfg.Paths.DownloadDir,
		ScratchDir:  scratch,
		BaseName:    cfg.Download.BaseName,
		Extension:   cfg.Download.Extension,
		SettleDelay: cfg.SettleDelay(),
		Sleep:       r.opts.Sleep,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	sampler, err := frames.NewSampler(cfg.Tools.FFmpeg, scratch, deps.FrameExec)
	if err != nil {
		return nil, err
	}

	tesseractExec := deps.TesseractExec
	if tesseractExec == nil {
		tesseractExec = services.CommandExecutor{Env: cfg.TesseractEnv()}
	}
	classifierOpts := ocr.ClassifierOptions{
		ConvertBinary:   cfg.Tools.Convert,
		TesseractBinary: cfg.Tools.Tesseract,
		ScratchDir:      scratch,
		ConvertExec:     deps.ConvertExec,
		TesseractExec:   tesseractExec,
	}
	if cfg.Detection.MatchThreshold > 0 {
		classifierOpts.ThresholdPercent = cfg.Detection.MatchThreshold
		classifierOpts.ThresholdRegions = []string{ocr.MatchRegionName}
	}
	classifier, err := ocr.NewClassifier(classifierOpts)
	if err != nil {
		return nil, err
	}
	var matcher ocr.OverlayMatcher
	if cfg.Detection.OverlayTemplate != "" {
		tm, err := ocr.NewTemplateMatcher(ocr.TemplateOptions{
			Template:      cfg.Detection.OverlayTemplate,
			ConvertBinary: cfg.Tools.Convert,
			CompareBinary: cfg.Tools.Compare,
			ScratchDir:    scratch,
			ConvertExec:   deps.ConvertExec,
			CompareExec:   deps.CompareExec,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "workflow", "init template matcher", "", err)
		}
		matcher = tm
	}
	detector, err := ocr.NewDetector(classifier, ocr.DetectorOptions{
		OverlayArea:       cfg.OverlayRegion(),
		MatchArea:         cfg.MatchRegion(),
		Keyword:           cfg.Detection.OverlayKeyword,
		Matcher:           matcher,
		TemplateThreshold: cfg.Detection.TemplateThreshold,
		Logger:            logger,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init detector", "", err)
	}

	return segmenter.New(fetcher, sampler, detector, segmentExporter{exporter: exporter}, segmenter.Options{
		Step:           cfg.FrameStep(),
		StallThreshold: cfg.Detection.StallThreshold,
		Backoff:        cfg.StallBackoff(),
		IntroLabel:     cfg.Detection.IntroLabel,
		Sleep:          r.opts.Sleep,
		Observer:       r.opts.Observer,
		Logger:         logger,
	})
}

func (r *Runner) newExporter(rec *recorder, logger *slog.Logger) (*export.Exporter, error) {
	return export.New(export.Options{
		Binary:         r.cfg.Tools.FFmpeg,
		OutputDir:      r.cfg.Paths.OutputDir,
		Extension:      r.cfg.Export.Extension,
		SanitizeLabels: r.cfg.Export.SanitizeLabels,
		Executor:       r.opts.Deps.ExportExec,
		Logger:         logger,
		OnStart:        rec.segmentStarted,
		OnComplete:     rec.segmentFinished,
	})
}

// segmentExporter adapts the clip exporter to the loop's segment sink.
type segmentExporter struct {
	exporter *export.Exporter
}

func (s segmentExporter) ExportSegment(ctx context.Context, media string, seg segmenter.Segment) error {
	_, err := s.exporter.Export(ctx, export.Request{
		Source:  media,
		Ordinal: seg.Ordinal,
		Label:   seg.Label,
		Start:   seg.Start,
		End:     seg.End,
	})
	if err != nil {
		return fmt.Errorf("launch export: %w", err)
	}
	return nil
}
