package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"autosplit/internal/frames"
	"autosplit/internal/logging"
	"autosplit/internal/services"
)

// Request describes one clip to cut.
type Request struct {
	Source  string
	Ordinal int
	Label   string
	Start   float64
	End     float64
}

// Duration is the clip length in seconds.
func (r Request) Duration() float64 {
	return r.End - r.Start
}

// Task tracks one background export.
type Task struct {
	Request    Request
	OutputPath string
	Skipped    bool
	StartedAt  time.Time
	FinishedAt time.Time

	done chan struct{}
	err  error
}

// Done is closed once the task has finished and callbacks have run.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the export failure. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options configures an Exporter.
type Options struct {
	Binary         string
	OutputDir      string
	Extension      string
	SanitizeLabels bool
	Executor       services.Executor
	Logger         *slog.Logger
	// OnStart runs synchronously inside Export before the goroutine starts.
	OnStart func(*Task)
	// OnComplete runs on the task goroutine with the export result before Done is closed.
	OnComplete func(*Task, error)
}

// Exporter launches background stream-copy exports.
type Exporter struct {
	binary     string
	outputDir  string
	extension  string
	sanitize   bool
	exec       services.Executor
	logger     *slog.Logger
	onStart    func(*Task)
	onComplete func(*Task, error)

	mu    sync.Mutex
	tasks []*Task
	wg    sync.WaitGroup
}

// New constructs an Exporter.
func New(opts Options) (*Exporter, error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "export", "init", "output directory required", nil)
	}
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	exec := opts.Executor
	if exec == nil {
		exec = services.CommandExecutor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{
		binary:     binary,
		outputDir:  opts.OutputDir,
		extension:  opts.Extension,
		sanitize:   opts.SanitizeLabels,
		exec:       exec,
		logger:     logging.NewComponentLogger(logger, "export"),
		onStart:    opts.OnStart,
		onComplete: opts.OnComplete,
	}, nil
}

// Export registers a task for req and starts it in the background. The task
// ignores cancellation of ctx so an interrupted run still finishes its clips.
func (e *Exporter) Export(ctx context.Context, req Request) (*Task, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, services.Wrap(services.ErrValidation, "export", "launch", "source media required", nil)
	}
	if req.Ordinal <= 0 {
		return nil, services.Wrap(services.ErrValidation, "export", "launch", fmt.Sprintf("invalid ordinal %d", req.Ordinal), nil)
	}
	if req.End < req.Start {
		return nil, services.Wrap(services.ErrValidation, "export", "launch",
			fmt.Sprintf("segment %d ends before it starts (%v < %v)", req.Ordinal, req.End, req.Start), nil)
	}

	name, changed := FileName(req.Ordinal, req.Label, e.extension, e.sanitize)
	if changed {
		logging.WarnWithContext(e.logger, "label sanitized for file name", "label_sanitized",
			logging.Int(logging.FieldSegment, req.Ordinal),
			logging.String("label", req.Label),
			logging.String("file", name),
			logging.String(logging.FieldErrorHint, "set export.sanitize_labels = false to keep raw labels"),
			logging.String(logging.FieldImpact, "clip file name differs from the detected label"),
		)
	}

	task := &Task{
		Request:    req,
		OutputPath: filepath.Join(e.outputDir, name),
		StartedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()

	if e.onStart != nil {
		e.onStart(task)
	}

	runCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		task.err = e.run(runCtx, task)
		task.FinishedAt = time.Now()
		e.report(task)
		if e.onComplete != nil {
			e.onComplete(task, task.err)
		}
		close(task.done)
	}()
	return task, nil
}

func (e *Exporter) run(ctx context.Context, task *Task) error {
	req := task.Request
	if req.Duration() <= 0 {
		task.Skipped = true
		return nil
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", frames.FormatSeconds(req.Start),
		"-i", req.Source,
		"-t", frames.FormatSeconds(req.Duration()),
		"-c:v", "copy",
		"-c:a", "copy",
		task.OutputPath,
	}
	var lines []string
	err := e.exec.Run(ctx, e.binary, args, func(line string) {
		if len(lines) < 20 {
			lines = append(lines, line)
		}
	})
	if err != nil {
		detail := strings.Join(lines, "; ")
		return services.Wrap(services.ErrExternalTool, "export", fmt.Sprintf("segment %d", req.Ordinal), detail, err)
	}
	return nil
}

func (e *Exporter) report(task *Task) {
	attrs := []logging.Attr{
		logging.Int(logging.FieldSegment, task.Request.Ordinal),
		logging.String("label", task.Request.Label),
		logging.String("output", task.OutputPath),
		logging.Float64("start_seconds", task.Request.Start),
		logging.Float64("end_seconds", task.Request.End),
		logging.Duration("elapsed", task.FinishedAt.Sub(task.StartedAt)),
	}
	switch {
	case task.err != nil:
		logging.ErrorWithContext(e.logger, "clip export failed", "export_failed",
			append(attrs, logging.Error(task.err),
				logging.String(logging.FieldErrorHint, "rerun ffmpeg manually with the logged range"))...)
	case task.Skipped:
		logging.WarnWithContext(e.logger, "empty segment not exported", "export_skipped",
			append(attrs,
				logging.String(logging.FieldErrorHint, "segment closed at its own start"),
				logging.String(logging.FieldImpact, "no clip file written"))...)
	default:
		attrs = append(attrs, logging.String(logging.FieldEventType, "export_complete"))
		e.logger.Info("clip exported", logging.Args(attrs...)...)
	}
}

// Tasks returns a snapshot of the registry.
func (e *Exporter) Tasks() []*Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Task(nil), e.tasks...)
}

// Pending counts tasks that have not finished.
func (e *Exporter) Pending() int {
	count := 0
	for _, task := range e.Tasks() {
		select {
		case <-task.done:
		default:
			count++
		}
	}
	return count
}

// Wait blocks until every registered task finishes and returns their combined
// failures. When ctx ends first the context error is returned and tasks keep
// running.
func (e *Exporter) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	var result error
	for _, task := range e.Tasks() {
		if task.err != nil {
			result = multierror.Append(result, multierror.Prefix(task.err, fmt.Sprintf("[%s]", filepath.Base(task.OutputPath))))
		}
	}
	return result
}

