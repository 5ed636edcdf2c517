package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autosplit/internal/export"
	"autosplit/internal/journal"
	"autosplit/internal/logging"
	"autosplit/internal/services"
)

const journalTimeout = 5 * time.Second

// recorder mirrors run and export progress into the journal. Journal failures
// are logged and never fail the run.
type recorder struct {
	store  *journal.Store
	runID  string
	logger *slog.Logger
}

func newRecorder(store *journal.Store, runID string, logger *slog.Logger) *recorder {
	return &recorder{store: store, runID: runID, logger: logger}
}

func (r *recorder) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), journalTimeout)
}

func (r *recorder) startRun(ctx context.Context, url string) {
	if r.store == nil {
		return
	}
	jctx, cancel := r.context(ctx)
	defer cancel()
	if _, err := r.store.StartRun(jctx, r.runID, url); err != nil {
		r.warn("journal run start failed", err)
	}
}

func (r *recorder) finishRun(ctx context.Context, status journal.RunStatus, finalDuration float64, runErr error) {
	if r.store == nil {
		return
	}
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	jctx, cancel := r.context(ctx)
	defer cancel()
	if err := r.store.FinishRun(jctx, r.runID, status, finalDuration, message); err != nil {
		r.warn("journal run finish failed", err)
	}
}

func (r *recorder) segmentStarted(task *export.Task) {
	if r.store == nil {
		return
	}
	jctx, cancel := r.context(context.Background())
	defer cancel()
	err := r.store.RecordSegment(jctx, journal.Segment{
		RunID:        r.runID,
		Ordinal:      task.Request.Ordinal,
		Label:        task.Request.Label,
		Start:        task.Request.Start,
		End:          task.Request.End,
		OutputPath:   task.OutputPath,
		ExportStatus: journal.ExportRunning,
	})
	if err != nil {
		r.warn("journal segment record failed", err, logging.Int(logging.FieldSegment, task.Request.Ordinal))
	}
}

func (r *recorder) segmentFinished(task *export.Task, exportErr error) {
	if r.store == nil {
		return
	}
	status := journal.ExportCompleted
	message := ""
	switch {
	case exportErr != nil:
		status = journal.ExportFailed
		message = exportErr.Error()
	case task.Skipped:
		status = journal.ExportSkipped
		message = "zero-length segment"
	}
	jctx, cancel := r.context(context.Background())
	defer cancel()
	if err := r.store.FinishSegment(jctx, r.runID, task.Request.Ordinal, status, message); err != nil {
		r.warn("journal segment update failed", err, logging.Int(logging.FieldSegment, task.Request.Ordinal))
	}
}

func (r *recorder) warn(msg string, err error, attrs ...logging.Attr) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, "journal", "write", fmt.Sprintf("no response within %s", journalTimeout), err)
	}
	attrs = append(attrs,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the journal path and disk space"),
		logging.String(logging.FieldImpact, "run history is incomplete; clips are unaffected"),
	)
	logging.WarnWithContext(r.logger, msg, "journal_write_failed", attrs...)
}
