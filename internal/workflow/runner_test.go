package workflow

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"autosplit/internal/config"
	"autosplit/internal/journal"
	"autosplit/internal/segmenter"
	"autosplit/internal/services"
	"autosplit/internal/services/ytdlp"
	"autosplit/internal/testsupport"
)

// fakeStream simulates a growing download whose frames carry scripted overlay text.
type fakeStream struct {
	mu        sync.Mutex
	durations []float64
	calls     int
	current   float64
	probe     string
	overlays  map[string]string
	labels    map[string]string
	exports   [][]string
	failClip  string
}

func (s *fakeStream) Download(_ context.Context, _, _ string, transcript io.Writer) (ytdlp.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls < len(s.durations) {
		s.current = s.durations[s.calls]
	}
	s.calls++
	_, _ = io.WriteString(transcript, "[hlsnative] Total fragments: 7\n")
	return ytdlp.Result{TotalFragments: 7, HasFragments: true}, nil
}

func (s *fakeStream) Duration(context.Context, string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

type execFunc func(ctx context.Context, binary string, args []string, onLine func(string)) error

func (f execFunc) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	return f(ctx, binary, args, onLine)
}

func (s *fakeStream) frameExec(t *testing.T) execFunc {
	return func(_ context.Context, _ string, args []string, _ func(string)) error {
		s.mu.Lock()
		for i, arg := range args {
			if arg == "-ss" && i+1 < len(args) {
				s.probe = args[i+1]
			}
		}
		s.mu.Unlock()
		writePNG(t, args[len(args)-1], 192, 108)
		return nil
	}
}

func (s *fakeStream) tesseractExec() execFunc {
	return func(_ context.Context, _ string, args []string, _ func(string)) error {
		base := args[len(args)-1]
		s.mu.Lock()
		probe := s.probe
		s.mu.Unlock()
		var text string
		switch filepath.Base(base) {
		case "overlay_check":
			text = s.overlays[probe]
		case "match_num":
			text = s.labels[probe]
		}
		return os.WriteFile(base+".txt", []byte(text+"\n\f"), 0o644)
	}
}

func (s *fakeStream) exportExec() execFunc {
	return func(_ context.Context, _ string, args []string, _ func(string)) error {
		out := args[len(args)-1]
		s.mu.Lock()
		s.exports = append(s.exports, append([]string(nil), args...))
		s.mu.Unlock()
		if s.failClip != "" && filepath.Base(out) == s.failClip {
			return errors.New("exit status 1")
		}
		return os.WriteFile(out, []byte("clip"), 0o644)
	}
}

func (s *fakeStream) deps(t *testing.T) Dependencies {
	noop := execFunc(func(context.Context, string, []string, func(string)) error { return nil })
	return Dependencies{
		Downloader:    s,
		Prober:        s,
		FrameExec:     s.frameExec(t),
		ConvertExec:   noop,
		TesseractExec: s.tesseractExec(),
		ExportExec:    s.exportExec(),
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create frame: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestConfig(t *testing.T) *config.Config {
	cfg := testsupport.NewConfig(t)
	cfg.Detection.FrameIncrement = 5
	cfg.Detection.StallThreshold = 2
	return cfg
}

func openJournal(t *testing.T, cfg *config.Config) *journal.Store {
	t.Helper()
	store, err := journal.Open(context.Background(), cfg.Journal.Path)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunSplitsOnLabelChangeAndJournals(t *testing.T) {
	cfg := newTestConfig(t)
	store := openJournal(t, cfg)
	stream := &fakeStream{
		durations: []float64{12},
		overlays:  map[string]string{"5": "CH 1", "10": "CH 1"},
		labels:    map[string]string{"5": "Q1", "10": "Q1"},
	}

	var observed []segmenter.Phase
	runner, err := NewRunner(cfg, Options{
		URL:      "https://example.invalid/live",
		RunID:    "run-1",
		Journal:  store,
		Deps:     stream.deps(t),
		Sleep:    noSleep,
		Observer: func(s segmenter.State) { observed = append(observed, s.Phase) },
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != journal.RunCompleted {
		t.Fatalf("status = %s", summary.Status)
	}
	if summary.FinalDuration != 12 {
		t.Fatalf("final duration = %v", summary.FinalDuration)
	}
	if len(summary.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", summary.Segments)
	}
	if got := summary.Segments[0]; got.Label != "Intro" || got.Start != 0 || got.End != 5 {
		t.Fatalf("unexpected first segment %+v", got)
	}
	if got := summary.Segments[1]; got.Label != "Q1" || got.Start != 5 || got.End != 12 {
		t.Fatalf("unexpected second segment %+v", got)
	}
	if len(observed) == 0 || observed[len(observed)-1] != segmenter.PhaseDone {
		t.Fatalf("observer did not see DONE: %v", observed)
	}

	for _, name := range []string{"1 - Intro.mp4", "2 - Q1.mp4"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, name)); err != nil {
			t.Fatalf("expected clip %s: %v", name, err)
		}
	}
	if len(summary.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %v", summary.Clips)
	}

	// initial download + three stalled rounds with a threshold of 2
	if stream.calls != 4 {
		t.Fatalf("download calls = %d, want 4", stream.calls)
	}

	marker := filepath.Join(cfg.Paths.DownloadDir, "stream.mp4.ytdl")
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected resume marker: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkDir, "autosplit-run-1")); !os.IsNotExist(err) {
		t.Fatalf("scratch directory should be removed, stat err = %v", err)
	}

	run, err := store.GetRun(context.Background(), "run-1")
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != journal.RunCompleted || run.FinalDuration != 12 {
		t.Fatalf("unexpected journal run %+v", run)
	}
	segments, err := store.ListSegments(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 journal segments, got %d", len(segments))
	}
	for _, seg := range segments {
		if seg.ExportStatus != journal.ExportCompleted {
			t.Fatalf("segment %d status = %s", seg.Ordinal, seg.ExportStatus)
		}
	}
}

func TestRunExportArguments(t *testing.T) {
	cfg := newTestConfig(t)
	stream := &fakeStream{durations: []float64{7}}

	runner, err := NewRunner(cfg, Options{URL: "https://example.invalid/live", Deps: stream.deps(t), Sleep: noSleep})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Segments) != 1 || summary.Segments[0].End != 7 {
		t.Fatalf("unexpected segments %+v", summary.Segments)
	}
	if len(stream.exports) != 1 {
		t.Fatalf("expected one export, got %d", len(stream.exports))
	}
	args := strings.Join(stream.exports[0], " ")
	media := filepath.Join(cfg.Paths.DownloadDir, "stream.mp4")
	want := "-ss 0 -i " + media + " -t 7 -c:v copy -c:a copy " + filepath.Join(cfg.Paths.OutputDir, "1 - Intro.mp4")
	if !strings.Contains(args, want) {
		t.Fatalf("export args %q missing %q", args, want)
	}
}

func TestRunFailedExportFailsRun(t *testing.T) {
	cfg := newTestConfig(t)
	store := openJournal(t, cfg)
	stream := &fakeStream{
		durations: []float64{12},
		overlays:  map[string]string{"5": "CH"},
		labels:    map[string]string{"5": "Q2"},
		failClip:  "1 - Intro.mp4",
	}

	runner, err := NewRunner(cfg, Options{URL: "https://example.invalid/live", RunID: "run-f", Journal: store, Deps: stream.deps(t), Sleep: noSleep})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	summary, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for failed export")
	}
	if !strings.Contains(err.Error(), "1 - Intro.mp4") {
		t.Fatalf("error should name the failed clip: %v", err)
	}
	if summary.Status != journal.RunFailed || summary.FailedExports != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	segments, err := store.ListSegments(context.Background(), "run-f")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segments) != 2 || segments[0].ExportStatus != journal.ExportFailed || segments[1].ExportStatus != journal.ExportCompleted {
		t.Fatalf("unexpected journal segments %+v", segments)
	}
}

func TestRunCancelledIsInterrupted(t *testing.T) {
	cfg := newTestConfig(t)
	store := openJournal(t, cfg)
	stream := &fakeStream{durations: []float64{12}}

	ctx, cancel := context.WithCancel(context.Background())
	runner, err := NewRunner(cfg, Options{
		URL:     "https://example.invalid/live",
		RunID:   "run-c",
		Journal: store,
		Deps:    stream.deps(t),
		Sleep:   noSleep,
		Observer: func(s segmenter.State) {
			if s.Phase == segmenter.PhaseAwaitingData {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	summary, err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Status != journal.RunInterrupted {
		t.Fatalf("status = %s", summary.Status)
	}
	run, err := store.GetRun(context.Background(), "run-c")
	if err != nil || run == nil || run.Status != journal.RunInterrupted {
		t.Fatalf("unexpected journal run %+v (%v)", run, err)
	}
}

func TestRunMissingFrameToolIsFatal(t *testing.T) {
	cfg := newTestConfig(t)
	stream := &fakeStream{durations: []float64{12}}
	deps := stream.deps(t)
	deps.FrameExec = services.CommandExecutor{}
	cfg.Tools.FFmpeg = "autosplit-missing-ffmpeg"

	runner, err := NewRunner(cfg, Options{URL: "https://example.invalid/live", Deps: deps, Sleep: noSleep})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	summary, err := runner.Run(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if summary.Status != journal.RunFailed {
		t.Fatalf("status = %s", summary.Status)
	}
}

func TestNewRunnerRequiresURL(t *testing.T) {
	cfg := newTestConfig(t)
	if _, err := NewRunner(cfg, Options{URL: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRunTemplateDecidesOverlay(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Detection.OverlayTemplate = filepath.Join(t.TempDir(), "overlay.png")
	cfg.Detection.TemplateThreshold = 0.7
	// No overlay text carries the keyword; only the template score can split.
	stream := &fakeStream{
		durations: []float64{12},
		labels:    map[string]string{"5": "Q3", "10": "Q3"},
	}
	var compareArgs []string
	deps := stream.deps(t)
	deps.CompareExec = execFunc(func(_ context.Context, _ string, args []string, onLine func(string)) error {
		compareArgs = args
		stream.mu.Lock()
		probe := stream.probe
		stream.mu.Unlock()
		if probe == "5" || probe == "10" {
			onLine("0.93 (0.93)")
			return nil
		}
		onLine("0.12 (0.12)")
		return errors.New("exit status 1")
	})

	runner, err := NewRunner(cfg, Options{URL: "https://example.invalid/live", Deps: deps, Sleep: noSleep})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Segments) != 2 || summary.Segments[1].Label != "Q3" || summary.Segments[1].Start != 5 {
		t.Fatalf("unexpected segments %+v", summary.Segments)
	}
	if len(compareArgs) < 2 || compareArgs[0] != "-metric" || compareArgs[1] != "NCC" {
		t.Fatalf("unexpected compare args %v", compareArgs)
	}
}
