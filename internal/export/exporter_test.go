package export

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubExecutor struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[string]error
	gate  chan struct{}
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.calls = append(s.calls, append([]string{binary}, args...))
	s.mu.Unlock()
	out := filepath.Base(args[len(args)-1])
	if err, ok := s.fail[out]; ok {
		onLine("Conversion failed!")
		return err
	}
	return nil
}

func TestFileName(t *testing.T) {
	cases := []struct {
		ordinal  int
		label    string
		sanitize bool
		want     string
		changed  bool
	}{
		{1, "Intro", true, "1 - Intro.mp4", false},
		{3, "Final 1/2", true, "3 - Final 1-2.mp4", true},
		{3, "Final 1/2", false, "3 - Final 1/2.mp4", false},
		{4, "???", true, "4 - segment.mp4", true},
	}
	for _, tc := range cases {
		got, changed := FileName(tc.ordinal, tc.label, "mp4", tc.sanitize)
		if got != tc.want || changed != tc.changed {
			t.Fatalf("FileName(%d, %q) = %q,%v want %q,%v", tc.ordinal, tc.label, got, changed, tc.want, tc.changed)
		}
	}
	if got, _ := FileName(2, "Q5", ".mkv", true); got != "2 - Q5.mkv" {
		t.Fatalf("unexpected extension handling: %q", got)
	}
}

func TestExportBuildsStreamCopyArgs(t *testing.T) {
	stub := &stubExecutor{}
	outDir := t.TempDir()
	exp, err := New(Options{OutputDir: outDir, Extension: "mp4", SanitizeLabels: true, Executor: stub})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	task, err := exp.Export(context.Background(), Request{Source: "/dl/stream.mp4.part", Ordinal: 2, Label: "Qualification 5", Start: 10, End: 25.5})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := task.Wait(context.Background()); err != nil {
		t.Fatalf("task failed: %v", err)
	}
	want := "ffmpeg -hide_banner -loglevel error -y -ss 10 -i /dl/stream.mp4.part -t 15.5 -c:v copy -c:a copy " +
		filepath.Join(outDir, "2 - Qualification 5.mp4")
	if got := strings.Join(stub.calls[0], " "); got != want {
		t.Fatalf("unexpected args:\n got %s\nwant %s", got, want)
	}
}

func TestWaitAggregatesFailures(t *testing.T) {
	stub := &stubExecutor{fail: map[string]error{
		"2 - Q1.mp4": errors.New("exit status 1"),
		"4 - Q3.mp4": errors.New("exit status 1"),
	}}
	var completed []int
	var mu sync.Mutex
	exp, _ := New(Options{
		OutputDir: t.TempDir(),
		Executor:  stub,
		OnComplete: func(task *Task, _ error) {
			mu.Lock()
			completed = append(completed, task.Request.Ordinal)
			mu.Unlock()
		},
	})
	labels := []string{"Intro", "Q1", "Q2", "Q3"}
	for i, label := range labels {
		if _, err := exp.Export(context.Background(), Request{Source: "m", Ordinal: i + 1, Label: label, Start: float64(i * 10), End: float64(i*10 + 10)}); err != nil {
			t.Fatalf("Export %d: %v", i, err)
		}
	}
	err := exp.Wait(context.Background())
	if err == nil {
		t.Fatal("expected aggregated failure")
	}
	msg := err.Error()
	if !strings.Contains(msg, "2 errors occurred") || !strings.Contains(msg, "[2 - Q1.mp4]") || !strings.Contains(msg, "[4 - Q3.mp4]") {
		t.Fatalf("unexpected aggregated error: %s", msg)
	}
	if len(completed) != 4 {
		t.Fatalf("expected 4 completion callbacks, got %v", completed)
	}
	if exp.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", exp.Pending())
	}
}

func TestExportSurvivesCancelledContext(t *testing.T) {
	stub := &stubExecutor{gate: make(chan struct{})}
	exp, _ := New(Options{OutputDir: t.TempDir(), Executor: stub})
	ctx, cancel := context.WithCancel(context.Background())
	task, err := exp.Export(ctx, Request{Source: "m", Ordinal: 1, Label: "Intro", Start: 0, End: 5})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	cancel()
	if exp.Pending() != 1 {
		t.Fatalf("expected task still pending, got %d", exp.Pending())
	}
	close(stub.gate)
	if err := exp.Wait(context.Background()); err != nil {
		t.Fatalf("expected export to complete after cancellation, got %v", err)
	}
	if task.Err() != nil {
		t.Fatalf("unexpected task error: %v", task.Err())
	}
}

func TestWaitHonoursContext(t *testing.T) {
	stub := &stubExecutor{gate: make(chan struct{})}
	defer close(stub.gate)
	exp, _ := New(Options{OutputDir: t.TempDir(), Executor: stub})
	if _, err := exp.Export(context.Background(), Request{Source: "m", Ordinal: 1, Label: "Intro", End: 5}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := exp.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestZeroLengthSegmentIsSkipped(t *testing.T) {
	stub := &stubExecutor{}
	exp, _ := New(Options{OutputDir: t.TempDir(), Executor: stub})
	task, err := exp.Export(context.Background(), Request{Source: "m", Ordinal: 3, Label: "Q9", Start: 40, End: 40})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := task.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.Skipped || len(stub.calls) != 0 {
		t.Fatalf("expected skipped task without ffmpeg call, skipped=%v calls=%d", task.Skipped, len(stub.calls))
	}
}

func TestExportValidatesRequest(t *testing.T) {
	exp, _ := New(Options{OutputDir: t.TempDir(), Executor: &stubExecutor{}})
	bad := []Request{
		{Ordinal: 1, End: 1},
		{Source: "m", Ordinal: 0, End: 1},
		{Source: "m", Ordinal: 1, Start: 5, End: 1},
	}
	for _, req := range bad {
		if _, err := exp.Export(context.Background(), req); err == nil {
			t.Fatalf("expected validation error for %+v", req)
		}
	}
	if len(exp.Tasks()) != 0 {
		t.Fatal("rejected requests must not be registered")
	}
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without output dir")
	}
}
