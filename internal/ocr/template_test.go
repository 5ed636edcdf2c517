package ocr

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"autosplit/internal/services"
)

type compareExecutor struct {
	calls [][]string
	lines []string
	err   error
}

func (c *compareExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	c.calls = append(c.calls, append([]string{binary}, args...))
	for _, line := range c.lines {
		onLine(line)
	}
	return c.err
}

func newTestMatcher(t *testing.T, conv *recordingExecutor, cmp *compareExecutor) (*TemplateMatcher, string) {
	t.Helper()
	scratch := t.TempDir()
	m, err := NewTemplateMatcher(TemplateOptions{
		Template:    "/calib/overlay.png",
		ScratchDir:  scratch,
		ConvertExec: conv,
		CompareExec: cmp,
	})
	if err != nil {
		t.Fatalf("NewTemplateMatcher: %v", err)
	}
	return m, scratch
}

func TestMatchRegionScalesTemplateOnceAndCompares(t *testing.T) {
	conv := &recordingExecutor{}
	cmp := &compareExecutor{lines: []string{"0.912345"}}
	m, scratch := newTestMatcher(t, conv, cmp)
	rect := Rect{X: 0, Y: 77, Width: 20, Height: 5.5}

	for range 2 {
		score, err := m.MatchRegion(context.Background(), "frame.png", rect)
		if err != nil {
			t.Fatalf("MatchRegion: %v", err)
		}
		if score != 0.912345 {
			t.Fatalf("unexpected score %v", score)
		}
	}

	crop := filepath.Join(scratch, "overlay_template_check.png")
	scaled := filepath.Join(scratch, "overlay_template.png")
	var got []string
	for _, call := range conv.calls {
		got = append(got, strings.Join(call, " "))
	}
	want := []string{
		"convert frame.png -crop 20x6+0+77 +repage " + crop,
		"convert /calib/overlay.png -resize 20x6! " + scaled,
		"convert frame.png -crop 20x6+0+77 +repage " + crop,
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected convert calls:\n got %q\nwant %q", got, want)
	}
	wantCompare := "compare -metric NCC " + crop + " " + scaled + " null:"
	if len(cmp.calls) != 2 || strings.Join(cmp.calls[0], " ") != wantCompare {
		t.Fatalf("unexpected compare calls %q", cmp.calls)
	}
}

func TestMatchRegionAcceptsDissimilarExitStatus(t *testing.T) {
	cmp := &compareExecutor{lines: []string{"0.213 (0.213)"}, err: errors.New("wait command: exit status 1")}
	m, _ := newTestMatcher(t, &recordingExecutor{}, cmp)
	score, err := m.MatchRegion(context.Background(), "frame.png", Rect{Width: 10, Height: 10})
	if err != nil {
		t.Fatalf("expected score despite exit status, got %v", err)
	}
	if score != 0.213 {
		t.Fatalf("unexpected score %v", score)
	}
}

func TestMatchRegionErrors(t *testing.T) {
	missing := &compareExecutor{err: &exec.Error{Name: "compare", Err: exec.ErrNotFound}}
	m, _ := newTestMatcher(t, &recordingExecutor{}, missing)
	_, err := m.MatchRegion(context.Background(), "frame.png", Rect{Width: 10, Height: 10})
	if !errors.Is(err, services.ErrExternalTool) || !services.IsToolMissing(err) {
		t.Fatalf("expected missing tool error, got %v", err)
	}

	garbled := &compareExecutor{lines: []string{"compare: image widths or heights differ"}, err: errors.New("exit status 2")}
	m, _ = newTestMatcher(t, &recordingExecutor{}, garbled)
	_, err = m.MatchRegion(context.Background(), "frame.png", Rect{Width: 10, Height: 10})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNewTemplateMatcherRequiresTemplate(t *testing.T) {
	if _, err := NewTemplateMatcher(TemplateOptions{ScratchDir: t.TempDir()}); err == nil {
		t.Fatal("expected error without template")
	}
}
