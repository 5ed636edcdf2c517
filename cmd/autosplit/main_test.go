package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autosplit/internal/testsupport"
)

func TestMissingURLIsUsageError(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, nil, env.configPath)
	if !errors.Is(err, errMissingURL) {
		t.Fatalf("expected errMissingURL, got %v", err)
	}
	requireContains(t, stderr, "Usage:")
	requireContains(t, stderr, "autosplit <url>")
}

func TestTooManyArgsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"https://a.invalid", "https://b.invalid"}, env.configPath); err == nil {
		t.Fatal("expected error for two positional arguments")
	}
}

func TestInvalidOverlayAreaFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"--overlay-area", "2,0,1,1", "https://example.invalid/live"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for out-of-range overlay area")
	}
	requireContains(t, err.Error(), "--overlay-area")
}

func TestFlagOverridesAreValidated(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"--frame-increment=-1", "https://example.invalid/live"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error for negative frame increment")
	}
	requireContains(t, err.Error(), "frame_increment")
}

func TestPreflightFailureStopsRun(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Download.Binary = "autosplit-missing-yt-dlp"
	writeTestConfig(t, env.configPath, env.cfg)

	_, stderr, err := runCLI(t, []string{"https://example.invalid/live"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight error")
	}
	requireContains(t, err.Error(), "preflight failed")
	requireContains(t, stderr, "yt-dlp")
}

func TestRunWithStubbedToolsRecordsJournal(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"-m", "1", "-o", filepath.Join(env.homeDir, "clips"), "https://example.invalid/live"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "Intro")
	requireContains(t, out, "Clips written: 0")

	if _, err := os.Stat(filepath.Join(env.homeDir, "clips")); err != nil {
		t.Fatalf("expected output dir override to be created: %v", err)
	}
	logs, err := filepath.Glob(filepath.Join(env.cfg.Paths.LogDir, "autosplit-*.log"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one run log, got %v (%v)", logs, err)
	}

	out, _, err = runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "https://example.invalid/live")

	out, _, err = runCLI(t, []string{"segments"}, env.configPath)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	requireContains(t, out, "Intro")
	requireContains(t, out, "skipped")
	if !strings.Contains(out, "1 - Intro.mp4") {
		t.Fatalf("expected clip file name in %q", out)
	}
}

func TestTemplateFlagRequiresFile(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"-t", filepath.Join(env.homeDir, "missing.png"), "https://example.invalid/live"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing template")
	}
	requireContains(t, err.Error(), "detection.overlay_template")
}

func TestTemplateFlagRequiresCompare(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries("yt-dlp", "ffmpeg", "ffprobe", "tesseract", "convert"))
	template := filepath.Join(env.homeDir, "overlay.png")
	if err := os.WriteFile(template, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := runCLI(t, []string{"--template", template, "--template-threshold", "0.8", "https://example.invalid/live"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight error without compare")
	}
	requireContains(t, err.Error(), "preflight failed")
	requireContains(t, stderr, "ImageMagick compare")
}
