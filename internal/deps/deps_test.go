package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "tesseract")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	results := CheckBinaries([]Requirement{
		{Name: "Tesseract", Command: " tesseract "},
		{Name: "yt-dlp", Command: "autosplit-definitely-missing-binary"},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	ok := results[0]
	if !ok.Available || ok.Detail != "" {
		t.Fatalf("expected tesseract available without detail, got %#v", ok)
	}
	if ok.Path != present {
		t.Fatalf("expected resolved path %q, got %q", present, ok.Path)
	}
	if ok.Command != "tesseract" {
		t.Fatalf("expected trimmed command, got %q", ok.Command)
	}

	missing := results[1]
	if missing.Available || missing.Path != "" {
		t.Fatalf("expected missing binary to be unavailable, got %#v", missing)
	}
	if missing.Detail != `binary "autosplit-definitely-missing-binary" not found` {
		t.Fatalf("unexpected detail %q", missing.Detail)
	}
}

func TestCheckBinariesBlankCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Blank", Command: "  "}})
	if len(results) != 1 || results[0].Available {
		t.Fatalf("blank command must not be available: %#v", results)
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", results[0].Detail)
	}
}
