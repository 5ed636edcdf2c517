package ocr

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type stubReader struct {
	texts map[string]string
	err   error
	calls []string
	rects map[string]Rect
}

func (s *stubReader) ClassifyRegion(ctx context.Context, img string, rect Rect, name string) (string, error) {
	s.calls = append(s.calls, name)
	if s.rects == nil {
		s.rects = map[string]Rect{}
	}
	s.rects[name] = rect
	if s.err != nil {
		return "", s.err
	}
	return s.texts[name], nil
}

func writePNG(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "current.png")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := png.Encode(file, image.NewGray(image.Rect(0, 0, width, height))); err != nil {
		t.Fatal(err)
	}
	return path
}

func newDetector(t *testing.T, reader RegionReader) *Detector {
	t.Helper()
	d, err := NewDetector(reader, DetectorOptions{
		OverlayArea: Region{X: 0, Y: 0.77, Width: 0.1, Height: 0.055},
		MatchArea:   Region{X: 0.53, Y: 0.773148148, Width: 0.3, Height: 0.05},
		Keyword:     "CH",
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestClassifyOverlayPresent(t *testing.T) {
	reader := &stubReader{texts: map[string]string{
		overlayRegionName: "MATCH",
		matchRegionName:   "Qualification 5",
	}}
	d := newDetector(t, reader)
	result, err := d.Classify(context.Background(), writePNG(t, 200, 100))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !result.OverlayPresent || result.Label != "Qualification 5" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := reader.rects[overlayRegionName].Geometry(); got != "20x6+0+77" {
		t.Fatalf("unexpected overlay geometry %q", got)
	}
}

func TestClassifyOverlayAbsentSkipsMatchRead(t *testing.T) {
	reader := &stubReader{texts: map[string]string{overlayRegionName: "ch lowercase"}}
	d := newDetector(t, reader)
	result, err := d.Classify(context.Background(), writePNG(t, 200, 100))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.OverlayPresent {
		t.Fatalf("keyword check must be case sensitive, got %+v", result)
	}
	if strings.Join(reader.calls, ",") != overlayRegionName {
		t.Fatalf("expected only overlay read, got %v", reader.calls)
	}
}

func TestGeometryResolvedOnce(t *testing.T) {
	reader := &stubReader{texts: map[string]string{}}
	d := newDetector(t, reader)
	if _, _, ok := d.Geometry(); ok {
		t.Fatal("expected geometry unresolved before first frame")
	}
	if _, err := d.Classify(context.Background(), writePNG(t, 200, 100)); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	first, _, _ := d.Geometry()
	if _, err := d.Classify(context.Background(), writePNG(t, 400, 200)); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	second, _, _ := d.Geometry()
	if first != second {
		t.Fatalf("expected geometry to stay fixed, got %+v then %+v", first, second)
	}
}

func TestClassifyPropagatesReaderError(t *testing.T) {
	boom := errors.New("tesseract crashed")
	d := newDetector(t, &stubReader{err: boom})
	if _, err := d.Classify(context.Background(), writePNG(t, 10, 10)); !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestImageSizeRejectsNonPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ImageSize(path); err == nil {
		t.Fatal("expected decode error")
	}
}

type stubMatcher struct {
	score float64
	err   error
	rects []Rect
}

func (s *stubMatcher) MatchRegion(ctx context.Context, img string, rect Rect) (float64, error) {
	s.rects = append(s.rects, rect)
	return s.score, s.err
}

func newTemplateDetector(t *testing.T, reader RegionReader, matcher OverlayMatcher) *Detector {
	t.Helper()
	d, err := NewDetector(reader, DetectorOptions{
		OverlayArea: Region{X: 0, Y: 0.77, Width: 0.1, Height: 0.055},
		MatchArea:   Region{X: 0.53, Y: 0.773148148, Width: 0.3, Height: 0.05},
		Keyword:     "CH",
		Matcher:     matcher,
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestClassifyTemplateHitSkipsKeyword(t *testing.T) {
	// The overlay text lacks the keyword; only the template decides.
	reader := &stubReader{texts: map[string]string{
		overlayRegionName: "no keyword here",
		matchRegionName:   "Final 2",
	}}
	matcher := &stubMatcher{score: 0.85}
	d := newTemplateDetector(t, reader, matcher)

	result, err := d.Classify(context.Background(), writePNG(t, 200, 100))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !result.OverlayPresent || result.Label != "Final 2" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(reader.calls) != 1 || reader.calls[0] != matchRegionName {
		t.Fatalf("expected only the match region to be read, got %v", reader.calls)
	}
	if len(matcher.rects) != 1 || matcher.rects[0].Geometry() != "20x6+0+77" {
		t.Fatalf("unexpected matcher rects %+v", matcher.rects)
	}
}

func TestClassifyTemplateBelowThresholdIsAbsent(t *testing.T) {
	reader := &stubReader{texts: map[string]string{overlayRegionName: "CH 12"}}
	d := newTemplateDetector(t, reader, &stubMatcher{score: 0.69})

	result, err := d.Classify(context.Background(), writePNG(t, 200, 100))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.OverlayPresent {
		t.Fatalf("score below 0.7 must not count as overlay, got %+v", result)
	}
	if len(reader.calls) != 0 {
		t.Fatalf("expected no OCR when the template misses, got %v", reader.calls)
	}
}

func TestClassifyTemplateErrorPropagates(t *testing.T) {
	boom := errors.New("compare failed")
	d := newTemplateDetector(t, &stubReader{}, &stubMatcher{err: boom})
	if _, err := d.Classify(context.Background(), writePNG(t, 200, 100)); !errors.Is(err, boom) {
		t.Fatalf("expected matcher error, got %v", err)
	}
}
