package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"autosplit/internal/fileutil"
	"autosplit/internal/services"
	"autosplit/internal/textutil"
)

// ClassifierOptions configures the crop and OCR tools.
type ClassifierOptions struct {
	ConvertBinary   string
	TesseractBinary string
	ScratchDir      string
	// ThresholdPercent enables grayscale thresholding of crops when > 0.
	ThresholdPercent int
	ThresholdRegions []string
	ConvertExec      services.Executor
	TesseractExec    services.Executor
}

// Classifier crops a frame region and reads its text.
type Classifier struct {
	convert    string
	tesseract  string
	scratch    string
	threshold  int
	thresholds map[string]bool
	convExec   services.Executor
	ocrExec    services.Executor
}

// NewClassifier constructs a Classifier.
func NewClassifier(opts ClassifierOptions) (*Classifier, error) {
	if strings.TrimSpace(opts.ScratchDir) == "" {
		return nil, errors.New("scratch directory required")
	}
	c := &Classifier{
		convert:    firstNonEmpty(opts.ConvertBinary, "convert"),
		tesseract:  firstNonEmpty(opts.TesseractBinary, "tesseract"),
		scratch:    opts.ScratchDir,
		threshold:  opts.ThresholdPercent,
		thresholds: make(map[string]bool, len(opts.ThresholdRegions)),
		convExec:   opts.ConvertExec,
		ocrExec:    opts.TesseractExec,
	}
	for _, name := range opts.ThresholdRegions {
		c.thresholds[name] = true
	}
	if c.convExec == nil {
		c.convExec = services.CommandExecutor{}
	}
	if c.ocrExec == nil {
		c.ocrExec = services.CommandExecutor{Env: []string{"OMP_THREAD_LIMIT=1"}}
	}
	return c, nil
}

// ClassifyRegion crops rect out of image, runs OCR, and returns the cleaned
// text. The crop, raw text, and cleaned text are left in the scratch
// directory as <name>.png, <name>.txt, and <name>.clean.txt.
func (c *Classifier) ClassifyRegion(ctx context.Context, image string, rect Rect, name string) (string, error) {
	crop := filepath.Join(c.scratch, name+".png")
	outBase := filepath.Join(c.scratch, name)
	rawPath := outBase + ".txt"
	cleanPath := outBase + ".clean.txt"

	for _, stale := range []string{crop, rawPath, cleanPath} {
		if err := fileutil.RemoveIfExists(stale); err != nil {
			return "", fmt.Errorf("remove stale %s: %w", filepath.Base(stale), err)
		}
	}

	convertArgs := []string{image, "-crop", rect.Geometry(), "+repage"}
	if c.threshold > 0 && c.thresholds[name] {
		convertArgs = append(convertArgs, "-colorspace", "Gray", "-threshold", strconv.Itoa(c.threshold)+"%")
	}
	convertArgs = append(convertArgs, crop)
	if err := c.convExec.Run(ctx, c.convert, convertArgs, nil); err != nil {
		return "", c.toolError("crop", err)
	}

	if err := c.ocrExec.Run(ctx, c.tesseract, []string{crop, outBase}, nil); err != nil {
		return "", c.toolError("recognize", err)
	}

	raw, err := os.ReadFile(rawPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			raw = nil
		} else {
			return "", fmt.Errorf("read ocr output: %w", err)
		}
	}
	clean := textutil.CleanOCR(string(raw))
	if err := os.WriteFile(cleanPath, []byte(clean), 0o644); err != nil {
		return "", fmt.Errorf("write cleaned ocr output: %w", err)
	}
	return clean, nil
}

func (c *Classifier) toolError(operation string, err error) error {
	if services.IsToolMissing(err) {
		return services.Wrap(services.ErrExternalTool, "ocr", operation, "binary not found", err)
	}
	return services.Wrap(services.ErrTransient, "ocr", operation, "", err)
}

func firstNonEmpty(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
