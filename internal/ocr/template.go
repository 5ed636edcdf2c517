package ocr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"autosplit/internal/fileutil"
	"autosplit/internal/services"
)

const (
	templateCropName   = "overlay_template_check"
	templateScaledName = "overlay_template"
)

// DefaultTemplateThreshold is the minimum similarity for a template hit.
const DefaultTemplateThreshold = 0.7

// TemplateOptions configures a TemplateMatcher.
type TemplateOptions struct {
	Template      string
	ConvertBinary string
	CompareBinary string
	ScratchDir    string
	ConvertExec   services.Executor
	CompareExec   services.Executor
}

// TemplateMatcher scores a frame region against a reference picture of the
// overlay using ImageMagick's normalized cross correlation (1 is identical).
type TemplateMatcher struct {
	template    string
	convert     string
	compare     string
	scratch     string
	convExec    services.Executor
	compareExec services.Executor

	// scaledFor is the geometry the scaled template was last rendered at.
	scaledFor string
}

// NewTemplateMatcher constructs a TemplateMatcher.
func NewTemplateMatcher(opts TemplateOptions) (*TemplateMatcher, error) {
	if strings.TrimSpace(opts.Template) == "" {
		return nil, errors.New("overlay template required")
	}
	if strings.TrimSpace(opts.ScratchDir) == "" {
		return nil, errors.New("scratch directory required")
	}
	m := &TemplateMatcher{
		template:    opts.Template,
		convert:     firstNonEmpty(opts.ConvertBinary, "convert"),
		compare:     firstNonEmpty(opts.CompareBinary, "compare"),
		scratch:     opts.ScratchDir,
		convExec:    opts.ConvertExec,
		compareExec: opts.CompareExec,
	}
	if m.convExec == nil {
		m.convExec = services.CommandExecutor{}
	}
	if m.compareExec == nil {
		m.compareExec = services.CommandExecutor{}
	}
	return m, nil
}

// MatchRegion crops rect out of image and returns its similarity to the
// template, which is stretched to the crop size first.
func (m *TemplateMatcher) MatchRegion(ctx context.Context, image string, rect Rect) (float64, error) {
	crop := filepath.Join(m.scratch, templateCropName+".png")
	scaled := filepath.Join(m.scratch, templateScaledName+".png")

	if err := fileutil.RemoveIfExists(crop); err != nil {
		return 0, fmt.Errorf("remove stale %s: %w", filepath.Base(crop), err)
	}
	geometry := rect.Geometry()
	if err := m.convExec.Run(ctx, m.convert, []string{image, "-crop", geometry, "+repage", crop}, nil); err != nil {
		return 0, m.toolError("crop", err)
	}

	size, _, _ := strings.Cut(geometry, "+")
	if m.scaledFor != size {
		if err := m.convExec.Run(ctx, m.convert, []string{m.template, "-resize", size + "!", scaled}, nil); err != nil {
			return 0, m.toolError("scale template", err)
		}
		m.scaledFor = size
	}

	var lines []string
	// compare exits 1 when the images differ, which still carries a score.
	runErr := m.compareExec.Run(ctx, m.compare, []string{"-metric", "NCC", crop, scaled, "null:"}, func(line string) {
		lines = append(lines, line)
	})
	if runErr != nil && services.IsToolMissing(runErr) {
		return 0, m.toolError("compare", runErr)
	}
	score, ok := parseSimilarity(lines)
	if !ok {
		if runErr != nil {
			return 0, m.toolError("compare", runErr)
		}
		return 0, services.Wrap(services.ErrTransient, "ocr", "compare", "no similarity in output", nil)
	}
	return score, nil
}

func (m *TemplateMatcher) toolError(operation string, err error) error {
	if services.IsToolMissing(err) {
		return services.Wrap(services.ErrExternalTool, "ocr", operation, "binary not found", err)
	}
	return services.Wrap(services.ErrTransient, "ocr", operation, "", err)
}

// parseSimilarity returns the first number on the last line that starts with
// one. ImageMagick 6 prints "0.93"; version 7 prints "0.93 (0.93)".
func parseSimilarity(lines []string) (float64, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			continue
		}
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
