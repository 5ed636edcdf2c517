package ocr

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"strings"

	"autosplit/internal/logging"
)

const (
	overlayRegionName = "overlay_check"
	matchRegionName   = "match_num"
)

// MatchRegionName is the scratch name used for the label crop.
const MatchRegionName = matchRegionName

// Result is the outcome of classifying one frame.
type Result struct {
	OverlayPresent bool
	Label          string
}

// RegionReader reads text from a rectangle of an image.
type RegionReader interface {
	ClassifyRegion(ctx context.Context, image string, rect Rect, name string) (string, error)
}

// OverlayMatcher scores a frame region against a reference picture.
type OverlayMatcher interface {
	MatchRegion(ctx context.Context, image string, rect Rect) (float64, error)
}

// DetectorOptions configures a Detector.
type DetectorOptions struct {
	OverlayArea Region
	MatchArea   Region
	Keyword     string
	// Matcher, when set, decides overlay presence instead of Keyword.
	Matcher OverlayMatcher
	// TemplateThreshold is the minimum Matcher score; 0 means DefaultTemplateThreshold.
	TemplateThreshold float64
	Logger            *slog.Logger
}

// Detector decides whether a frame shows the match overlay and which label it carries.
type Detector struct {
	reader      RegionReader
	overlayArea Region
	matchArea   Region
	keyword     string
	matcher     OverlayMatcher
	minScore    float64
	logger      *slog.Logger

	resolved    bool
	overlayRect Rect
	matchRect   Rect
}

// NewDetector constructs a Detector.
func NewDetector(reader RegionReader, opts DetectorOptions) (*Detector, error) {
	if reader == nil {
		return nil, fmt.Errorf("ocr: region reader required")
	}
	if err := opts.OverlayArea.Validate(); err != nil {
		return nil, fmt.Errorf("overlay area: %w", err)
	}
	if err := opts.MatchArea.Validate(); err != nil {
		return nil, fmt.Errorf("match area: %w", err)
	}
	if opts.Keyword == "" && opts.Matcher == nil {
		return nil, fmt.Errorf("ocr: overlay keyword or template required")
	}
	minScore := opts.TemplateThreshold
	if minScore == 0 {
		minScore = DefaultTemplateThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{
		reader:      reader,
		overlayArea: opts.OverlayArea,
		matchArea:   opts.MatchArea,
		keyword:     opts.Keyword,
		matcher:     opts.Matcher,
		minScore:    minScore,
		logger:      logging.NewComponentLogger(logger, "ocr"),
	}, nil
}

// Geometry returns the pixel rectangles once they have been resolved.
func (d *Detector) Geometry() (overlay Rect, match Rect, ok bool) {
	return d.overlayRect, d.matchRect, d.resolved
}

// Classify checks the overlay region, by template score when a Matcher is
// configured and by keyword otherwise, and reads the match label only when the
// overlay is present.
func (d *Detector) Classify(ctx context.Context, frame string) (Result, error) {
	if !d.resolved {
		width, height, err := ImageSize(frame)
		if err != nil {
			return Result{}, err
		}
		d.overlayRect = d.overlayArea.Resolve(width, height)
		d.matchRect = d.matchArea.Resolve(width, height)
		d.resolved = true
		d.logger.Info("resolved detection regions",
			logging.Int("frame_width", width),
			logging.Int("frame_height", height),
			logging.String("overlay_geometry", d.overlayRect.Geometry()),
			logging.String("match_geometry", d.matchRect.Geometry()),
		)
	}

	present, err := d.overlayPresent(ctx, frame)
	if err != nil || !present {
		return Result{}, err
	}

	label, err := d.reader.ClassifyRegion(ctx, frame, d.matchRect, matchRegionName)
	if err != nil {
		return Result{}, err
	}
	return Result{OverlayPresent: true, Label: strings.TrimSpace(label)}, nil
}

func (d *Detector) overlayPresent(ctx context.Context, frame string) (bool, error) {
	if d.matcher != nil {
		score, err := d.matcher.MatchRegion(ctx, frame, d.overlayRect)
		if err != nil {
			return false, err
		}
		d.logger.Debug("overlay template score",
			logging.Float64("score", score),
			logging.Float64("threshold", d.minScore),
		)
		return score >= d.minScore, nil
	}
	text, err := d.reader.ClassifyRegion(ctx, frame, d.overlayRect, overlayRegionName)
	if err != nil {
		return false, err
	}
	return strings.Contains(text, d.keyword), nil
}

// ImageSize reads the pixel dimensions from a PNG header.
func ImageSize(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode frame header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("frame %s has no dimensions", path)
	}
	return cfg.Width, cfg.Height, nil
}
