package ocr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Region is a rectangle expressed as fractions of the frame size.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Rect is a rectangle in pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ParseRegion reads "x,y,width,height".
func ParseRegion(value string) (Region, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: expected x,y,width,height", value)
	}
	nums := make([]float64, 4)
	for i, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", value, err)
		}
		nums[i] = n
	}
	r := Region{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks that the region lies inside the unit square.
func (r Region) Validate() error {
	for name, v := range map[string]float64{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("region %s must be between 0 and 1, got %v", name, v)
		}
	}
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("region width and height must be positive")
	}
	if r.X+r.Width > 1+1e-9 || r.Y+r.Height > 1+1e-9 {
		return fmt.Errorf("region %s extends past the frame", r)
	}
	return nil
}

// String renders the region in the same order ParseRegion accepts.
func (r Region) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(r.X) + "," + f(r.Y) + "," + f(r.Width) + "," + f(r.Height)
}

// Resolve scales the region to a frame of width x height pixels.
func (r Region) Resolve(width, height int) Rect {
	w := float64(width)
	h := float64(height)
	return Rect{
		X:      r.X * w,
		Y:      r.Y * h,
		Width:  r.Width * w,
		Height: r.Height * h,
	}
}

// Geometry renders the rectangle as an ImageMagick crop geometry (WxH+X+Y).
func (r Rect) Geometry() string {
	round := func(v float64) int { return int(math.Round(v)) }
	width := max(round(r.Width), 1)
	height := max(round(r.Height), 1)
	return fmt.Sprintf("%dx%d+%d+%d", width, height, round(r.X), round(r.Y))
}
