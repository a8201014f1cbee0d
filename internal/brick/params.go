package brick

import "fmt"

// DetectionParams holds the tunable thresholds of the frame pipeline.
type DetectionParams struct {
	// Edge map
	CannyLow  float32 `yaml:"canny_low"`
	CannyHigh float32 `yaml:"canny_high"`

	// Elliptical dilation kernel size in pixels (odd)
	DilateKernel int `yaml:"dilate_kernel"`

	// Candidate filters
	MinContourArea float64 `yaml:"min_contour_area"` // px², contours below are noise
	MinSide        float64 `yaml:"min_side"`         // px, rectangles with a shorter side are slivers

	// Cross-channel merge
	IoUThreshold float64 `yaml:"iou_threshold"`

	// Histogram peak count a color must exceed, per channel
	SatMinCount float64 `yaml:"sat_min_count"`
	HueMinCount float64 `yaml:"hue_min_count"`

	// Annotation
	OutlineThickness int     `yaml:"outline_thickness"`
	FontScale        float64 `yaml:"font_scale"`
}

// DefaultParams returns the thresholds tuned for bricks filmed at 640x480.
func DefaultParams() DetectionParams {
	return DetectionParams{
		CannyLow:  50,
		CannyHigh: 150,

		DilateKernel: 5,

		MinContourArea: 1000,
		MinSide:        50,

		// Both channels see the same brick with a few pixels of jitter.
		IoUThreshold: 0.1,

		// A washed-out crop must not read as grey.
		SatMinCount: 800,
		HueMinCount: 0,

		OutlineThickness: 2,
		FontScale:        0.3,
	}
}

// WithCanny returns a copy of params with custom edge thresholds.
func (p DetectionParams) WithCanny(low, high float32) DetectionParams {
	p.CannyLow = low
	p.CannyHigh = high
	return p
}

// WithCandidateFilter returns a copy of params with custom contour area and
// minimum side limits.
func (p DetectionParams) WithCandidateFilter(minArea, minSide float64) DetectionParams {
	p.MinContourArea = minArea
	p.MinSide = minSide
	return p
}

// WithIoUThreshold returns a copy of params with a custom merge threshold.
func (p DetectionParams) WithIoUThreshold(threshold float64) DetectionParams {
	p.IoUThreshold = threshold
	return p
}

// Validate reports the first out-of-range parameter.
func (p DetectionParams) Validate() error {
	switch {
	case p.CannyLow < 0 || p.CannyHigh < p.CannyLow:
		return fmt.Errorf("invalid canny thresholds: low=%.0f high=%.0f", p.CannyLow, p.CannyHigh)
	case p.DilateKernel < 1 || p.DilateKernel%2 == 0:
		return fmt.Errorf("dilate kernel must be a positive odd size, got %d", p.DilateKernel)
	case p.MinContourArea < 0 || p.MinSide < 0:
		return fmt.Errorf("candidate filters must be non-negative: area=%.0f side=%.0f", p.MinContourArea, p.MinSide)
	case p.IoUThreshold < 0 || p.IoUThreshold > 1:
		return fmt.Errorf("iou threshold must be in [0,1], got %.3f", p.IoUThreshold)
	case p.SatMinCount < 0 || p.HueMinCount < 0:
		return fmt.Errorf("histogram count thresholds must be non-negative")
	case p.OutlineThickness < 1:
		return fmt.Errorf("outline thickness must be positive, got %d", p.OutlineThickness)
	}
	return nil
}
