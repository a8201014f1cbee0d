// Package brick detects and classifies rectangular bricks in video frames.
package brick

import (
	"fmt"
	"strings"

	"brick-detector/pkg/geometry"

	"gocv.io/x/gocv"
)

// Color is the dominant-color label assigned to a brick.
type Color int

const (
	// ColorNone means no color range matched the crop's histogram peaks.
	ColorNone Color = iota
	ColorGrey
	ColorLightGrey
	ColorLime
	ColorGreen
	ColorBlue
	ColorOrange
	ColorYellow
	ColorAzure
)

var colorNames = map[Color]string{
	ColorNone:      "None",
	ColorGrey:      "GREY",
	ColorLightGrey: "LIGHT_GREY",
	ColorLime:      "LIME",
	ColorGreen:     "GREEN",
	ColorBlue:      "BLUE",
	ColorOrange:    "ORANGE",
	ColorYellow:    "YELLOW",
	ColorAzure:     "AZURE",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Size is the stud-count bucket assigned to one side of a brick.
type Size int

const (
	SizeTwo Size = iota
	SizeThree
	SizeFour
	SizeSix
	SizeEight
)

func (s Size) String() string {
	switch s {
	case SizeTwo:
		return "TWO"
	case SizeThree:
		return "THREE"
	case SizeFour:
		return "FOUR"
	case SizeSix:
		return "SIX"
	case SizeEight:
		return "EIGHT"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Rectangle is a candidate brick outline in frame coordinates.
type Rectangle = geometry.RotatedRect

// Detection is one classified rectangle in one frame.
type Detection struct {
	Color Color      `json:"color"`
	Sizes [2]Size    `json:"sizes"` // One label per rectangle side (width, height)
	Rect  Rectangle  `json:"rect"`  // Fitted rectangle in frame coordinates
	Peaks ColorPeaks `json:"-"`     // Histogram peaks used for the color decision
}

// Label returns the annotation text drawn next to the brick.
func (d Detection) Label() string {
	return fmt.Sprintf("%s, %sx%s", d.Color, d.Sizes[0], d.Sizes[1])
}

// FrameResult holds the output of running the detector on one frame.
type FrameResult struct {
	// Annotated is a copy of the input frame with outlines and labels drawn.
	// The caller owns it and must Close it.
	Annotated gocv.Mat

	// Detections are in the same order as the surviving rectangles.
	Detections []Detection
}

// Close releases the annotated frame.
func (r *FrameResult) Close() error {
	return r.Annotated.Close()
}

// FormatLogLine renders one detection-log line for a frame: a
// "color,sizeA,sizeB;" entry per detection followed by a newline.
func FormatLogLine(detections []Detection) string {
	var b strings.Builder
	for _, d := range detections {
		fmt.Fprintf(&b, "%s,%s,%s;", d.Color, d.Sizes[0], d.Sizes[1])
	}
	b.WriteByte('\n')
	return b.String()
}
