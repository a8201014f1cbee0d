package brick

import (
	"errors"
	"fmt"
	"image"

	"brick-detector/pkg/colorutil"
	"brick-detector/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned for frames with no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Detector runs the single-frame brick pipeline. It holds no per-frame state
// and is safe for concurrent use.
type Detector struct {
	params DetectionParams
}

// NewDetector creates a detector with the given parameters.
func NewDetector(params DetectionParams) *Detector {
	return &Detector{params: params}
}

// Params returns the detector's parameters.
func (d *Detector) Params() DetectionParams {
	return d.params
}

// Detect finds and classifies bricks in a BGR frame:
//
//  1. Convert to HSV and split into H, S and V planes
//  2. Extract candidates from S and from V independently
//  3. Merge the two candidate sets, dropping overlapping duplicates
//  4. Rotate the HSV frame upright around each rectangle, crop it, and
//     classify size and color
//  5. Draw outlines and labels on a copy of the frame
//
// The input frame is not modified.
func (d *Detector) Detect(frame gocv.Mat) (*FrameResult, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if frame.Channels() != 3 {
		return nil, fmt.Errorf("expected 3-channel BGR frame, got %d channels", frame.Channels())
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	planes := gocv.Split(hsv)
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()

	rectsSat := ExtractCandidates(planes[1], d.params)
	rectsVal := ExtractCandidates(planes[2], d.params)
	rects := Deduplicate(rectsSat, rectsVal, d.params.IoUThreshold)

	detections := make([]Detection, 0, len(rects))
	for _, r := range rects {
		sizes, err := ClassifySize(r.Size.Width, r.Size.Height)
		if err != nil {
			return nil, fmt.Errorf("classify rectangle at (%.0f,%.0f): %w", r.Center.X, r.Center.Y, err)
		}

		crop := cropToRect(hsv, r)
		color, peaks := ClassifyColor(crop, d.params)
		crop.Close()

		detections = append(detections, Detection{
			Color: color,
			Sizes: sizes,
			Rect:  r,
			Peaks: peaks,
		})
	}

	annotated := frame.Clone()
	d.annotate(&annotated, detections)

	return &FrameResult{Annotated: annotated, Detections: detections}, nil
}

// DetectImage runs Detect on a Go image.
func (d *Detector) DetectImage(img image.Image) (*FrameResult, error) {
	mat, err := ImageToMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	return d.Detect(mat)
}

// cropToRect rotates src about the rectangle center by the rectangle angle
// and then takes a center crop of the rectangle size. Rotating first keeps
// background that would rotate into view out of the crop.
func cropToRect(src gocv.Mat, r geometry.RotatedRect) gocv.Mat {
	center := r.Center.Image()

	rotMat := gocv.GetRotationMatrix2D(center, r.Angle, 1.0)
	defer rotMat.Close()

	rotated := gocv.NewMat()
	defer rotated.Close()
	gocv.WarpAffine(src, &rotated, rotMat, image.Point{X: src.Cols(), Y: src.Rows()})

	out := gocv.NewMat()
	patch := image.Point{X: int(r.Size.Width), Y: int(r.Size.Height)}
	if patch.X <= 0 || patch.Y <= 0 {
		return out
	}
	gocv.GetRectSubPix(rotated, patch, center, &out)
	return out
}

// annotate outlines every detection and writes its label at the fourth
// corner of its box.
func (d *Detector) annotate(img *gocv.Mat, detections []Detection) {
	if len(detections) == 0 {
		return
	}

	boxes := make([][]image.Point, len(detections))
	for i, det := range detections {
		poly := det.Rect.Polygon()
		boxes[i] = make([]image.Point, len(poly))
		for j, p := range poly {
			boxes[i][j] = p.Image()
		}
	}

	contours := gocv.NewPointsVectorFromPoints(boxes)
	defer contours.Close()
	gocv.DrawContours(img, contours, -1, colorutil.Red, d.params.OutlineThickness)

	for i, det := range detections {
		gocv.PutText(img, det.Label(), boxes[i][3], gocv.FontHersheySimplex, d.params.FontScale, colorutil.Blue, 1)
	}
}

// ImageToMat converts a Go image.Image to a gocv.Mat in BGR format.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), ErrEmptyFrame
	}

	data := make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// 16-bit to 8-bit, BGR order for OpenCV
			data = append(data, uint8(b>>8), uint8(g>>8), uint8(r>>8))
		}
	}

	shared, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer shared.Close()

	// The Mat above borrows data; hand back an owning copy.
	return shared.Clone(), nil
}
