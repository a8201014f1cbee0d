package brick

import (
	"image"

	"brick-detector/pkg/geometry"

	"gocv.io/x/gocv"
)

// candidateFit is a contour reduced to what the filters need.
type candidateFit struct {
	area float64
	rect geometry.RotatedRect
}

// ExtractCandidates finds candidate brick rectangles in one single-channel
// image (the saturation or value plane of an HSV frame).
//
// Pipeline:
//  1. Canny edge map with the configured low/high thresholds
//  2. Dilation with an elliptical kernel to close gaps along brick edges
//  3. External contours only, simplified point chains
//  4. Area filter, minimum-area rectangle fit, minimum side filter
//
// Rectangles are returned in contour discovery order.
func ExtractCandidates(channel gocv.Mat, params DetectionParams) []geometry.RotatedRect {
	if channel.Empty() {
		return nil
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(channel, &edges, params.CannyLow, params.CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{params.DilateKernel, params.DilateKernel})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	fits := make([]candidateFit, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		fits = append(fits, candidateFit{
			area: gocv.ContourArea(contour),
			rect: rectFromGocv(gocv.MinAreaRect(contour)),
		})
	}

	return filterCandidates(fits, params)
}

// filterCandidates drops contours below the area limit and rectangles with
// a side shorter than the minimum, keeping input order.
func filterCandidates(fits []candidateFit, params DetectionParams) []geometry.RotatedRect {
	rects := make([]geometry.RotatedRect, 0, len(fits))
	for _, f := range fits {
		if f.area < params.MinContourArea {
			continue
		}
		if f.rect.Size.Width < params.MinSide || f.rect.Size.Height < params.MinSide {
			continue
		}
		rects = append(rects, f.rect)
	}
	return rects
}

// rectFromGocv converts an OpenCV rotated rectangle into frame coordinates.
func rectFromGocv(r gocv.RotatedRect) geometry.RotatedRect {
	return geometry.RotatedRect{
		Center: geometry.NewPoint2D(float64(r.Center.X), float64(r.Center.Y)),
		Size:   geometry.NewSize(float64(r.Width), float64(r.Height)),
		Angle:  float64(r.Angle),
	}
}
