// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Image rounds the point to the nearest integer pixel.
func (p Point2D) Image() image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// RotatedRect is a rectangle rotated about its center, as produced by a
// minimum-area rectangle fit. Angle is in degrees.
type RotatedRect struct {
	Center Point2D `json:"center"`
	Size   Size    `json:"size"`
	Angle  float64 `json:"angle"`
}

// Polygon returns the four corners of the rectangle. The corner order matches
// OpenCV's boxPoints: bottom-left, top-left, top-right, bottom-right of the
// unrotated box.
func (r RotatedRect) Polygon() Polygon {
	hw := r.Size.Width / 2
	hh := r.Size.Height / 2

	t := Translation(r.Center.X, r.Center.Y).Compose(Rotation(r.Angle * math.Pi / 180.0))
	return Polygon{
		t.Apply(Point2D{X: -hw, Y: hh}),
		t.Apply(Point2D{X: -hw, Y: -hh}),
		t.Apply(Point2D{X: hw, Y: -hh}),
		t.Apply(Point2D{X: hw, Y: hh}),
	}
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Translation returns a translation transform.
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Rotation returns a rotation transform around the origin.
func Rotation(radians float64) AffineTransform {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return AffineTransform{A: cos, B: -sin, C: sin, D: cos}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Compose returns this transform composed with another (this * other).
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	return AffineTransform{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}
