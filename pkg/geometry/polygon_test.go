package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(cx, cy, w, h, angle float64) RotatedRect {
	return RotatedRect{Center: NewPoint2D(cx, cy), Size: NewSize(w, h), Angle: angle}
}

func TestRotatedRectPolygon_AxisAligned(t *testing.T) {
	poly := rect(50, 50, 20, 10, 0).Polygon()
	require.Len(t, poly, 4)

	want := Polygon{{X: 40, Y: 55}, {X: 40, Y: 45}, {X: 60, Y: 45}, {X: 60, Y: 55}}
	for i := range want {
		assert.InDelta(t, want[i].X, poly[i].X, 1e-9, "corner %d x", i)
		assert.InDelta(t, want[i].Y, poly[i].Y, 1e-9, "corner %d y", i)
	}
	assert.InDelta(t, 200.0, poly.Area(), 1e-9)
}

func TestRotatedRectPolygon_RotationPreservesArea(t *testing.T) {
	for _, angle := range []float64{0, 15, 30, 45, 60, 89.5, 90, -30} {
		poly := rect(100, 80, 60, 40, angle).Polygon()
		assert.InDelta(t, 2400.0, poly.Area(), 1e-6, "angle %.1f", angle)

		var cx, cy float64
		for _, p := range poly {
			cx += p.X
			cy += p.Y
		}
		assert.InDelta(t, 100.0, cx/4, 1e-9)
		assert.InDelta(t, 80.0, cy/4, 1e-9)
	}
}

func TestRotatedRectPolygon_QuarterTurnSwapsExtents(t *testing.T) {
	a := rect(0, 0, 40, 10, 90).Polygon()
	b := rect(0, 0, 10, 40, 0).Polygon()
	assert.InDelta(t, 1.0, IoU(a, b), 1e-9)
}

func TestAffineTransform_ComposeRotatesThenTranslates(t *testing.T) {
	got := Translation(10, 20).Compose(Rotation(math.Pi / 2)).Apply(NewPoint2D(3, 4))
	assert.InDelta(t, 6.0, got.X, 1e-12)
	assert.InDelta(t, 23.0, got.Y, 1e-12)
}

func TestSignedArea_Orientation(t *testing.T) {
	ccw := Polygon{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	cw := Polygon{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	assert.Equal(t, 1.0, ccw.SignedArea())
	assert.Equal(t, -1.0, cw.SignedArea())
	assert.Equal(t, 1.0, cw.Area())
	assert.Equal(t, 0.0, Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}}.Area())
}

func TestIntersectPolygons_EitherClipOrientation(t *testing.T) {
	subject := Polygon{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}
	clipCCW := Polygon{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}}
	clipCW := Polygon{{X: 1, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 1}, {X: 1, Y: 1}}

	assert.InDelta(t, 1.0, Polygon(IntersectPolygons(subject, clipCCW)).Area(), 1e-9)
	assert.InDelta(t, 1.0, Polygon(IntersectPolygons(subject, clipCW)).Area(), 1e-9)
}

func TestIntersectPolygons_Disjoint(t *testing.T) {
	a := rect(0, 0, 10, 10, 0).Polygon()
	b := rect(100, 100, 10, 10, 0).Polygon()
	assert.Nil(t, IntersectPolygons(a, b))
	assert.Nil(t, IntersectPolygons(a[:2], b))
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b RotatedRect
		want float64
	}{
		{"identical", rect(50, 50, 80, 80, 0), rect(50, 50, 80, 80, 0), 1},
		{"disjoint", rect(0, 0, 10, 10, 0), rect(50, 50, 10, 10, 0), 0},
		{"half overlap", rect(0, 0, 20, 10, 0), rect(10, 0, 20, 10, 0), 100.0 / 300.0},
		{"contained", rect(0, 0, 10, 10, 0), rect(0, 0, 20, 20, 0), 0.25},
		{"cross", rect(0, 0, 100, 10, 0), rect(0, 0, 100, 10, 90), 100.0 / 1900.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IoU(tt.a.Polygon(), tt.b.Polygon())
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIoU_SelfIsOne(t *testing.T) {
	for _, angle := range []float64{0, 12.5, 45, 77, 90} {
		p := rect(320, 240, 83, 61, angle).Polygon()
		assert.Equal(t, 1.0, IoU(p, p), "angle %.1f", angle)
	}
}

func TestIoU_Symmetric(t *testing.T) {
	rects := []RotatedRect{
		rect(100, 100, 80, 60, 0),
		rect(110, 95, 70, 70, 20),
		rect(130, 120, 50, 90, 45),
		rect(90, 140, 120, 55, 80),
		rect(400, 400, 60, 60, 10),
	}
	for i := range rects {
		for j := range rects {
			a, b := rects[i].Polygon(), rects[j].Polygon()
			assert.Equal(t, IoU(a, b), IoU(b, a), "pair %d,%d", i, j)
		}
	}
}

func TestIoU_Bounds(t *testing.T) {
	a := rect(0, 0, 50, 50, 0).Polygon()
	for _, angle := range []float64{0, 10, 30, 45, 70} {
		for _, dx := range []float64{0, 5, 25, 49, 60} {
			got := IoU(a, rect(dx, 3, 55, 40, angle).Polygon())
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		}
	}
}

func TestIoU_DegenerateIsZero(t *testing.T) {
	zero := rect(10, 10, 0, 0, 0).Polygon()
	got := IoU(zero, zero)
	assert.False(t, math.IsNaN(got))
	assert.Equal(t, 0.0, got)

	line := rect(10, 10, 50, 0, 0).Polygon()
	assert.Equal(t, 0.0, IoU(line, rect(10, 10, 20, 20, 0).Polygon()))
}
