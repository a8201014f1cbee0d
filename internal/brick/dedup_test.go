package brick

import (
	"testing"

	"brick-detector/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

func box(cx, cy, w, h, angle float64) geometry.RotatedRect {
	return geometry.RotatedRect{
		Center: geometry.NewPoint2D(cx, cy),
		Size:   geometry.NewSize(w, h),
		Angle:  angle,
	}
}

func TestDeduplicate(t *testing.T) {
	a := box(100, 100, 80, 80, 0)
	b := box(300, 100, 80, 80, 0)
	c := box(500, 300, 120, 90, 30)
	aJitter := box(103, 98, 82, 79, 2)
	bJitter := box(298, 103, 79, 81, 88)

	tests := []struct {
		name          string
		first, second []geometry.RotatedRect
		want          []geometry.RotatedRect
	}{
		{"both empty", nil, nil, []geometry.RotatedRect{}},
		{"first only", []geometry.RotatedRect{a, b}, nil, []geometry.RotatedRect{a, b}},
		{"second only", nil, []geometry.RotatedRect{a, c}, []geometry.RotatedRect{a, c}},
		{"cross-channel duplicates dropped", []geometry.RotatedRect{a, b}, []geometry.RotatedRect{aJitter, bJitter}, []geometry.RotatedRect{a, b}},
		{"new rectangle appended after first", []geometry.RotatedRect{a}, []geometry.RotatedRect{aJitter, c}, []geometry.RotatedRect{a, c}},
		{"duplicate inside second keeps the earlier one", nil, []geometry.RotatedRect{b, bJitter}, []geometry.RotatedRect{b}},
		{"duplicates inside first are both dropped", []geometry.RotatedRect{a, aJitter, c}, nil, []geometry.RotatedRect{c}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deduplicate(tt.first, tt.second, 0.1)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeduplicate_Threshold(t *testing.T) {
	// IoU of these two is 1/3.
	a := box(0, 0, 20, 10, 0)
	b := box(10, 0, 20, 10, 0)

	assert.Len(t, Deduplicate([]geometry.RotatedRect{a}, []geometry.RotatedRect{b}, 0.34), 2)
	assert.Equal(t, []geometry.RotatedRect{a}, Deduplicate([]geometry.RotatedRect{a}, []geometry.RotatedRect{b}, 0.3))
}

func TestDeduplicate_DoesNotMutateInput(t *testing.T) {
	first := make([]geometry.RotatedRect, 1, 4)
	first[0] = box(100, 100, 80, 80, 0)
	second := []geometry.RotatedRect{box(400, 400, 60, 60, 0)}

	got := Deduplicate(first, second, 0.1)
	assert.Len(t, got, 2)
	assert.Len(t, first, 1)
	assert.Equal(t, box(100, 100, 80, 80, 0), first[:cap(first)][0])
	assert.Equal(t, geometry.RotatedRect{}, first[:cap(first)][1])
}

func TestDeduplicate_Idempotent(t *testing.T) {
	sat := []geometry.RotatedRect{
		box(100, 100, 80, 80, 0),
		box(105, 104, 78, 80, 3),
		box(300, 120, 100, 60, 15),
		box(520, 380, 150, 150, 45),
	}
	val := []geometry.RotatedRect{
		box(302, 118, 98, 62, 14),
		box(200, 300, 90, 55, 70),
		box(204, 303, 88, 56, 71),
		box(600, 60, 55, 55, 0),
	}

	merged := Deduplicate(sat, val, 0.1)
	again := Deduplicate(merged, nil, 0.1)
	assert.Equal(t, merged, again)
}
