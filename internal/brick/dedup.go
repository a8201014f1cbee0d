package brick

import "brick-detector/pkg/geometry"

// Deduplicate merges candidates found independently in two channels of the
// same frame, removing near-duplicates by polygon overlap.
//
// The merged set starts as first, verbatim. Each rectangle of second is
// appended unless its IoU with some already-merged rectangle exceeds
// threshold. A final pass then drops every merged rectangle that still
// overlaps any other merged rectangle above threshold, which catches
// duplicates that were already present in first.
func Deduplicate(first, second []geometry.RotatedRect, threshold float64) []geometry.RotatedRect {
	merged := make([]geometry.RotatedRect, 0, len(first)+len(second))
	polygons := make([]geometry.Polygon, 0, len(first)+len(second))

	for _, r := range first {
		merged = append(merged, r)
		polygons = append(polygons, r.Polygon())
	}

	for _, r := range second {
		p := r.Polygon()
		if overlapsAny(p, polygons, -1, threshold) {
			continue
		}
		merged = append(merged, r)
		polygons = append(polygons, p)
	}

	final := make([]geometry.RotatedRect, 0, len(merged))
	for i, r := range merged {
		if overlapsAny(polygons[i], polygons, i, threshold) {
			continue
		}
		final = append(final, r)
	}
	return final
}

// overlapsAny reports whether p overlaps any polygon other than index skip
// with IoU above threshold. It stops at the first match.
func overlapsAny(p geometry.Polygon, polygons []geometry.Polygon, skip int, threshold float64) bool {
	for j, q := range polygons {
		if j == skip {
			continue
		}
		if geometry.IoU(p, q) > threshold {
			return true
		}
	}
	return false
}
