package geometry

import "math"

// Polygon is a closed sequence of vertices. The last vertex connects back to
// the first.
type Polygon []Point2D

// SignedArea returns the shoelace area. It is positive for counter-clockwise
// vertex order (x right, y up) and negative for clockwise order.
func (p Polygon) SignedArea() float64 {
	if len(p) < 3 {
		return 0
	}
	var sum float64
	for i := range p {
		j := (i + 1) % len(p)
		sum += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return sum / 2
}

// Area returns the absolute enclosed area.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// counterClockwise returns the polygon with counter-clockwise orientation,
// reversing a copy when needed.
func (p Polygon) counterClockwise() Polygon {
	if p.SignedArea() >= 0 {
		return p
	}
	out := make(Polygon, len(p))
	for i := range p {
		out[i] = p[len(p)-1-i]
	}
	return out
}

// IoU returns the intersection-over-union of two convex polygons, in [0, 1].
// Two degenerate polygons (zero union area) yield 0.
func IoU(a, b Polygon) float64 {
	// Fixed operand order keeps IoU(a, b) and IoU(b, a) bit-identical.
	if polygonLess(b, a) {
		a, b = b, a
	}

	areaA := a.Area()
	areaB := b.Area()

	inter := Polygon(IntersectPolygons(a, b)).Area()
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}

	iou := inter / union
	if iou > 1 {
		return 1
	}
	if iou < 0 {
		return 0
	}
	return iou
}

// polygonLess orders polygons by area, then vertex count, then vertices.
func polygonLess(a, b Polygon) bool {
	if aa, ba := a.Area(), b.Area(); aa != ba {
		return aa < ba
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := range a {
		if a[i].X != b[i].X {
			return a[i].X < b[i].X
		}
		if a[i].Y != b[i].Y {
			return a[i].Y < b[i].Y
		}
	}
	return false
}

// IntersectPolygons computes the intersection of two convex polygons using
// the Sutherland-Hodgman algorithm. Both input polygons must be convex; the
// clip polygon may have either orientation.
// Returns nil if there is no intersection or if inputs are invalid.
func IntersectPolygons(subject, clip []Point2D) []Point2D {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}
	clip = Polygon(clip).counterClockwise()

	output := make([]Point2D, len(subject))
	copy(output, subject)

	// Clip against each edge of the clip polygon
	for i := 0; i < len(clip); i++ {
		if len(output) == 0 {
			return nil
		}

		edgeStart := clip[i]
		edgeEnd := clip[(i+1)%len(clip)]
		output = clipPolygonByEdge(output, edgeStart, edgeEnd)
	}

	if len(output) < 3 {
		return nil
	}

	return output
}

// clipPolygonByEdge clips a polygon against a single edge using
// the Sutherland-Hodgman algorithm.
func clipPolygonByEdge(polygon []Point2D, edgeStart, edgeEnd Point2D) []Point2D {
	var clipped []Point2D

	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentInside := isInsideEdge(current, edgeStart, edgeEnd)
		nextInside := isInsideEdge(next, edgeStart, edgeEnd)

		if currentInside {
			clipped = append(clipped, current)
			if !nextInside {
				// Exiting: add intersection point
				if intersection, ok := lineIntersection(current, next, edgeStart, edgeEnd); ok {
					clipped = append(clipped, intersection)
				}
			}
		} else if nextInside {
			// Entering: add intersection point
			if intersection, ok := lineIntersection(current, next, edgeStart, edgeEnd); ok {
				clipped = append(clipped, intersection)
			}
		}
	}

	return clipped
}

// isInsideEdge checks if a point is on the inside (left side) of the directed edge.
// The clip polygon is assumed to be in counter-clockwise order.
func isInsideEdge(p, edgeStart, edgeEnd Point2D) bool {
	return crossProduct(edgeStart, edgeEnd, p) >= 0
}

// lineIntersection computes the intersection point of line segment p1-p2
// with the line through e1-e2. Returns the point and true if they intersect.
func lineIntersection(p1, p2, e1, e2 Point2D) (Point2D, bool) {
	x1, y1 := p1.X, p1.Y
	x2, y2 := p2.X, p2.Y
	x3, y3 := e1.X, e1.Y
	x4, y4 := e2.X, e2.Y

	denom := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if math.Abs(denom) < 1e-10 {
		// Lines are parallel
		return Point2D{}, false
	}

	t := ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / denom

	return Point2D{
		X: x1 + t*(x2-x1),
		Y: y1 + t*(y2-y1),
	}, true
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
