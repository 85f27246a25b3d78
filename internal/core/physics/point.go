package physics

// Lightweight 2D geometry shared by the world, sensor and motion packages.
// Points are r2 points from golang/geo so bounding boxes and vector algebra
// come from one place.

import (
	"math"

	"github.com/golang/geo/r2"
)

// Point is a 2D position in world-length units (meters).
type Point = r2.Point

// Pt builds a Point.
func Pt(x, y float64) Point { return r2.Point{X: x, Y: y} }

// Distance computes Euclidean distance between two points.
func Distance(a, b Point) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// Segment is a closed line segment from A to B.
type Segment struct {
	A, B Point
}

// Seg builds a Segment.
func Seg(a, b Point) Segment { return Segment{A: a, B: b} }

// Intersect solves p1 + ta*(p2-p1) = p3 + tb*(p4-p3) for the segments
// s = p1->p2 and o = p3->p4.
//
// ok is false when the determinant (p4-p3)x(p1-p2) is zero (parallel or
// collinear segments) or when either parameter falls outside [0, 1].
// Both bounds are inclusive, so touching an endpoint counts as a hit.
func (s Segment) Intersect(o Segment) (ta, tb float64, ok bool) {
	p1, p2, p3, p4 := s.A, s.B, o.A, o.B

	det := (p4.X-p3.X)*(p1.Y-p2.Y) - (p1.X-p2.X)*(p4.Y-p3.Y)
	if det == 0 {
		return 0, 0, false
	}

	ta = ((p3.Y-p4.Y)*(p1.X-p3.X) + (p4.X-p3.X)*(p1.Y-p3.Y)) / det
	tb = ((p1.Y-p2.Y)*(p1.X-p3.X) + (p2.X-p1.X)*(p1.Y-p3.Y)) / det

	if ta < 0 || ta > 1 || tb < 0 || tb > 1 {
		return ta, tb, false
	}
	return ta, tb, true
}

// At returns the point at parameter t along the segment.
func (s Segment) At(t float64) Point {
	return s.A.Add(s.B.Sub(s.A).Mul(t))
}
