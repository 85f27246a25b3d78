package world

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/zeusync/robosim/internal/core/physics"
)

// Polygon is a closed loop of vertices. An implicit edge joins the last
// vertex back to the first. Polygons are immutable once built.
type Polygon struct {
	vertices []physics.Point
	bounds   r2.Rect
}

// NewPolygon copies vertices into a Polygon. It fails with
// ErrDegeneratePolygon unless at least three vertices are distinct.
func NewPolygon(vertices ...physics.Point) (Polygon, error) {
	if distinct(vertices) < 3 {
		return Polygon{}, fmt.Errorf("%w: %d distinct vertices", ErrDegeneratePolygon, distinct(vertices))
	}
	vs := make([]physics.Point, len(vertices))
	copy(vs, vertices)
	return Polygon{vertices: vs, bounds: r2.RectFromPoints(vs...)}, nil
}

// PolygonFromFlat builds a polygon from a flat x1 y1 x2 y2 ... list.
func PolygonFromFlat(coords []float64) (Polygon, error) {
	if len(coords)%2 != 0 {
		return Polygon{}, fmt.Errorf("%w: odd coordinate count %d", ErrDegeneratePolygon, len(coords))
	}
	vs := make([]physics.Point, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		vs = append(vs, physics.Pt(coords[i], coords[i+1]))
	}
	return NewPolygon(vs...)
}

// Len returns the number of vertices, which is also the number of edges.
func (p Polygon) Len() int { return len(p.vertices) }

// Vertex returns vertex i.
func (p Polygon) Vertex(i int) physics.Point { return p.vertices[i] }

// Vertices returns a copy of the vertex loop.
func (p Polygon) Vertices() []physics.Point {
	out := make([]physics.Point, len(p.vertices))
	copy(out, p.vertices)
	return out
}

// Edge returns edge i, from vertex i to vertex i+1, wrapping last to first.
func (p Polygon) Edge(i int) physics.Segment {
	j := i + 1
	if j == len(p.vertices) {
		j = 0
	}
	return physics.Seg(p.vertices[i], p.vertices[j])
}

// Bounds returns the axis-aligned bounding box.
func (p Polygon) Bounds() r2.Rect { return p.bounds }

func distinct(vs []physics.Point) int {
	seen := make(map[physics.Point]struct{}, len(vs))
	for _, v := range vs {
		seen[v] = struct{}{}
	}
	return len(seen)
}
