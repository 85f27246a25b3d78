// Package world holds the static polygonal environment the robot moves in.
//
// An Environment is built once per map load and never mutated afterwards; a
// new map means a new Environment. Polygon bounding boxes are computed at
// load time and indexed in an R-tree so ray casting only has to test the
// polygons near the robot.
package world

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/r2"
	"github.com/zeusync/robosim/internal/core/physics"
)

// boxPadding keeps zero-thickness boxes valid for the R-tree and lets
// boxes that merely touch the query square come back from the index; the
// exact closed test is applied afterwards.
const boxPadding = 1e-9

// Environment is an immutable polygonal world.
type Environment struct {
	width, height float64
	polygons      []Polygon
	index         *rtreego.Rtree
	fingerprint   uint64
}

// indexed is the R-tree entry for one polygon.
type indexed struct {
	id   int
	rect rtreego.Rect
}

func (e *indexed) Bounds() rtreego.Rect { return e.rect }

// Load validates the bounds and polygons and builds an Environment.
//
// Errors are *MapError values wrapping ErrInvalidBounds or
// ErrDegeneratePolygon.
func Load(width, height float64, polygons [][]physics.Point) (*Environment, error) {
	if err := checkBounds(width, height); err != nil {
		return nil, err
	}
	built := make([]Polygon, 0, len(polygons))
	for i, vs := range polygons {
		p, err := NewPolygon(vs...)
		if err != nil {
			return nil, &MapError{Polygon: i, Err: err}
		}
		built = append(built, p)
	}
	return newEnvironment(width, height, built)
}

// LoadPolygons builds an Environment from already constructed polygons.
func LoadPolygons(width, height float64, polygons []Polygon) (*Environment, error) {
	if err := checkBounds(width, height); err != nil {
		return nil, err
	}
	for i, p := range polygons {
		if p.Len() < 3 {
			return nil, &MapError{Polygon: i, Err: ErrDegeneratePolygon}
		}
	}
	return newEnvironment(width, height, slices.Clone(polygons))
}

func checkBounds(width, height float64) error {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 1) || math.IsInf(height, 1) {
		return &MapError{Polygon: -1, Err: fmt.Errorf("%w: %vx%v", ErrInvalidBounds, width, height)}
	}
	return nil
}

func newEnvironment(width, height float64, polygons []Polygon) (*Environment, error) {
	env := &Environment{
		width:    width,
		height:   height,
		polygons: polygons,
		index:    rtreego.NewTree(2, 4, 16),
	}
	for i, p := range polygons {
		rect, err := rtreeRect(p.Bounds())
		if err != nil {
			return nil, &MapError{Polygon: i, Err: fmt.Errorf("%w: %v", ErrDegeneratePolygon, err)}
		}
		env.index.Insert(&indexed{id: i, rect: rect})
	}
	env.fingerprint = fingerprint(width, height, polygons)
	return env, nil
}

func rtreeRect(b r2.Rect) (rtreego.Rect, error) {
	lo := rtreego.Point{b.X.Lo - boxPadding, b.Y.Lo - boxPadding}
	return rtreego.NewRect(lo, []float64{b.X.Length() + 2*boxPadding, b.Y.Length() + 2*boxPadding})
}

// Width returns the world width in meters.
func (e *Environment) Width() float64 { return e.width }

// Height returns the world height in meters.
func (e *Environment) Height() float64 { return e.height }

// Len returns the number of polygons.
func (e *Environment) Len() int { return len(e.polygons) }

// Polygon returns polygon i.
func (e *Environment) Polygon(i int) Polygon { return e.polygons[i] }

// Polygons returns a copy of the polygon set.
func (e *Environment) Polygons() []Polygon { return slices.Clone(e.polygons) }

// Fingerprint identifies the map content. Two environments loaded from the
// same data share a fingerprint.
func (e *Environment) Fingerprint() uint64 { return e.fingerprint }

// BroadPhaseCandidates returns, in ascending order, the indices of polygons
// whose bounding box intersects the square of half-side radius around
// center. It is a pre-filter only: a candidate is not necessarily hit.
func (e *Environment) BroadPhaseCandidates(center physics.Point, radius float64) []int {
	if len(e.polygons) == 0 {
		return nil
	}
	radius = math.Abs(radius)
	square := r2.RectFromCenterSize(center, physics.Pt(2*radius, 2*radius))

	query, err := rtreeRect(square)
	if err != nil {
		return e.scan(square)
	}

	hits := e.index.SearchIntersect(query)
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		id := h.(*indexed).id
		if e.polygons[id].Bounds().Intersects(square) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// scan is the linear fallback for query squares the R-tree rejects.
func (e *Environment) scan(square r2.Rect) []int {
	var out []int
	for i, p := range e.polygons {
		if p.Bounds().Intersects(square) {
			out = append(out, i)
		}
	}
	return out
}

func fingerprint(width, height float64, polygons []Polygon) uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 16)
	put := func(v float64) {
		buf = binary.LittleEndian.AppendUint64(buf[:0], math.Float64bits(v))
		_, _ = d.Write(buf)
	}
	put(width)
	put(height)
	for _, p := range polygons {
		buf = binary.LittleEndian.AppendUint64(buf[:0], uint64(p.Len()))
		_, _ = d.Write(buf)
		for _, v := range p.vertices {
			put(v.X)
			put(v.Y)
		}
	}
	return d.Sum64()
}
