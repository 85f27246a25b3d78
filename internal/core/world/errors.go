package world

import (
	"errors"
	"fmt"
)

var (
	// ErrDegeneratePolygon is returned when a polygon has fewer than three
	// distinct vertices.
	ErrDegeneratePolygon = errors.New("degenerate polygon")
	// ErrInvalidBounds is returned when the world width or height is not
	// strictly positive.
	ErrInvalidBounds = errors.New("invalid world bounds")
)

// MapError reports a failed environment load. Polygon is the index of the
// offending polygon, or -1 when the bounds are at fault.
type MapError struct {
	Polygon int
	Err     error
}

func (e *MapError) Error() string {
	if e.Polygon < 0 {
		return fmt.Sprintf("map: %v", e.Err)
	}
	return fmt.Sprintf("map: polygon %d: %v", e.Polygon, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }
