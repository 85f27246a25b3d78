// Package mapfile reads the world and object files used by the simulator.
//
// A world file (.wrl) is line oriented:
//
//	; comment
//	( dimensions world 5 5 )
//	( polygon obstacle wall 1 1 2 1 2 2 1 2 )
//
// Lines that do not start with "(" are ignored, as are entries other than
// dimensions and polygon.
package mapfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zeusync/robosim/internal/core/world"
)

var (
	ErrNoDimensions   = errors.New("world file has no dimensions entry")
	ErrOddCoordinates = errors.New("odd number of polygon coordinates")
	ErrMalformed      = errors.New("malformed entry")
)

// LineError locates a parse error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// PolygonEntry is one polygon line.
type PolygonEntry struct {
	Kind   string
	Name   string
	Coords []float64
}

// World is a parsed world file.
type World struct {
	Name     string
	Width    float64
	Height   float64
	Polygons []PolygonEntry
}

// Environment validates the world and builds an environment from it.
func (w *World) Environment() (*world.Environment, error) {
	polys := make([]world.Polygon, 0, len(w.Polygons))
	for i, p := range w.Polygons {
		poly, err := world.PolygonFromFlat(p.Coords)
		if err != nil {
			return nil, &world.MapError{Polygon: i, Err: err}
		}
		polys = append(polys, poly)
	}
	return world.LoadPolygons(w.Width, w.Height, polys)
}

// ParseFile parses the world file at path.
func ParseFile(path string) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse reads a world file.
func Parse(r io.Reader) (*World, error) {
	w := &World{}
	haveDims := false

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "(" {
			continue
		}
		body := fields[1:]
		if body[len(body)-1] == ")" {
			body = body[:len(body)-1]
		}
		if len(body) == 0 {
			continue
		}

		switch body[0] {
		case "dimensions":
			// dimensions <name> <width> <height>
			if len(body) < 4 {
				return nil, &LineError{Line: n, Err: fmt.Errorf("%w: dimensions needs a name, width and height", ErrMalformed)}
			}
			vals, err := parseFloats(body[2:4])
			if err != nil {
				return nil, &LineError{Line: n, Err: err}
			}
			w.Name, w.Width, w.Height = body[1], vals[0], vals[1]
			haveDims = true
		case "polygon":
			// polygon <kind> <name> x1 y1 ...
			if len(body) < 3 {
				return nil, &LineError{Line: n, Err: fmt.Errorf("%w: polygon needs a kind and a name", ErrMalformed)}
			}
			coords := body[3:]
			if len(coords)%2 != 0 {
				return nil, &LineError{Line: n, Err: ErrOddCoordinates}
			}
			vals, err := parseFloats(coords)
			if err != nil {
				return nil, &LineError{Line: n, Err: err}
			}
			w.Polygons = append(w.Polygons, PolygonEntry{Kind: body[1], Name: body[2], Coords: vals})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !haveDims {
		return nil, ErrNoDimensions
	}
	return w, nil
}

func parseFloats(words []string) ([]float64, error) {
	out := make([]float64, len(words))
	for i, s := range words {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
		}
		out[i] = v
	}
	return out, nil
}
