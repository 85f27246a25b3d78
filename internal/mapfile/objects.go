package mapfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/world"
)

// ParseObjectsFile parses the objects file at path.
func ParseObjectsFile(path string) ([]world.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseObjects(f)
}

// ParseObjects reads "<name> <x> <y>" lines. Blank lines and lines starting
// with ";" are skipped.
func ParseObjects(r io.Reader) ([]world.Object, error) {
	var objs []world.Object
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], ";") {
			continue
		}
		if len(fields) < 3 {
			return nil, &LineError{Line: n, Err: fmt.Errorf("%w: object needs a name, x and y", ErrMalformed)}
		}
		xy, err := parseFloats(fields[1:3])
		if err != nil {
			return nil, &LineError{Line: n, Err: err}
		}
		objs = append(objs, world.Object{Name: fields[0], Position: physics.Pt(xy[0], xy[1])})
	}
	return objs, sc.Err()
}
