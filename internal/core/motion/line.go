package motion

import (
	"math"

	"github.com/zeusync/robosim/internal/core/physics"
)

// lineKind selects the stepping variable of an animated translation.
type lineKind uint8

const (
	// lineVertical steps y with x fixed.
	lineVertical lineKind = iota
	// lineSteep steps y and derives x; |slope| > 1.
	lineSteep
	// lineShallow steps x and derives y; |slope| <= 1.
	lineShallow
)

func (k lineKind) String() string {
	switch k {
	case lineVertical:
		return "vertical"
	case lineSteep:
		return "steep"
	default:
		return "shallow"
	}
}

func classify(from, to physics.Pose) (lineKind, float64) {
	if to.X == from.X {
		return lineVertical, math.Inf(1)
	}
	slope := (to.Y - from.Y) / (to.X - from.X)
	if math.Abs(slope) > 1 {
		return lineSteep, slope
	}
	return lineShallow, slope
}

// translate yields the poses strictly between from and to, one step of the
// stepping variable apart. Heading is carried from "from". The caller emits
// the snapped final pose.
//
// Ticks are counted rather than accumulated, so the loop ends after at most
// ceil(|delta|/step) ticks even where adding step no longer changes a large
// coordinate.
func (in *Integrator) translate(from, to physics.Pose, yield func(physics.Pose) bool) bool {
	kind, slope := classify(from, to)
	step := in.cfg.LinearStep
	cur := from

	switch kind {
	case lineVertical, lineSteep:
		dir := sign(to.Y - from.Y)
		n := ticks(to.Y-from.Y, step)
		for i := 1.0; i < n; i++ {
			y := from.Y + dir*i*step
			if !before(y, to.Y, dir) {
				break
			}
			cur.Y = y
			if kind == lineSteep {
				cur.X = from.X + (y-from.Y)/slope
			}
			if !yield(cur) {
				return false
			}
		}
	case lineShallow:
		dir := sign(to.X - from.X)
		n := ticks(to.X-from.X, step)
		for i := 1.0; i < n; i++ {
			x := from.X + dir*i*step
			if !before(x, to.X, dir) {
				break
			}
			cur.X = x
			cur.Y = from.Y + slope*(x-from.X)
			if !yield(cur) {
				return false
			}
		}
	}
	return true
}

// ticks is the number of steps needed to cover delta.
func ticks(delta, step float64) float64 {
	return math.Ceil(math.Abs(delta) / step)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// before reports whether v has not yet reached target moving in dir.
func before(v, target, dir float64) bool {
	if dir > 0 {
		return v < target
	}
	return v > target
}
