package physics

import (
	"fmt"
	"math"
)

// TwoPi is a full turn in radians.
const TwoPi = 2 * math.Pi

// NormalizeAngle maps any angle into [0, 2π).
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	// a tiny negative input rounds up to exactly 2π after the shift
	if a >= TwoPi {
		a = 0
	}
	return a
}

// Pose is the robot position in meters and heading in radians.
// Theta is kept in [0, 2π) by every constructor and mutation in this module.
type Pose struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

// NewPose builds a pose with a normalized heading.
func NewPose(x, y, theta float64) Pose {
	return Pose{X: x, Y: y, Theta: NormalizeAngle(theta)}
}

// Normalized returns p with its heading mapped into [0, 2π).
func (p Pose) Normalized() Pose {
	p.Theta = NormalizeAngle(p.Theta)
	return p
}

// Position returns the pose position as a Point.
func (p Pose) Position() Point { return Pt(p.X, p.Y) }

// Frame is the orientation of the Y axis poses and rays live in.
type Frame uint8

const (
	// FrameWorld has Y pointing up: a heading of π/2 faces +Y.
	FrameWorld Frame = iota
	// FrameCanvas has Y pointing down like a drawing surface: a heading of
	// π/2 faces -Y.
	FrameCanvas
)

// YSign is +1 in the world frame and -1 in the canvas frame.
func (f Frame) YSign() float64 {
	if f == FrameCanvas {
		return -1
	}
	return 1
}

// Offset returns the point at distance d from p along the absolute angle,
// measured in frame f.
func (f Frame) Offset(p Pose, angle, d float64) Point {
	return Pt(p.X+d*math.Cos(angle), p.Y+f.YSign()*d*math.Sin(angle))
}

// ApproxEqual compares two poses within tol on each component. Headings are
// compared on the circle so 0 and 2π-ε are close.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	if math.Abs(p.X-o.X) > tol || math.Abs(p.Y-o.Y) > tol {
		return false
	}
	d := math.Abs(p.Theta - o.Theta)
	return math.Min(d, TwoPi-d) <= tol
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f rad)", p.X, p.Y, p.Theta)
}
