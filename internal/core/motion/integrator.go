// Package motion advances a robot pose by turn-then-advance commands.
//
// Two stepping modes exist:
//
//  1. Direct - a single atomic update, no intermediate poses.
//
//  2. Animated - the same final pose, reached through a finite sequence of
//     intermediate poses: first a rotation in fixed angular steps, then a
//     straight translation in fixed linear steps along x or y depending on
//     the slope of the path.
//
// The integrator knows nothing about obstacles; the robot may pass through
// polygons.
package motion

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/zeusync/robosim/internal/core/physics"
)

// ErrInvalidStep is returned for a non-positive animation step.
var ErrInvalidStep = errors.New("invalid animation step")

// Mode selects how a command is applied.
type Mode uint8

const (
	ModeDirect Mode = iota
	ModeAnimated
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeAnimated:
		return "animated"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses "direct" or "animated".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "direct", "":
		return ModeDirect, nil
	case "animated":
		return ModeAnimated, nil
	default:
		return ModeDirect, fmt.Errorf("unknown motion mode %q", s)
	}
}

// Frame is the orientation of the Y axis the integrator advances in. The
// ray caster must use the same frame.
type Frame = physics.Frame

const (
	// FrameWorld advances y' = y + d*sin(theta).
	FrameWorld = physics.FrameWorld
	// FrameCanvas advances y' = y - d*sin(theta).
	FrameCanvas = physics.FrameCanvas
)

// Config holds integrator settings.
type Config struct {
	Mode Mode
	// AngularStep is the heading increment per animated tick (radians).
	AngularStep float64
	// LinearStep is the increment of the stepping coordinate per animated
	// tick (meters).
	LinearStep float64
	Frame      Frame
}

// DefaultConfig returns direct mode with animation steps of two degrees
// and one millimeter.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeDirect,
		AngularStep: 0.0174533 * 2,
		LinearStep:  0.001,
		Frame:       FrameWorld,
	}
}

// Integrator applies commands to poses. It is stateless apart from its
// configuration.
type Integrator struct {
	cfg Config
}

// NewIntegrator validates cfg.
func NewIntegrator(cfg Config) (*Integrator, error) {
	if !(cfg.AngularStep > 0) || math.IsInf(cfg.AngularStep, 1) {
		return nil, fmt.Errorf("%w: angular step %v", ErrInvalidStep, cfg.AngularStep)
	}
	if !(cfg.LinearStep > 0) || math.IsInf(cfg.LinearStep, 1) {
		return nil, fmt.Errorf("%w: linear step %v", ErrInvalidStep, cfg.LinearStep)
	}
	return &Integrator{cfg: cfg}, nil
}

// Config returns the integrator configuration.
func (in *Integrator) Config() Config { return in.cfg }

// Mode returns the configured stepping mode.
func (in *Integrator) Mode() Mode { return in.cfg.Mode }

// Direct returns the pose after c in a single update.
func (in *Integrator) Direct(p physics.Pose, c Command) physics.Pose {
	theta := physics.NormalizeAngle(p.Theta + c.TurnAngle)
	to := in.cfg.Frame.Offset(p, theta, c.AdvanceDistance)
	return physics.Pose{X: to.X, Y: to.Y, Theta: theta}
}

// Apply applies c in the configured mode. In animated mode observe (if not
// nil) receives every intermediate pose and ctx is checked between ticks;
// a cancelled context returns the start pose and ctx.Err(). In direct mode
// observe receives only the final pose.
func (in *Integrator) Apply(ctx context.Context, p physics.Pose, c Command, observe func(physics.Pose)) (physics.Pose, error) {
	if in.cfg.Mode == ModeDirect {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		next := in.Direct(p, c)
		if observe != nil {
			observe(next)
		}
		return next, nil
	}

	last := p
	for pose := range in.Trajectory(p, c) {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		if observe != nil {
			observe(pose)
		}
		last = pose
	}
	return last, nil
}

// Trajectory yields the animated poses for c starting from p. The last pose
// yielded always equals Direct(p, c).
func (in *Integrator) Trajectory(p physics.Pose, c Command) iter.Seq[physics.Pose] {
	return func(yield func(physics.Pose) bool) {
		final := in.Direct(p, c)
		if c.IsZero() {
			yield(final)
			return
		}

		cur := p
		if c.TurnAngle != 0 {
			if !in.rotate(cur, c.TurnAngle, yield) {
				return
			}
			cur.Theta = final.Theta
			if !yield(cur) {
				return
			}
		}

		if c.AdvanceDistance != 0 {
			if !in.translate(cur, final, yield) {
				return
			}
			yield(final)
		}
	}
}

// rotate yields the headings strictly between the start and the target.
func (in *Integrator) rotate(p physics.Pose, turn float64, yield func(physics.Pose) bool) bool {
	sign := math.Copysign(1, turn)
	total := math.Abs(turn)
	start := p.Theta
	n := ticks(total, in.cfg.AngularStep)
	for i := 1.0; i < n; i++ {
		covered := i * in.cfg.AngularStep
		if covered >= total {
			break
		}
		p.Theta = physics.NormalizeAngle(start + sign*covered)
		if !yield(p) {
			return false
		}
	}
	return true
}
