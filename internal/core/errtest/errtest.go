// Package errtest runs repeated turn and advance trials against a session
// and reports how far the reached poses deviate from the expected ones.
package errtest

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/internal/core/stats"
)

// Stepper is the part of a session a trial needs.
type Stepper interface {
	Step(ctx context.Context, cmd motion.Command) (physics.Pose, error)
	ResetLog(start physics.Pose)
}

var _ Stepper = (*session.Session)(nil)

// Axis holds the samples and summaries for one measured quantity.
type Axis struct {
	Expected []float64          `json:"expected"`
	Real     []float64          `json:"real"`
	Summary  stats.Summary      `json:"summary"`
	Error    stats.ErrorSummary `json:"error"`
}

func (a *Axis) add(expected, real float64) {
	a.Expected = append(a.Expected, expected)
	a.Real = append(a.Real, real)
}

func (a *Axis) summarize() error {
	var err error
	if a.Summary, err = stats.Summarize(a.Real); err != nil {
		return err
	}
	a.Error, err = stats.Errors(a.Expected, a.Real)
	return err
}

// Report is the outcome of a trial series.
type Report struct {
	Kind   string  `json:"kind"`
	Trials int     `json:"trials"`
	Value  float64 `json:"value"`
	// Theta is set for twist tests, X and Y for advance tests.
	Theta *Axis `json:"theta,omitempty"`
	X     *Axis `json:"x,omitempty"`
	Y     *Axis `json:"y,omitempty"`
}

// Twist turns by angle n times, each trial starting from heading 0 at the
// current position.
func Twist(ctx context.Context, s Stepper, start physics.Pose, n int, angle float64) (Report, error) {
	rep := Report{Kind: "twist", Trials: n, Value: angle, Theta: &Axis{}}
	expected := physics.NormalizeAngle(angle)
	origin := physics.NewPose(start.X, start.Y, 0)

	for i := range n {
		s.ResetLog(origin)
		pose, err := s.Step(ctx, motion.Command{TurnAngle: angle})
		if err != nil {
			return rep, fmt.Errorf("twist trial %d: %w", i, err)
		}
		rep.Theta.add(expected, unwrapNear(pose.Theta, expected))
	}
	s.ResetLog(origin)
	return rep, rep.Theta.summarize()
}

// Advance moves distance forward n times, each trial starting from start
// with heading 0.
func Advance(ctx context.Context, s Stepper, start physics.Pose, n int, distance float64) (Report, error) {
	rep := Report{Kind: "advance", Trials: n, Value: distance, X: &Axis{}, Y: &Axis{}}
	origin := physics.NewPose(start.X, start.Y, 0)
	want := physics.Pose{X: origin.X + distance, Y: origin.Y}

	for i := range n {
		s.ResetLog(origin)
		pose, err := s.Step(ctx, motion.Command{AdvanceDistance: distance})
		if err != nil {
			return rep, fmt.Errorf("advance trial %d: %w", i, err)
		}
		rep.X.add(want.X, pose.X)
		rep.Y.add(want.Y, pose.Y)
	}
	s.ResetLog(origin)
	return rep, errors.Join(rep.X.summarize(), rep.Y.summarize())
}

// unwrapNear shifts a heading by whole turns so that a result just below
// 2*pi is compared with an expected value just above 0 as a small error.
func unwrapNear(theta, ref float64) float64 {
	for theta-ref > math.Pi {
		theta -= physics.TwoPi
	}
	for ref-theta > math.Pi {
		theta += physics.TwoPi
	}
	return theta
}
