// Package sensor models the fan of range sensors as rays cast against the
// polygons of a world.Environment.
package sensor

import (
	"math"
	"slices"

	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/world"
)

// Reading holds one distance per beam, ordered from the origin angle to
// origin + range. Every value lies in [0, max range].
type Reading []float64

// Clone returns an independent copy.
func (r Reading) Clone() Reading { return slices.Clone(r) }

// RayCaster computes readings for a fixed sensor configuration. It has no
// state besides the configuration and is safe to share.
type RayCaster struct {
	cfg   Config
	frame physics.Frame
}

// NewRayCaster validates cfg and returns a caster for it.
func NewRayCaster(cfg Config) (*RayCaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RayCaster{cfg: cfg}, nil
}

// InFrame returns a caster that casts rays in frame f. The default is
// physics.FrameWorld.
func (rc *RayCaster) InFrame(f physics.Frame) *RayCaster {
	return &RayCaster{cfg: rc.cfg, frame: f}
}

// Config returns the sensor configuration.
func (rc *RayCaster) Config() Config { return rc.cfg }

// Cast returns the reading seen from pose. A nil environment behaves like
// an empty one.
func (rc *RayCaster) Cast(pose physics.Pose, env *world.Environment) Reading {
	maxRange := rc.cfg.MaxRange
	out := make(Reading, rc.cfg.Count)
	for i := range out {
		out[i] = maxRange
	}
	if env == nil || env.Len() == 0 {
		return out
	}

	origin := pose.Position()
	candidates := env.BroadPhaseCandidates(origin, maxRange)
	if len(candidates) == 0 {
		return out
	}

	for i := range out {
		angle := pose.Theta + rc.cfg.BeamOffset(i)
		ray := physics.Seg(origin, rc.frame.Offset(pose, angle, maxRange))
		out[i] = castRay(ray, env, candidates, maxRange)
	}
	return out
}

// castRay returns the closest hit along ray among the candidate polygons,
// or maxRange when nothing is hit.
func castRay(ray physics.Segment, env *world.Environment, candidates []int, maxRange float64) float64 {
	best := maxRange
	for _, id := range candidates {
		poly := env.Polygon(id)
		for e := 0; e < poly.Len(); e++ {
			ta, _, ok := ray.Intersect(poly.Edge(e))
			if !ok {
				continue
			}
			if d := physics.Distance(ray.A, ray.At(ta)); d < best {
				best = d
			}
		}
	}
	return clamp(best, maxRange)
}

func clamp(d, maxRange float64) float64 {
	switch {
	case d < 0 || math.IsNaN(d):
		return 0
	case d > maxRange:
		return maxRange
	}
	return d
}
