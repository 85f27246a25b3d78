package session

import (
	"fmt"
	"slices"

	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/world"
)

// GraspDistance is the reach of the gripper in meters.
const GraspDistance = 0.05

// LoadObjects replaces the graspable objects and drops anything held.
func (s *Session) LoadObjects(objs []world.Object) error {
	seen := make(map[string]struct{}, len(objs))
	for _, o := range objs {
		if _, dup := seen[o.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateObject, o.Name)
		}
		seen[o.Name] = struct{}{}
	}
	s.objects = slices.Clone(objs)
	s.held = ""
	s.logger.Info("objects loaded", log.Int("objects", len(objs)))
	return nil
}

// Objects returns the objects lying in the world, excluding the held one.
func (s *Session) Objects() []world.Object {
	return slices.DeleteFunc(slices.Clone(s.objects), func(o world.Object) bool { return o.Name == s.held })
}

// Holding returns the name of the held object, or "".
func (s *Session) Holding() string { return s.held }

// Grasp picks up the named object if it lies strictly within GraspDistance
// of the robot and nothing is held.
func (s *Session) Grasp(name string) error {
	if s.held != "" {
		return fmt.Errorf("%w: %q", ErrAlreadyHolding, s.held)
	}
	i := s.objectIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrObjectNotFound, name)
	}
	if d := physics.Distance(s.pose.Position(), s.objects[i].Position); d >= GraspDistance {
		return fmt.Errorf("%w: %q is %.3f m away", ErrObjectTooFar, name, d)
	}
	s.held = name
	s.logger.Info("object grasped", log.String("object", name))
	return nil
}

// Release drops the held object one robot radius ahead of the robot and
// returns it at its new position.
func (s *Session) Release() (world.Object, error) {
	if s.held == "" {
		return world.Object{}, ErrNotHolding
	}
	i := s.objectIndex(s.held)
	s.objects[i].Position = s.integrator.Config().Frame.Offset(s.pose, s.pose.Theta, s.radius)
	s.held = ""
	s.logger.Info("object released", log.String("object", s.objects[i].Name))
	return s.objects[i], nil
}

func (s *Session) objectIndex(name string) int {
	return slices.IndexFunc(s.objects, func(o world.Object) bool { return o.Name == name })
}
