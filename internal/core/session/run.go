package session

import (
	"github.com/google/uuid"

	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics"
)

type runState struct {
	id        string
	active    bool
	exhausted bool
	steps     int
	maxSteps  int
	goal      *physics.Point
}

// StartRun moves the robot to start, resets the log and begins a run.
// maxSteps <= 0 means unlimited; goal may be nil. It returns the run id.
func (s *Session) StartRun(start physics.Pose, maxSteps int, goal *physics.Point) string {
	start = start.Normalized()
	if s.run.active {
		s.finishRun(ReasonStopped)
	}
	s.run = runState{id: uuid.NewString(), active: true, maxSteps: max(maxSteps, 0)}
	if goal != nil {
		g := *goal
		s.run.goal = &g
	}
	s.ResetLog(start)

	s.logger.Info("run started",
		log.String("run_id", s.run.id),
		log.Stringer("start", start),
		log.Int("max_steps", s.run.maxSteps),
	)
	s.publish(EventRunStarted, RunStarted{ID: s.run.id, Start: start, MaxSteps: s.run.maxSteps})
	return s.run.id
}

// StopRun ends the active run.
func (s *Session) StopRun() error {
	if !s.run.active {
		return ErrRunNotActive
	}
	s.finishRun(ReasonStopped)
	return nil
}

// RunActive reports whether a run is in progress.
func (s *Session) RunActive() bool { return s.run.active }

// advanceRun counts a completed step against the active run.
func (s *Session) advanceRun() {
	if !s.run.active {
		return
	}
	s.run.steps++
	switch {
	case s.run.goal != nil && physics.Distance(s.pose.Position(), *s.run.goal) <= s.radius:
		s.finishRun(ReasonGoalReached)
	case s.run.maxSteps > 0 && s.run.steps >= s.run.maxSteps:
		s.run.exhausted = true
		s.finishRun(ReasonStepLimit)
	}
}

func (s *Session) finishRun(reason string) {
	s.run.active = false
	s.logger.Info("run finished",
		log.String("run_id", s.run.id),
		log.String("reason", reason),
		log.Int("steps", s.run.steps),
	)
	s.publish(EventRunFinished, RunFinished{ID: s.run.id, Reason: reason, Steps: s.run.steps})
}
