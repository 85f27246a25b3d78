package session

import (
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
)

// Event types published by a Session.
const (
	EventMapLoaded        = "map.loaded"
	EventSensorConfigured = "sensor.configured"
	EventPoseUpdated      = "pose.updated"
	EventStepCompleted    = "step.completed"
	EventSenseCompleted   = "sense.completed"
	EventRunStarted       = "run.started"
	EventRunFinished      = "run.finished"
	EventLogReplayed      = "log.replayed"
)

const eventSource = "session"

// Run finish reasons.
const (
	ReasonStopped     = "stopped"
	ReasonStepLimit   = "step_limit"
	ReasonGoalReached = "goal_reached"
)

type MapLoaded struct {
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Polygons    int     `json:"polygons"`
	Fingerprint uint64  `json:"fingerprint"`
}

type SensorConfigured struct {
	Config sensor.Config `json:"config"`
}

// PoseUpdated is published for every intermediate animated pose and for
// every final pose.
type PoseUpdated struct {
	Pose  physics.Pose `json:"pose"`
	Final bool         `json:"final"`
}

type StepCompleted struct {
	Command  motion.Command `json:"command"`
	Snapshot Snapshot       `json:"snapshot"`
}

type SenseCompleted struct {
	Pose    physics.Pose   `json:"pose"`
	Reading sensor.Reading `json:"reading"`
}

type RunStarted struct {
	ID       string       `json:"id"`
	Start    physics.Pose `json:"start"`
	MaxSteps int          `json:"max_steps"`
}

type RunFinished struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Steps  int    `json:"steps"`
}

type LogReplayed struct {
	Pose     physics.Pose `json:"pose"`
	Commands int          `json:"commands"`
}

// publish delivers synchronously; handler errors are logged and never fail
// the operation that produced the event.
func (s *Session) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	meta := map[string]any{}
	if s.run.id != "" {
		meta["run_id"] = s.run.id
	}
	if err := s.bus.Publish(bus.NewEvent(typ, eventSource, data, meta)); err != nil {
		s.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
