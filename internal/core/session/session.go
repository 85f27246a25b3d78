// Package session ties the environment, the sensor model, the motion
// integrator and the trajectory log into one simulation session.
//
// A Session is owned by a single goroutine: step and sense calls must be
// serialized by the caller. Results are returned as values and pushed to an
// optional event bus; nothing outside the session holds authoritative
// state.
package session

import (
	"context"
	"fmt"

	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/trajectory"
	"github.com/zeusync/robosim/internal/core/world"
)

// NoiseConfig enables Gaussian range noise when Sigma > 0.
type NoiseConfig struct {
	Sigma float64 `yaml:"sigma" json:"sigma"`
	Seed  uint64  `yaml:"seed" json:"seed"`
}

// Config holds session settings.
type Config struct {
	Motion motion.Config
	// Sensor is applied at construction when Count > 0.
	Sensor sensor.Config
	Noise  NoiseConfig
	// RobotRadius is used to place released objects and to detect the goal.
	RobotRadius float64
	Start       physics.Pose
}

// DefaultConfig returns direct stepping, no sensor and a 3 cm robot.
func DefaultConfig() Config {
	return Config{
		Motion:      motion.DefaultConfig(),
		RobotRadius: 0.03,
	}
}

// Snapshot is an immutable view of the session after an operation.
type Snapshot struct {
	Pose           physics.Pose   `json:"pose"`
	Reading        sensor.Reading `json:"reading,omitempty"`
	Commands       int            `json:"commands"`
	Mode           string         `json:"mode"`
	Provider       string         `json:"provider"`
	RunID          string         `json:"run_id,omitempty"`
	RunActive      bool           `json:"run_active"`
	RunSteps       int            `json:"run_steps"`
	Holding        string         `json:"holding,omitempty"`
	MapFingerprint uint64         `json:"map_fingerprint,omitempty"`
}

type Session struct {
	// Core components
	provider   Provider
	integrator *motion.Integrator
	bus        bus.EventBus
	logger     log.Log

	// World
	env       *world.Environment
	sensorCfg *sensor.Config
	objects   []world.Object
	held      string
	radius    float64

	// Robot state
	pose    physics.Pose
	reading sensor.Reading
	log     *trajectory.Log
	run     runState
}

// New builds a session. A nil provider selects the simulated one; b and
// logger may be nil.
func New(cfg Config, provider Provider, b bus.EventBus, logger log.Log) (*Session, error) {
	in, err := motion.NewIntegrator(cfg.Motion)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if provider == nil {
		var noise *sensor.NoiseModel
		if cfg.Noise.Sigma > 0 {
			noise = sensor.NewNoiseModel(cfg.Noise.Sigma, cfg.Noise.Seed)
		}
		provider = NewSimulatedProvider(in, noise)
	}

	start := cfg.Start.Normalized()
	s := &Session{
		provider:   provider,
		integrator: in,
		bus:        b,
		logger:     logger.With(log.String("provider", provider.Name())),
		radius:     cfg.RobotRadius,
		pose:       start,
		log:        trajectory.NewLog(start),
	}
	if cfg.Sensor.Count > 0 {
		if err = s.SetSensorConfig(cfg.Sensor); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Pose returns the current pose.
func (s *Session) Pose() physics.Pose { return s.pose }

// Environment returns the loaded environment, or nil.
func (s *Session) Environment() *world.Environment { return s.env }

// SensorConfig returns the active sensor configuration.
func (s *Session) SensorConfig() (sensor.Config, bool) {
	if s.sensorCfg == nil {
		return sensor.Config{}, false
	}
	return *s.sensorCfg, true
}

// Commands returns the commands recorded since the last log reset.
func (s *Session) Commands() []motion.Command { return s.log.Commands() }

// LoadEnvironment builds and installs a new environment. On error the
// previous environment stays in use.
func (s *Session) LoadEnvironment(width, height float64, polygons [][]physics.Point) error {
	env, err := world.Load(width, height, polygons)
	if err != nil {
		s.logger.Warn("map rejected", log.Error(err))
		return err
	}
	s.SetEnvironment(env)
	return nil
}

// SetEnvironment installs an already built environment.
func (s *Session) SetEnvironment(env *world.Environment) {
	s.env = env
	s.invalidate()
	s.logger.Info("map loaded",
		log.Float64("width", env.Width()),
		log.Float64("height", env.Height()),
		log.Int("polygons", env.Len()),
		log.Uint64("fingerprint", env.Fingerprint()),
	)
	s.publish(EventMapLoaded, MapLoaded{
		Width:       env.Width(),
		Height:      env.Height(),
		Polygons:    env.Len(),
		Fingerprint: env.Fingerprint(),
	})
}

// SetSensorConfig validates and installs cfg. On error the previous
// configuration stays in use.
func (s *Session) SetSensorConfig(cfg sensor.Config) error {
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("sensor configuration rejected", log.Error(err))
		return err
	}
	s.sensorCfg = &cfg
	s.invalidate()
	s.logger.Info("sensor configured",
		log.Int("count", cfg.Count),
		log.Float64("origin_angle", cfg.OriginAngle),
		log.Float64("angular_range", cfg.AngularRange),
		log.Float64("max_range", cfg.MaxRange),
	)
	s.publish(EventSensorConfigured, SensorConfigured{Config: cfg})
	return nil
}

// Step applies cmd in the configured mode, records it, refreshes the cached
// reading and returns the new pose. A failed or cancelled step leaves the
// session unchanged.
func (s *Session) Step(ctx context.Context, cmd motion.Command) (physics.Pose, error) {
	if s.run.exhausted {
		return s.pose, ErrStepLimitReached
	}
	logger := s.logger.WithContext(log.ContextWithRunID(ctx, s.run.id))

	next, err := s.provider.Move(ctx, s.pose, cmd, func(p physics.Pose) {
		s.publish(EventPoseUpdated, PoseUpdated{Pose: p})
	})
	if err != nil {
		logger.Warn("step aborted", log.Error(err))
		return s.pose, err
	}

	s.pose = next
	s.log.Append(cmd)
	s.invalidate()
	s.refresh(logger)
	s.publish(EventPoseUpdated, PoseUpdated{Pose: next, Final: true})
	logger.Debug("step",
		log.Float64("turn_angle", cmd.TurnAngle),
		log.Float64("advance_distance", cmd.AdvanceDistance),
		log.Stringer("pose", next),
	)

	s.advanceRun()
	s.publish(EventStepCompleted, StepCompleted{Command: cmd, Snapshot: s.Snapshot()})
	return next, nil
}

// Sense returns the reading at the current pose. The reading is cached
// until the next step, map load or configuration change, so repeated calls
// return identical values.
func (s *Session) Sense() (sensor.Reading, error) {
	if s.sensorCfg == nil {
		return nil, ErrNoSensorConfig
	}
	if s.env == nil {
		return nil, ErrNoEnvironment
	}
	if s.reading == nil {
		r, err := s.provider.Sense(s.pose, s.env, *s.sensorCfg)
		if err != nil {
			return nil, fmt.Errorf("sense: %w", err)
		}
		s.reading = r
		s.publish(EventSenseCompleted, SenseCompleted{Pose: s.pose, Reading: r.Clone()})
	}
	return s.reading.Clone(), nil
}

// ReplayLast resets the pose to the recorded start pose and reapplies every
// recorded command.
func (s *Session) ReplayLast() physics.Pose {
	s.pose = s.log.Replay(s.integrator)
	s.invalidate()
	s.refresh(s.logger)
	s.logger.Info("log replayed", log.Int("commands", s.log.Len()), log.Stringer("pose", s.pose))
	s.publish(EventLogReplayed, LogReplayed{Pose: s.pose, Commands: s.log.Len()})
	return s.pose
}

// ResetLog clears the log and moves the robot to start.
func (s *Session) ResetLog(start physics.Pose) {
	start = start.Normalized()
	s.log.Reset(start)
	s.pose = start
	s.invalidate()
	s.refresh(s.logger)
	s.publish(EventPoseUpdated, PoseUpdated{Pose: start, Final: true})
}

// Snapshot returns the current state. The reading is included only when
// one is cached.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Pose:      s.pose,
		Reading:   s.reading.Clone(),
		Commands:  s.log.Len(),
		Mode:      s.integrator.Mode().String(),
		Provider:  s.provider.Name(),
		RunID:     s.run.id,
		RunActive: s.run.active,
		RunSteps:  s.run.steps,
		Holding:   s.held,
	}
	if s.env != nil {
		snap.MapFingerprint = s.env.Fingerprint()
	}
	return snap
}

func (s *Session) invalidate() { s.reading = nil }

// refresh recomputes the cached reading when sensing is possible.
func (s *Session) refresh(logger log.Log) {
	if s.sensorCfg == nil || s.env == nil {
		return
	}
	if _, err := s.Sense(); err != nil {
		logger.Warn("sense failed", log.Error(err))
	}
}
