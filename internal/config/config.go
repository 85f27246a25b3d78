// Package config loads the simulator configuration from YAML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/session"
)

// Config contains all simulator settings.
type Config struct {
	Log    LogConfig    `json:"log" yaml:"log"`
	Map    MapConfig    `json:"map" yaml:"map"`
	Sensor SensorConfig `json:"sensor" yaml:"sensor"`
	Motion MotionConfig `json:"motion" yaml:"motion"`
	Robot  RobotConfig  `json:"robot" yaml:"robot"`
	Run    RunConfig    `json:"run" yaml:"run"`
	Source SourceConfig `json:"source" yaml:"source"`
	Server ServerConfig `json:"server" yaml:"server"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`
}

type MapConfig struct {
	// File is a .wrl world file. Empty means no map until one is uploaded.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	// Objects is an optional objects file.
	Objects string `json:"objects,omitempty" yaml:"objects,omitempty"`
}

// SensorConfig starts from Preset and overrides whatever is set.
type SensorConfig struct {
	Preset       string   `json:"preset,omitempty" yaml:"preset,omitempty"`
	Count        int      `json:"count,omitempty" yaml:"count,omitempty"`
	OriginAngle  *float64 `json:"origin_angle,omitempty" yaml:"origin_angle,omitempty"`
	AngularRange *float64 `json:"angular_range,omitempty" yaml:"angular_range,omitempty"`
	MaxRange     float64  `json:"max_range,omitempty" yaml:"max_range,omitempty"`

	Noise session.NoiseConfig `json:"noise" yaml:"noise"`
}

type MotionConfig struct {
	// Mode is direct or animated.
	Mode string `json:"mode" yaml:"mode"`
	// Frame is world (Y up) or canvas (Y down).
	Frame string `json:"frame" yaml:"frame"`
	// AngularStep is the heading change per animated tick in radians.
	AngularStep float64 `json:"angular_step" yaml:"angular_step"`
	// LinearStep is the coordinate change per animated tick in meters.
	LinearStep float64 `json:"linear_step" yaml:"linear_step"`
}

type RobotConfig struct {
	Radius float64      `json:"radius" yaml:"radius"`
	Start  physics.Pose `json:"start" yaml:"start"`
}

type RunConfig struct {
	// MaxSteps ends a run after that many steps; 0 means unlimited.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
	// Goal ends a run when the robot gets within its radius.
	Goal *GoalConfig `json:"goal,omitempty" yaml:"goal,omitempty"`
}

type GoalConfig struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type SourceConfig struct {
	// Kind is simulated or external.
	Kind string `json:"kind" yaml:"kind"`
}

type ServerConfig struct {
	Addr              string        `json:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	StepTimeout       time.Duration `json:"step_timeout" yaml:"step_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// QueueSize is the capacity of the worker command channel.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
	// Token, when set, is required on every route but /healthz.
	Token string `json:"-" yaml:"token,omitempty"`
}

const (
	SourceSimulated = "simulated"
	SourceExternal  = "external"
)

// Default returns the configuration the simulator starts with.
func Default() *Config {
	mc := motion.DefaultConfig()
	return &Config{
		Log:    LogConfig{Level: "info"},
		Sensor: SensorConfig{Preset: sensor.PresetLidar},
		Motion: MotionConfig{
			Mode:        "direct",
			Frame:       "world",
			AngularStep: mc.AngularStep,
			LinearStep:  mc.LinearStep,
		},
		Robot: RobotConfig{
			Radius: 0.03,
			Start:  physics.NewPose(0.5, 0.5, 0),
		},
		Source: SourceConfig{Kind: SourceSimulated},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			StepTimeout:       30 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			QueueSize:         64,
		},
	}
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() *Config {
	c := Default()
	applyEnvOverrides(c)
	return c
}

// LoadFromFile reads path over the defaults and applies environment
// overrides.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return c, nil
}

// Load decodes YAML from r over the defaults and applies environment
// overrides. An empty document yields the defaults.
func Load(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	applyEnvOverrides(c)
	return c, nil
}

// applyEnvOverrides applies the ROBOSIM_* environment variables.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("ROBOSIM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ROBOSIM_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ROBOSIM_MAP"); v != "" {
		c.Map.File = v
	}
	if v := os.Getenv("ROBOSIM_SOURCE"); v != "" {
		c.Source.Kind = v
	}
	if v := os.Getenv("ROBOSIM_TOKEN"); v != "" {
		c.Server.Token = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Sensor.Resolve(); err != nil {
		errs = append(errs, fmt.Errorf("sensor: %w", err))
	}
	if c.Sensor.Noise.Sigma < 0 {
		errs = append(errs, fmt.Errorf("sensor.noise.sigma must be non-negative, got %v", c.Sensor.Noise.Sigma))
	}
	if _, err := c.Motion.Resolve(); err != nil {
		errs = append(errs, fmt.Errorf("motion: %w", err))
	}
	if !(c.Robot.Radius > 0) {
		errs = append(errs, fmt.Errorf("robot.radius must be positive, got %v", c.Robot.Radius))
	}
	if c.Run.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("run.max_steps must be non-negative, got %d", c.Run.MaxSteps))
	}
	switch c.Source.Kind {
	case SourceSimulated, SourceExternal:
	default:
		errs = append(errs, fmt.Errorf("source.kind must be %s or %s, got %q", SourceSimulated, SourceExternal, c.Source.Kind))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("server.queue_size must be at least 1, got %d", c.Server.QueueSize))
	}
	return errors.Join(errs...)
}

// Resolve merges the preset with the explicit fields and validates the
// result.
func (s SensorConfig) Resolve() (sensor.Config, error) {
	var cfg sensor.Config
	if s.Preset != "" {
		p, err := sensor.PresetConfig(s.Preset)
		if err != nil {
			return sensor.Config{}, err
		}
		cfg = p
	}
	if s.Count > 0 {
		cfg.Count = s.Count
	}
	if s.OriginAngle != nil {
		cfg.OriginAngle = *s.OriginAngle
	}
	if s.AngularRange != nil {
		cfg.AngularRange = *s.AngularRange
	}
	if s.MaxRange > 0 {
		cfg.MaxRange = s.MaxRange
	}
	return cfg, cfg.Validate()
}

// Resolve converts the motion section into integrator settings.
func (m MotionConfig) Resolve() (motion.Config, error) {
	mode, err := motion.ParseMode(m.Mode)
	if err != nil {
		return motion.Config{}, err
	}
	cfg := motion.Config{Mode: mode, AngularStep: m.AngularStep, LinearStep: m.LinearStep}
	switch m.Frame {
	case "world", "":
		cfg.Frame = motion.FrameWorld
	case "canvas":
		cfg.Frame = motion.FrameCanvas
	default:
		return motion.Config{}, fmt.Errorf("unknown frame %q", m.Frame)
	}
	if _, err = motion.NewIntegrator(cfg); err != nil {
		return motion.Config{}, err
	}
	return cfg, nil
}

// Session builds the session settings.
func (c *Config) Session() (session.Config, error) {
	sc, err := c.Sensor.Resolve()
	if err != nil {
		return session.Config{}, err
	}
	mc, err := c.Motion.Resolve()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Motion:      mc,
		Sensor:      sc,
		Noise:       c.Sensor.Noise,
		RobotRadius: c.Robot.Radius,
		Start:       c.Robot.Start,
	}, nil
}

// GoalPoint returns the configured goal, or nil.
func (r RunConfig) GoalPoint() *physics.Point {
	if r.Goal == nil {
		return nil
	}
	p := physics.Pt(r.Goal.X, r.Goal.Y)
	return &p
}
