package sensor

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientSensors is returned when a fan cannot be divided into
	// equal angular steps: fewer than two beams over a non-zero range, or
	// no beams at all.
	ErrInsufficientSensors = errors.New("insufficient sensors")
	// ErrInvalidRange is returned for a non-positive or non-finite maximum
	// range.
	ErrInvalidRange = errors.New("invalid sensor range")
)

// ConfigError reports which field of a sensor configuration is invalid.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sensor config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config describes the fan of range sensors mounted on the robot.
//
// Beam i points at heading + OriginAngle + i*AngularRange/(Count-1).
type Config struct {
	Count        int     `json:"count" yaml:"count"`
	OriginAngle  float64 `json:"origin_angle" yaml:"origin_angle"`
	AngularRange float64 `json:"angular_range" yaml:"angular_range"`
	MaxRange     float64 `json:"max_range" yaml:"max_range"`
}

// NewConfig builds and validates a Config.
func NewConfig(count int, originAngle, angularRange, maxRange float64) (Config, error) {
	c := Config{Count: count, OriginAngle: originAngle, AngularRange: angularRange, MaxRange: maxRange}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration.
//
// A single beam is accepted only when AngularRange is zero: it is a plain
// rangefinder and no angular step is needed.
func (c Config) Validate() error {
	switch {
	case c.Count < 1:
		return &ConfigError{Field: "count", Err: fmt.Errorf("%w: count %d", ErrInsufficientSensors, c.Count)}
	case c.Count == 1 && c.AngularRange != 0:
		return &ConfigError{Field: "count", Err: fmt.Errorf("%w: one beam cannot span %v rad", ErrInsufficientSensors, c.AngularRange)}
	case !(c.MaxRange > 0) || math.IsInf(c.MaxRange, 1):
		return &ConfigError{Field: "max_range", Err: fmt.Errorf("%w: %v", ErrInvalidRange, c.MaxRange)}
	case math.IsNaN(c.OriginAngle) || math.IsInf(c.OriginAngle, 0):
		return &ConfigError{Field: "origin_angle", Err: fmt.Errorf("not finite: %v", c.OriginAngle)}
	case math.IsNaN(c.AngularRange) || math.IsInf(c.AngularRange, 0):
		return &ConfigError{Field: "angular_range", Err: fmt.Errorf("not finite: %v", c.AngularRange)}
	}
	return nil
}

// Step returns the angle between consecutive beams.
func (c Config) Step() float64 {
	if c.Count < 2 {
		return 0
	}
	return c.AngularRange / float64(c.Count-1)
}

// BeamOffset returns beam i's angle relative to the robot heading.
func (c Config) BeamOffset(i int) float64 {
	return c.OriginAngle + float64(i)*c.Step()
}

// Preset names accepted by PresetConfig.
const (
	PresetLidar     = "lidar"
	PresetSonar     = "sonar"
	PresetRealRobot = "real_robot"
)

// PresetConfig returns one of the built-in sensor layouts.
func PresetConfig(name string) (Config, error) {
	switch name {
	case PresetLidar:
		return Config{Count: 20, OriginAngle: -1.5707, AngularRange: 3.1415, MaxRange: 0.05}, nil
	case PresetSonar:
		return Config{Count: 8, OriginAngle: -1.5707, AngularRange: 3.1415, MaxRange: 0.05}, nil
	case PresetRealRobot:
		return Config{Count: 3, OriginAngle: -0.7853, AngularRange: 1.5708, MaxRange: 0.17}, nil
	default:
		return Config{}, &ConfigError{Field: "preset", Err: fmt.Errorf("unknown preset %q", name)}
	}
}
