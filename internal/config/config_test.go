package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	sc, err := c.Session()
	require.NoError(t, err)
	assert.Equal(t, 20, sc.Sensor.Count)
	assert.Equal(t, 0.05, sc.Sensor.MaxRange)
	assert.Equal(t, motion.ModeDirect, sc.Motion.Mode)
	assert.Equal(t, 0.03, sc.RobotRadius)
}

func TestLoadOverridesDefaults(t *testing.T) {
	doc := `
log:
  level: debug
sensor:
  preset: real_robot
  max_range: 0.5
  origin_angle: 0
  noise:
    sigma: 0.01
    seed: 7
motion:
  mode: animated
  frame: canvas
  linear_step: 0.01
robot:
  start: {x: 1, y: 2, theta: 0.5}
run:
  max_steps: 100
  goal: {x: 4, y: 4}
server:
  addr: 127.0.0.1:9000
  step_timeout: 2s
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	sc, err := c.Sensor.Resolve()
	require.NoError(t, err)
	assert.Equal(t, sensor.Config{Count: 3, OriginAngle: 0, AngularRange: 1.5708, MaxRange: 0.5}, sc)

	mc, err := c.Motion.Resolve()
	require.NoError(t, err)
	assert.Equal(t, motion.ModeAnimated, mc.Mode)
	assert.Equal(t, motion.FrameCanvas, mc.Frame)
	assert.Equal(t, 0.01, mc.LinearStep)
	assert.Equal(t, motion.DefaultConfig().AngularStep, mc.AngularStep)

	assert.Equal(t, physics.NewPose(1, 2, 0.5), c.Robot.Start)
	assert.Equal(t, &physics.Point{X: 4, Y: 4}, c.Run.GoalPoint())
	assert.Equal(t, 2*time.Second, c.Server.StepTimeout)
	assert.Equal(t, 5*time.Second, c.Server.ShutdownTimeout)
	assert.Equal(t, uint64(7), c.Sensor.Noise.Seed)
}

func TestLoadEmptyDocumentGivesDefaults(t *testing.T) {
	c, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("sensors:\n  count: 3\n"))
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := Default()
	c.Log.Level = "loud"
	c.Sensor.Count = 1
	c.Motion.Mode = "teleport"
	c.Robot.Radius = 0
	c.Source.Kind = "dream"

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"log level", "sensor", "motion", "robot.radius", "source.kind"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.ErrorIs(t, err, sensor.ErrInsufficientSensors)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROBOSIM_SERVER_ADDR", ":7000")
	t.Setenv("ROBOSIM_LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "robosim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: :9999\n"), 0o600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", c.Server.Addr)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ROBOSIM_SOURCE", SourceExternal)
	t.Setenv("ROBOSIM_TOKEN", "s3cret")
	c := FromEnv()
	assert.Equal(t, SourceExternal, c.Source.Kind)
	assert.Equal(t, "s3cret", c.Server.Token)
	assert.Equal(t, Default().Sensor, c.Sensor)
}
