package trajectory

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/physics"
)

func TestLogAppendAndCommands(t *testing.T) {
	l := NewLog(physics.NewPose(1, 2, 0))
	l.Append(motion.Command{TurnAngle: 1})
	l.Append(motion.Command{AdvanceDistance: 2})

	cmds := l.Commands()
	assert.Equal(t, []motion.Command{{TurnAngle: 1}, {AdvanceDistance: 2}}, cmds)

	cmds[0].TurnAngle = 99
	assert.Equal(t, 1.0, l.Commands()[0].TurnAngle, "Commands must return a copy")
}

func TestLogReset(t *testing.T) {
	l := NewLog(physics.NewPose(0, 0, 0))
	l.Append(motion.Command{TurnAngle: 1})
	l.Reset(physics.NewPose(3, 3, 1))

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, physics.NewPose(3, 3, 1), l.Start())
	assert.Empty(t, l.Commands())
}

func TestReplayReproducesSequentialSteps(t *testing.T) {
	in, err := motion.NewIntegrator(motion.DefaultConfig())
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 11))
	start := physics.NewPose(2.5, 2.5, 0.3)
	l := NewLog(start)

	p := start
	for i := 0; i < 200; i++ {
		c := motion.Command{TurnAngle: rng.Float64()*4 - 2, AdvanceDistance: rng.Float64() - 0.5}
		p = in.Direct(p, c)
		l.Append(c)
	}

	got := l.Replay(in)
	assert.True(t, got.ApproxEqual(p, 1e-9), "replay %v, sequential %v", got, p)
}

func TestReplayEmptyLogReturnsStart(t *testing.T) {
	in, err := motion.NewIntegrator(motion.DefaultConfig())
	require.NoError(t, err)
	start := physics.NewPose(1, 1, 1)
	assert.Equal(t, start, NewLog(start).Replay(in))
}
