package session

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/world"
)

// Provider is the source of motion and range data for a session: either the
// built-in simulation or an external robot.
type Provider interface {
	Name() string
	// Move applies cmd starting at from. observe receives every pose the
	// provider passes through, including the final one.
	Move(ctx context.Context, from physics.Pose, cmd motion.Command, observe func(physics.Pose)) (physics.Pose, error)
	// Sense returns a reading at pose.
	Sense(pose physics.Pose, env *world.Environment, cfg sensor.Config) (sensor.Reading, error)
}

var (
	_ Provider = (*SimulatedProvider)(nil)
	_ Provider = (*ExternalProvider)(nil)
)

// SimulatedProvider moves with a motion.Integrator and senses by ray
// casting, optionally adding Gaussian noise.
type SimulatedProvider struct {
	integrator *motion.Integrator
	noise      *sensor.NoiseModel
}

// NewSimulatedProvider returns a provider using in. noise may be nil.
func NewSimulatedProvider(in *motion.Integrator, noise *sensor.NoiseModel) *SimulatedProvider {
	return &SimulatedProvider{integrator: in, noise: noise}
}

func (p *SimulatedProvider) Name() string { return "simulated" }

func (p *SimulatedProvider) Move(ctx context.Context, from physics.Pose, cmd motion.Command, observe func(physics.Pose)) (physics.Pose, error) {
	return p.integrator.Apply(ctx, from, cmd, observe)
}

func (p *SimulatedProvider) Sense(pose physics.Pose, env *world.Environment, cfg sensor.Config) (sensor.Reading, error) {
	rc, err := sensor.NewRayCaster(cfg)
	if err != nil {
		return nil, err
	}
	frame := p.integrator.Config().Frame
	return p.noise.Apply(rc.InFrame(frame).Cast(pose, env), cfg.MaxRange), nil
}

// CommandSink forwards commands to a real robot.
type CommandSink interface {
	Send(ctx context.Context, cmd motion.Command) error
}

// CommandSinkFunc adapts a function to CommandSink.
type CommandSinkFunc func(ctx context.Context, cmd motion.Command) error

func (f CommandSinkFunc) Send(ctx context.Context, cmd motion.Command) error { return f(ctx, cmd) }

// calibration maps raw external poses into the map frame: the raw frame is
// rotated by the reference heading, then the reference position is moved
// onto the anchor.
type calibration struct {
	ref    physics.Pose
	anchor physics.Pose
}

func rotate(x, y, r float64) (float64, float64) {
	sin, cos := math.Sincos(r)
	return x*cos + y*sin, y*cos - x*sin
}

func (c calibration) apply(raw physics.Pose) physics.Pose {
	x, y := rotate(raw.X, raw.Y, c.ref.Theta)
	x0, y0 := rotate(c.ref.X, c.ref.Y, c.ref.Theta)
	return physics.Pose{
		X:     x - x0 + c.anchor.X,
		Y:     y - y0 + c.anchor.Y,
		Theta: physics.NormalizeAngle(raw.Theta - c.ref.Theta + c.anchor.Theta),
	}
}

// ExternalProvider is fed by an external pose and range stream. Move
// forwards the command to the sink and waits for the next pose update.
// Update may be called from any goroutine.
type ExternalProvider struct {
	sink CommandSink

	mu       sync.Mutex
	raw      physics.Pose
	havePose bool
	reading  sensor.Reading
	cal      *calibration
	changed  chan struct{}
}

// NewExternalProvider returns a provider forwarding commands to sink.
func NewExternalProvider(sink CommandSink) *ExternalProvider {
	return &ExternalProvider{sink: sink, changed: make(chan struct{})}
}

func (p *ExternalProvider) Name() string { return "external" }

// Update records the latest raw pose and, when not nil, range reading.
func (p *ExternalProvider) Update(raw physics.Pose, reading sensor.Reading) {
	p.mu.Lock()
	p.raw = raw
	p.havePose = true
	if reading != nil {
		p.reading = reading.Clone()
	}
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

// Calibrate makes the current raw pose correspond to anchor in the map
// frame.
func (p *ExternalProvider) Calibrate(anchor physics.Pose) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.havePose {
		return ErrNoExternalPose
	}
	p.cal = &calibration{ref: p.raw, anchor: anchor}
	return nil
}

// Pose returns the latest pose in the map frame.
func (p *ExternalProvider) Pose() (physics.Pose, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poseLocked()
}

func (p *ExternalProvider) poseLocked() (physics.Pose, error) {
	if !p.havePose {
		return physics.Pose{}, ErrNoExternalPose
	}
	if p.cal == nil {
		return p.raw.Normalized(), nil
	}
	return p.cal.apply(p.raw), nil
}

func (p *ExternalProvider) Move(ctx context.Context, _ physics.Pose, cmd motion.Command, observe func(physics.Pose)) (physics.Pose, error) {
	if p.sink == nil {
		return physics.Pose{}, ErrNoCommandSink
	}
	p.mu.Lock()
	wait := p.changed
	p.mu.Unlock()

	if err := p.sink.Send(ctx, cmd); err != nil {
		return physics.Pose{}, fmt.Errorf("send command: %w", err)
	}
	select {
	case <-wait:
	case <-ctx.Done():
		return physics.Pose{}, ctx.Err()
	}

	pose, err := p.Pose()
	if err != nil {
		return physics.Pose{}, err
	}
	if observe != nil {
		observe(pose)
	}
	return pose, nil
}

// Sense returns the latest external reading clamped into [0, max range].
func (p *ExternalProvider) Sense(_ physics.Pose, _ *world.Environment, cfg sensor.Config) (sensor.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reading == nil {
		return nil, ErrNoExternalRange
	}
	if len(p.reading) != cfg.Count {
		return nil, fmt.Errorf("%w: %d beams, configured %d", ErrReadingMismatch, len(p.reading), cfg.Count)
	}
	out := p.reading.Clone()
	for i, d := range out {
		switch {
		case math.IsNaN(d), d < 0:
			out[i] = 0
		case d > cfg.MaxRange:
			out[i] = cfg.MaxRange
		}
	}
	return out, nil
}
