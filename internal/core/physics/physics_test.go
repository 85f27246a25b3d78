package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAngle(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{TwoPi, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{-1e-18, 0},
		{math.NaN(), 0},
	}
	for _, c := range cases {
		got := NormalizeAngle(c.in)
		assert.InDelta(t, c.want, got, 1e-12, "normalize(%v)", c.in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, TwoPi)
	}
}

func TestSegmentIntersect(t *testing.T) {
	ray := Seg(Pt(1, 3), Pt(6, 3))
	edge := Seg(Pt(2, 2), Pt(2, 4))

	ta, tb, ok := ray.Intersect(edge)
	assert.True(t, ok)
	assert.InDelta(t, 0.2, ta, 1e-12)
	assert.InDelta(t, 0.5, tb, 1e-12)
	assert.InDelta(t, 1.0, Distance(ray.A, ray.At(ta)), 1e-12)
}

func TestSegmentIntersectParallel(t *testing.T) {
	a := Seg(Pt(0, 0), Pt(1, 0))
	b := Seg(Pt(0, 1), Pt(1, 1))
	_, _, ok := a.Intersect(b)
	assert.False(t, ok)

	// collinear overlap contributes nothing either
	c := Seg(Pt(0.5, 0), Pt(2, 0))
	_, _, ok = a.Intersect(c)
	assert.False(t, ok)
}

func TestSegmentIntersectEndpointIsInclusive(t *testing.T) {
	ray := Seg(Pt(0, 0), Pt(2, 0))
	edge := Seg(Pt(2, -1), Pt(2, 1))
	ta, _, ok := ray.Intersect(edge)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, ta, 1e-12)

	short := Seg(Pt(0, 0), Pt(1.9, 0))
	_, _, ok = short.Intersect(edge)
	assert.False(t, ok)
}

func TestPoseApproxEqualWrapsHeading(t *testing.T) {
	a := NewPose(1, 2, 1e-12)
	b := NewPose(1, 2, TwoPi-1e-12)
	assert.True(t, a.ApproxEqual(b, 1e-9))
	assert.False(t, a.ApproxEqual(NewPose(1.1, 2, 0), 1e-9))
}

func TestPoseNormalized(t *testing.T) {
	for _, theta := range []float64{7, -1, TwoPi, -TwoPi} {
		got := Pose{X: 1, Y: 2, Theta: theta}.Normalized()
		assert.Equal(t, NewPose(1, 2, theta), got)
		assert.GreaterOrEqual(t, got.Theta, 0.0)
		assert.Less(t, got.Theta, TwoPi)
	}
}

func TestFrameOffset(t *testing.T) {
	p := NewPose(1, 1, 0)
	up := FrameWorld.Offset(p, math.Pi/2, 2)
	assert.InDelta(t, 1.0, up.X, 1e-12)
	assert.InDelta(t, 3.0, up.Y, 1e-12)

	down := FrameCanvas.Offset(p, math.Pi/2, 2)
	assert.InDelta(t, 1.0, down.X, 1e-12)
	assert.InDelta(t, -1.0, down.Y, 1e-12)
}
