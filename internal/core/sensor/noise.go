package sensor

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// NoiseModel perturbs readings with zero-mean Gaussian noise. Results are
// clamped back into [0, max range]. A model is deterministic for a given
// seed but not safe for concurrent use.
type NoiseModel struct {
	dist distuv.Normal
}

// NewNoiseModel returns a model with standard deviation sigma (meters).
func NewNoiseModel(sigma float64, seed uint64) *NoiseModel {
	return &NoiseModel{
		dist: distuv.Normal{
			Mu:    0,
			Sigma: sigma,
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// Apply returns a noisy copy of r.
func (n *NoiseModel) Apply(r Reading, maxRange float64) Reading {
	out := r.Clone()
	if n == nil || n.dist.Sigma <= 0 {
		return out
	}
	for i, d := range out {
		out[i] = clamp(d+n.dist.Rand(), maxRange)
	}
	return out
}
