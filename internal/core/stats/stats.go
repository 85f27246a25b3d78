// Package stats summarizes repeated motion trials.
package stats

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrTooFewSamples is returned when a summary needs more samples.
	ErrTooFewSamples = errors.New("too few samples")
	// ErrLengthMismatch is returned when paired samples differ in length.
	ErrLengthMismatch = errors.New("sample length mismatch")
)

// Summary is the mean and population variance of a sample.
type Summary struct {
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// Summarize returns the mean and the population variance (divided by n).
func Summarize(xs []float64) (Summary, error) {
	if len(xs) == 0 {
		return Summary{}, fmt.Errorf("%w: need at least 1", ErrTooFewSamples)
	}
	mean, variance := stat.PopMeanVariance(xs, nil)
	return Summary{N: len(xs), Mean: mean, Variance: variance}, nil
}

// ErrorSummary describes the deviation of real values from expected ones.
type ErrorSummary struct {
	N int `json:"n"`
	// MeanAbs is the mean absolute error.
	MeanAbs float64 `json:"mean_abs"`
	// Variance is the sum of squared errors divided by n-2.
	Variance float64 `json:"variance"`
}

// Errors compares expected and real samples pairwise. It needs at least
// three pairs.
func Errors(expected, real []float64) (ErrorSummary, error) {
	if len(expected) != len(real) {
		return ErrorSummary{}, fmt.Errorf("%w: %d expected, %d real", ErrLengthMismatch, len(expected), len(real))
	}
	n := len(expected)
	if n < 3 {
		return ErrorSummary{}, fmt.Errorf("%w: need at least 3, got %d", ErrTooFewSamples, n)
	}

	diff := make([]float64, n)
	floats.SubTo(diff, expected, real)
	return ErrorSummary{
		N:        n,
		MeanAbs:  floats.Norm(diff, 1) / float64(n),
		Variance: floats.Dot(diff, diff) / float64(n-2),
	}, nil
}
