// Package step implements single-step 2D optimizers over a caller-supplied
// cost function: gradient descent, random step, Newton's method, Adam and
// Nadam. Moment state is an explicit value owned by the caller.
package step

import (
	"errors"
	"fmt"
)

// ErrUnknownAlgorithm is returned by ParseAlgorithm for unrecognised names.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Result is the outcome of one step.
type Result struct {
	Position Vec2 `json:"position"`
	Gradient Vec2 `json:"gradient"`

	// HasGradient is false for random step and for a degenerate Newton step.
	HasGradient bool `json:"hasGradient"`

	// Degenerate reports a skipped Newton step (near-singular Hessian).
	Degenerate bool `json:"degenerate,omitempty"`
}

// State is the Adam/Nadam moment state carried between steps of one run.
// The zero value is equivalent to NewState().
type State struct {
	M [2]float64 `json:"m"`
	V [2]float64 `json:"v"`
	T int        `json:"t"`
}

// NewState returns zeroed moments with T = 1.
func NewState() State {
	return State{T: 1}
}

// Stepper advances a position by one optimization step.
//
// restart discards st before the step is taken; the same call still steps.
// Stateless variants return st unchanged.
type Stepper interface {
	Step(f CostFunc, pos Vec2, st State, restart bool) (Result, State)
}

// Algorithm names a Stepper variant.
type Algorithm string

const (
	AlgGradient Algorithm = "gradient"
	AlgRandom   Algorithm = "random"
	AlgNewton   Algorithm = "newton"
	AlgAdam     Algorithm = "adam"
	AlgNadam    Algorithm = "nadam"
)

// Algorithms lists every variant in display order.
func Algorithms() []Algorithm {
	return []Algorithm{AlgGradient, AlgRandom, AlgNewton, AlgAdam, AlgNadam}
}

// ParseAlgorithm converts a user-supplied name into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Params are the numeric knobs shared by all variants. Zero fields take the
// variant's default.
type Params struct {
	StepSize float64 `json:"stepSize,omitempty"`
	Beta1    float64 `json:"beta1,omitempty"`
	Beta2    float64 `json:"beta2,omitempty"`
	Epsilon  float64 `json:"epsilon,omitempty"`
	Delta    float64 `json:"delta,omitempty"`
}

// New builds the Stepper for alg.
func New(alg Algorithm, p Params) (Stepper, error) {
	switch alg {
	case AlgGradient:
		return GradientDescent{StepSize: p.StepSize, Delta: p.Delta}, nil
	case AlgRandom:
		return RandomStep{StepSize: p.StepSize}, nil
	case AlgNewton:
		return Newton{StepSize: p.StepSize, Delta: p.Delta}, nil
	case AlgAdam:
		return Adam{StepSize: p.StepSize, Beta1: p.Beta1, Beta2: p.Beta2, Epsilon: p.Epsilon, Delta: p.Delta}, nil
	case AlgNadam:
		return Nadam{Adam{StepSize: p.StepSize, Beta1: p.Beta1, Beta2: p.Beta2, Epsilon: p.Epsilon, Delta: p.Delta}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(alg))
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
