package step

import "math"

const (
	// DefaultNewtonStep scales the full Newton step.
	DefaultNewtonStep = 1.0

	// SingularDet is the determinant magnitude below which the Hessian is
	// treated as singular and the step is skipped.
	SingularDet = 1e-6
)

// Newton takes a second-order step using a finite-difference Hessian.
type Newton struct {
	StepSize float64
	Delta    float64
}

func (n Newton) Step(f CostFunc, pos Vec2, st State, _ bool) (Result, State) {
	delta := orDefault(n.Delta, DefaultDelta)
	grad := Gradient(f, pos, delta)
	h := Hessian(f, pos, delta)

	if math.Abs(h.Det()) < SingularDet {
		return Result{Position: pos, Degenerate: true}, st
	}

	dir := h.Inverse().MulVec(grad)
	next := pos.Sub(dir.Scale(orDefault(n.StepSize, DefaultNewtonStep)))
	return Result{Position: next, Gradient: grad, HasGradient: true}, st
}
