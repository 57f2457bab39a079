package step

// DefaultDescentStep is the gradient descent learning rate.
const DefaultDescentStep = 0.1

// GradientDescent moves against the finite-difference gradient.
type GradientDescent struct {
	StepSize float64
	Delta    float64
}

func (g GradientDescent) Step(f CostFunc, pos Vec2, st State, _ bool) (Result, State) {
	grad := Gradient(f, pos, orDefault(g.Delta, DefaultDelta))
	next := pos.Sub(grad.Scale(orDefault(g.StepSize, DefaultDescentStep)))
	return Result{Position: next, Gradient: grad, HasGradient: true}, st
}

// DefaultRandomStep is the neighbour spacing of the random step.
const DefaultRandomStep = 0.2

// RandomStep moves to the cheapest of the 9 grid neighbours, including the
// current position. Ties go to the first candidate in visiting order.
type RandomStep struct {
	StepSize float64
}

func (r RandomStep) Step(f CostFunc, pos Vec2, st State, _ bool) (Result, State) {
	cands := Neighbors(f, pos, orDefault(r.StepSize, DefaultRandomStep))
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Cost < best.Cost {
			best = c
		}
	}
	return Result{Position: best.Position}, st
}
