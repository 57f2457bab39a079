package step

// DefaultDelta is the finite-difference step used by every gradient estimate.
const DefaultDelta = 0.01

// Gradient estimates the partial derivatives of f at p by central differences.
func Gradient(f CostFunc, p Vec2, delta float64) Vec2 {
	if delta == 0 {
		delta = DefaultDelta
	}
	return Vec2{
		X: (f(p.X+delta, p.Y) - f(p.X-delta, p.Y)) / (2 * delta),
		Y: (f(p.X, p.Y+delta) - f(p.X, p.Y-delta)) / (2 * delta),
	}
}

// Hessian estimates the matrix of second derivatives of f at p by forward
// differences of the central-difference gradient. Row i holds the
// derivatives of grad_i.
func Hessian(f CostFunc, p Vec2, delta float64) Mat2 {
	if delta == 0 {
		delta = DefaultDelta
	}
	g0 := Gradient(f, p, delta)
	gx := Gradient(f, Vec2{p.X + delta, p.Y}, delta)
	gy := Gradient(f, Vec2{p.X, p.Y + delta}, delta)

	return Mat2{
		{(gx.X - g0.X) / delta, (gy.X - g0.X) / delta},
		{(gx.Y - g0.Y) / delta, (gy.Y - g0.Y) / delta},
	}
}

// neighborOffsets is the fixed visiting order of the random step. Staying put
// comes first so that it wins every tie.
var neighborOffsets = [9][2]float64{
	{0, 0}, {0, 1}, {1, 0}, {-1, 0}, {0, -1}, {-1, 1}, {1, -1}, {-1, -1}, {1, 1},
}

// Candidate is one evaluated neighbour of a random step.
type Candidate struct {
	Offset   Vec2    `json:"offset"`
	Position Vec2    `json:"position"`
	Cost     float64 `json:"cost"`
}

// Neighbors evaluates f at the 9 grid neighbours of p spaced stepSize apart,
// in visiting order.
func Neighbors(f CostFunc, p Vec2, stepSize float64) []Candidate {
	out := make([]Candidate, 0, len(neighborOffsets))
	for _, o := range neighborOffsets {
		pos := Vec2{p.X + o[0]*stepSize, p.Y + o[1]*stepSize}
		out = append(out, Candidate{
			Offset:   Vec2{o[0], o[1]},
			Position: pos,
			Cost:     f(pos.X, pos.Y),
		})
	}
	return out
}
