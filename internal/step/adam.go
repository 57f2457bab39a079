package step

import "math"

// Adam defaults.
const (
	DefaultAdamStep = 0.1
	DefaultBeta1    = 0.9
	DefaultBeta2    = 0.999
	DefaultEpsilon  = 1e-8
)

// Adam is adaptive moment estimation with bias correction.
type Adam struct {
	StepSize float64
	Beta1    float64
	Beta2    float64
	Epsilon  float64
	Delta    float64
}

func (a Adam) Step(f CostFunc, pos Vec2, st State, restart bool) (Result, State) {
	return a.step(f, pos, st, restart, false)
}

// Nadam is Adam with a Nesterov-corrected first moment.
type Nadam struct {
	Adam
}

func (n Nadam) Step(f CostFunc, pos Vec2, st State, restart bool) (Result, State) {
	return n.step(f, pos, st, restart, true)
}

func (a Adam) step(f CostFunc, pos Vec2, st State, restart, nesterov bool) (Result, State) {
	var (
		lr    = orDefault(a.StepSize, DefaultAdamStep)
		beta1 = orDefault(a.Beta1, DefaultBeta1)
		beta2 = orDefault(a.Beta2, DefaultBeta2)
		eps   = orDefault(a.Epsilon, DefaultEpsilon)
	)

	grad := Gradient(f, pos, orDefault(a.Delta, DefaultDelta))
	if restart || st.T < 1 {
		st = NewState()
	}

	bc1 := 1 - math.Pow(beta1, float64(st.T))
	bc2 := 1 - math.Pow(beta2, float64(st.T))

	next := pos
	for i := 0; i < 2; i++ {
		g := grad.At(i)
		st.M[i] = beta1*st.M[i] + (1-beta1)*g
		st.V[i] = beta2*st.V[i] + (1-beta2)*g*g

		mHat := st.M[i] / bc1
		vHat := st.V[i] / bc2
		if nesterov {
			mHat = beta1*mHat + (1-beta1)/bc1*g
		}
		next.set(i, next.At(i)-lr*mHat/(math.Sqrt(vHat)+eps))
	}
	st.T++

	return Result{Position: next, Gradient: grad, HasGradient: true}, st
}
