package step

import (
	"errors"
	"math"
	"testing"
)

func bowl(x, y float64) float64 { return x*x + y*y }

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestGradientMatchesAnalytic(t *testing.T) {
	tests := []struct {
		name string
		f    CostFunc
		p    Vec2
		want Vec2
	}{
		{"bowl", bowl, Vec2{1, 1}, Vec2{2, 2}},
		{"skewed", func(x, y float64) float64 { return 3*x*x + x*y - y }, Vec2{0.5, -2}, Vec2{1, -0.5}},
		{"cubic", func(x, y float64) float64 { return x * x * x }, Vec2{2, 0}, Vec2{12, 0}},
	}

	for _, tt := range tests {
		got := Gradient(tt.f, tt.p, DefaultDelta)
		// central differences are O(delta^2)
		if !near(got.X, tt.want.X, 1e-3) || !near(got.Y, tt.want.Y, 1e-3) {
			t.Errorf("%s: Gradient = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestGradientDescentOneStep(t *testing.T) {
	res, _ := GradientDescent{StepSize: 0.1}.Step(bowl, Vec2{1, 1}, State{}, false)

	if !res.HasGradient {
		t.Fatal("expected gradient")
	}
	if !near(res.Position.X, 0.8, 1e-9) || !near(res.Position.Y, 0.8, 1e-9) {
		t.Errorf("position = %+v, want (0.8, 0.8)", res.Position)
	}
	if !near(res.Gradient.X, 2, 1e-9) || !near(res.Gradient.Y, 2, 1e-9) {
		t.Errorf("gradient = %+v, want (2, 2)", res.Gradient)
	}
}

func TestRandomStepPicksUniqueMinimum(t *testing.T) {
	f := func(x, y float64) float64 {
		dx, dy := x-0.2, y+0.2
		return dx*dx + dy*dy
	}

	res, _ := RandomStep{StepSize: 0.2}.Step(f, Vec2{0, 0}, State{}, false)
	if res.Position != (Vec2{0.2, -0.2}) {
		t.Errorf("position = %+v, want (0.2, -0.2)", res.Position)
	}
	if res.HasGradient {
		t.Error("random step must not report a gradient")
	}
}

func TestRandomStepTieBreaking(t *testing.T) {
	// flat: staying put is first in visiting order
	flat := func(x, y float64) float64 { return 1 }
	res, _ := RandomStep{StepSize: 1}.Step(flat, Vec2{3, 4}, State{}, false)
	if res.Position != (Vec2{3, 4}) {
		t.Errorf("flat: position = %+v, want (3, 4)", res.Position)
	}

	// (1,0) and (-1,0) tie; (1,0) is visited first. The diagonals tie too
	// but only match, never beat.
	ridge := func(x, y float64) float64 { return -(x * x) }
	res, _ = RandomStep{StepSize: 1}.Step(ridge, Vec2{0, 0}, State{}, false)
	if res.Position != (Vec2{1, 0}) {
		t.Errorf("ridge: position = %+v, want (1, 0)", res.Position)
	}
}

func TestNeighborsOrder(t *testing.T) {
	cands := Neighbors(bowl, Vec2{0, 0}, 0.5)
	if len(cands) != 9 {
		t.Fatalf("expected 9 candidates, got %d", len(cands))
	}
	want := []Vec2{{0, 0}, {0, 1}, {1, 0}, {-1, 0}, {0, -1}, {-1, 1}, {1, -1}, {-1, -1}, {1, 1}}
	for i, c := range cands {
		if c.Offset != want[i] {
			t.Errorf("candidate %d offset = %+v, want %+v", i, c.Offset, want[i])
		}
		if c.Cost != bowl(c.Position.X, c.Position.Y) {
			t.Errorf("candidate %d cost mismatch", i)
		}
	}
}

func TestNewtonConvergesOnQuadraticInOneStep(t *testing.T) {
	starts := []Vec2{{1, 1}, {-3, 7}, {11, 11}, {0.2, -5}}
	for _, p := range starts {
		res, _ := Newton{}.Step(bowl, p, State{}, false)
		if res.Degenerate {
			t.Fatalf("start %+v: unexpected degenerate step", p)
		}
		if !near(res.Position.X, 0, 1e-6) || !near(res.Position.Y, 0, 1e-6) {
			t.Errorf("start %+v: position = %+v, want origin", p, res.Position)
		}
	}
}

func TestNewtonDegenerateHessian(t *testing.T) {
	// no curvature along y: det H = 0
	f := func(x, y float64) float64 { return x * x }
	p := Vec2{1.5, -2}

	res, _ := Newton{}.Step(f, p, State{}, false)
	if !res.Degenerate {
		t.Error("expected degenerate step")
	}
	if res.Position != p {
		t.Errorf("position moved to %+v", res.Position)
	}
	if res.HasGradient {
		t.Error("degenerate step must not report a gradient")
	}
}

func TestHessianOfBowl(t *testing.T) {
	h := Hessian(bowl, Vec2{2, -1}, DefaultDelta)
	want := Mat2{{2, 0}, {0, 2}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !near(h[i][j], want[i][j], 1e-6) {
				t.Errorf("H[%d][%d] = %v, want %v", i, j, h[i][j], want[i][j])
			}
		}
	}
	if !near(h.Det(), 4, 1e-5) {
		t.Errorf("det = %v, want 4", h.Det())
	}
}

func TestMat2Inverse(t *testing.T) {
	m := Mat2{{4, 7}, {2, 6}}
	inv := m.Inverse()
	v := inv.MulVec(m.MulVec(Vec2{1.5, -3}))
	if !near(v.X, 1.5, 1e-12) || !near(v.Y, -3, 1e-12) {
		t.Errorf("inverse round trip = %+v", v)
	}
}

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	res, st := Adam{StepSize: 0.1}.Step(bowl, Vec2{1, 1}, NewState(), false)

	// bias correction makes the first update lr * sign(g)
	if !near(res.Position.X, 0.9, 1e-6) || !near(res.Position.Y, 0.9, 1e-6) {
		t.Errorf("position = %+v, want (0.9, 0.9)", res.Position)
	}
	if st.T != 2 {
		t.Errorf("T = %d, want 2", st.T)
	}
}

func TestNadamFirstStep(t *testing.T) {
	res, _ := Nadam{Adam{StepSize: 0.1, Beta1: 0.9}}.Step(bowl, Vec2{1, 1}, NewState(), false)

	// mHat = beta1*g + g on the first step
	want := 1 - 0.1*1.9
	if !near(res.Position.X, want, 1e-6) || !near(res.Position.Y, want, 1e-6) {
		t.Errorf("position = %+v, want (%v, %v)", res.Position, want, want)
	}
}

func TestZeroStateIsFresh(t *testing.T) {
	a := Adam{StepSize: 0.05}
	r1, s1 := a.Step(bowl, Vec2{2, -1}, State{}, false)
	r2, s2 := a.Step(bowl, Vec2{2, -1}, NewState(), false)
	if r1 != r2 || s1 != s2 {
		t.Errorf("zero state %+v/%+v differs from NewState %+v/%+v", r1, s1, r2, s2)
	}
}

func TestRestartReproducesSequence(t *testing.T) {
	for _, stepper := range []Stepper{
		Adam{StepSize: 0.1, Beta1: 0.99},
		Nadam{Adam{StepSize: 0.1, Beta1: 0.99}},
	} {
		run := func(st State) []Vec2 {
			pos := Vec2{11, 11}
			var out []Vec2
			for i := 0; i < 20; i++ {
				var res Result
				res, st = stepper.Step(bowl, pos, st, i == 0)
				pos = res.Position
				out = append(out, pos)
			}
			return out
		}

		// dirty history from an unrelated run
		dirty := NewState()
		pos := Vec2{-4, 3}
		for i := 0; i < 15; i++ {
			var res Result
			res, dirty = stepper.Step(bowl, pos, dirty, false)
			pos = res.Position
		}

		a := run(dirty)
		b := run(NewState())
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%T step %d: %+v != %+v", stepper, i, a[i], b[i])
			}
		}
	}
}

func TestStatelessVariantsAreIdempotent(t *testing.T) {
	f := func(x, y float64) float64 { return math.Sin(x) + y*y*x }
	p := Vec2{0.7, -1.3}
	st := State{M: [2]float64{1, 2}, V: [2]float64{3, 4}, T: 9}

	for _, s := range []Stepper{GradientDescent{}, RandomStep{}, Newton{}} {
		r1, st1 := s.Step(f, p, st, false)
		r2, st2 := s.Step(f, p, st, true)
		if r1 != r2 {
			t.Errorf("%T: %+v != %+v", s, r1, r2)
		}
		if st1 != st || st2 != st {
			t.Errorf("%T modified state", s)
		}
	}
}

func TestNaNFlowsThrough(t *testing.T) {
	f := func(x, y float64) float64 { return math.NaN() }
	res, _ := GradientDescent{}.Step(f, Vec2{1, 1}, State{}, false)
	if !math.IsNaN(res.Position.X) {
		t.Errorf("expected NaN position, got %+v", res.Position)
	}
}

func TestNewAndParse(t *testing.T) {
	for _, a := range Algorithms() {
		parsed, err := ParseAlgorithm(string(a))
		if err != nil || parsed != a {
			t.Errorf("ParseAlgorithm(%q) = %q, %v", a, parsed, err)
		}
		if _, err := New(a, Params{}); err != nil {
			t.Errorf("New(%q): %v", a, err)
		}
	}

	if _, err := ParseAlgorithm("sgd"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm, got %v", err)
	}
	if _, err := New("sgd", Params{}); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm, got %v", err)
	}
}
