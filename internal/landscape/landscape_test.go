package landscape

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/optvis/internal/opt"
	"github.com/cwbudde/optvis/internal/step"
)

func TestLookupKnownMinima(t *testing.T) {
	tests := []struct {
		name string
		at   step.Vec2
		want float64
	}{
		{"sphere", step.Vec2{X: 0, Y: 0}, 0},
		{"booth", step.Vec2{X: 1, Y: 3}, 0},
		{"saddle", step.Vec2{X: 0, Y: 0}, 0},
		{"mexicanHat", step.Vec2{X: 0, Y: 0}, 0},
		{"ackley", step.Vec2{X: 0, Y: 0}, -1.4},
	}

	for _, tt := range tests {
		l, err := Lookup(tt.name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.name, err)
		}
		if got := l.Cost(tt.at); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s%+v = %v, want %v", tt.name, tt.at, got, tt.want)
		}
		if l.Bounds != PlaneBounds {
			t.Errorf("%s: bounds = %+v", tt.name, l.Bounds)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("rosenbrock")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Name != "rosenbrock" {
		t.Errorf("Name = %q", nf.Name)
	}
}

func TestNamesSortedAndComplete(t *testing.T) {
	names := Names()
	if len(names) != 7 {
		t.Fatalf("expected 7 surfaces, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
	if len(All()) != len(names) {
		t.Error("All and Names disagree")
	}
}

func TestFindMinimumSphere(t *testing.T) {
	l, _ := Lookup("sphere")
	m := FindMinimum(l, opt.NewMayfly(100, 20, 42))

	if m.Cost > 0.05 {
		t.Errorf("cost = %v, expected near 0", m.Cost)
	}
	if m.Position.Len() > 1 {
		t.Errorf("position = %+v, expected near origin", m.Position)
	}
}
