package landscape

import (
	"log/slog"

	"github.com/cwbudde/optvis/internal/opt"
	"github.com/cwbudde/optvis/internal/step"
)

// Minimum is a reference global minimum of a surface within its bounds.
type Minimum struct {
	Position step.Vec2 `json:"position"`
	Cost     float64   `json:"cost"`
}

// FindMinimum searches the surface's bounds with a population optimizer.
// The result is a reference point for judging where a local method ended up,
// not a certified optimum.
func FindMinimum(l Landscape, optimizer opt.Optimizer) Minimum {
	lower := []float64{l.Bounds.Min, l.Bounds.Min}
	upper := []float64{l.Bounds.Max, l.Bounds.Max}

	eval := func(p []float64) float64 {
		return l.Fn(p[0], p[1])
	}

	best, cost := optimizer.Run(eval, lower, upper, 2)

	m := Minimum{Position: step.Vec2{X: best[0], Y: best[1]}, Cost: cost}
	slog.Debug("Reference minimum found", "function", l.Name, "x", m.Position.X, "y", m.Position.Y, "cost", cost)
	return m
}
