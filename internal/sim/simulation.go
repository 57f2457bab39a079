// Package sim drives the step engine the way the visualizer's render loop
// does: one step per fixed interval of elapsed time, with a caller-triggered
// restart that clears the optimizer's moment state.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/step"
)

// displayEpsilon is the gradient magnitude shown as zero.
const displayEpsilon = 1e-4

// Neighbor is one random-step candidate as drawn around the marker.
type Neighbor struct {
	step.Candidate
	Better bool `json:"better"`
}

// Frame is what the render layer needs after one step.
type Frame struct {
	Iteration   int       `json:"iteration"`
	Position    step.Vec2 `json:"position"`
	Cost        float64   `json:"cost"`
	Gradient    step.Vec2 `json:"gradient"`
	HasGradient bool      `json:"hasGradient"`

	// Direction is the descent arrow, the negated gradient.
	Direction step.Vec2 `json:"direction"`

	Degenerate bool       `json:"degenerate,omitempty"`
	Neighbors  []Neighbor `json:"neighbors,omitempty"`

	// Preview marks the first half of a paced random step: the neighbours
	// are shown and the position has not moved yet.
	Preview bool `json:"preview,omitempty"`
}

// DisplayGradient returns the gradient with near-zero components snapped to 0.
func (f Frame) DisplayGradient() step.Vec2 {
	g := f.Gradient
	if math.Abs(g.X) < displayEpsilon {
		g.X = 0
	}
	if math.Abs(g.Y) < displayEpsilon {
		g.Y = 0
	}
	return g
}

// Simulation owns the position and optimizer state of one run.
type Simulation struct {
	cfg     Config
	surface landscape.Landscape
	stepper step.Stepper
	tracker *ConvergenceTracker

	pos       step.Vec2
	state     step.State
	restart   bool
	iteration int
	elapsed   time.Duration
	previewed bool
}

// New builds a simulation positioned at cfg.Start.
func New(cfg Config) (*Simulation, error) {
	cfg = cfg.WithPresetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	surface, err := landscape.Lookup(cfg.Function)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	stepper, err := step.New(cfg.Algorithm, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := &Simulation{
		cfg:     cfg,
		surface: surface,
		stepper: stepper,
		tracker: NewConvergenceTracker(cfg.Convergence),
	}
	s.Reset()
	return s, nil
}

// Config returns the effective config, presets applied.
func (s *Simulation) Config() Config { return s.cfg }

// Landscape returns the surface being descended.
func (s *Simulation) Landscape() landscape.Landscape { return s.surface }

// Position returns the current position.
func (s *Simulation) Position() step.Vec2 { return s.pos }

// Cost returns the cost at the current position.
func (s *Simulation) Cost() float64 { return s.surface.Cost(s.pos) }

// State returns the optimizer's moment state.
func (s *Simulation) State() step.State { return s.state }

// Iteration returns the number of steps taken since the last reset.
func (s *Simulation) Iteration() int { return s.iteration }

// Reset returns to the start position and flags the next step to discard
// the optimizer's moment state.
func (s *Simulation) Reset() {
	s.pos = s.cfg.Start
	s.state = step.NewState()
	s.restart = true
	s.iteration = 0
	s.elapsed = 0
	s.previewed = false
	s.tracker.Reset()
}

// Restore continues a run from a saved position and moment state.
func (s *Simulation) Restore(pos step.Vec2, state step.State, iteration int) {
	s.pos = pos
	s.state = state
	s.restart = false
	s.iteration = iteration
	s.elapsed = 0
	s.previewed = false
	s.tracker.Reset()
}

// Advance adds dt of elapsed time and produces a frame once more than one
// update interval has accumulated. It reports whether a frame was produced.
//
// A random step spans two intervals: the first yields a Preview frame with
// the neighbours around the unmoved position, the second takes the step.
func (s *Simulation) Advance(dt time.Duration) (Frame, bool) {
	s.elapsed += dt
	if s.elapsed <= s.cfg.UpdateInterval {
		return Frame{}, false
	}
	s.elapsed = 0

	if s.cfg.Algorithm != step.AlgRandom {
		return s.Step(), true
	}
	if !s.previewed {
		s.previewed = true
		return Frame{
			Iteration: s.iteration,
			Position:  s.pos,
			Cost:      s.Cost(),
			Neighbors: s.neighbors(),
			Preview:   true,
		}, true
	}
	s.previewed = false
	return s.step(false), true
}

// Step takes exactly one optimization step. A random step carries its
// neighbours in the same frame.
func (s *Simulation) Step() Frame {
	return s.step(true)
}

func (s *Simulation) step(withNeighbors bool) Frame {
	var neighbors []Neighbor
	if withNeighbors && s.cfg.Algorithm == step.AlgRandom {
		neighbors = s.neighbors()
	}

	res, st := s.stepper.Step(s.surface.Fn, s.pos, s.state, s.restart)
	s.restart = false
	s.state = st
	s.pos = res.Position
	s.iteration++

	f := Frame{
		Iteration:   s.iteration,
		Position:    res.Position,
		Cost:        s.surface.Cost(res.Position),
		Gradient:    res.Gradient,
		HasGradient: res.HasGradient,
		Degenerate:  res.Degenerate,
		Neighbors:   neighbors,
	}
	if res.HasGradient {
		f.Direction = res.Gradient.Scale(-1)
	}
	if res.Degenerate {
		slog.Debug("Degenerate Hessian, step skipped", "iteration", s.iteration, "x", s.pos.X, "y", s.pos.Y)
	}
	return f
}

func (s *Simulation) neighbors() []Neighbor {
	current := s.surface.Cost(s.pos)
	cands := step.Neighbors(s.surface.Fn, s.pos, s.cfg.Params.StepSize)
	out := make([]Neighbor, len(cands))
	for i, c := range cands {
		out[i] = Neighbor{Candidate: c, Better: c.Cost < current}
	}
	return out
}

// Converged feeds a frame's cost to the convergence tracker.
func (s *Simulation) Converged(f Frame) bool {
	return s.tracker.Update(f.Cost)
}

// BestCost returns the lowest cost seen since the last reset or restore,
// or the current cost before the first step.
func (s *Simulation) BestCost() float64 {
	if best := s.tracker.BestCost(); !math.IsInf(best, 1) {
		return best
	}
	return s.Cost()
}

// Run steps until MaxSteps, convergence, or ctx is done, calling onFrame
// after every step. onFrame may be nil.
func (s *Simulation) Run(ctx context.Context, onFrame func(Frame)) (Frame, error) {
	var last Frame
	for s.cfg.MaxSteps == 0 || s.iteration < s.cfg.MaxSteps {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		default:
		}

		last = s.Step()
		if onFrame != nil {
			onFrame(last)
		}
		if s.Converged(last) {
			break
		}
	}
	return last, nil
}
