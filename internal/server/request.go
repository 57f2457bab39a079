package server

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/step"
)

// RunRequest is the JSON body of POST /api/v1/runs. Omitted fields take the
// panel defaults.
type RunRequest struct {
	Function  string   `json:"function"`
	Algorithm string   `json:"algorithm"`
	StartX    *float64 `json:"startX,omitempty"`
	StartY    *float64 `json:"startY,omitempty"`

	StepSize float64 `json:"stepSize,omitempty"`
	Beta1    float64 `json:"beta1,omitempty"`
	Beta2    float64 `json:"beta2,omitempty"`
	Epsilon  float64 `json:"epsilon,omitempty"`

	// UpdateInterval is in seconds.
	UpdateInterval float64 `json:"updateInterval,omitempty"`

	MaxSteps        int                    `json:"maxSteps,omitempty"`
	CheckpointEvery int                    `json:"checkpointEvery,omitempty"`
	Convergence     *sim.ConvergenceConfig `json:"convergence,omitempty"`
}

// Config converts the request into a validated simulation config.
func (req RunRequest) Config() (sim.Config, error) {
	cfg := sim.DefaultConfig()
	cfg.Params = step.Params{}
	cfg.UpdateInterval = 0

	if req.Function != "" {
		cfg.Function = req.Function
	}
	if _, err := landscape.Lookup(cfg.Function); err != nil {
		return sim.Config{}, fmt.Errorf("%w: %w", sim.ErrInvalidConfig, err)
	}

	if req.Algorithm != "" {
		alg, err := step.ParseAlgorithm(req.Algorithm)
		if err != nil {
			return sim.Config{}, fmt.Errorf("%w: %w", sim.ErrInvalidConfig, err)
		}
		cfg.Algorithm = alg
	}

	if req.StartX != nil {
		cfg.Start.X = *req.StartX
	}
	if req.StartY != nil {
		cfg.Start.Y = *req.StartY
	}

	cfg.Params = step.Params{
		StepSize: req.StepSize,
		Beta1:    req.Beta1,
		Beta2:    req.Beta2,
		Epsilon:  req.Epsilon,
	}
	if req.UpdateInterval > 0 {
		cfg.UpdateInterval = time.Duration(math.Round(req.UpdateInterval * float64(time.Second)))
	}
	if req.MaxSteps > 0 {
		cfg.MaxSteps = req.MaxSteps
	}
	if req.Convergence != nil {
		cfg.Convergence = *req.Convergence
	}
	if req.CheckpointEvery < 0 {
		return sim.Config{}, fmt.Errorf("%w: checkpointEvery must be >= 0", sim.ErrInvalidConfig)
	}

	cfg = cfg.WithPresetDefaults()
	if err := cfg.Validate(); err != nil {
		return sim.Config{}, err
	}
	return cfg, nil
}
