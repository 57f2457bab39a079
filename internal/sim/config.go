package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/optvis/internal/step"
)

// ErrInvalidConfig wraps every validation failure of a Config.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config describes one simulation run.
type Config struct {
	Function  string         `json:"function"`
	Algorithm step.Algorithm `json:"algorithm"`
	Start     step.Vec2      `json:"start"`
	Params    step.Params    `json:"params"`

	// UpdateInterval is the simulated time between two steps. It is
	// encoded as seconds, like the run request.
	UpdateInterval time.Duration `json:"-"`

	// MaxSteps bounds Run; 0 means unbounded.
	MaxSteps int `json:"maxSteps,omitempty"`

	Convergence ConvergenceConfig `json:"convergence"`
}

// DefaultConfig mirrors the panel's initial state.
func DefaultConfig() Config {
	cfg := Config{
		Function:    "ackley",
		Algorithm:   step.AlgGradient,
		Start:       step.Vec2{X: 11, Y: 11},
		MaxSteps:    200,
		Convergence: DisabledConvergenceConfig(),
	}
	return cfg.WithPresetDefaults()
}

// WithPresetDefaults fills zero parameters and interval from the
// algorithm's preset.
func (c Config) WithPresetDefaults() Config {
	p, err := PresetFor(c.Algorithm)
	if err != nil {
		return c
	}
	def, secs := p.Defaults()
	if c.Params.StepSize == 0 {
		c.Params.StepSize = def.StepSize
	}
	if c.Params.Beta1 == 0 {
		c.Params.Beta1 = def.Beta1
	}
	if c.Params.Beta2 == 0 {
		c.Params.Beta2 = def.Beta2
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = time.Duration(secs * float64(time.Second))
	}
	return c
}

// Validate checks the config against the algorithm's preset ranges.
func (c Config) Validate() error {
	p, err := PresetFor(c.Algorithm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Function == "" {
		return fmt.Errorf("%w: function is required", ErrInvalidConfig)
	}
	if math.IsNaN(c.Start.X) || math.IsNaN(c.Start.Y) || math.IsInf(c.Start.X, 0) || math.IsInf(c.Start.Y, 0) {
		return fmt.Errorf("%w: start position must be finite", ErrInvalidConfig)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: maxSteps must be >= 0", ErrInvalidConfig)
	}

	check := func(key string, v float64) error {
		spec, ok := p.Params[key]
		if !ok || v == 0 {
			return nil
		}
		if v < spec.Min || v > spec.Max {
			return fmt.Errorf("%w: %s = %g outside [%g, %g]", ErrInvalidConfig, key, v, spec.Min, spec.Max)
		}
		return nil
	}
	for _, kv := range []struct {
		key string
		v   float64
	}{
		{KeyStepSize, c.Params.StepSize},
		{KeyBeta1, c.Params.Beta1},
		{KeyBeta2, c.Params.Beta2},
		{KeyUpdateInterval, c.UpdateInterval.Seconds()},
	} {
		if err := check(kv.key, kv.v); err != nil {
			return err
		}
	}
	return nil
}

type configJSON struct {
	Function       string            `json:"function"`
	Algorithm      step.Algorithm    `json:"algorithm"`
	Start          step.Vec2         `json:"start"`
	Params         step.Params       `json:"params"`
	UpdateInterval float64           `json:"updateInterval"`
	MaxSteps       int               `json:"maxSteps,omitempty"`
	Convergence    ConvergenceConfig `json:"convergence"`
}

// MarshalJSON writes UpdateInterval in seconds.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		Function:       c.Function,
		Algorithm:      c.Algorithm,
		Start:          c.Start,
		Params:         c.Params,
		UpdateInterval: c.UpdateInterval.Seconds(),
		MaxSteps:       c.MaxSteps,
		Convergence:    c.Convergence,
	})
}

// UnmarshalJSON reads UpdateInterval in seconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	var v configJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Config{
		Function:       v.Function,
		Algorithm:      v.Algorithm,
		Start:          v.Start,
		Params:         v.Params,
		UpdateInterval: time.Duration(math.Round(v.UpdateInterval * float64(time.Second))),
		MaxSteps:       v.MaxSteps,
		Convergence:    v.Convergence,
	}
	return nil
}
