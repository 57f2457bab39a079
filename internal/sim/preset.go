package sim

import (
	"fmt"

	"github.com/cwbudde/optvis/internal/step"
)

// ParamSpec describes one tunable parameter as the control panel shows it.
type ParamSpec struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
	Label string  `json:"label"`
}

// Parameter keys.
const (
	KeyStepSize       = "step_size"
	KeyBeta1          = "beta1"
	KeyBeta2          = "beta2"
	KeyUpdateInterval = "update_interval"
)

// Preset is the panel configuration of one algorithm.
type Preset struct {
	Algorithm step.Algorithm       `json:"algorithm"`
	Name      string               `json:"name"`
	Params    map[string]ParamSpec `json:"params"`
}

func interval(value, maxSeconds, inc float64) ParamSpec {
	return ParamSpec{Value: value, Min: 0.01, Max: maxSeconds, Step: inc, Label: "Update Interval (s)"}
}

var presets = map[step.Algorithm]Preset{
	step.AlgGradient: {
		Algorithm: step.AlgGradient,
		Name:      "Gradient Descent",
		Params: map[string]ParamSpec{
			KeyStepSize:       {Value: 0.1, Min: 0.01, Max: 10, Step: 0.01, Label: "Step Size"},
			KeyUpdateInterval: interval(0.4, 2, 0.05),
		},
	},
	step.AlgRandom: {
		Algorithm: step.AlgRandom,
		Name:      "Random Step",
		Params: map[string]ParamSpec{
			KeyStepSize:       {Value: 0.2, Min: 0.01, Max: 10, Step: 0.01, Label: "Step Size"},
			KeyUpdateInterval: interval(0.4, 2, 0.05),
		},
	},
	step.AlgNewton: {
		Algorithm: step.AlgNewton,
		Name:      "Newton's Method",
		Params: map[string]ParamSpec{
			KeyUpdateInterval: interval(0.4, 2, 0.05),
		},
	},
	step.AlgAdam: {
		Algorithm: step.AlgAdam,
		Name:      "Adam",
		Params:    adamParams(),
	},
	step.AlgNadam: {
		Algorithm: step.AlgNadam,
		Name:      "Nadam",
		Params:    adamParams(),
	},
}

func adamParams() map[string]ParamSpec {
	return map[string]ParamSpec{
		KeyStepSize:       {Value: 0.1, Min: 0.01, Max: 10, Step: 0.01, Label: "Learning Rate"},
		KeyBeta1:          {Value: 0.99, Min: 0.5, Max: 0.999, Step: 0.01, Label: "Beta 1 (Momentum)"},
		KeyBeta2:          {Value: 0.999, Min: 0.5, Max: 0.999, Step: 0.001, Label: "Beta 2 (RMS)"},
		KeyUpdateInterval: interval(0.1, 1, 0.01),
	}
}

// PresetFor returns the panel preset of alg.
func PresetFor(alg step.Algorithm) (Preset, error) {
	p, ok := presets[alg]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", step.ErrUnknownAlgorithm, string(alg))
	}
	return p, nil
}

// Presets returns every preset in display order.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, alg := range step.Algorithms() {
		out = append(out, presets[alg])
	}
	return out
}

// Defaults returns the preset values of alg as engine parameters and an
// update interval in seconds.
func (p Preset) Defaults() (step.Params, float64) {
	var params step.Params
	if s, ok := p.Params[KeyStepSize]; ok {
		params.StepSize = s.Value
	}
	if s, ok := p.Params[KeyBeta1]; ok {
		params.Beta1 = s.Value
	}
	if s, ok := p.Params[KeyBeta2]; ok {
		params.Beta2 = s.Value
	}
	return params, p.Params[KeyUpdateInterval].Value
}
