// Package landscape holds the named 2D cost surfaces the visualizer offers.
package landscape

import (
	"math"
	"sort"

	"github.com/cwbudde/optvis/internal/step"
)

// Bounds is the square sampling domain of a surface.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PlaneBounds covers the 30x30 plane centred on the origin.
var PlaneBounds = Bounds{Min: -15, Max: 15}

// Landscape is a named cost surface.
type Landscape struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Fn          step.CostFunc `json:"-"`
	Bounds      Bounds        `json:"bounds"`
}

// Cost evaluates the surface at p.
func (l Landscape) Cost(p step.Vec2) float64 {
	return l.Fn(p.X, p.Y)
}

// NotFoundError is returned by Lookup for an unknown surface name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "unknown cost function: " + e.Name
}

var registry = map[string]Landscape{
	"ackley": {
		Name:        "ackley",
		Description: "Shallow bowl with cosine ripples; many local minima",
		Fn: func(x, y float64) float64 {
			return 0.04*x*x + 0.04*y*y - 0.7*(math.Cos(0.56*math.Pi*x)+math.Cos(0.6*math.Pi*y))
		},
	},
	"sphere": {
		Name:        "sphere",
		Description: "Anisotropic quadratic bowl",
		Fn: func(x, y float64) float64 {
			return x*x*0.06 + y*y*0.04
		},
	},
	"booth": {
		Name:        "booth",
		Description: "Scaled Booth function, minimum at (1, 3)",
		Fn: func(x, y float64) float64 {
			a := x + 2*y - 7
			b := 2*x + y - 5
			return 0.02*a*a + 0.02*b*b
		},
	},
	"saddle": {
		Name:        "saddle",
		Description: "Hyperbolic paraboloid; unbounded below along y",
		Fn: func(x, y float64) float64 {
			return 0.1 * (x*x - y*y)
		},
	},
	"beale": {
		Name:        "beale",
		Description: "Log-compressed Beale function with narrow curved valleys",
		Fn: func(x, y float64) float64 {
			x *= 0.9
			y *= 0.9
			a := 1.5 - x + x*y
			b := 2.25 - x + x*y*y
			c := 2.625 - x + x*y*y*y
			return 0.9 * math.Log(1+a*a+b*b+c*c)
		},
	},
	"mexicanHat": {
		Name:        "mexicanHat",
		Description: "Radial ring ridge around a central minimum",
		Fn: func(x, y float64) float64 {
			r2 := x*x + y*y
			return 1.5 * r2 * (math.Exp(-0.32*r2) + 0.02)
		},
	},
	"styblinskiTang": {
		Name:        "styblinskiTang",
		Description: "Scaled Styblinski-Tang function with four basins",
		Fn: func(x, y float64) float64 {
			x *= 0.5
			y *= 0.5
			f := (x*x*x*x - 16*x*x + 5*x) + (y*y*y*y - 16*y*y + 5*y)
			return 0.01 * f
		},
	},
}

func init() {
	for name, l := range registry {
		l.Bounds = PlaneBounds
		registry[name] = l
	}
}

// Lookup returns the surface registered under name.
func Lookup(name string) (Landscape, error) {
	l, ok := registry[name]
	if !ok {
		return Landscape{}, &NotFoundError{Name: name}
	}
	return l, nil
}

// Names returns all registered surface names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every surface, ordered by name.
func All() []Landscape {
	out := make([]Landscape, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}
