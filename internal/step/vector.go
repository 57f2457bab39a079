package step

import "math"

// CostFunc maps a point of the 2D parameter space to a scalar cost.
// It must be pure: the engine evaluates it several times per step.
type CostFunc func(x, y float64) float64

// Vec2 is a position or gradient in the 2D parameter space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns s * v.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// At returns component i (0 = X, 1 = Y).
func (v Vec2) At(i int) float64 {
	if i == 0 {
		return v.X
	}
	return v.Y
}

func (v *Vec2) set(i int, val float64) {
	if i == 0 {
		v.X = val
	} else {
		v.Y = val
	}
}

// Mat2 is a row-major 2x2 matrix.
type Mat2 [2][2]float64

// Det returns the determinant.
func (m Mat2) Det() float64 {
	return m[0][0]*m[1][1] - m[0][1]*m[1][0]
}

// Inverse returns the explicit inverse. The caller must check Det first;
// a zero determinant yields Inf/NaN entries.
func (m Mat2) Inverse() Mat2 {
	det := m.Det()
	return Mat2{
		{m[1][1] / det, -m[0][1] / det},
		{-m[1][0] / det, m[0][0] / det},
	}
}

// MulVec returns m * v.
func (m Mat2) MulVec(v Vec2) Vec2 {
	return Vec2{
		X: m[0][0]*v.X + m[0][1]*v.Y,
		Y: m[1][0]*v.X + m[1][1]*v.Y,
	}
}
