// Package plot renders cost landscapes and optimizer trajectories to images.
package plot

import (
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/step"
)

var (
	pathColor   = color.NRGBA{255, 255, 0, 255}
	markerColor = color.NRGBA{255, 0, 0, 255}
	startColor  = color.NRGBA{255, 255, 255, 255}
	textColor   = color.NRGBA{255, 255, 255, 255}
)

const (
	pathWidth    = 1.5
	startRadius  = 3
	markerRadius = 4
	captionSize  = 13
)

// Options control a heat map rendering.
type Options struct {
	Width  int
	Height int

	// Trajectory is drawn as a polyline; the last point gets the marker.
	Trajectory []step.Vec2

	// Caption is written in the top-left corner when non-empty.
	Caption string
}

// DefaultOptions returns a 512x512 plot with no overlay.
func DefaultOptions() Options {
	return Options{Width: 512, Height: 512}
}

// Heatmap samples l over its bounds, one sample per pixel, and colours the
// cost with the visualizer's surface palette. Non-finite samples are black.
// The trajectory, markers and caption are drawn on top.
func Heatmap(l landscape.Landscape, opts Options) image.Image {
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	proj := newProjection(l.Bounds, opts.Width, opts.Height)

	dc := gg.NewContextForImage(sample(l, proj))
	defer dc.Close()

	drawTrajectory(dc, proj, opts.Trajectory)
	if opts.Caption != "" {
		drawCaption(dc, opts.Caption)
	}
	return dc.Image()
}

// sample evaluates the surface at every pixel centre and normalizes the
// finite costs to [0, 1].
func sample(l landscape.Landscape, proj projection) *image.NRGBA {
	w, h := proj.w, proj.h
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	costs := make([]float64, w*h)
	lo, hi := math.Inf(1), math.Inf(-1)
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			p := proj.toWorld(px, py)
			c := l.Fn(p.X, p.Y)
			costs[py*w+px] = c
			if math.IsNaN(c) || math.IsInf(c, 0) {
				continue
			}
			lo = math.Min(lo, c)
			hi = math.Max(hi, c)
		}
	}

	span := hi - lo
	for i, c := range costs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			img.SetNRGBA(i%w, i/w, color.NRGBA{0, 0, 0, 255})
			continue
		}
		t := 0.0
		if span > 0 {
			t = (c - lo) / span
		}
		img.SetNRGBA(i%w, i/w, surfaceColor(t))
	}
	return img
}

// surfaceColor maps a normalized cost to the shader palette: low cost is
// teal, high cost is magenta, blue throughout.
func surfaceColor(t float64) color.NRGBA {
	s := 1 - 2*t
	r := math.Max(0, -s)
	g := math.Max(0, 0.6*s)
	return color.NRGBA{uint8(r * 255), uint8(g * 255), 255, 255}
}

type projection struct {
	b    landscape.Bounds
	w, h int
}

func newProjection(b landscape.Bounds, w, h int) projection {
	return projection{b: b, w: w, h: h}
}

// toWorld returns the centre of pixel (px, py); y grows upward.
func (p projection) toWorld(px, py int) step.Vec2 {
	span := p.b.Max - p.b.Min
	return step.Vec2{
		X: p.b.Min + (float64(px)+0.5)/float64(p.w)*span,
		Y: p.b.Max - (float64(py)+0.5)/float64(p.h)*span,
	}
}

// toCanvas maps a world point to canvas coordinates, clamped to a band a
// few image sizes wide around the canvas.
func (p projection) toCanvas(v step.Vec2) (float64, float64) {
	span := p.b.Max - p.b.Min
	x := (v.X - p.b.Min) / span * float64(p.w)
	y := (p.b.Max - v.Y) / span * float64(p.h)
	return clampCoord(x, p.w), clampCoord(y, p.h)
}

func drawTrajectory(dc *gg.Context, proj projection, path []step.Vec2) {
	if len(path) == 0 {
		return
	}

	dc.SetColor(pathColor)
	dc.SetLineWidth(pathWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	open := false
	for _, v := range path {
		if !finite(v) {
			open = false
			continue
		}
		x, y := proj.toCanvas(v)
		if open {
			dc.LineTo(x, y)
		} else {
			dc.MoveTo(x, y)
			open = true
		}
	}
	if err := dc.Stroke(); err != nil {
		slog.Debug("Failed to stroke trajectory", "error", err)
	}

	if start := path[0]; finite(start) {
		drawMarker(dc, proj, start, startRadius, startColor)
	}
	if end := path[len(path)-1]; finite(end) {
		drawMarker(dc, proj, end, markerRadius, markerColor)
	}
}

func drawMarker(dc *gg.Context, proj projection, v step.Vec2, r float64, c color.Color) {
	x, y := proj.toCanvas(v)
	dc.SetColor(c)
	dc.DrawCircle(x, y, r)
	if err := dc.Fill(); err != nil {
		slog.Debug("Failed to fill marker", "error", err)
	}
}

var (
	captionOnce sync.Once
	captionFace text.Face
)

// captionFont loads the embedded Go Regular face once. It returns nil if
// the font cannot be parsed, in which case captions are skipped.
func captionFont() text.Face {
	captionOnce.Do(func() {
		src, err := text.NewFontSource(goregular.TTF)
		if err != nil {
			slog.Warn("Failed to load caption font", "error", err)
			return
		}
		captionFace = src.Face(captionSize)
	})
	return captionFace
}

func drawCaption(dc *gg.Context, caption string) {
	face := captionFont()
	if face == nil {
		return
	}
	dc.SetFont(face)
	dc.SetColor(textColor)
	dc.DrawString(caption, 6, 6+captionSize)
}

// clampCoord keeps diverged coordinates in a range the rasterizer handles;
// the canvas clips everything outside it.
func clampCoord(v float64, size int) float64 {
	bound := 4 * float64(size)
	return math.Max(-bound, math.Min(bound, v))
}

func finite(v step.Vec2) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
