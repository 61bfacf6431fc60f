// Package colorize derives vertex colours from height and slope.
package colorize

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Color is a linear RGBA colour with components in [0,1].
// For surface colours A carries a roughness hint rather than opacity.
type Color struct {
	R, G, B, A float64
}

// RGB builds an opaque colour.
func RGB(r, g, b float64) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// FromSlice builds a colour from 3 or 4 components; missing alpha is 1.
func FromSlice(v []float64) (Color, bool) {
	switch len(v) {
	case 3:
		return RGB(v[0], v[1], v[2]), true
	case 4:
		return Color{R: v[0], G: v[1], B: v[2], A: v[3]}, true
	}
	return Color{}, false
}

// Lerp blends a towards b by t (t is clamped to [0,1]).
func Lerp(a, b Color, t float64) Color {
	t = clamp01(t)
	return Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: a.A + (b.A-a.A)*t,
	}
}

// NRGBA converts to an 8-bit colour.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

// Opaque returns c with alpha forced to 1.
func (c Color) Opaque() Color {
	c.A = 1
	return c
}

// Params holds absolute thresholds (already scaled by the planet radius).
type Params struct {
	WaterThreshold float64
	WaterBlend     float64
	SlopeThreshold float64
	Water          Color
	Grass          Color
	Rock           Color
}

// Colorizer maps height and slope to a blended water/grass/rock colour.
type Colorizer struct {
	p Params
}

// New creates a Colorizer.
func New(p Params) *Colorizer {
	return &Colorizer{p: p}
}

// Factors returns the water→land and grass→rock blend factors.
func (c *Colorizer) Factors(height, slope float64) (waterT, slopeT float64) {
	waterT = inverseLerp(c.p.WaterThreshold-c.p.WaterBlend, c.p.WaterThreshold+c.p.WaterBlend, height)
	slopeT = inverseLerp(0, c.p.SlopeThreshold, slope)
	return waterT, slopeT
}

// Color returns the surface colour for a vertex radius and local slope.
// Alpha is max(waterT, slopeT).
func (c *Colorizer) Color(height, slope float64) Color {
	waterT, slopeT := c.Factors(height, slope)
	land := Lerp(c.p.Grass, c.p.Rock, slopeT)
	out := Lerp(c.p.Water, land, waterT)
	out.A = math.Max(waterT, slopeT)
	return out
}

// ColorAt is Color for a vertex position.
func (c *Colorizer) ColorAt(position mgl64.Vec3, slope float64) Color {
	return c.Color(position.Len(), slope)
}

// Slope estimates steepness from the radii of a vertex's four grid
// neighbours using central differences.
func Slope(left, right, down, up float64) float64 {
	dx := (right - left) / 2
	dy := (up - down) / 2
	return math.Sqrt(dx*dx + dy*dy)
}

// GridSlope computes Slope for vertex (x, y) of a res×res row-major grid.
// Border vertices stand in for their missing neighbours.
func GridSlope(vertices []mgl64.Vec3, res, x, y int) float64 {
	i := x + y*res
	cur := vertices[i].Len()
	left, right, down, up := cur, cur, cur, cur
	if x > 0 {
		left = vertices[i-1].Len()
	}
	if x < res-1 {
		right = vertices[i+1].Len()
	}
	if y > 0 {
		down = vertices[i-res].Len()
	}
	if y < res-1 {
		up = vertices[i+res].Len()
	}
	return Slope(left, right, down, up)
}

func inverseLerp(a, b, v float64) float64 {
	if a == b {
		if v < a {
			return 0
		}
		return 1
	}
	return clamp01((v - a) / (b - a))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}
