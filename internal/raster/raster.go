// Package raster draws patch outlines onto face-sized canvases.
package raster

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
)

// Renderer maps a face's UV square onto a size×size canvas with v pointing up.
type Renderer struct {
	size        int
	strokeWidth float64
	color       color.NRGBA
}

// NewRenderer creates an outline renderer.
func NewRenderer(size int, strokeWidth float64, c color.NRGBA) *Renderer {
	if strokeWidth <= 0 {
		strokeWidth = 1
	}
	return &Renderer{size: size, strokeWidth: strokeWidth, color: c}
}

// Outlines strokes the border of every region onto a transparent canvas.
func (r *Renderer) Outlines(regions []mesh.Region) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.size, r.size))
	for _, region := range regions {
		r.strokeRegion(dst, region)
	}
	return dst
}

// strokeRegion draws the outer rectangle and the reversed inner rectangle
// in one path, so only the band between them is covered.
func (r *Renderer) strokeRegion(dst *image.NRGBA, region mesh.Region) {
	x0, y0 := r.uvToPx(region.Min.X(), region.Max.Y())
	x1, y1 := r.uvToPx(region.Max.X(), region.Min.Y())
	w := r.strokeWidth / 2

	outer := [4]float64{x0 - w, y0 - w, x1 + w, y1 + w}
	inner := [4]float64{x0 + w, y0 + w, x1 - w, y1 - w}

	ras := vector.NewRasterizer(r.size, r.size)
	rect(ras, outer, false)
	if inner[0] < inner[2] && inner[1] < inner[3] {
		rect(ras, inner, true)
	}

	src := image.NewUniform(r.color)
	ras.Draw(dst, dst.Bounds(), src, image.Point{})
}

func rect(ras *vector.Rasterizer, b [4]float64, reverse bool) {
	pts := [4][2]float64{{b[0], b[1]}, {b[2], b[1]}, {b[2], b[3]}, {b[0], b[3]}}
	if reverse {
		pts[1], pts[3] = pts[3], pts[1]
	}
	ras.MoveTo(float32(pts[0][0]), float32(pts[0][1]))
	for _, p := range pts[1:] {
		ras.LineTo(float32(p[0]), float32(p[1]))
	}
	ras.ClosePath()
}

// uvToPx maps face coordinates to canvas pixels, clamped to the canvas.
func (r *Renderer) uvToPx(u, v float64) (float64, float64) {
	s := float64(r.size)
	return clamp(u*s, 0, s), clamp((1-v)*s, 0, s)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
