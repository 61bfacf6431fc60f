// Package preview renders cube faces of a planet to images.
package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/mazznoer/colorgrad"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/mask"
	"github.com/MeKo-Tech/cubeplanet/internal/noise"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
)

// Mode selects how a face is shaded.
type Mode string

const (
	// ModeSurface uses the planet's own colorizer.
	ModeSurface Mode = "surface"
	// ModeElevation maps height onto a blue-to-red gradient.
	ModeElevation Mode = "elevation"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSurface, ModeElevation:
		return Mode(s), nil
	case "":
		return ModeSurface, nil
	}
	return "", fmt.Errorf("unknown preview mode %q", s)
}

// ShoreOptions configures the foam band drawn along coastlines.
type ShoreOptions struct {
	Level    float64 // water surface radius
	Radius   float64 // band width in pixels
	Gamma    float64
	Strength float64
	Color    color.NRGBA
}

// Renderer samples the displacement field on a regular UV grid per face.
// It is safe for concurrent use.
type Renderer struct {
	field     *noise.Field
	colorizer *colorize.Colorizer
	mode      Mode
	gradient  colorgrad.Gradient
	shore     *ShoreOptions
}

// NewRenderer creates a face renderer.
func NewRenderer(field *noise.Field, colorizer *colorize.Colorizer, mode Mode) (*Renderer, error) {
	if field == nil {
		return nil, fmt.Errorf("preview: nil field")
	}
	r := &Renderer{field: field, colorizer: colorizer, mode: mode}

	switch mode {
	case ModeSurface:
		if colorizer == nil {
			return nil, fmt.Errorf("preview: surface mode needs a colorizer")
		}
	case ModeElevation:
		builder := colorgrad.NewGradient()
		builder.Colors(
			color.RGBA{0, 0, 255, 255},
			color.RGBA{0, 255, 255, 255},
			color.RGBA{0, 255, 0, 255},
			color.RGBA{255, 255, 0, 255},
			color.RGBA{255, 0, 0, 255},
		)
		grad, err := builder.Build()
		if err != nil {
			return nil, fmt.Errorf("build elevation gradient: %w", err)
		}
		r.gradient = grad
	default:
		return nil, fmt.Errorf("unknown preview mode %q", mode)
	}
	return r, nil
}

// SetShore enables coastline foam. Call it before rendering starts.
func (r *Renderer) SetShore(o ShoreOptions) {
	if o.Gamma <= 0 {
		o.Gamma = 2
	}
	if o.Strength <= 0 {
		o.Strength = 1
	}
	r.shore = &o
}

// RenderFace draws a size×size image of face. Row 0 is the top of the face
// (v = 1), column 0 its left edge (u = 0).
func (r *Renderer) RenderFace(ctx context.Context, face sphere.Face, size int) (image.Image, error) {
	if !face.Valid() {
		return nil, fmt.Errorf("invalid face %d", face)
	}
	if size < 1 {
		return nil, fmt.Errorf("invalid size %d", size)
	}

	heights, err := r.heights(ctx, face, size)
	if err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	lo, hi := r.field.Range()
	for py := 0; py < size; py++ {
		gy := size - 1 - py
		for px := 0; px < size; px++ {
			h := heights[px+gy*size]
			var c color.NRGBA
			if r.mode == ModeElevation {
				c = r.elevationColor(h, lo, hi)
			} else {
				c = r.colorizer.Color(h, r.slope(heights, size, px, gy)).Opaque().NRGBA()
			}
			img.SetNRGBA(px, py, c)
		}
	}

	if r.shore != nil && r.shore.Radius > 0 {
		water := mask.Water(heights, size, r.shore.Level)
		foam := mask.GaussianBlur(mask.Shore(water, r.shore.Radius, r.shore.Gamma), 1)
		mask.Tint(img, foam, r.shore.Color, r.shore.Strength)
	}
	return img, nil
}

// heights samples the field on the pixel-centre grid, row-major with v up.
func (r *Renderer) heights(ctx context.Context, face sphere.Face, size int) ([]float64, error) {
	out := make([]float64, size*size)
	for y := 0; y < size; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := (float64(y) + 0.5) / float64(size)
		for x := 0; x < size; x++ {
			u := (float64(x) + 0.5) / float64(size)
			out[x+y*size] = r.field.Height(face.Direction(u, v))
		}
	}
	return out, nil
}

func (r *Renderer) slope(heights []float64, size, x, y int) float64 {
	at := func(x, y int) float64 {
		x = max(0, min(size-1, x))
		y = max(0, min(size-1, y))
		return heights[x+y*size]
	}
	return colorize.Slope(at(x-1, y), at(x+1, y), at(x, y-1), at(x, y+1))
}

func (r *Renderer) elevationColor(h, lo, hi float64) color.NRGBA {
	t := 0.5
	if hi > lo {
		t = (h - lo) / (hi - lo)
	}
	t = max(0, min(1, t))
	return color.NRGBAModel.Convert(r.gradient.At(t)).(color.NRGBA)
}
