// Package mask builds grayscale masks from face height grids.
package mask

import (
	"image"
	"image/color"

	"github.com/disintegration/gift"
)

// Water returns a size×size mask that is 255 where the height lies below
// level and 0 elsewhere. heights is row-major with row 0 at v = 0; the mask
// is flipped so row 0 is the top of the image.
func Water(heights []float64, size int, level float64) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		row := size - 1 - y
		for x := 0; x < size; x++ {
			if heights[x+row*size] < level {
				m.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return m
}

// Invert swaps the inside and outside of a mask.
func Invert(m *image.Gray) *image.Gray {
	out := image.NewGray(m.Bounds())
	for i, v := range m.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

// GaussianBlur softens mask edges. Larger sigma blurs more.
func GaussianBlur(m *image.Gray, sigma float32) *image.Gray {
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray(g.Bounds(m.Bounds()))
	g.Draw(dst, m)
	return dst
}

// Tint blends c over base wherever the mask is set, scaled by strength.
func Tint(base *image.NRGBA, m *image.Gray, c color.NRGBA, strength float64) {
	b := base.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := float64(m.GrayAt(x, y).Y) / 255 * strength
			if a <= 0 {
				continue
			}
			if a > 1 {
				a = 1
			}
			px := base.NRGBAAt(x, y)
			px.R = mix(px.R, c.R, a)
			px.G = mix(px.G, c.G, a)
			px.B = mix(px.B, c.B, a)
			base.SetNRGBA(x, y, px)
		}
	}
}

func mix(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
