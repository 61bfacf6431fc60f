package mask

import (
	"image"
	"image/color"
	"math"
)

// BorderDistance computes, for every pixel set in m, the Euclidean distance
// to the nearest pixel of m that touches an unset 4-neighbour. Distances
// are scaled so maxDistance maps to 255; unset pixels stay 0.
//
// It runs the separable squared distance transform of Felzenszwalb and
// Huttenlocher: one lower-envelope pass over rows, one over columns.
func BorderDistance(m *image.Gray, maxDistance float64) *image.Gray {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	set := func(x, y int) bool { return m.GrayAt(b.Min.X+x, b.Min.Y+y).Y > 0 }

	far := math.Inf(1)
	grid := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			grid[x+y*w] = far
			if !set(x, y) {
				continue
			}
			if (x > 0 && !set(x-1, y)) || (x < w-1 && !set(x+1, y)) ||
				(y > 0 && !set(x, y-1)) || (y < h-1 && !set(x, y+1)) {
				grid[x+y*w] = 0
			}
		}
	}

	line := make([]float64, max(w, h))
	out := make([]float64, max(w, h))
	for y := 0; y < h; y++ {
		copy(line, grid[y*w:(y+1)*w])
		squaredDistance1D(line[:w], out[:w])
		copy(grid[y*w:(y+1)*w], out[:w])
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			line[y] = grid[x+y*w]
		}
		squaredDistance1D(line[:h], out[:h])
		for y := 0; y < h; y++ {
			grid[x+y*w] = out[y]
		}
	}

	dst := image.NewGray(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !set(x, y) {
				continue
			}
			d := math.Sqrt(grid[x+y*w])
			v := uint8(255)
			if d < maxDistance {
				v = uint8(255 * d / maxDistance)
			}
			dst.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: v})
		}
	}
	return dst
}

// squaredDistance1D writes min_i((q-i)² + f[i]) for every q into d, by
// sampling the lower envelope of the parabolas rooted at each finite f[i].
func squaredDistance1D(f, d []float64) {
	n := len(f)
	roots := make([]int, 0, n)
	bounds := make([]float64, 0, n+1)

	for q := 0; q < n; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		var s float64
		for len(roots) > 0 {
			r := roots[len(roots)-1]
			s = ((f[q] + float64(q*q)) - (f[r] + float64(r*r))) / float64(2*(q-r))
			if s > bounds[len(bounds)-1] {
				break
			}
			roots = roots[:len(roots)-1]
			bounds = bounds[:len(bounds)-1]
		}
		if len(roots) == 0 {
			s = math.Inf(-1)
		}
		roots = append(roots, q)
		bounds = append(bounds, s)
	}

	if len(roots) == 0 {
		for q := range d {
			d[q] = math.Inf(1)
		}
		return
	}

	k := 0
	for q := 0; q < n; q++ {
		for k+1 < len(roots) && bounds[k+1] < float64(q) {
			k++
		}
		dx := float64(q - roots[k])
		d[q] = dx*dx + f[roots[k]]
	}
}

// Falloff maps a BorderDistance mask to an intensity that is 255 at the
// border and fades to 0 at maxDistance along (1 - d)^gamma. Unset pixels
// of the distance mask's source should be masked out by the caller.
func Falloff(dist *image.Gray, gamma float64) *image.Gray {
	b := dist.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := float64(dist.GrayAt(x, y).Y) / 255
			out.SetGray(x, y, color.Gray{Y: uint8(255 * math.Pow(1-d, gamma))})
		}
	}
	return out
}

// Shore returns an intensity mask that peaks at the coastline of a water
// mask and fades out over radius pixels into the water.
func Shore(water *image.Gray, radius, gamma float64) *image.Gray {
	intensity := Falloff(BorderDistance(water, radius), gamma)
	for i, v := range water.Pix {
		if v == 0 {
			intensity.Pix[i] = 0
		}
	}
	return intensity
}
