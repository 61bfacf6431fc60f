package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Basis selects the 2D noise function sampled by a Field.
type Basis string

const (
	BasisPerlin  Basis = "perlin"
	BasisSimplex Basis = "simplex"
)

// Sampler returns 2D noise in [0,1] for a given coordinate.
type Sampler interface {
	Sample(x, y float64) float64
}

// NewSampler creates the sampler for basis, seeded deterministically.
func NewSampler(basis Basis, seed int64) (Sampler, error) {
	switch basis {
	case BasisPerlin, "":
		// Single octave: octaves are accumulated by the Field itself.
		return perlinSampler{p: perlin.NewPerlin(2, 2, 1, seed)}, nil
	case BasisSimplex:
		return simplexSampler{n: opensimplex.NewNormalized(seed)}, nil
	default:
		return nil, fmt.Errorf("unknown noise basis %q", basis)
	}
}

type perlinSampler struct {
	p *perlin.Perlin
}

// Sample maps the gradient noise range [-√½, √½] onto [0,1].
func (s perlinSampler) Sample(x, y float64) float64 {
	return clamp01(0.5 + s.p.Noise2D(x, y)/math.Sqrt2)
}

type simplexSampler struct {
	n opensimplex.Noise
}

func (s simplexSampler) Sample(x, y float64) float64 {
	return clamp01(s.n.Eval2(x, y))
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
