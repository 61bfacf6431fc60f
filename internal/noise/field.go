// Package noise turns sphere directions into terrain displacement.
package noise

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// SeaLevelFactor places sea level at 95% of the planet radius.
	SeaLevelFactor = 0.95
	// MountainBandFactor is the width of the mountain mask ramp, relative to the radius.
	MountainBandFactor = 0.05
)

// Params configures the layered noise.
type Params struct {
	Basis            Basis
	Seed             int64
	Strength         float64
	Scale            float64
	Octaves          int
	Persistence      float64
	MountainExponent float64
}

// Field is a deterministic displacement function over the unit sphere.
// It is safe for concurrent use.
type Field struct {
	params     Params
	sampler    Sampler
	radius     float64
	baseOffset float64
	seaLevel   float64
	band       float64
}

// New creates a Field for a planet of the given radius. baseOffset is the
// constant land offset (baseLandOffsetMultiplier × radius) the mesher adds
// to every vertex.
func New(p Params, radius, baseOffset float64) (*Field, error) {
	sampler, err := NewSampler(p.Basis, p.Seed)
	if err != nil {
		return nil, err
	}
	return NewWithSampler(p, sampler, radius, baseOffset), nil
}

// NewWithSampler creates a Field around an existing sampler.
func NewWithSampler(p Params, sampler Sampler, radius, baseOffset float64) *Field {
	return &Field{
		params:     p,
		sampler:    sampler,
		radius:     radius,
		baseOffset: baseOffset,
		seaLevel:   radius * SeaLevelFactor,
		band:       radius * MountainBandFactor,
	}
}

// Params returns the parameters the field was built with.
func (f *Field) Params() Params {
	return f.params
}

// SeaLevel returns the absolute sea-level radius.
func (f *Field) SeaLevel() float64 {
	return f.seaLevel
}

// Raw returns the accumulated octave noise for dir, normalized to [0,1].
func (f *Field) Raw(dir mgl64.Vec3) float64 {
	var (
		sum      float64
		totalAmp float64
		freq     = 1.0
		amp      = 1.0
	)
	seed := float64(f.params.Seed)
	x := (dir.X() + 1) * f.params.Scale
	y := (dir.Y() + 1) * f.params.Scale
	z := (dir.Z() + 1) * f.params.Scale

	for o := 0; o < f.params.Octaves; o++ {
		n := (f.sampler.Sample(x*freq+seed, y*freq+seed) +
			f.sampler.Sample(y*freq+seed, z*freq+seed) +
			f.sampler.Sample(x*freq+seed, z*freq+seed)) / 3

		sum += n * amp
		totalAmp += amp
		freq *= 2
		amp *= f.params.Persistence
	}

	if totalAmp == 0 {
		return 0.5
	}
	return clamp01(sum / totalAmp)
}

// Displacement returns the signed radial offset for dir.
//
// The shaped noise is centered so its midpoint maps to zero, then blended
// towards the sea-level floor by the mountain mask: terrain whose provisional
// radius sits below sea level rests on the floor, terrain more than one
// mountain band above it keeps its full relief. A plain mask·noise product
// would instead pull masked terrain back to the undisplaced radius.
func (f *Field) Displacement(dir mgl64.Vec3) float64 {
	if f.params.Strength == 0 {
		return 0
	}

	shaped := math.Pow(f.Raw(dir), f.params.MountainExponent)
	centered := (shaped - 0.5) * 2 * f.params.Strength
	return f.blend(centered)
}

func (f *Field) blend(centered float64) float64 {
	mask := f.Mask(centered)
	floor := f.seaLevel - f.radius - f.baseOffset
	return mask*centered + (1-mask)*floor
}

// Mask returns the mountain mask for a centered displacement.
func (f *Field) Mask(centered float64) float64 {
	if f.band <= 0 {
		return 1
	}
	provisional := f.radius + f.baseOffset + centered
	return clamp01((provisional - f.seaLevel) / f.band)
}

// Height returns the final vertex radius for dir.
func (f *Field) Height(dir mgl64.Vec3) float64 {
	return f.radius + f.Displacement(dir) + f.baseOffset
}

// Range returns the lowest and highest radius Height can produce.
func (f *Field) Range() (lo, hi float64) {
	base := f.radius + f.baseOffset
	if f.params.Strength == 0 {
		return base, base
	}
	s := math.Abs(f.params.Strength)
	return base + f.blend(-s), base + f.blend(s)
}
