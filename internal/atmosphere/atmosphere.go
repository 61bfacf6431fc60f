// Package atmosphere describes the optional atmosphere shell around a planet.
package atmosphere

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
)

// ErrNoSun is returned when the sun direction is the zero vector.
var ErrNoSun = errors.New("atmosphere needs a non-zero sun direction")

// Params configures a shell. The sun direction is always explicit.
type Params struct {
	PlanetRadius float64
	Scale        float64
	Thickness    float64
	Intensity    float64
	Color        colorize.Color
	SunsetColor  colorize.Color
	SunDirection mgl64.Vec3
	Segments     int
	Rings        int
}

// Shell is everything a renderer needs to draw the atmosphere.
type Shell struct {
	PlanetRadius float64
	Radius       float64
	Thickness    float64
	Intensity    float64
	Color        colorize.Color
	SunsetColor  colorize.Color
	SunDirection mgl64.Vec3
	Mesh         *mesh.Mesh
}

// Builder creates the atmosphere shell for a planet.
type Builder interface {
	Build(p Params) (*Shell, error)
}

// SphereBuilder builds shells around a UV sphere mesh.
type SphereBuilder struct{}

// Build implements Builder.
func (SphereBuilder) Build(p Params) (*Shell, error) {
	if p.SunDirection.Len() == 0 {
		return nil, ErrNoSun
	}
	radius := p.PlanetRadius * p.Scale
	m := UVSphere(radius, p.Segments, p.Rings)
	m.Colors = make([]colorize.Color, len(m.Vertices))
	for i := range m.Colors {
		m.Colors[i] = p.Color
	}
	return &Shell{
		PlanetRadius: p.PlanetRadius,
		Radius:       radius,
		Thickness:    p.Thickness,
		Intensity:    p.Intensity,
		Color:        p.Color,
		SunsetColor:  p.SunsetColor,
		SunDirection: p.SunDirection.Normalize(),
		Mesh:         m,
	}, nil
}

// UVSphere returns a sphere of (segments+1)×(rings+1) vertices. The seam
// column is duplicated so every ring is a closed strip.
func UVSphere(radius float64, segments, rings int) *mesh.Mesh {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	m := &mesh.Mesh{Resolution: segments + 1}
	for ring := 0; ring <= rings; ring++ {
		theta := float64(ring) * math.Pi / float64(rings)
		sinTheta, cosTheta := math.Sincos(theta)
		for seg := 0; seg <= segments; seg++ {
			phi := float64(seg) * 2 * math.Pi / float64(segments)
			sinPhi, cosPhi := math.Sincos(phi)
			n := mgl64.Vec3{cosPhi * sinTheta, cosTheta, sinPhi * sinTheta}
			m.Vertices = append(m.Vertices, n.Mul(radius))
			m.Normals = append(m.Normals, n)
		}
	}

	stride := uint32(segments + 1)
	for ring := uint32(0); ring < uint32(rings); ring++ {
		for seg := uint32(0); seg < uint32(segments); seg++ {
			current := ring*stride + seg
			next := current + stride
			m.Triangles = append(m.Triangles,
				current, next, current+1,
				current+1, next, next+1,
			)
		}
	}
	m.Bounds = mesh.BoundsOf(m.Vertices)
	return m
}
