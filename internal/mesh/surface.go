// Package mesh builds patch meshes on the displaced cube-sphere.
package mesh

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// Displacer returns the radial terrain offset for a unit direction.
// *noise.Field implements it.
type Displacer interface {
	Displacement(dir mgl64.Vec3) float64
}

// Surface is the planet surface shared by every patch: the vertex placement
// function plus the colouring rules.
type Surface struct {
	radius     float64
	baseOffset float64
	field      Displacer
	colorizer  *colorize.Colorizer
}

// NewSurface creates a Surface. colorizer may be nil, in which case meshes
// are built without vertex colours.
func NewSurface(radius, baseOffset float64, field Displacer, colorizer *colorize.Colorizer) *Surface {
	return &Surface{
		radius:     radius,
		baseOffset: baseOffset,
		field:      field,
		colorizer:  colorizer,
	}
}

// Radius returns the undisplaced planet radius.
func (s *Surface) Radius() float64 {
	return s.radius
}

// BaseOffset returns the constant land offset added to every vertex.
func (s *Surface) BaseOffset() float64 {
	return s.baseOffset
}

// Vertex places the surface vertex for (face, u, v). Every vertex of every
// patch goes through here, so equal inputs always give equal positions.
func (s *Surface) Vertex(face sphere.Face, u, v float64) mgl64.Vec3 {
	dir := face.Direction(u, v)
	return dir.Mul(s.radius + s.field.Displacement(dir) + s.baseOffset)
}

// Anchor returns the undisplaced surface point for (face, u, v).
func (s *Surface) Anchor(face sphere.Face, u, v float64) mgl64.Vec3 {
	return face.Direction(u, v).Mul(s.radius)
}

// Region is the part of a face a patch covers.
type Region struct {
	Face sphere.Face
	Min  mgl64.Vec2
	Max  mgl64.Vec2
}

// RegionOf returns the region addressed by a patch key.
func RegionOf(k tile.Key) Region {
	lo, hi := k.Bounds()
	return Region{Face: k.Face, Min: lo, Max: hi}
}

// UV returns the face coordinates of grid cell (x, y) in a res×res grid.
// Border cells land exactly on Min and Max.
func (r Region) UV(x, y, res int) (u, v float64) {
	n := float64(res - 1)
	return lerp(r.Min.X(), r.Max.X(), float64(x)/n), lerp(r.Min.Y(), r.Max.Y(), float64(y)/n)
}

// Center returns the UV centre of the region.
func (r Region) Center() mgl64.Vec2 {
	return r.Min.Add(r.Max).Mul(0.5)
}

func lerp(a, b, t float64) float64 {
	if t == 1 {
		return b
	}
	return a + (b-a)*t
}
