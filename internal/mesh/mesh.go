package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
)

var (
	// ErrDegenerate is returned for grids smaller than 2×2.
	ErrDegenerate = errors.New("degenerate patch resolution")
	// ErrConstraintLength is returned when an edge constraint does not match the grid.
	ErrConstraintLength = errors.New("edge constraint length mismatch")
)

// Edges holds the four boundary vertex rows of a patch. Bottom and Top run
// along u, Left and Right along v. A nil side is unconstrained.
type Edges struct {
	Bottom []mgl64.Vec3
	Top    []mgl64.Vec3
	Left   []mgl64.Vec3
	Right  []mgl64.Vec3
}

// Side returns the vertices of one edge.
func (e Edges) Side(edge sphere.Edge) []mgl64.Vec3 {
	switch edge {
	case sphere.EdgeBottom:
		return e.Bottom
	case sphere.EdgeTop:
		return e.Top
	case sphere.EdgeLeft:
		return e.Left
	default:
		return e.Right
	}
}

// Set replaces one edge.
func (e *Edges) Set(edge sphere.Edge, vertices []mgl64.Vec3) {
	switch edge {
	case sphere.EdgeBottom:
		e.Bottom = vertices
	case sphere.EdgeTop:
		e.Top = vertices
	case sphere.EdgeLeft:
		e.Left = vertices
	default:
		e.Right = vertices
	}
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Mesh is the render mesh of one patch.
type Mesh struct {
	Resolution int
	Vertices   []mgl64.Vec3
	Triangles  []uint32
	Colors     []colorize.Color
	Normals    []mgl64.Vec3
	Bounds     Bounds
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles) / 3
}

// Collision is the physics mesh of one patch.
type Collision struct {
	Vertices  []mgl64.Vec3
	Triangles []uint32
}

// Result is everything a patch build produces.
type Result struct {
	Mesh      *Mesh
	Collision *Collision
	Edges     Edges
}

// Build meshes a res×res grid over region. Border cells whose side has a
// constraint copy it verbatim, checked in the order bottom, top, left, right;
// every other cell is placed by Vertex.
func (s *Surface) Build(region Region, res int, constraints Edges) (*Result, error) {
	if res < 2 {
		return nil, fmt.Errorf("%w: %d", ErrDegenerate, res)
	}
	for _, e := range sphere.Edges {
		if side := constraints.Side(e); side != nil && len(side) != res {
			return nil, fmt.Errorf("%w: %s edge has %d vertices, want %d", ErrConstraintLength, e, len(side), res)
		}
	}

	vertices := make([]mgl64.Vec3, res*res)
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			vertices[x+y*res] = s.cell(region, res, x, y, constraints)
		}
	}

	m := &Mesh{
		Resolution: res,
		Vertices:   vertices,
		Triangles:  Triangulate(res),
	}
	if s.colorizer != nil {
		m.Colors = make([]colorize.Color, len(vertices))
		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				i := x + y*res
				m.Colors[i] = s.colorizer.ColorAt(vertices[i], colorize.GridSlope(vertices, res, x, y))
			}
		}
	}
	m.Normals = Normals(vertices, m.Triangles)
	m.Bounds = BoundsOf(vertices)

	result := &Result{Mesh: m, Edges: extractEdges(vertices, res)}
	if len(vertices) >= 3 {
		result.Collision = &Collision{Vertices: vertices, Triangles: m.Triangles}
	}
	return result, nil
}

func (s *Surface) cell(region Region, res, x, y int, c Edges) mgl64.Vec3 {
	switch {
	case y == 0 && c.Bottom != nil:
		return c.Bottom[x]
	case y == res-1 && c.Top != nil:
		return c.Top[x]
	case x == 0 && c.Left != nil:
		return c.Left[y]
	case x == res-1 && c.Right != nil:
		return c.Right[y]
	}
	u, v := region.UV(x, y, res)
	return s.Vertex(region.Face, u, v)
}

func extractEdges(vertices []mgl64.Vec3, res int) Edges {
	e := Edges{
		Bottom: make([]mgl64.Vec3, res),
		Top:    make([]mgl64.Vec3, res),
		Left:   make([]mgl64.Vec3, res),
		Right:  make([]mgl64.Vec3, res),
	}
	for k := 0; k < res; k++ {
		e.Bottom[k] = vertices[k]
		e.Top[k] = vertices[k+(res-1)*res]
		e.Left[k] = vertices[k*res]
		e.Right[k] = vertices[res-1+k*res]
	}
	return e
}

// Triangulate returns the index list of a res×res row-major grid: two
// triangles per quad, (i, i+R+1, i+R) and (i, i+1, i+R+1).
func Triangulate(res int) []uint32 {
	if res < 2 {
		return nil
	}
	tris := make([]uint32, 0, 6*(res-1)*(res-1))
	r := uint32(res)
	for y := uint32(0); y < r-1; y++ {
		for x := uint32(0); x < r-1; x++ {
			i := x + y*r
			tris = append(tris,
				i, i+r+1, i+r,
				i, i+1, i+r+1,
			)
		}
	}
	return tris
}

// Normals computes area-weighted vertex normals. Vertices no triangle
// contributes to fall back to their radial direction.
func Normals(vertices []mgl64.Vec3, triangles []uint32) []mgl64.Vec3 {
	normals := make([]mgl64.Vec3, len(vertices))
	for t := 0; t+2 < len(triangles); t += 3 {
		a, b, c := triangles[t], triangles[t+1], triangles[t+2]
		n := vertices[b].Sub(vertices[a]).Cross(vertices[c].Sub(vertices[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i, n := range normals {
		if n.Len() > 1e-12 {
			normals[i] = n.Normalize()
		} else if vertices[i].Len() > 0 {
			normals[i] = vertices[i].Normalize()
		}
	}
	return normals
}

// BoundsOf returns the bounding box of a vertex set.
func BoundsOf(vertices []mgl64.Vec3) Bounds {
	if len(vertices) == 0 {
		return Bounds{}
	}
	inf := math.Inf(1)
	b := Bounds{Min: mgl64.Vec3{inf, inf, inf}, Max: mgl64.Vec3{-inf, -inf, -inf}}
	for _, v := range vertices {
		for i := 0; i < 3; i++ {
			b.Min[i] = math.Min(b.Min[i], v[i])
			b.Max[i] = math.Max(b.Max[i], v[i])
		}
	}
	return b
}
