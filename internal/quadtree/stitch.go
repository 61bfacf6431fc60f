package quadtree

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
)

// childConstraints returns the edge constraints for child i. Sides on the
// parent boundary are resampled from the parent's edges; internal sides come
// from siblings already built.
//
//	2 | 3
//	--+--
//	0 | 1
func (p *Patch) childConstraints(i int, built [4]*Patch) mesh.Edges {
	var c mesh.Edges
	half := i % 2 // position along u
	row := i / 2  // position along v
	region := mesh.RegionOf(p.key.Child(i))

	if row == 0 {
		c.Bottom = p.resample(sphere.EdgeBottom, half, region)
	} else {
		c.Top = p.resample(sphere.EdgeTop, half, region)
	}
	if half == 0 {
		c.Left = p.resample(sphere.EdgeLeft, row, region)
	} else {
		c.Right = p.resample(sphere.EdgeRight, row, region)
	}

	switch i {
	case 1:
		c.Left = siblingEdge(built[0], sphere.EdgeRight)
	case 2:
		c.Bottom = siblingEdge(built[0], sphere.EdgeTop)
	case 3:
		c.Bottom = siblingEdge(built[1], sphere.EdgeTop)
		c.Left = siblingEdge(built[2], sphere.EdgeRight)
	}
	return c
}

func siblingEdge(sibling *Patch, e sphere.Edge) []mgl64.Vec3 {
	if sibling == nil {
		return nil
	}
	return sibling.edges.Side(e)
}

// resample maps half (0 or 1) of the parent's edge e onto a child edge of
// the same resolution. Child point k sits at parent position
// (k + half·(R−1))/2: even positions copy a parent sample, odd positions
// fall between two samples.
func (p *Patch) resample(e sphere.Edge, half int, child mesh.Region) []mgl64.Vec3 {
	parent := p.edges.Side(e)
	res := p.resolution
	if len(parent) != res {
		return nil
	}
	out := make([]mgl64.Vec3, res)
	for k := 0; k < res; k++ {
		twice := k + half*(res-1)
		if twice%2 == 0 {
			out[k] = parent[twice/2]
			continue
		}
		if p.env.Criteria.Stitch == StitchRecompute {
			u, v := edgeUV(child, e, k, res)
			out[k] = p.env.Surface.Vertex(child.Face, u, v)
			continue
		}
		a, b := parent[(twice-1)/2], parent[(twice+1)/2]
		out[k] = a.Add(b).Mul(0.5)
	}
	return out
}

// edgeUV returns the face coordinates of point k on side e of a region.
func edgeUV(r mesh.Region, e sphere.Edge, k, res int) (u, v float64) {
	switch e {
	case sphere.EdgeBottom:
		return r.UV(k, 0, res)
	case sphere.EdgeTop:
		return r.UV(k, res-1, res)
	case sphere.EdgeLeft:
		return r.UV(0, k, res)
	default:
		return r.UV(res-1, k, res)
	}
}
