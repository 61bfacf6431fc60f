package quadtree

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// Patch is one node of a face quadtree. It owns its mesh buffers and its
// children; a patch has either no children or exactly four.
type Patch struct {
	env        *Env
	key        tile.Key
	region     mesh.Region
	resolution int

	mesh      *mesh.Mesh
	collision *mesh.Collision
	edges     mesh.Edges
	err       error

	children *[4]*Patch
	visible  bool
}

// NewRoot creates the unbuilt depth-0 patch of a face.
func NewRoot(env *Env, face sphere.Face, resolution int) *Patch {
	return newPatch(env, tile.Root(face), resolution)
}

func newPatch(env *Env, key tile.Key, resolution int) *Patch {
	return &Patch{
		env:        env,
		key:        key,
		region:     mesh.RegionOf(key),
		resolution: resolution,
		visible:    true,
	}
}

// Key returns the patch address.
func (p *Patch) Key() tile.Key { return p.key }

// Face returns the cube face the patch lies on.
func (p *Patch) Face() sphere.Face { return p.key.Face }

// Depth returns the quadtree depth (0 for roots).
func (p *Patch) Depth() int { return int(p.key.Z) }

// Region returns the UV rectangle the patch covers.
func (p *Patch) Region() mesh.Region { return p.region }

// Resolution returns the vertex count per grid side.
func (p *Patch) Resolution() int { return p.resolution }

// Mesh returns the render mesh, or nil when the build failed.
func (p *Patch) Mesh() *mesh.Mesh { return p.mesh }

// Collision returns the collision mesh, or nil.
func (p *Patch) Collision() *mesh.Collision { return p.collision }

// Edges returns the boundary vertex rows of the last build.
func (p *Patch) Edges() mesh.Edges { return p.edges }

// Err returns the error of the last build.
func (p *Patch) Err() error { return p.err }

// Visible reports whether the patch's own mesh should be rendered.
func (p *Patch) Visible() bool { return p.visible }

// IsLeaf reports whether the patch has no children.
func (p *Patch) IsLeaf() bool { return p.children == nil }

// Children returns the four children, or nil for a leaf.
func (p *Patch) Children() []*Patch {
	if p.children == nil {
		return nil
	}
	return p.children[:]
}

// Build meshes the patch with the given edge constraints. A failure is
// recorded on the patch and in the report; the patch keeps no buffers.
func (p *Patch) Build(constraints mesh.Edges, r *Report) error {
	result, err := p.env.Surface.Build(p.region, p.resolution, constraints)
	if err != nil {
		p.mesh, p.collision, p.edges, p.err = nil, nil, mesh.Edges{}, err
		if r != nil {
			r.Failed = append(r.Failed, Failure{Key: p.key, Err: err})
		}
		p.env.log().Warn("Patch build failed", "patch", p.key.String(), "error", err)
		return err
	}
	p.mesh, p.collision, p.edges, p.err = result.Mesh, result.Collision, result.Edges, nil
	if r != nil {
		r.Built = append(r.Built, p.key)
	}
	return nil
}

// Remesh rebuilds the patch using its own previous edges as constraints.
func (p *Patch) Remesh(r *Report) error {
	return p.Build(p.edges, r)
}

// Center returns the point distances are measured from.
func (p *Patch) Center() mgl64.Vec3 {
	if p.env.Criteria.Anchor == AnchorPatch {
		c := p.region.Center()
		return p.env.Surface.Anchor(p.key.Face, c.X(), c.Y())
	}
	return mgl64.Vec3{}
}

// DistanceToSurface returns the LOD distance from the viewer to the patch.
func (p *Patch) DistanceToSurface(viewer mgl64.Vec3) float64 {
	d := viewer.Sub(p.Center()).Len()
	if p.env.Criteria.Anchor == AnchorPatch {
		return d
	}
	d -= p.env.Surface.Radius()
	if d < 0 {
		return 0
	}
	return d
}

// InView applies the view-angle gate. A viewer without a forward vector
// sees everything.
func (p *Patch) InView(v Viewer) bool {
	c := p.env.Criteria
	if c.FOV == FOVOff || c.FOV == "" || v.Forward.Len() == 0 {
		return true
	}
	angle := angleBetween(v.Forward, v.Position.Sub(p.Center()))
	if c.FOV == FOVInverted {
		return angle > c.MaxViewAngle
	}
	return angle <= c.MaxViewAngle
}

// Update runs the LOD state machine for this patch and its subtree.
func (p *Patch) Update(v Viewer, r *Report) {
	c := p.env.Criteria
	d := p.DistanceToSurface(v.Position)
	depth := p.Depth()

	switch {
	case d < c.SubdivideThreshold(depth) && depth < c.MaxDepth && p.InView(v):
		if p.children == nil {
			p.subdivide(r)
		}
		p.visible = false
		p.updateChildren(v, r)
	case p.children != nil && d > c.MergeThreshold():
		p.merge(r)
		p.visible = true
	case p.children == nil:
		p.visible = true
	default:
		p.visible = false
		p.updateChildren(v, r)
	}
}

func (p *Patch) updateChildren(v Viewer, r *Report) {
	for _, child := range p.children {
		child.Update(v, r)
	}
}

// subdivide creates and meshes the four children. Children build in index
// order so the internal sides can reuse the edges of earlier siblings.
func (p *Patch) subdivide(r *Report) {
	var children [4]*Patch
	for i := range children {
		child := newPatch(p.env, p.key.Child(i), p.resolution)
		_ = child.Build(p.childConstraints(i, children), r)
		children[i] = child
	}
	p.children = &children
	if r != nil {
		r.Subdivided++
	}
	p.env.log().Debug("Subdivided patch", "patch", p.key.String(), "depth", p.Depth())
}

// merge releases the whole subtree below p.
func (p *Patch) merge(r *Report) {
	for _, child := range p.children {
		child.Destroy(r)
	}
	p.children = nil
	if r != nil {
		r.Merged++
		r.Shown = append(r.Shown, p.key)
	}
	p.env.log().Debug("Merged patch", "patch", p.key.String(), "depth", p.Depth())
}

// Destroy releases the subtree depth-first, then the patch's own buffers.
func (p *Patch) Destroy(r *Report) {
	for _, child := range p.Children() {
		child.Destroy(r)
	}
	p.children = nil
	p.mesh, p.collision, p.edges = nil, nil, mesh.Edges{}
	p.visible = false
	if r != nil {
		r.Released = append(r.Released, p.key)
	}
}

// Walk visits the subtree in pre-order. Returning false from fn skips the
// children of that patch.
func (p *Patch) Walk(fn func(*Patch) bool) {
	if !fn(p) {
		return
	}
	for _, child := range p.Children() {
		child.Walk(fn)
	}
}

// Leaves returns the leaf patches of the subtree.
func (p *Patch) Leaves() []*Patch {
	var leaves []*Patch
	p.Walk(func(q *Patch) bool {
		if q.IsLeaf() {
			leaves = append(leaves, q)
		}
		return true
	})
	return leaves
}

// MaxDepth returns the deepest depth present in the subtree.
func (p *Patch) MaxDepth() int {
	deepest := p.Depth()
	p.Walk(func(q *Patch) bool {
		if q.Depth() > deepest {
			deepest = q.Depth()
		}
		return true
	})
	return deepest
}
