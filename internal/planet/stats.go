package planet

import "github.com/MeKo-Tech/cubeplanet/internal/quadtree"

// Stats summarizes the current tree.
type Stats struct {
	State     string      `json:"state"`
	Patches   int         `json:"patches"`
	Leaves    int         `json:"leaves"`
	Visible   int         `json:"visible"`
	Failed    int         `json:"failed"`
	Vertices  int         `json:"vertices"`
	Triangles int         `json:"triangles"`
	MaxDepth  int         `json:"max_depth"`
	PerDepth  map[int]int `json:"per_depth"`
}

// Stats counts patches and the geometry of visible meshes.
func (p *Planet) Stats() Stats {
	s := Stats{State: p.State().String(), PerDepth: map[int]int{}}
	p.Walk(func(q *quadtree.Patch) bool {
		s.Patches++
		s.PerDepth[q.Depth()]++
		if q.Depth() > s.MaxDepth {
			s.MaxDepth = q.Depth()
		}
		if q.IsLeaf() {
			s.Leaves++
		}
		if q.Err() != nil {
			s.Failed++
		}
		if q.Visible() && q.Mesh() != nil {
			s.Visible++
			s.Vertices += len(q.Mesh().Vertices)
			s.Triangles += q.Mesh().TriangleCount()
		}
		return true
	})
	return s
}
