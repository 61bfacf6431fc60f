package quadtree

import "github.com/MeKo-Tech/cubeplanet/internal/tile"

// Failure is a patch whose mesh could not be built.
type Failure struct {
	Key tile.Key
	Err error
}

// Report lists the structural changes of one LOD pass or regeneration, so
// renderers and physics can sync their copies of the tree.
type Report struct {
	Built      []tile.Key
	Released   []tile.Key
	Failed     []Failure
	// Shown lists merged parents whose own mesh is visible again.
	Shown      []tile.Key
	Subdivided int
	Merged     int
}

// Changed reports whether anything was built or released.
func (r *Report) Changed() bool {
	return len(r.Built) > 0 || len(r.Released) > 0 || len(r.Failed) > 0
}

// Add appends the contents of other.
func (r *Report) Add(other *Report) {
	if other == nil {
		return
	}
	r.Built = append(r.Built, other.Built...)
	r.Released = append(r.Released, other.Released...)
	r.Failed = append(r.Failed, other.Failed...)
	r.Shown = append(r.Shown, other.Shown...)
	r.Subdivided += other.Subdivided
	r.Merged += other.Merged
}
