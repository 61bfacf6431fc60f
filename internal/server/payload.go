package server

import (
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// PatchInfo describes one leaf of the live tree.
type PatchInfo struct {
	Key        string `json:"key"`
	Face       string `json:"face"`
	Depth      int    `json:"depth"`
	Resolution int    `json:"resolution"`
	Visible    bool   `json:"visible"`
	Triangles  int    `json:"triangles"`
	Error      string `json:"error,omitempty"`
}

func patchInfo(p *quadtree.Patch) PatchInfo {
	info := PatchInfo{
		Key:        p.Key().String(),
		Face:       p.Face().String(),
		Depth:      p.Depth(),
		Resolution: p.Resolution(),
		Visible:    p.Visible(),
	}
	if m := p.Mesh(); m != nil {
		info.Triangles = m.TriangleCount()
	}
	if err := p.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// PatchMesh is the wire form of a render mesh: flat float32 arrays ready
// for GPU buffers.
type PatchMesh struct {
	Key        string    `json:"key"`
	Resolution int       `json:"resolution"`
	Positions  []float32 `json:"positions"`
	Normals    []float32 `json:"normals,omitempty"`
	Colors     []float32 `json:"colors,omitempty"`
	Indices    []uint32  `json:"indices"`
}

func meshPayload(key tile.Key, m *mesh.Mesh) PatchMesh {
	out := PatchMesh{
		Key:        key.String(),
		Resolution: m.Resolution,
		Positions:  flatten(m.Vertices),
		Normals:    flatten(m.Normals),
		Indices:    m.Triangles,
	}
	if len(m.Colors) > 0 {
		out.Colors = make([]float32, 0, 4*len(m.Colors))
		for _, c := range m.Colors {
			out.Colors = append(out.Colors, float32(c.R), float32(c.G), float32(c.B), float32(c.A))
		}
	}
	return out
}

func flatten(vs []mgl64.Vec3) []float32 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]float32, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, float32(v.X()), float32(v.Y()), float32(v.Z()))
	}
	return out
}

// ReportPayload is the wire form of a quadtree.Report.
type ReportPayload struct {
	Built      []string         `json:"built"`
	Released   []string         `json:"released"`
	Failed     []FailurePayload `json:"failed,omitempty"`
	Shown      []string         `json:"shown,omitempty"`
	Subdivided int              `json:"subdivided"`
	Merged     int              `json:"merged"`
}

// FailurePayload names a patch whose mesh could not be built.
type FailurePayload struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

func reportPayload(r *quadtree.Report) ReportPayload {
	out := ReportPayload{Built: []string{}, Released: []string{}}
	if r == nil {
		return out
	}
	for _, k := range r.Built {
		out.Built = append(out.Built, k.String())
	}
	for _, k := range r.Released {
		out.Released = append(out.Released, k.String())
	}
	for _, f := range r.Failed {
		out.Failed = append(out.Failed, FailurePayload{Key: f.Key.String(), Error: f.Err.Error()})
	}
	for _, k := range r.Shown {
		out.Shown = append(out.Shown, k.String())
	}
	out.Subdivided = r.Subdivided
	out.Merged = r.Merged
	return out
}

// parsePatchPath parses a path like /api/patches/f2_z3_x1_y5.json below prefix.
func parsePatchPath(prefix, requestPath string) (tile.Key, bool) {
	if !strings.HasPrefix(requestPath, prefix) {
		return tile.Key{}, false
	}
	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".json") {
		return tile.Key{}, false
	}
	key, err := tile.ParseKey(strings.TrimSuffix(base, ".json"))
	if err != nil {
		return tile.Key{}, false
	}
	return key, true
}
