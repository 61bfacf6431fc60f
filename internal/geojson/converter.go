// Package geojson exports quadtree patches as lon/lat polygons.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// DefaultSegments is the number of samples per patch side.
const DefaultSegments = 4

// Feature is the exported view of one patch.
type Feature struct {
	Key        tile.Key
	Resolution int
	Visible    bool
	Triangles  int
	Err        error
}

// FromPatches captures the exported fields of each patch.
func FromPatches(patches []*quadtree.Patch) []Feature {
	out := make([]Feature, 0, len(patches))
	for _, p := range patches {
		f := Feature{
			Key:        p.Key(),
			Resolution: p.Resolution(),
			Visible:    p.Visible(),
			Err:        p.Err(),
		}
		if m := p.Mesh(); m != nil {
			f.Triangles = m.TriangleCount()
		}
		out = append(out, f)
	}
	return out
}

// LonLat converts a sphere direction to degrees. Longitude is measured
// around the y axis from +z towards +x; latitude from the xz plane towards +y.
func LonLat(dir mgl64.Vec3) orb.Point {
	d := dir.Normalize()
	lat := math.Asin(math.Max(-1, math.Min(1, d.Y())))
	lon := math.Atan2(d.X(), d.Z())
	return orb.Point{mgl64.RadToDeg(lon), mgl64.RadToDeg(lat)}
}

// Outline samples the border of a patch, counter-clockwise in UV, as a
// closed lon/lat ring.
func Outline(k tile.Key, segments int) orb.Ring {
	if segments < 1 {
		segments = 1
	}
	lo, hi := k.Bounds()
	corners := [5]mgl64.Vec2{
		{lo.X(), lo.Y()},
		{hi.X(), lo.Y()},
		{hi.X(), hi.Y()},
		{lo.X(), hi.Y()},
		{lo.X(), lo.Y()},
	}

	ring := make(orb.Ring, 0, 4*segments+1)
	for side := 0; side < 4; side++ {
		a, b := corners[side], corners[side+1]
		for s := 0; s < segments; s++ {
			t := float64(s) / float64(segments)
			uv := a.Add(b.Sub(a).Mul(t))
			ring = append(ring, LonLat(k.Face.Direction(uv.X(), uv.Y())))
		}
	}
	return append(ring, ring[0])
}

// ToGeoJSON converts features to a GeoJSON FeatureCollection.
func ToGeoJSON(features []Feature, segments int) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()

	for _, f := range features {
		if !f.Key.Valid() {
			return nil, fmt.Errorf("invalid patch key %s", f.Key)
		}

		geoFeature := geojson.NewFeature(orb.Polygon{Outline(f.Key, segments)})
		geoFeature.ID = f.Key.String()
		geoFeature.Properties["key"] = f.Key.String()
		geoFeature.Properties["face"] = f.Key.Face.String()
		geoFeature.Properties["depth"] = f.Key.Z
		geoFeature.Properties["resolution"] = f.Resolution
		geoFeature.Properties["visible"] = f.Visible
		geoFeature.Properties["triangles"] = f.Triangles
		if f.Err != nil {
			geoFeature.Properties["error"] = f.Err.Error()
		}

		fc.Append(geoFeature)
	}

	return fc, nil
}

// ToGeoJSONBytes converts features to indented GeoJSON bytes.
func ToGeoJSONBytes(features []Feature, segments int) ([]byte, error) {
	fc, err := ToGeoJSON(features, segments)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to GeoJSON: %w", err)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	return data, nil
}

// FaceCounts returns the number of features per face.
func FaceCounts(features []Feature) map[sphere.Face]int {
	out := make(map[sphere.Face]int)
	for _, f := range features {
		out[f.Key.Face]++
	}
	return out
}

// Summary returns a one-line count of features per depth.
func Summary(features []Feature) string {
	perDepth := map[uint32]int{}
	for _, f := range features {
		perDepth[f.Key.Z]++
	}
	depths := make([]int, 0, len(perDepth))
	for d := range perDepth {
		depths = append(depths, int(d))
	}
	sort.Ints(depths)

	parts := make([]string, 0, len(depths))
	for _, d := range depths {
		parts = append(parts, fmt.Sprintf("depth %d: %d", d, perDepth[uint32(d)]))
	}
	return fmt.Sprintf("%s (Total: %d)", strings.Join(parts, ", "), len(features))
}
