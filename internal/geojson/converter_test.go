package geojson

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/config"
	"github.com/MeKo-Tech/cubeplanet/internal/planet"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

func TestToGeoJSON(t *testing.T) {
	features := []Feature{
		{Key: tile.Root(sphere.FaceUp), Resolution: 5, Visible: true, Triangles: 32},
		{Key: tile.NewKey(sphere.FaceForward, 2, 1, 3), Resolution: 5, Err: errors.New("boom")},
	}

	fc, err := ToGeoJSON(features, 2)
	if err != nil {
		t.Fatalf("ToGeoJSON failed: %v", err)
	}

	if len(fc.Features) != 2 {
		t.Fatalf("Expected 2 GeoJSON features, got %d", len(fc.Features))
	}

	first := fc.Features[0]
	if first.Geometry.GeoJSONType() != "Polygon" {
		t.Errorf("Expected Polygon, got %s", first.Geometry.GeoJSONType())
	}
	if first.Properties["key"] != "f0_z0_x0_y0" {
		t.Errorf("Expected key=f0_z0_x0_y0, got %v", first.Properties["key"])
	}
	if first.Properties["face"] != sphere.FaceUp.String() {
		t.Errorf("Expected face=%s, got %v", sphere.FaceUp, first.Properties["face"])
	}
	if first.Properties["visible"] != true {
		t.Errorf("Expected visible=true")
	}
	if _, ok := first.Properties["error"]; ok {
		t.Errorf("Unexpected error property on healthy patch")
	}

	second := fc.Features[1]
	if second.Properties["depth"] != uint32(2) {
		t.Errorf("Expected depth=2, got %v", second.Properties["depth"])
	}
	if second.Properties["error"] != "boom" {
		t.Errorf("Expected error=boom, got %v", second.Properties["error"])
	}
}

func TestToGeoJSONRejectsInvalidKey(t *testing.T) {
	_, err := ToGeoJSON([]Feature{{Key: tile.Key{Face: 7}}}, 1)
	if err == nil {
		t.Fatal("Expected error for invalid face")
	}
}

func TestOutlineIsClosed(t *testing.T) {
	ring := Outline(tile.NewKey(sphere.FaceRight, 1, 1, 0), 3)
	if len(ring) != 13 {
		t.Fatalf("Expected 13 points, got %d", len(ring))
	}
	if !ring.Closed() {
		t.Error("Expected closed ring")
	}
	for _, p := range ring {
		if p.Lon() < -180 || p.Lon() > 180 || p.Lat() < -90 || p.Lat() > 90 {
			t.Errorf("Point out of range: %v", p)
		}
	}
}

func TestLonLat(t *testing.T) {
	tests := []struct {
		dir      mgl64.Vec3
		lon, lat float64
	}{
		{mgl64.Vec3{0, 0, 1}, 0, 0},
		{mgl64.Vec3{1, 0, 0}, 90, 0},
		{mgl64.Vec3{0, 2, 0}, 0, 90},
		{mgl64.Vec3{0, -1, 0}, 0, -90},
	}
	for _, tt := range tests {
		p := LonLat(tt.dir)
		if math.Abs(p.Lon()-tt.lon) > 1e-9 || math.Abs(p.Lat()-tt.lat) > 1e-9 {
			t.Errorf("LonLat(%v) = %v, want (%v, %v)", tt.dir, p, tt.lon, tt.lat)
		}
	}
}

func TestFromPlanetLeaves(t *testing.T) {
	cfg := config.Default()
	cfg.Planet.MinResolution = 3
	cfg.Planet.MaxResolution = 3
	cfg.Atmosphere.Enabled = false

	p, err := planet.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := p.Regenerate(); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	features := FromPatches(p.Leaves())
	if len(features) != 6 {
		t.Fatalf("Expected 6 root features, got %d", len(features))
	}
	for face, n := range FaceCounts(features) {
		if n != 1 {
			t.Errorf("Expected 1 feature on %s, got %d", face, n)
		}
	}
	if features[0].Triangles != 8 {
		t.Errorf("Expected 8 triangles at resolution 3, got %d", features[0].Triangles)
	}

	data, err := ToGeoJSONBytes(features, DefaultSegments)
	if err != nil {
		t.Fatalf("ToGeoJSONBytes failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to parse GeoJSON output: %v", err)
	}
	if decoded["type"] != "FeatureCollection" {
		t.Errorf("Expected FeatureCollection, got %v", decoded["type"])
	}
}

func TestSummary(t *testing.T) {
	features := []Feature{
		{Key: tile.Root(sphere.FaceUp)},
		{Key: tile.NewKey(sphere.FaceUp, 1, 0, 0)},
		{Key: tile.NewKey(sphere.FaceUp, 1, 1, 0)},
	}
	got := Summary(features)
	if !strings.Contains(got, "depth 0: 1") || !strings.Contains(got, "depth 1: 2") || !strings.Contains(got, "Total: 3") {
		t.Errorf("Unexpected summary: %s", got)
	}
}
