package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

func quad(offset float64) *mesh.Mesh {
	verts := []mgl64.Vec3{{offset, 0, 0}, {offset + 1, 0, 0}, {offset, 1, 0}, {offset + 1, 1, 0}}
	normals := []mgl64.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	colors := []colorize.Color{
		colorize.RGB(1, 0, 0), colorize.RGB(0, 1, 0), colorize.RGB(0, 0, 1), colorize.RGB(1, 1, 1),
	}
	return &mesh.Mesh{
		Resolution: 2,
		Vertices:   verts,
		Triangles:  mesh.Triangulate(2),
		Colors:     colors,
		Normals:    normals,
	}
}

func TestOBJWriter(t *testing.T) {
	var buf bytes.Buffer
	obj := newOBJWriter(&buf, "test planet")

	if err := obj.WritePatch(tile.Root(sphere.FaceUp), quad(0)); err != nil {
		t.Fatalf("WritePatch failed: %v", err)
	}
	if err := obj.WritePatch(tile.Root(sphere.FaceDown), quad(5)); err != nil {
		t.Fatalf("WritePatch failed: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")

	count := func(prefix string) int {
		n := 0
		for _, l := range lines {
			if strings.HasPrefix(l, prefix) {
				n++
			}
		}
		return n
	}

	if !strings.HasPrefix(out, "# test planet\n") {
		t.Errorf("Expected name header, got %q", lines[0])
	}
	if count("o ") != 2 {
		t.Errorf("Expected 2 objects, got %d", count("o "))
	}
	if count("v ") != 8 {
		t.Errorf("Expected 8 vertices, got %d", count("v "))
	}
	if count("vn ") != 8 {
		t.Errorf("Expected 8 normals, got %d", count("vn "))
	}
	if count("f ") != 4 {
		t.Errorf("Expected 4 faces, got %d", count("f "))
	}
	if !strings.Contains(out, "v 0 0 0 1 0 0\n") {
		t.Errorf("Expected coloured vertex line in output")
	}
	// The second patch's faces are offset past the first patch's 4 vertices.
	if !strings.Contains(out, "f 5//5 ") {
		t.Errorf("Expected second patch indices to start at 5:\n%s", out)
	}
	if obj.offset != 8 || obj.patches != 2 {
		t.Errorf("Expected offset 8 and 2 patches, got %d and %d", obj.offset, obj.patches)
	}
}

func TestFilterDepth(t *testing.T) {
	keys := []tile.Key{
		tile.Root(sphere.FaceUp),
		tile.NewKey(sphere.FaceUp, 1, 0, 0),
		tile.NewKey(sphere.FaceUp, 1, 1, 1),
	}
	if got := filterDepth(append([]tile.Key(nil), keys...), -1); len(got) != 3 {
		t.Errorf("Expected all keys for depth -1, got %d", len(got))
	}
	if got := filterDepth(append([]tile.Key(nil), keys...), 1); len(got) != 2 {
		t.Errorf("Expected 2 keys at depth 1, got %d", len(got))
	}
}
