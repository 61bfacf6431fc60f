package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

func testMesh(offset float64) *mesh.Mesh {
	res := 3
	m := &mesh.Mesh{Resolution: res, Triangles: mesh.Triangulate(res)}
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			v := mgl64.Vec3{float64(x) + offset, float64(y), 1}
			m.Vertices = append(m.Vertices, v)
			m.Colors = append(m.Colors, colorize.Color{R: 0.1, G: 0.2, B: 0.3, A: float64(x) / 2})
		}
	}
	m.Normals = mesh.Normals(m.Vertices, m.Triangles)
	m.Bounds = mesh.BoundsOf(m.Vertices)
	return m
}

func TestCodec_RoundTrip(t *testing.T) {
	m := testMesh(0.25)
	blob, err := EncodeMesh(m)
	if err != nil {
		t.Fatalf("Failed to encode mesh: %v", err)
	}

	got, err := DecodeMesh(blob)
	if err != nil {
		t.Fatalf("Failed to decode mesh: %v", err)
	}
	if !reflect.DeepEqual(m, got) {
		t.Errorf("Decoded mesh differs:\n got %+v\nwant %+v", got, m)
	}
}

func TestCodec_WithoutColors(t *testing.T) {
	m := testMesh(0)
	m.Colors = nil
	m.Normals = nil

	blob, err := EncodeMesh(m)
	if err != nil {
		t.Fatalf("Failed to encode mesh: %v", err)
	}
	got, err := DecodeMesh(blob)
	if err != nil {
		t.Fatalf("Failed to decode mesh: %v", err)
	}
	if got.Colors != nil || got.Normals != nil {
		t.Error("Expected no colors or normals")
	}
	if len(got.Triangles) != len(m.Triangles) {
		t.Errorf("Expected %d indices, got %d", len(m.Triangles), len(got.Triangles))
	}
}

func TestCodec_RejectsGarbage(t *testing.T) {
	if _, err := DecodeMesh([]byte("not gzip")); err == nil {
		t.Error("Expected error for non-gzip data")
	}

	blob, err := gzipCompress([]byte("XXXX0000000000000000"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeMesh(blob); !errors.Is(err, ErrBadBlob) {
		t.Errorf("Expected ErrBadBlob, got %v", err)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planet.db")

	metadata := Metadata{
		Name:        "Test Planet",
		Description: "Test description",
		Version:     "1",
		Seed:        42,
		Radius:      10.5,
		MaxDepth:    2,
		Config:      "planet:\n  radius: 10.5\n",
	}

	w, err := New(dbPath, metadata)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	keys := []tile.Key{
		tile.Root(sphere.FaceUp),
		tile.NewKey(sphere.FaceBack, 1, 1, 0),
		tile.NewKey(sphere.FaceBack, 2, 3, 3),
	}
	for i, k := range keys {
		if err := w.WritePatch(k, testMesh(float64(i))); err != nil {
			t.Fatalf("Failed to write patch %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	for i, k := range keys {
		m, err := r.ReadPatch(k)
		if err != nil {
			t.Fatalf("Failed to read patch %s: %v", k, err)
		}
		if !reflect.DeepEqual(testMesh(float64(i)), m) {
			t.Errorf("Patch %s mesh mismatch", k)
		}
	}

	gotKeys, err := r.Keys()
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if !reflect.DeepEqual(keys, gotKeys) {
		t.Errorf("Keys mismatch: got %v, want %v", gotKeys, keys)
	}

	gotMeta, err := r.Metadata()
	if err != nil {
		t.Fatalf("Failed to read metadata: %v", err)
	}
	if gotMeta != metadata {
		t.Errorf("Metadata mismatch: got %+v, want %+v", gotMeta, metadata)
	}
}

func TestStore_PatchNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planet.db")
	w, err := New(dbPath, Metadata{Name: "Empty"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	_, err = r.ReadPatch(tile.Root(sphere.FaceDown))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWriter_BatchFlush(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planet.db")
	w, err := New(dbPath, Metadata{Name: "Test"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	// 150 patches spread over depth 4 of one face, more than one batch.
	for i := 0; i < 150; i++ {
		k := tile.NewKey(sphere.FaceLeft, 4, uint32(i%16), uint32(i/16))
		if err := w.WritePatch(k, testMesh(0)); err != nil {
			t.Fatalf("Failed to write patch %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM patches").Scan(&count); err != nil {
		t.Fatalf("Failed to query patches: %v", err)
	}
	if count != 150 {
		t.Errorf("Expected 150 patches, got %d", count)
	}
}

func TestWriter_ReplaceExisting(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planet.db")
	w, err := New(dbPath, Metadata{Name: "Test"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	k := tile.NewKey(sphere.FaceRight, 1, 0, 1)
	if err := w.WritePatch(k, testMesh(0)); err != nil {
		t.Fatalf("Failed to write first patch: %v", err)
	}
	w.Flush()
	if err := w.WritePatch(k, testMesh(5)); err != nil {
		t.Fatalf("Failed to write second patch: %v", err)
	}
	w.Flush()

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM patches").Scan(&count); err != nil {
		t.Fatalf("Failed to query patches: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 patch (replaced), got %d", count)
	}
}

func TestWriter_RejectsInvalid(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planet.db")
	w, err := New(dbPath, Metadata{})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if err := w.WritePatch(tile.NewKey(sphere.FaceUp, 1, 5, 0), testMesh(0)); err == nil {
		t.Error("Expected error for out-of-range key")
	}
	if err := w.WritePatch(tile.Root(sphere.FaceUp), nil); err == nil {
		t.Error("Expected error for nil mesh")
	}
}

func TestReader_InvalidDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Error("Expected error opening database without patches table")
	}
}
