package atmosphere

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
)

func TestUVSphere(t *testing.T) {
	m := UVSphere(3, 8, 4)
	assert.Len(t, m.Vertices, 9*5)
	assert.Len(t, m.Triangles, 8*4*6)
	for i, v := range m.Vertices {
		assert.InDelta(t, 3, v.Len(), 1e-9)
		assert.InDelta(t, 1, m.Normals[i].Len(), 1e-9)
	}
	for _, idx := range m.Triangles {
		require.Less(t, idx, uint32(len(m.Vertices)))
	}
	assert.InDelta(t, 3, m.Bounds.Max.Y(), 1e-9)
	assert.InDelta(t, -3, m.Bounds.Min.Y(), 1e-9)
}

func TestUVSphereClampsTessellation(t *testing.T) {
	m := UVSphere(1, 0, 0)
	assert.Len(t, m.Vertices, 4*3)
}

func TestBuild(t *testing.T) {
	shell, err := SphereBuilder{}.Build(Params{
		PlanetRadius: 10,
		Scale:        1.02,
		Thickness:    0.05,
		Intensity:    0.3,
		Color:        colorize.RGB(0.3, 0.5, 1),
		SunsetColor:  colorize.RGB(1, 0.4, 0.2),
		SunDirection: mgl64.Vec3{0, -2, 0},
		Segments:     12,
		Rings:        6,
	})
	require.NoError(t, err)
	assert.InDelta(t, 10.2, shell.Radius, 1e-12)
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, shell.SunDirection)
	assert.Len(t, shell.Mesh.Colors, len(shell.Mesh.Vertices))
	assert.InDelta(t, 10.2, shell.Mesh.Vertices[0].Len(), 1e-9)
}

func TestBuildNeedsSun(t *testing.T) {
	_, err := SphereBuilder{}.Build(Params{PlanetRadius: 1, Scale: 1})
	assert.ErrorIs(t, err, ErrNoSun)
}
