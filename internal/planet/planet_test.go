package planet

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cubeplanet/internal/atmosphere"
	"github.com/MeKo-Tech/cubeplanet/internal/config"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Planet.MinResolution = 5
	cfg.Planet.MaxResolution = 9
	cfg.LOD.MaxDepth = 1
	return cfg
}

func newPlanet(t *testing.T, cfg *config.Config, opts ...Option) *Planet {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	_, err = p.Regenerate()
	require.NoError(t, err)
	return p
}

func surfaceViewer(face sphere.Face, radius float64) quadtree.Viewer {
	return quadtree.Viewer{Position: face.Up().Mul(radius)}
}

func TestUnconfigured(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, StateUnconfigured, p.State())

	_, err = p.Regenerate()
	assert.True(t, errors.Is(err, ErrUnconfigured))
	_, err = p.Tick(quadtree.Viewer{})
	assert.True(t, errors.Is(err, ErrUnconfigured))
	assert.Nil(t, p.Roots())
	assert.Empty(t, p.Leaves())
	assert.Nil(t, p.Config())

	require.NoError(t, p.Configure(testConfig()))
	assert.Equal(t, StateEmpty, p.State())
	report, err := p.Tick(quadtree.Viewer{})
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestRegenerateBuildsSixRoots(t *testing.T) {
	p := newPlanet(t, testConfig())
	assert.Equal(t, StateReady, p.State())

	roots := p.Roots()
	require.Len(t, roots, 6)
	for i, root := range roots {
		assert.Equal(t, tile.Root(sphere.Faces[i]), root.Key())
		assert.Equal(t, 5, root.Resolution())
		require.NotNil(t, root.Mesh())
		assert.True(t, root.Visible())
	}
	require.NotNil(t, p.Atmosphere())
	assert.InDelta(t, 10.2, p.Atmosphere().Radius, 1e-9)

	// A second regeneration releases the old roots first.
	report, err := p.Regenerate()
	require.NoError(t, err)
	assert.Len(t, report.Released, 6)
	assert.Len(t, report.Built, 6)
}

func TestCrossFaceRootSeams(t *testing.T) {
	p := newPlanet(t, testConfig())
	for _, face := range sphere.Faces {
		for _, e := range sphere.Edges {
			nb := sphere.Adjacent(face, e)
			mine := p.Roots()[face].Edges().Side(e)
			theirs := p.Roots()[nb.Face].Edges().Side(nb.Edge)
			if nb.Reversed {
				theirs = reversed(theirs)
			}
			assert.Equal(t, mine, theirs, "%s %s vs %s %s", face, e, nb.Face, nb.Edge)
		}
	}
}

// sideChildren returns the two children touching edge e, in edge parameter order.
func sideChildren(root *quadtree.Patch, e sphere.Edge) [2]*quadtree.Patch {
	c := root.Children()
	switch e {
	case sphere.EdgeBottom:
		return [2]*quadtree.Patch{c[0], c[1]}
	case sphere.EdgeTop:
		return [2]*quadtree.Patch{c[2], c[3]}
	case sphere.EdgeLeft:
		return [2]*quadtree.Patch{c[0], c[2]}
	default:
		return [2]*quadtree.Patch{c[1], c[3]}
	}
}

func TestCrossFaceChildSeams(t *testing.T) {
	for _, stitch := range []string{"interpolate", "recompute"} {
		cfg := testConfig()
		cfg.LOD.Stitch = stitch
		p := newPlanet(t, cfg)
		_, err := p.Tick(surfaceViewer(sphere.FaceUp, cfg.Planet.Radius))
		require.NoError(t, err)

		for _, face := range sphere.Faces {
			for _, e := range sphere.Edges {
				nb := sphere.Adjacent(face, e)
				a := sideChildren(p.Roots()[face], e)
				b := sideChildren(p.Roots()[nb.Face], nb.Edge)
				mine := append(append([]mgl64.Vec3{}, a[0].Edges().Side(e)...), a[1].Edges().Side(e)[1:]...)
				theirs := append(append([]mgl64.Vec3{}, b[0].Edges().Side(nb.Edge)...), b[1].Edges().Side(nb.Edge)[1:]...)
				if nb.Reversed {
					theirs = reversed(theirs)
				}
				assert.Equal(t, mine, theirs, "%s: %s %s vs %s %s", stitch, face, e, nb.Face, nb.Edge)
			}
		}
	}
}

func TestDepthScenario(t *testing.T) {
	cfg := testConfig()
	cfg.Planet.MinResolution = 3
	cfg.LOD.SubdivideDistance = 50
	cfg.LOD.MergeDistance = 60
	cfg.LOD.MaxDepth = 3
	p := newPlanet(t, cfg)

	_, err := p.Tick(surfaceViewer(sphere.FaceForward, cfg.Planet.Radius))
	require.NoError(t, err)
	for _, root := range p.Roots() {
		assert.Equal(t, 3, root.MaxDepth(), "face %s", root.Face())
	}
	stats := p.Stats()
	assert.Equal(t, 3, stats.MaxDepth)
	assert.Equal(t, tile.Count(3), stats.Leaves)
	assert.Equal(t, tile.Count(3), stats.Visible)
	assert.Equal(t, tile.Count(0)+tile.Count(1)+tile.Count(2)+tile.Count(3), stats.Patches)
}

func TestTargetResolution(t *testing.T) {
	cfg := testConfig()
	cfg.Planet.MinResolution = 5
	cfg.Planet.MaxResolution = 50
	cfg.LOD.MaxDistance = 50
	p := newPlanet(t, cfg)

	tests := []struct {
		dist float64
		want int
	}{
		{0, 50},
		{25, 28}, // round(27.5) rounds half away from zero
		{50, 5},
		{500, 5},
	}
	for _, tt := range tests {
		_, err := p.Tick(quadtree.Viewer{Position: mgl64.Vec3{tt.dist, 0, 0}})
		require.NoError(t, err)
		for _, f := range sphere.Faces {
			assert.Equal(t, tt.want, p.TargetResolution(f), "distance %v", tt.dist)
		}
	}
	// Structural changes only: roots keep their build resolution.
	assert.Equal(t, 5, p.Roots()[0].Resolution())
}

type reentrantBuilder struct {
	p    *Planet
	errs []error
}

func (b *reentrantBuilder) Build(params atmosphere.Params) (*atmosphere.Shell, error) {
	_, err := b.p.Regenerate()
	b.errs = append(b.errs, err)
	_, err = b.p.Tick(quadtree.Viewer{})
	b.errs = append(b.errs, err)
	b.errs = append(b.errs, b.p.Configure(config.Default()))
	return atmosphere.SphereBuilder{}.Build(params)
}

func TestRegenerateIsNotReentrant(t *testing.T) {
	b := &reentrantBuilder{}
	p, err := New(testConfig(), WithAtmosphereBuilder(b))
	require.NoError(t, err)
	b.p = p

	_, err = p.Regenerate()
	require.NoError(t, err)
	require.Len(t, b.errs, 3)
	for _, err := range b.errs {
		assert.True(t, errors.Is(err, ErrRegenerating))
	}
	assert.NotNil(t, p.Atmosphere())

	// The guard is released afterwards.
	_, err = p.Regenerate()
	require.NoError(t, err)
}

func TestConfigureRejectsInconsistentLOD(t *testing.T) {
	cfg := testConfig()
	cfg.LOD.MergeDistance = cfg.LOD.SubdivideDistance - 1
	_, err := New(cfg)
	assert.True(t, errors.Is(err, config.ErrInconsistentLOD))
}

func TestConfigureRejectsCollapsedHysteresis(t *testing.T) {
	cfg := testConfig()
	cfg.LOD.Hysteresis = 0.5
	_, err := New(cfg)
	assert.True(t, errors.Is(err, config.ErrInconsistentLOD))

	p := newPlanet(t, testConfig())
	assert.True(t, errors.Is(p.Configure(cfg), config.ErrInconsistentLOD))
	// The rejected record does not replace the active one.
	assert.Equal(t, quadtree.DefaultHysteresis, p.Config().LOD.Hysteresis)
}

func TestConfigureClampsInvalidValues(t *testing.T) {
	cfg := testConfig()
	cfg.Planet.Radius = -1
	cfg.Planet.MinResolution = 0
	p := newPlanet(t, cfg)
	assert.Equal(t, config.MinRadius, p.Config().Planet.Radius)
	assert.Equal(t, 2, p.Roots()[0].Resolution())
	// The caller's record is untouched.
	assert.Equal(t, -1.0, cfg.Planet.Radius)
}

func TestAtmosphereDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Atmosphere.Enabled = false
	p := newPlanet(t, cfg)
	assert.Nil(t, p.Atmosphere())
}

func TestPatchLookup(t *testing.T) {
	cfg := testConfig()
	cfg.LOD.MaxDepth = 2
	p := newPlanet(t, cfg)
	_, err := p.Tick(surfaceViewer(sphere.FaceUp, cfg.Planet.Radius))
	require.NoError(t, err)

	p.Walk(func(q *quadtree.Patch) bool {
		assert.Same(t, q, p.Patch(q.Key()))
		return true
	})
	assert.Nil(t, p.Patch(tile.NewKey(sphere.FaceUp, 3, 0, 0)))
	assert.Nil(t, p.Patch(tile.NewKey(sphere.FaceUp, 1, 2, 0)))
}

func TestCloseReleasesEverything(t *testing.T) {
	cfg := testConfig()
	p := newPlanet(t, cfg)
	_, err := p.Tick(surfaceViewer(sphere.FaceUp, cfg.Planet.Radius))
	require.NoError(t, err)
	total := p.Stats().Patches

	report := p.Close()
	assert.Len(t, report.Released, total)
	assert.Equal(t, StateEmpty, p.State())
	assert.Nil(t, p.Atmosphere())
}
