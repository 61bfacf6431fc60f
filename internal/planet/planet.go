// Package planet owns the six face quadtrees of a cube-sphere planet and
// drives their level of detail.
package planet

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/atmosphere"
	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/config"
	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/noise"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

var (
	// ErrUnconfigured is returned when no configuration has been set.
	ErrUnconfigured = errors.New("planet has no configuration")
	// ErrRegenerating is returned for calls made while a regeneration is running.
	ErrRegenerating = errors.New("planet regeneration already in progress")
)

// State describes what the planet currently holds.
type State int

const (
	StateUnconfigured State = iota
	StateEmpty
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Option customizes a Planet.
type Option func(*Planet)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planet) { p.logger = l }
}

// WithAtmosphereBuilder replaces the default atmosphere builder.
func WithAtmosphereBuilder(b atmosphere.Builder) Option {
	return func(p *Planet) { p.atmosphereBuilder = b }
}

// Planet is not safe for concurrent use; callers serialize Tick,
// Regenerate and Close.
type Planet struct {
	cfg     *config.Config
	field   *noise.Field
	surface *mesh.Surface
	env     *quadtree.Env

	roots     [6]*quadtree.Patch
	targetRes [6]int
	shell     *atmosphere.Shell

	regenerating      bool
	atmosphereBuilder atmosphere.Builder
	logger            *slog.Logger
}

// New creates a planet. cfg may be nil, leaving the planet unconfigured.
func New(cfg *config.Config, opts ...Option) (*Planet, error) {
	p := &Planet{atmosphereBuilder: atmosphere.SphereBuilder{}}
	for _, opt := range opts {
		opt(p)
	}
	if cfg != nil {
		if err := p.Configure(cfg); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Planet) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

// Configure swaps in a new configuration. The existing tree keeps its old
// surface until the next Regenerate.
func (p *Planet) Configure(cfg *config.Config) error {
	if p.regenerating {
		return ErrRegenerating
	}
	if cfg == nil {
		return ErrUnconfigured
	}
	cfg = cfg.Clone()
	for _, c := range cfg.Normalize() {
		p.log().Warn("Config value corrected", "correction", c)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid planet config: %w", err)
	}

	field, err := noise.New(cfg.NoiseParams(), cfg.Planet.Radius, cfg.BaseLandOffset())
	if err != nil {
		return fmt.Errorf("failed to create noise field: %w", err)
	}
	surface := mesh.NewSurface(cfg.Planet.Radius, cfg.BaseLandOffset(), field, colorize.New(cfg.ColorParams()))

	p.cfg = cfg
	p.field = field
	p.surface = surface
	p.env = &quadtree.Env{Surface: surface, Criteria: cfg.Criteria(), Logger: p.logger}
	return nil
}

// Config returns a copy of the active configuration, or nil.
func (p *Planet) Config() *config.Config {
	if p.cfg == nil {
		return nil
	}
	return p.cfg.Clone()
}

// State reports whether the planet is configured and has geometry.
func (p *Planet) State() State {
	switch {
	case p.cfg == nil:
		return StateUnconfigured
	case p.roots[0] == nil:
		return StateEmpty
	}
	return StateReady
}

// Regenerate discards the whole tree and builds the six root faces at the
// minimum resolution. Each root copies the edges of already-built
// neighbouring roots, so the faces meet without cracks.
func (p *Planet) Regenerate() (*quadtree.Report, error) {
	if p.cfg == nil {
		return nil, ErrUnconfigured
	}
	if p.regenerating {
		return nil, ErrRegenerating
	}
	p.regenerating = true
	defer func() { p.regenerating = false }()

	report := &quadtree.Report{}
	p.destroyRoots(report)

	res := p.cfg.Planet.MinResolution
	for _, face := range sphere.Faces {
		root := quadtree.NewRoot(p.env, face, res)
		_ = root.Build(p.rootConstraints(face), report)
		p.roots[face] = root
		p.targetRes[face] = res
	}

	p.shell = nil
	if p.cfg.Atmosphere.Enabled && p.atmosphereBuilder != nil {
		shell, err := p.atmosphereBuilder.Build(p.cfg.AtmosphereParams())
		if err != nil {
			p.log().Warn("Atmosphere build failed", "error", err)
		} else {
			p.shell = shell
		}
	}

	p.log().Info("Planet regenerated",
		"radius", p.cfg.Planet.Radius,
		"resolution", res,
		"built", len(report.Built),
		"failed", len(report.Failed),
		"atmosphere", p.shell != nil)
	return report, nil
}

func (p *Planet) rootConstraints(face sphere.Face) mesh.Edges {
	var c mesh.Edges
	for _, e := range sphere.Edges {
		nb := sphere.Adjacent(face, e)
		other := p.roots[nb.Face]
		if other == nil || other.Mesh() == nil {
			continue
		}
		side := other.Edges().Side(nb.Edge)
		if nb.Reversed {
			side = reversed(side)
		}
		c.Set(e, side)
	}
	return c
}

func reversed(in []mgl64.Vec3) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// Tick runs one LOD pass for the viewer. The per-face target resolution is
// recomputed and exposed, but only structural changes rebuild meshes.
func (p *Planet) Tick(v quadtree.Viewer) (*quadtree.Report, error) {
	if p.cfg == nil {
		return nil, ErrUnconfigured
	}
	if p.regenerating {
		return nil, ErrRegenerating
	}
	report := &quadtree.Report{}
	for _, face := range sphere.Faces {
		root := p.roots[face]
		if root == nil {
			continue
		}
		p.targetRes[face] = p.targetResolution(v.Position)
		root.Update(v, report)
	}
	if report.Changed() {
		p.log().Debug("LOD pass",
			"built", len(report.Built),
			"released", len(report.Released),
			"failed", len(report.Failed),
			"subdivided", report.Subdivided,
			"merged", report.Merged)
	}
	return report, nil
}

// targetResolution interpolates from max resolution at the planet centre to
// min resolution at lod.max_distance.
func (p *Planet) targetResolution(viewer mgl64.Vec3) int {
	lo, hi := p.cfg.Planet.MinResolution, p.cfg.Planet.MaxResolution
	t := viewer.Len() / p.cfg.LOD.MaxDistance
	t = math.Max(0, math.Min(1, t))
	res := int(math.Round(float64(hi) + (float64(lo)-float64(hi))*t))
	return max(lo, min(hi, res))
}

// TargetResolution returns the resolution last computed for a face.
func (p *Planet) TargetResolution(face sphere.Face) int {
	if !face.Valid() {
		return 0
	}
	return p.targetRes[face]
}

// Close releases the whole tree depth-first.
func (p *Planet) Close() *quadtree.Report {
	report := &quadtree.Report{}
	p.destroyRoots(report)
	p.shell = nil
	return report
}

func (p *Planet) destroyRoots(report *quadtree.Report) {
	for i, root := range p.roots {
		if root != nil {
			root.Destroy(report)
			p.roots[i] = nil
		}
	}
}

// Roots returns the six root patches in face order, or nil when empty.
func (p *Planet) Roots() []*quadtree.Patch {
	if p.roots[0] == nil {
		return nil
	}
	out := make([]*quadtree.Patch, len(p.roots))
	copy(out, p.roots[:])
	return out
}

// Walk visits every patch of every face in pre-order.
func (p *Planet) Walk(fn func(*quadtree.Patch) bool) {
	for _, root := range p.roots {
		if root != nil {
			root.Walk(fn)
		}
	}
}

// Leaves returns every leaf patch.
func (p *Planet) Leaves() []*quadtree.Patch {
	var out []*quadtree.Patch
	for _, root := range p.roots {
		if root != nil {
			out = append(out, root.Leaves()...)
		}
	}
	return out
}

// Patch looks up a patch by key, or returns nil when it does not exist.
func (p *Planet) Patch(k tile.Key) *quadtree.Patch {
	if !k.Valid() {
		return nil
	}
	node := p.roots[k.Face]
	for z := k.Z; node != nil && z > 0; z-- {
		children := node.Children()
		if children == nil {
			return nil
		}
		shift := z - 1
		i := int((k.X>>shift)&1) + 2*int((k.Y>>shift)&1)
		node = children[i]
	}
	return node
}

// Atmosphere returns the atmosphere shell, or nil.
func (p *Planet) Atmosphere() *atmosphere.Shell {
	return p.shell
}

// Surface returns the vertex placement surface, or nil when unconfigured.
func (p *Planet) Surface() *mesh.Surface {
	return p.surface
}

// Field returns the noise field, or nil when unconfigured.
func (p *Planet) Field() *noise.Field {
	return p.field
}
