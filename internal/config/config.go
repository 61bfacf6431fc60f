// Package config holds the planet configuration record.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cubeplanet/assets"
	"github.com/MeKo-Tech/cubeplanet/internal/atmosphere"
	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/noise"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

const (
	// MinRadius is the floor non-positive radii are clamped to.
	MinRadius = 0.001
	// MinResolution is the smallest usable patch grid.
	MinResolution = 2
)

// ErrInconsistentLOD is returned when the merge threshold does not exceed the
// root subdivide threshold, or a LOD distance is not a finite number.
var ErrInconsistentLOD = errors.New("merge threshold must be greater than subdivide_distance")

// Config is the configuration record consumed by the planet. It is treated
// as immutable for one regeneration cycle.
type Config struct {
	Planet     PlanetConfig     `mapstructure:"planet" yaml:"planet"`
	LOD        LODConfig        `mapstructure:"lod" yaml:"lod"`
	Noise      NoiseConfig      `mapstructure:"noise" yaml:"noise"`
	Color      ColorConfig      `mapstructure:"color" yaml:"color"`
	Atmosphere AtmosphereConfig `mapstructure:"atmosphere" yaml:"atmosphere"`
}

type PlanetConfig struct {
	Radius        float64 `mapstructure:"radius" yaml:"radius"`
	MinResolution int     `mapstructure:"min_resolution" yaml:"min_resolution"`
	MaxResolution int     `mapstructure:"max_resolution" yaml:"max_resolution"`
}

type LODConfig struct {
	MaxDistance       float64 `mapstructure:"max_distance" yaml:"max_distance"`
	SubdivideDistance float64 `mapstructure:"subdivide_distance" yaml:"subdivide_distance"`
	MergeDistance     float64 `mapstructure:"merge_distance" yaml:"merge_distance"`
	MaxDepth          int     `mapstructure:"max_depth" yaml:"max_depth"`
	Hysteresis        float64 `mapstructure:"hysteresis" yaml:"hysteresis"`
	Anchor            string  `mapstructure:"anchor" yaml:"anchor"`
	FOV               string  `mapstructure:"fov" yaml:"fov"`
	MaxViewAngle      float64 `mapstructure:"max_view_angle" yaml:"max_view_angle"` // degrees
	Stitch            string  `mapstructure:"stitch" yaml:"stitch"`
}

type NoiseConfig struct {
	Basis            string  `mapstructure:"basis" yaml:"basis"`
	Seed             int64   `mapstructure:"seed" yaml:"seed"`
	Strength         float64 `mapstructure:"strength" yaml:"strength"`
	Scale            float64 `mapstructure:"scale" yaml:"scale"`
	Octaves          int     `mapstructure:"octaves" yaml:"octaves"`
	Persistence      float64 `mapstructure:"persistence" yaml:"persistence"`
	MountainExponent float64 `mapstructure:"mountain_exponent" yaml:"mountain_exponent"`
	BaseLandOffset   float64 `mapstructure:"base_land_offset" yaml:"base_land_offset"` // × radius
}

// ColorConfig thresholds are multipliers of the radius, except the slope threshold.
type ColorConfig struct {
	WaterThreshold float64   `mapstructure:"water_threshold" yaml:"water_threshold"`
	WaterBlend     float64   `mapstructure:"water_blend" yaml:"water_blend"`
	SlopeThreshold float64   `mapstructure:"slope_threshold" yaml:"slope_threshold"`
	Water          []float64 `mapstructure:"water" yaml:"water,flow"`
	Grass          []float64 `mapstructure:"grass" yaml:"grass,flow"`
	Rock           []float64 `mapstructure:"rock" yaml:"rock,flow"`
}

type AtmosphereConfig struct {
	Enabled      bool      `mapstructure:"enabled" yaml:"enabled"`
	Color        []float64 `mapstructure:"color" yaml:"color,flow"`
	SunsetColor  []float64 `mapstructure:"sunset_color" yaml:"sunset_color,flow"`
	Intensity    float64   `mapstructure:"intensity" yaml:"intensity"`
	Scale        float64   `mapstructure:"scale" yaml:"scale"`
	Thickness    float64   `mapstructure:"thickness" yaml:"thickness"`
	SunDirection []float64 `mapstructure:"sun_direction" yaml:"sun_direction,flow"`
	Segments     int       `mapstructure:"segments" yaml:"segments"`
	Rings        int       `mapstructure:"rings" yaml:"rings"`
}

// Default returns the built-in configuration. It matches assets/planet.yaml.
func Default() *Config {
	return &Config{
		Planet: PlanetConfig{Radius: 10, MinResolution: 5, MaxResolution: 50},
		LOD: LODConfig{
			MaxDistance:       50,
			SubdivideDistance: 50,
			MergeDistance:     60,
			MaxDepth:          3,
			Hysteresis:        quadtree.DefaultHysteresis,
			Anchor:            string(quadtree.AnchorPlanet),
			FOV:               string(quadtree.FOVOff),
			MaxViewAngle:      90,
			Stitch:            string(quadtree.StitchInterpolate),
		},
		Noise: NoiseConfig{
			Basis:            string(noise.BasisPerlin),
			Strength:         2,
			Scale:            2,
			Octaves:          4,
			Persistence:      0.5,
			MountainExponent: 2,
			BaseLandOffset:   0.005,
		},
		Color: ColorConfig{
			WaterThreshold: 0.995,
			WaterBlend:     0.05,
			SlopeThreshold: 0.7,
			Water:          []float64{0, 0.3, 1},
			Grass:          []float64{0.1, 0.8, 0},
			Rock:           []float64{0.3, 0.3, 0.3},
		},
		Atmosphere: AtmosphereConfig{
			Enabled:      true,
			Color:        []float64{0.3, 0.5, 1},
			SunsetColor:  []float64{1, 0.4, 0.2},
			Intensity:    0.3,
			Scale:        1.02,
			Thickness:    0.05,
			SunDirection: []float64{-0.32, -0.77, 0.55},
			Segments:     24,
			Rings:        16,
		},
	}
}

// ReadDefaults merges the embedded default YAML into v.
func ReadDefaults(v *viper.Viper) error {
	v.SetConfigType("yaml")
	if err := v.MergeConfig(bytes.NewReader(assets.DefaultConfig)); err != nil {
		return fmt.Errorf("failed to read default config: %w", err)
	}
	return nil
}

// Load decodes v on top of Default, clamps it and validates it. The
// returned corrections describe every clamped value.
func Load(v *viper.Viper) (*Config, []string, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}
	corrections := cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, corrections, err
	}
	return cfg, corrections, nil
}

// Normalize clamps out-of-range values in place and returns a description
// of each correction.
func (c *Config) Normalize() []string {
	var out []string
	fix := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}

	if c.Planet.Radius <= 0 || math.IsNaN(c.Planet.Radius) {
		fix("planet.radius %v clamped to %v", c.Planet.Radius, MinRadius)
		c.Planet.Radius = MinRadius
	}
	if c.Planet.MinResolution < MinResolution {
		fix("planet.min_resolution %d clamped to %d", c.Planet.MinResolution, MinResolution)
		c.Planet.MinResolution = MinResolution
	}
	if c.Planet.MaxResolution < MinResolution {
		fix("planet.max_resolution %d clamped to %d", c.Planet.MaxResolution, MinResolution)
		c.Planet.MaxResolution = MinResolution
	}
	if c.Planet.MinResolution > c.Planet.MaxResolution {
		fix("planet.max_resolution %d raised to min_resolution %d", c.Planet.MaxResolution, c.Planet.MinResolution)
		c.Planet.MaxResolution = c.Planet.MinResolution
	}

	if c.LOD.MaxDepth < 0 {
		fix("lod.max_depth %d clamped to 0", c.LOD.MaxDepth)
		c.LOD.MaxDepth = 0
	}
	if c.LOD.MaxDepth > tile.MaxDepth {
		fix("lod.max_depth %d clamped to %d", c.LOD.MaxDepth, tile.MaxDepth)
		c.LOD.MaxDepth = tile.MaxDepth
	}
	if c.LOD.MaxDistance <= 0 {
		fix("lod.max_distance %v clamped to %v", c.LOD.MaxDistance, c.Planet.Radius)
		c.LOD.MaxDistance = c.Planet.Radius
	}
	if c.LOD.Hysteresis <= 0 {
		fix("lod.hysteresis %v reset to %v", c.LOD.Hysteresis, quadtree.DefaultHysteresis)
		c.LOD.Hysteresis = quadtree.DefaultHysteresis
	}
	c.LOD.Anchor = strings.ToLower(c.LOD.Anchor)
	c.LOD.FOV = strings.ToLower(c.LOD.FOV)
	c.LOD.Stitch = strings.ToLower(c.LOD.Stitch)
	c.Noise.Basis = strings.ToLower(c.Noise.Basis)

	if c.Noise.Octaves < 1 {
		fix("noise.octaves %d clamped to 1", c.Noise.Octaves)
		c.Noise.Octaves = 1
	}

	def := Default()
	// A non-positive exponent diverges at zero noise.
	if !(c.Noise.MountainExponent > 0) || math.IsInf(c.Noise.MountainExponent, 0) {
		fix("noise.mountain_exponent %v reset to %v", c.Noise.MountainExponent, def.Noise.MountainExponent)
		c.Noise.MountainExponent = def.Noise.MountainExponent
	}
	if !(c.Noise.Persistence >= 0) || math.IsInf(c.Noise.Persistence, 0) {
		fix("noise.persistence %v reset to %v", c.Noise.Persistence, def.Noise.Persistence)
		c.Noise.Persistence = def.Noise.Persistence
	}
	fixColor := func(name string, v *[]float64, fallback []float64) {
		if _, ok := colorize.FromSlice(*v); !ok {
			fix("%s needs 3 or 4 components, using default", name)
			*v = fallback
		}
	}
	fixColor("color.water", &c.Color.Water, def.Color.Water)
	fixColor("color.grass", &c.Color.Grass, def.Color.Grass)
	fixColor("color.rock", &c.Color.Rock, def.Color.Rock)
	fixColor("atmosphere.color", &c.Atmosphere.Color, def.Atmosphere.Color)
	fixColor("atmosphere.sunset_color", &c.Atmosphere.SunsetColor, def.Atmosphere.SunsetColor)

	if len(c.Atmosphere.SunDirection) != 3 || vec3(c.Atmosphere.SunDirection).Len() == 0 {
		fix("atmosphere.sun_direction must be a non-zero 3-vector, using default")
		c.Atmosphere.SunDirection = def.Atmosphere.SunDirection
	}
	if c.Atmosphere.Segments < 3 {
		fix("atmosphere.segments %d clamped to 3", c.Atmosphere.Segments)
		c.Atmosphere.Segments = 3
	}
	if c.Atmosphere.Rings < 2 {
		fix("atmosphere.rings %d clamped to 2", c.Atmosphere.Rings)
		c.Atmosphere.Rings = 2
	}
	return out
}

// Validate rejects settings that cannot be clamped into meaning.
func (c *Config) Validate() error {
	lod := c.LOD
	for _, v := range []float64{lod.SubdivideDistance, lod.MergeDistance, lod.Hysteresis} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w (merge %v, subdivide %v, hysteresis %v)",
				ErrInconsistentLOD, lod.MergeDistance, lod.SubdivideDistance, lod.Hysteresis)
		}
	}
	if lod.MergeDistance <= lod.SubdivideDistance {
		return fmt.Errorf("%w (merge %v, subdivide %v)", ErrInconsistentLOD, lod.MergeDistance, lod.SubdivideDistance)
	}
	// The tree merges at merge × hysteresis, so that product must stay above
	// the widest subdivide threshold or patches flip on every tick.
	crit := c.Criteria()
	if merge, split := crit.MergeThreshold(), crit.SubdivideThreshold(0); merge <= split {
		return fmt.Errorf("%w (merge threshold %v with hysteresis %v, subdivide %v)",
			ErrInconsistentLOD, merge, lod.Hysteresis, split)
	}
	if err := c.Criteria().Validate(); err != nil {
		return err
	}
	if _, err := noise.NewSampler(noise.Basis(c.Noise.Basis), 0); err != nil {
		return err
	}
	return nil
}

// Criteria returns the LOD thresholds for the quadtree.
func (c *Config) Criteria() quadtree.Criteria {
	return quadtree.Criteria{
		MaxDepth:          c.LOD.MaxDepth,
		SubdivideDistance: c.LOD.SubdivideDistance,
		MergeDistance:     c.LOD.MergeDistance,
		Hysteresis:        c.LOD.Hysteresis,
		Anchor:            quadtree.AnchorMode(c.LOD.Anchor),
		FOV:               quadtree.FOVMode(c.LOD.FOV),
		MaxViewAngle:      mgl64.DegToRad(c.LOD.MaxViewAngle),
		Stitch:            quadtree.StitchMode(c.LOD.Stitch),
	}
}

// NoiseParams returns the noise field parameters.
func (c *Config) NoiseParams() noise.Params {
	return noise.Params{
		Basis:            noise.Basis(c.Noise.Basis),
		Seed:             c.Noise.Seed,
		Strength:         c.Noise.Strength,
		Scale:            c.Noise.Scale,
		Octaves:          c.Noise.Octaves,
		Persistence:      c.Noise.Persistence,
		MountainExponent: c.Noise.MountainExponent,
	}
}

// BaseLandOffset returns the absolute land offset.
func (c *Config) BaseLandOffset() float64 {
	return c.Noise.BaseLandOffset * c.Planet.Radius
}

// ColorParams returns the colorizer parameters with thresholds scaled by the radius.
func (c *Config) ColorParams() colorize.Params {
	water, _ := colorize.FromSlice(c.Color.Water)
	grass, _ := colorize.FromSlice(c.Color.Grass)
	rock, _ := colorize.FromSlice(c.Color.Rock)
	return colorize.Params{
		WaterThreshold: c.Planet.Radius * c.Color.WaterThreshold,
		WaterBlend:     c.Planet.Radius * c.Color.WaterBlend,
		SlopeThreshold: c.Color.SlopeThreshold,
		Water:          water,
		Grass:          grass,
		Rock:           rock,
	}
}

// SunDirection returns the normalized direction sunlight travels.
func (c *Config) SunDirection() mgl64.Vec3 {
	return vec3(c.Atmosphere.SunDirection).Normalize()
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Color.Water = append([]float64(nil), c.Color.Water...)
	out.Color.Grass = append([]float64(nil), c.Color.Grass...)
	out.Color.Rock = append([]float64(nil), c.Color.Rock...)
	out.Atmosphere.Color = append([]float64(nil), c.Atmosphere.Color...)
	out.Atmosphere.SunsetColor = append([]float64(nil), c.Atmosphere.SunsetColor...)
	out.Atmosphere.SunDirection = append([]float64(nil), c.Atmosphere.SunDirection...)
	return &out
}

func vec3(v []float64) mgl64.Vec3 {
	if len(v) < 3 {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{v[0], v[1], v[2]}
}

// AtmosphereParams returns the atmosphere shell parameters.
func (c *Config) AtmosphereParams() atmosphere.Params {
	col, _ := colorize.FromSlice(c.Atmosphere.Color)
	sunset, _ := colorize.FromSlice(c.Atmosphere.SunsetColor)
	return atmosphere.Params{
		PlanetRadius: c.Planet.Radius,
		Scale:        c.Atmosphere.Scale,
		Thickness:    c.Atmosphere.Thickness,
		Intensity:    c.Atmosphere.Intensity,
		Color:        col,
		SunsetColor:  sunset,
		SunDirection: c.SunDirection(),
		Segments:     c.Atmosphere.Segments,
		Rings:        c.Atmosphere.Rings,
	}
}
