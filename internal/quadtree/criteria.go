// Package quadtree maintains the distance-driven LOD tree of one cube face.
package quadtree

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
)

// AnchorMode selects the point distances are measured from.
type AnchorMode string

const (
	// AnchorPlanet measures from the planet origin and subtracts the radius,
	// so the distance is the viewer's altitude.
	AnchorPlanet AnchorMode = "planet"
	// AnchorPatch measures from the undisplaced surface point at the patch's UV centre.
	AnchorPatch AnchorMode = "patch"
)

// FOVMode selects how the view-angle gate compares angles.
type FOVMode string

const (
	// FOVOff treats every patch as in view.
	FOVOff FOVMode = "off"
	// FOVInverted is in view when the angle exceeds the maximum.
	FOVInverted FOVMode = "inverted"
	// FOVDirect is in view when the angle is at most the maximum.
	FOVDirect FOVMode = "direct"
)

// StitchMode selects how child edge points between two parent samples are filled.
type StitchMode string

const (
	// StitchInterpolate uses the midpoint of the neighbouring parent samples.
	StitchInterpolate StitchMode = "interpolate"
	// StitchRecompute evaluates the surface at the child's own UV.
	StitchRecompute StitchMode = "recompute"
)

// DefaultHysteresis scales the merge distance.
const DefaultHysteresis = 1.1

// Criteria holds the LOD thresholds shared by every patch.
type Criteria struct {
	MaxDepth          int
	SubdivideDistance float64
	MergeDistance     float64
	Hysteresis        float64
	Anchor            AnchorMode
	FOV               FOVMode
	MaxViewAngle      float64 // radians
	Stitch            StitchMode
}

// SubdivideThreshold returns the subdivide distance at depth.
func (c Criteria) SubdivideThreshold(depth int) float64 {
	return c.SubdivideDistance / float64(depth+1)
}

// MergeThreshold returns the distance past which children are merged.
func (c Criteria) MergeThreshold() float64 {
	h := c.Hysteresis
	if h <= 0 {
		h = DefaultHysteresis
	}
	return c.MergeDistance * h
}

// Validate checks the mode names.
func (c Criteria) Validate() error {
	switch c.Anchor {
	case AnchorPlanet, AnchorPatch, "":
	default:
		return fmt.Errorf("unknown anchor mode %q", c.Anchor)
	}
	switch c.FOV {
	case FOVOff, FOVInverted, FOVDirect, "":
	default:
		return fmt.Errorf("unknown fov mode %q", c.FOV)
	}
	switch c.Stitch {
	case StitchInterpolate, StitchRecompute, "":
	default:
		return fmt.Errorf("unknown stitch mode %q", c.Stitch)
	}
	return nil
}

// Viewer is the observer driving the LOD pass.
type Viewer struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
}

// Env is shared by every patch of a planet.
type Env struct {
	Surface  *mesh.Surface
	Criteria Criteria
	Logger   *slog.Logger
}

func (e *Env) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// angleBetween returns the unsigned angle between a and b in radians.
func angleBetween(a, b mgl64.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return 0
	}
	cos := a.Dot(b) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}
