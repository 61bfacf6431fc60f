// Package tile addresses quadtree patches on the six cube faces.
package tile

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb/maptile"

	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
)

// MaxDepth is the deepest level a Key can address.
const MaxDepth = 30

// Key identifies a patch: a cube face plus a z/x/y cell of that face's UV square.
// At depth Z the face is split into 2^Z × 2^Z cells; X grows with u, Y grows with v.
type Key struct {
	Face sphere.Face
	Z    uint32 // Depth (0 = whole face)
	X    uint32 // Column along u
	Y    uint32 // Row along v
}

// Root returns the depth-0 key covering a whole face.
func Root(face sphere.Face) Key {
	return Key{Face: face}
}

// NewKey creates a key from face and z/x/y values.
func NewKey(face sphere.Face, z, x, y uint32) Key {
	return Key{Face: face, Z: z, X: x, Y: y}
}

// String returns the key as "f{face}_z{depth}_x{x}_y{y}".
func (k Key) String() string {
	return fmt.Sprintf("f%d_z%d_x%d_y%d", k.Face, k.Z, k.X, k.Y)
}

// Path returns a file name for this key.
func (k Key) Path(extension string) string {
	return fmt.Sprintf("%s.%s", k.String(), extension)
}

// ParseKey parses a key string like "f2_z3_x1_y5".
func ParseKey(s string) (Key, error) {
	var (
		k    Key
		face uint8
	)
	n, err := fmt.Sscanf(s, "f%d_z%d_x%d_y%d", &face, &k.Z, &k.X, &k.Y)
	if err != nil || n != 4 {
		return Key{}, fmt.Errorf("invalid patch key format: %s", s)
	}
	k.Face = sphere.Face(face)
	// Sscanf stops after the last verb, so only the canonical form is accepted.
	if k.String() != s {
		return Key{}, fmt.Errorf("invalid patch key format: %s", s)
	}
	if !k.Valid() {
		return Key{}, fmt.Errorf("patch key out of range: %s", s)
	}
	return k, nil
}

// Tile returns the maptile.Tile carrying this key's z/x/y.
func (k Key) Tile() maptile.Tile {
	return maptile.New(k.X, k.Y, maptile.Zoom(k.Z))
}

// Valid reports whether the face exists and x/y fit the depth.
func (k Key) Valid() bool {
	if !k.Face.Valid() || k.Z > MaxDepth {
		return false
	}
	n := uint32(1) << k.Z
	return k.X < n && k.Y < n
}

// Child returns child i of the key: i%2 selects the u half, i/2 the v half.
func (k Key) Child(i int) Key {
	return Key{
		Face: k.Face,
		Z:    k.Z + 1,
		X:    k.X<<1 + uint32(i%2),
		Y:    k.Y<<1 + uint32(i/2),
	}
}

// Children returns the four children in child-index order.
func (k Key) Children() [4]Key {
	return [4]Key{k.Child(0), k.Child(1), k.Child(2), k.Child(3)}
}

// Parent returns the enclosing key one level up. The root is its own parent.
func (k Key) Parent() Key {
	if k.Z == 0 {
		return k
	}
	p := k.Tile().Parent()
	return Key{Face: k.Face, Z: uint32(p.Z), X: p.X, Y: p.Y}
}

// ChildIndex returns which child of its parent the key is.
func (k Key) ChildIndex() int {
	return int(k.X&1) + 2*int(k.Y&1)
}

// Quadkey returns the interleaved z/x/y index of the key within its face.
func (k Key) Quadkey() uint64 {
	return k.Tile().Quadkey()
}

// Bounds returns the UV rectangle covered by the key. Values are dyadic
// fractions and therefore exact, so neighbouring keys share bounds bit for bit.
func (k Key) Bounds() (uvMin, uvMax mgl64.Vec2) {
	size := 1 / float64(uint64(1)<<k.Z)
	uvMin = mgl64.Vec2{float64(k.X) * size, float64(k.Y) * size}
	uvMax = mgl64.Vec2{float64(k.X+1) * size, float64(k.Y+1) * size}
	return uvMin, uvMax
}

// Center returns the UV centre of the key.
func (k Key) Center() mgl64.Vec2 {
	lo, hi := k.Bounds()
	return lo.Add(hi).Mul(0.5)
}

// Count returns the number of patches a fully subdivided planet has at depth z.
func Count(z int) int {
	return 6 * (1 << (2 * z))
}
