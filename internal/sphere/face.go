// Package sphere maps cube faces onto the unit sphere.
package sphere

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Face identifies one of the six cube faces by its outward axis.
type Face uint8

const (
	FaceUp Face = iota
	FaceDown
	FaceLeft
	FaceRight
	FaceForward
	FaceBack
)

// Faces lists all cube faces in build order.
var Faces = [6]Face{FaceUp, FaceDown, FaceLeft, FaceRight, FaceForward, FaceBack}

var faceNames = [6]string{"up", "down", "left", "right", "forward", "back"}

var faceNormals = [6]mgl64.Vec3{
	{0, 1, 0},
	{0, -1, 0},
	{-1, 0, 0},
	{1, 0, 0},
	{0, 0, 1},
	{0, 0, -1},
}

// Valid reports whether f names a cube face.
func (f Face) Valid() bool {
	return int(f) < len(faceNormals)
}

// String returns the face name ("up", "down", ...).
func (f Face) String() string {
	if !f.Valid() {
		return fmt.Sprintf("face(%d)", uint8(f))
	}
	return faceNames[f]
}

// ParseFace parses a face name as returned by String.
func ParseFace(s string) (Face, error) {
	for i, name := range faceNames {
		if name == s {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cube face %q", s)
}

// Up returns the outward unit axis of the face.
func (f Face) Up() mgl64.Vec3 {
	return faceNormals[f]
}

// Axes returns the two in-plane axes of the face. axisA swizzles the up
// vector (y, z, x); axisB is up × axisA.
func (f Face) Axes() (axisA, axisB mgl64.Vec3) {
	up := f.Up()
	axisA = mgl64.Vec3{up.Y(), up.Z(), up.X()}
	axisB = up.Cross(axisA)
	return axisA, axisB
}

// PointOnCube returns the point of the face at (u, v) in [0,1]².
func (f Face) PointOnCube(u, v float64) mgl64.Vec3 {
	axisA, axisB := f.Axes()
	return f.Up().
		Add(axisA.Mul((u - 0.5) * 2)).
		Add(axisB.Mul((v - 0.5) * 2))
}

// Direction returns the unit-sphere direction for (u, v) on the face.
func (f Face) Direction(u, v float64) mgl64.Vec3 {
	return f.PointOnCube(u, v).Normalize()
}
