package sphere

import "github.com/go-gl/mathgl/mgl64"

// Edge names one side of a face's UV square.
type Edge uint8

const (
	EdgeBottom Edge = iota // v = 0, parameterised by u
	EdgeTop                // v = 1, parameterised by u
	EdgeLeft               // u = 0, parameterised by v
	EdgeRight              // u = 1, parameterised by v
)

// Edges lists the four sides in the order the mesher resolves them.
var Edges = [4]Edge{EdgeBottom, EdgeTop, EdgeLeft, EdgeRight}

func (e Edge) String() string {
	switch e {
	case EdgeBottom:
		return "bottom"
	case EdgeTop:
		return "top"
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	}
	return "edge(?)"
}

// Corners returns the cube points at parameter 0 and 1 of the edge.
// Components are exactly ±1, so corners can be compared with ==.
func (f Face) Corners(e Edge) (start, end mgl64.Vec3) {
	switch e {
	case EdgeBottom:
		return f.PointOnCube(0, 0), f.PointOnCube(1, 0)
	case EdgeTop:
		return f.PointOnCube(0, 1), f.PointOnCube(1, 1)
	case EdgeLeft:
		return f.PointOnCube(0, 0), f.PointOnCube(0, 1)
	default:
		return f.PointOnCube(1, 0), f.PointOnCube(1, 1)
	}
}

// Neighbor describes the face sharing a cube edge.
type Neighbor struct {
	Face Face
	Edge Edge
	// Reversed is true when the neighbour's edge parameter runs opposite to ours.
	Reversed bool
}

var adjacency [6][4]Neighbor

func init() {
	for _, f := range Faces {
		for _, e := range Edges {
			s, t := f.Corners(e)
			for _, g := range Faces {
				if g == f {
					continue
				}
				for _, ge := range Edges {
					gs, gt := g.Corners(ge)
					switch {
					case gs == s && gt == t:
						adjacency[f][e] = Neighbor{Face: g, Edge: ge}
					case gs == t && gt == s:
						adjacency[f][e] = Neighbor{Face: g, Edge: ge, Reversed: true}
					}
				}
			}
		}
	}
}

// Adjacent returns the face and edge that share the cube edge e of face f.
func Adjacent(f Face, e Edge) Neighbor {
	return adjacency[f][e]
}
