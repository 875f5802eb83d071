// Package chart segments a mesh surface into charts: connected face sets that
// flatten with little distortion.
package chart

import (
	"fmt"

	"github.com/Faultbox/uvatlas/pkg/math"
	"github.com/Faultbox/uvatlas/pkg/mesh"
)

// Chart is a connected set of faces of one mesh. The parametrization fields
// are filled in by package param.
type Chart struct {
	MeshID int
	Faces  []int

	Normal    math.Vec3 // area-weighted unit normal
	Area      float64
	Perimeter float64

	// InputUVs marks charts built from input UV islands.
	InputUVs bool

	// Vertices maps chart-local vertex to the original mesh vertex.
	Vertices []uint32
	// Indices holds three chart-local vertex indices per face, in Faces order.
	Indices []uint32
	UVs     []math.Vec2

	// Fallback is set when the chart was flattened by planar projection
	// after the conformal solve could not produce a valid map.
	Fallback bool
	// Flipped counts inverted triangles in the accepted parametrization.
	Flipped int
}

// FaceCount returns the number of faces in the chart.
func (c *Chart) FaceCount() int { return len(c.Faces) }

// Parametrized reports whether UVs have been assigned.
func (c *Chart) Parametrized() bool { return len(c.UVs) > 0 && len(c.UVs) == len(c.Vertices) }

// ParamArea returns the signed area of the parametrization.
func (c *Chart) ParamArea() float64 {
	var a float64
	for i := 0; i+2 < len(c.Indices); i += 3 {
		a += math.TriangleArea(c.UVs[c.Indices[i]], c.UVs[c.Indices[i+1]], c.UVs[c.Indices[i+2]])
	}
	return a
}

// EstimateBytes approximates the memory held by the chart.
func (c *Chart) EstimateBytes() int64 {
	return int64(len(c.Faces))*8 + int64(len(c.Vertices))*4 + int64(len(c.Indices))*4 + int64(len(c.UVs))*16
}

// New creates a chart from faces of m and computes its summary geometry.
func New(m *mesh.Mesh, faces []int) *Chart {
	c := &Chart{MeshID: m.ID, Faces: faces}
	var normal math.Vec3
	inChart := make(map[int]bool, len(faces))
	for _, f := range faces {
		inChart[f] = true
	}
	for _, f := range faces {
		face := &m.Faces[f]
		normal = normal.Add(face.Normal.Scale(face.Area))
		c.Area += face.Area
		for e := 0; e < 3; e++ {
			if g := m.Neighbor(f, e); g < 0 || !inChart[g] {
				c.Perimeter += face.EdgeLength[e]
			}
		}
	}
	c.Normal = normal.Normalize()
	return c
}

// CheckPartition verifies that charts cover every face of m exactly once and
// that each chart is connected through mesh adjacency.
func CheckPartition(m *mesh.Mesh, charts []*Chart) error {
	owner := make([]int, m.FaceCount())
	for i := range owner {
		owner[i] = -1
	}
	for ci, c := range charts {
		if c.MeshID != m.ID {
			return fmt.Errorf("chart %d belongs to mesh %d, not %d", ci, c.MeshID, m.ID)
		}
		if len(c.Faces) == 0 {
			return fmt.Errorf("chart %d is empty", ci)
		}
		for _, f := range c.Faces {
			if f < 0 || f >= len(owner) {
				return fmt.Errorf("chart %d references face %d out of range", ci, f)
			}
			if owner[f] >= 0 {
				return fmt.Errorf("face %d is in charts %d and %d", f, owner[f], ci)
			}
			owner[f] = ci
		}
	}
	for f, ci := range owner {
		if ci < 0 {
			return fmt.Errorf("face %d is not in any chart", f)
		}
	}

	for ci, c := range charts {
		seen := map[int]bool{c.Faces[0]: true}
		stack := []int{c.Faces[0]}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for e := 0; e < 3; e++ {
				g := m.Neighbor(f, e)
				if g >= 0 && owner[g] == ci && !seen[g] {
					seen[g] = true
					stack = append(stack, g)
				}
			}
		}
		if len(seen) != len(c.Faces) {
			return fmt.Errorf("chart %d is not connected (%d of %d faces reachable)", ci, len(seen), len(c.Faces))
		}
	}
	return nil
}
