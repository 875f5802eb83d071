package param

import (
	gomath "math"

	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/math"
	"github.com/Faultbox/uvatlas/pkg/mesh"
)

// Quality summarizes the distortion of a parametrized chart.
type Quality struct {
	// Stretch is the area weighted L2 texture stretch. An isometric map
	// scores 1.
	Stretch float64
	Flipped int
}

// Measure computes the distortion of c's parametrization. Faces with zero
// area on either side are ignored.
func Measure(m *mesh.Mesh, c *chart.Chart) Quality {
	q := Quality{Flipped: c.Flipped}
	if !c.Parametrized() {
		return q
	}

	var sum, weight float64
	for i, f := range c.Faces {
		face := &m.Faces[f]
		p := [3]math.Vec2{c.UVs[c.Indices[3*i]], c.UVs[c.Indices[3*i+1]], c.UVs[c.Indices[3*i+2]]}
		area2 := math.TriangleArea(p[0], p[1], p[2])
		if face.Area <= 0 || area2 == 0 {
			continue
		}
		x := [3]math.Vec3{m.Positions[face.V[0]], m.Positions[face.V[1]], m.Positions[face.V[2]]}

		// Partial derivatives of the inverse map along s and t.
		ds := x[0].Scale(p[1].Y - p[2].Y).Add(x[1].Scale(p[2].Y - p[0].Y)).Add(x[2].Scale(p[0].Y - p[1].Y)).Scale(1 / (2 * area2))
		dt := x[0].Scale(p[2].X - p[1].X).Add(x[1].Scale(p[0].X - p[2].X)).Add(x[2].Scale(p[1].X - p[0].X)).Scale(1 / (2 * area2))
		l2 := (ds.Dot(ds) + dt.Dot(dt)) / 2

		sum += l2 * face.Area
		weight += face.Area
	}
	if weight > 0 {
		q.Stretch = gomath.Sqrt(sum / weight)
	}
	return q
}
