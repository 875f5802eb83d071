// Package param flattens charts into the plane with a least squares
// conformal map, splitting charts that fold over and falling back to a
// planar projection when that keeps failing.
package param

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/uvatlas/internal/arena"
	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/math"
	"github.com/Faultbox/uvatlas/pkg/mesh"
)

// ErrParametrizationFailed reports a chart that was flattened by planar
// projection. It is a diagnostic, not a fatal error.
var ErrParametrizationFailed = errors.New("parametrization failed")

// Parametrize assigns UVs to c. A chart that folds over is split and solved
// again, so the result may hold several charts covering the faces of c.
// Fallback projections are returned as diagnostics; err is only set when
// the arena refuses the solver memory or reports an accounting error.
func Parametrize(m *mesh.Mesh, c *chart.Chart, opts chart.Options, a *arena.Arena) (charts []*chart.Chart, diags []error, err error) {
	bind(m, c)
	if c.InputUVs && m.UVs != nil {
		uvs := make([]math.Vec2, len(c.Vertices))
		for i, v := range c.Vertices {
			uvs[i] = m.UVs[v]
		}
		c.UVs = uvs
		if gomath.Abs(c.ParamArea()) > 0 {
			finish(m, c, opts)
			return []*chart.Chart{c}, nil, nil
		}
		c.UVs = nil
	}
	return parametrize(m, c, opts, a, 0)
}

func parametrize(m *mesh.Mesh, c *chart.Chart, opts chart.Options, a *arena.Arena, depth int) ([]*chart.Chart, []error, error) {
	uvs, err := solveLSCM(m, c, a)
	if errors.Is(err, arena.ErrAllocationFailure) || errors.Is(err, arena.ErrDoubleFree) {
		return nil, nil, err
	}

	worst := -1
	if err == nil {
		c.UVs = uvs
		var flipped int
		flipped, worst = countFlipped(m, c)
		if accept(flipped, len(c.Faces), opts.MaxFlippedFraction) {
			finish(m, c, opts)
			return []*chart.Chart{c}, nil, nil
		}
	}

	if depth < opts.MaxSplitDepth && len(c.Faces) > 1 {
		if worst < 0 {
			worst = 0
		}
		halves := split(m, c, worst)
		var charts []*chart.Chart
		var diags []error
		for _, h := range halves {
			bind(m, h)
			cs, ds, err := parametrize(m, h, opts, a, depth+1)
			if err != nil {
				return nil, nil, err
			}
			charts = append(charts, cs...)
			diags = append(diags, ds...)
		}
		return charts, diags, nil
	}

	project(m, c)
	c.Fallback = true
	finish(m, c, opts)
	reason := "too many inverted faces"
	if err != nil {
		reason = err.Error()
	}
	diag := fmt.Errorf("%w: mesh %d chart of %d faces projected to plane: %s",
		ErrParametrizationFailed, m.ID, len(c.Faces), reason)
	return []*chart.Chart{c}, []error{diag}, nil
}

// accept reports whether a map with flipped of total inverted faces is
// usable.
func accept(flipped, total int, maxFraction float64) bool {
	if flipped == 0 {
		return true
	}
	return float64(flipped)/float64(total) < maxFraction
}

// bind numbers the chart-local vertices: one per mesh vertex used by the
// chart, in first-use order.
func bind(m *mesh.Mesh, c *chart.Chart) {
	local := make(map[uint32]uint32, len(c.Faces)*2)
	c.Vertices = c.Vertices[:0]
	c.Indices = make([]uint32, 0, 3*len(c.Faces))
	c.UVs = nil
	for _, f := range c.Faces {
		for _, v := range m.Faces[f].V {
			id, ok := local[v]
			if !ok {
				id = uint32(len(c.Vertices))
				local[v] = id
				c.Vertices = append(c.Vertices, v)
			}
			c.Indices = append(c.Indices, id)
		}
	}
}

// countFlipped counts faces with positive surface area whose UV triangle
// has non-positive signed area. It also returns the worst such face as a
// position in c.Faces, or -1.
func countFlipped(m *mesh.Mesh, c *chart.Chart) (int, int) {
	flipped, worst := 0, -1
	worstRatio := gomath.Inf(1)
	for i, f := range c.Faces {
		area3 := m.Faces[f].Area
		if area3 <= 0 {
			continue
		}
		area2 := math.TriangleArea(c.UVs[c.Indices[3*i]], c.UVs[c.Indices[3*i+1]], c.UVs[c.Indices[3*i+2]])
		if area2 > 0 {
			continue
		}
		flipped++
		if r := area2 / area3; r < worstRatio {
			worst, worstRatio = i, r
		}
	}
	return flipped, worst
}

// split divides c into two connected halves grown breadth-first from the
// face at position seed and the face farthest from it.
func split(m *mesh.Mesh, c *chart.Chart, seed int) []*chart.Chart {
	pos := make(map[int]int, len(c.Faces))
	for i, f := range c.Faces {
		pos[f] = i
	}

	_, far := flood(m, c, pos, seed)
	if far == seed {
		far = (seed + 1) % len(c.Faces)
	}
	label, _ := flood(m, c, pos, seed, far)

	var a, b []int
	for i, l := range label {
		if l == 1 {
			b = append(b, c.Faces[i])
		} else {
			a = append(a, c.Faces[i])
		}
	}
	return []*chart.Chart{chart.New(m, a), chart.New(m, b)}
}

// flood labels chart faces with the index of the nearest source, breadth
// first. It also returns the last face reached.
func flood(m *mesh.Mesh, c *chart.Chart, pos map[int]int, sources ...int) ([]int, int) {
	label := make([]int, len(c.Faces))
	for i := range label {
		label[i] = -1
	}
	queue := make([]int, 0, len(c.Faces))
	for l, s := range sources {
		label[s] = l
		queue = append(queue, s)
	}
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		for e := 0; e < 3; e++ {
			g := m.Neighbor(c.Faces[cur], e)
			if g < 0 {
				continue
			}
			j, ok := pos[g]
			if !ok || label[j] >= 0 {
				continue
			}
			label[j] = label[cur]
			queue = append(queue, j)
		}
	}
	return label, queue[len(queue)-1]
}

// project flattens c orthographically onto the plane of its normal.
func project(m *mesh.Mesh, c *chart.Chart) {
	pl := newPlane(c.Normal)
	c.UVs = make([]math.Vec2, len(c.Vertices))
	for i, v := range c.Vertices {
		c.UVs[i] = pl.project(m.Positions[v])
	}
}

// finish fixes winding if requested, scales the map so its area matches the
// surface area, and moves its lower corner to the origin.
func finish(m *mesh.Mesh, c *chart.Chart, opts chart.Options) {
	if opts.FixWinding && c.ParamArea() < 0 {
		for i := range c.UVs {
			c.UVs[i].X = -c.UVs[i].X
		}
	}

	var area2 float64
	for i := 0; i+2 < len(c.Indices); i += 3 {
		area2 += gomath.Abs(math.TriangleArea(c.UVs[c.Indices[i]], c.UVs[c.Indices[i+1]], c.UVs[c.Indices[i+2]]))
	}
	scale := 1.0
	if area2 > 0 && c.Area > 0 {
		scale = gomath.Sqrt(c.Area / area2)
	}
	lower, _ := math.Bounds(c.UVs)
	for i := range c.UVs {
		c.UVs[i] = c.UVs[i].Sub(lower).Scale(scale)
	}
	c.Flipped, _ = countFlipped(m, c)
}
