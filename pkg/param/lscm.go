package param

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/uvatlas/internal/arena"
	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/math"
	"github.com/Faultbox/uvatlas/pkg/mesh"
	"gonum.org/v1/gonum/mat"
)

const (
	solverTolerance     = 1e-10
	maxSolverIterations = 20000
)

var errDegenerate = errors.New("degenerate chart")

// plane projects points onto the plane orthogonal to a normal.
type plane struct{ t, b math.Vec3 }

func newPlane(n math.Vec3) plane {
	if n.IsZero() {
		n = math.Vec3{Z: 1}
	}
	t, b := n.Basis()
	return plane{t: t, b: b}
}

func (p plane) project(v math.Vec3) math.Vec2 {
	return math.Vec2{X: v.Dot(p.t), Y: v.Dot(p.b)}
}

// solveLSCM computes a least squares conformal map of the chart and returns
// one coordinate per chart-local vertex. The linear system is built over
// welded vertices so attribute seams inside the chart stay closed.
func solveLSCM(m *mesh.Mesh, c *chart.Chart, a *arena.Arena) (uvs []math.Vec2, err error) {
	index := make(map[uint32]int)
	var welded []uint32
	of := make([]int, len(c.Vertices))
	for i, v := range c.Vertices {
		cv := m.Canonical[v]
		id, ok := index[cv]
		if !ok {
			id = len(welded)
			index[cv] = id
			welded = append(welded, cv)
		}
		of[i] = id
	}

	pl := newPlane(c.Normal)
	proj := make([]math.Vec2, len(welded))
	for i, v := range welded {
		proj[i] = pl.project(m.Positions[v])
	}

	pin0, pin1, ok := pins(proj)
	if !ok {
		return nil, fmt.Errorf("%w: chart has no planar extent", errDegenerate)
	}

	col := make([]int, len(welded))
	free := 0
	for i := range col {
		if i == pin0 || i == pin1 {
			col[i] = -1
			continue
		}
		col[i] = 2 * free
		free++
	}
	cols := 2 * free

	rowHint := 2 * len(c.Faces)
	nnzHint := 6 * rowHint
	if a != nil {
		blk, aerr := a.Alloc(arena.KindSolver, sparseBytes(rowHint, cols, nnzHint))
		if aerr != nil {
			return nil, aerr
		}
		defer func() {
			if ferr := a.Free(blk); ferr != nil {
				uvs, err = nil, ferr
			}
		}()
	}

	s := newSparse(cols, rowHint, nnzHint)
	var rhs []float64
	for fi, f := range c.Faces {
		z, ok := localFrame(m, &m.Faces[f])
		if !ok {
			continue
		}
		var ids [3]int
		for k := range ids {
			ids[k] = of[c.Indices[3*fi+k]]
		}
		w := 1 / gomath.Sqrt(m.Faces[f].Area)

		// Real part: sum a*u - b*v with W_k = a + ib = z[k+1] - z[k+2].
		var re, im float64
		for k := 0; k < 3; k++ {
			d := z[(k+1)%3].Sub(z[(k+2)%3]).Scale(w)
			v := ids[k]
			if col[v] < 0 {
				re -= d.X*proj[v].X - d.Y*proj[v].Y
				continue
			}
			s.set(col[v], d.X)
			s.set(col[v]+1, -d.Y)
		}
		s.endRow()
		rhs = append(rhs, re)

		// Imaginary part: sum b*u + a*v.
		for k := 0; k < 3; k++ {
			d := z[(k+1)%3].Sub(z[(k+2)%3]).Scale(w)
			v := ids[k]
			if col[v] < 0 {
				im -= d.Y*proj[v].X + d.X*proj[v].Y
				continue
			}
			s.set(col[v], d.Y)
			s.set(col[v]+1, d.X)
		}
		s.endRow()
		rhs = append(rhs, im)
	}
	if s.rows() == 0 {
		return nil, fmt.Errorf("%w: every face is degenerate", errDegenerate)
	}

	x := make([]float64, cols)
	for i, k := range col {
		if k >= 0 {
			x[k], x[k+1] = proj[i].X, proj[i].Y
		}
	}
	if cols > 0 {
		xv := mat.NewVecDense(cols, x)
		maxIter := min(4*cols+100, maxSolverIterations)
		cgls(s, mat.NewVecDense(len(rhs), rhs), xv, maxIter, solverTolerance)
		if !finite(xv) {
			return nil, fmt.Errorf("%w: solver diverged", errDegenerate)
		}
	}

	uvs = make([]math.Vec2, len(c.Vertices))
	for i, id := range of {
		if col[id] < 0 {
			uvs[i] = proj[id]
		} else {
			uvs[i] = math.Vec2{X: x[col[id]], Y: x[col[id]+1]}
		}
	}
	return uvs, nil
}

// pins picks the two vertices furthest apart along the dominant axis of the
// projection. Ties resolve to the lowest index.
func pins(proj []math.Vec2) (int, int, bool) {
	if len(proj) < 2 {
		return 0, 0, false
	}
	lower, upper := math.Bounds(proj)
	axis := func(p math.Vec2) float64 { return p.X }
	if upper.Y-lower.Y > upper.X-lower.X {
		axis = func(p math.Vec2) float64 { return p.Y }
	}
	lo, hi := 0, 0
	for i, p := range proj {
		if axis(p) < axis(proj[lo]) {
			lo = i
		}
		if axis(p) > axis(proj[hi]) {
			hi = i
		}
	}
	if lo == hi {
		return 0, 0, false
	}
	return lo, hi, true
}

// localFrame returns the face corners in a 2D frame of the face's own plane
// with counter-clockwise winding. Degenerate faces report false.
func localFrame(m *mesh.Mesh, face *mesh.Face) ([3]math.Vec2, bool) {
	var z [3]math.Vec2
	if face.Area <= 0 || face.Normal.IsZero() {
		return z, false
	}
	p0, p1, p2 := m.Positions[face.V[0]], m.Positions[face.V[1]], m.Positions[face.V[2]]
	e1, e2 := p1.Sub(p0), p2.Sub(p0)
	l := e1.Length()
	if l == 0 {
		return z, false
	}
	x := e1.Scale(1 / l)
	y := x.Cross(e2).Length()
	if y == 0 {
		return z, false
	}
	z[1] = math.Vec2{X: l}
	z[2] = math.Vec2{X: e2.Dot(x), Y: y}
	return z, true
}
