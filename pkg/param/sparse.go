package param

import (
	gomath "math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sparse is a row-compressed real matrix built one row at a time. It
// implements the MulVecTo contract of gonum's iterative solvers.
type sparse struct {
	cols int
	ptr  []int
	col  []int32
	val  []float64
}

func newSparse(cols, rowHint, nnzHint int) *sparse {
	s := &sparse{
		cols: cols,
		ptr:  make([]int, 1, rowHint+1),
		col:  make([]int32, 0, nnzHint),
		val:  make([]float64, 0, nnzHint),
	}
	return s
}

func (s *sparse) rows() int { return len(s.ptr) - 1 }

// set appends an entry to the current row. Entries for the same column are
// summed.
func (s *sparse) set(c int, v float64) {
	if v == 0 {
		return
	}
	for i := s.ptr[len(s.ptr)-1]; i < len(s.col); i++ {
		if int(s.col[i]) == c {
			s.val[i] += v
			return
		}
	}
	s.col = append(s.col, int32(c))
	s.val = append(s.val, v)
}

// endRow closes the current row.
func (s *sparse) endRow() {
	s.ptr = append(s.ptr, len(s.col))
}

// MulVecTo stores S·x in dst, or Sᵀ·x when trans is set. dst must already
// have the matching length.
func (s *sparse) MulVecTo(dst *mat.VecDense, trans bool, x mat.Vector) {
	out := dst.RawVector()
	if !trans {
		for r := 0; r < s.rows(); r++ {
			var sum float64
			for i := s.ptr[r]; i < s.ptr[r+1]; i++ {
				sum += s.val[i] * x.AtVec(int(s.col[i]))
			}
			out.Data[r*out.Inc] = sum
		}
		return
	}
	dst.Zero()
	for r := 0; r < s.rows(); r++ {
		xr := x.AtVec(r)
		if xr == 0 {
			continue
		}
		for i := s.ptr[r]; i < s.ptr[r+1]; i++ {
			out.Data[int(s.col[i])*out.Inc] += s.val[i] * xr
		}
	}
}

// sparseBytes estimates the storage of a matrix with the given shape together
// with the work vectors of cgls.
func sparseBytes(rows, cols, nnz int) int64 {
	return int64(nnz)*12 + int64(rows+1)*8 + int64(2*rows+3*cols)*8
}

// cgls minimizes |S·x - b|² starting from the guess in x, which is updated
// in place. It returns the number of iterations run. S must have at least one
// row and one column.
func cgls(s *sparse, b, x *mat.VecDense, maxIter int, tol float64) int {
	r := mat.NewVecDense(s.rows(), nil)
	q := mat.NewVecDense(s.rows(), nil)
	g := mat.NewVecDense(s.cols, nil)
	p := mat.NewVecDense(s.cols, nil)

	s.MulVecTo(r, false, x)
	r.SubVec(b, r)
	s.MulVecTo(g, true, r)
	p.CopyVec(g)
	gamma := mat.Dot(g, g)
	limit := tol * tol * gamma

	iter := 0
	for ; iter < maxIter && gamma > limit && gamma > 0; iter++ {
		s.MulVecTo(q, false, p)
		qq := mat.Dot(q, q)
		if qq == 0 {
			break
		}
		alpha := gamma / qq
		x.AddScaledVec(x, alpha, p)
		r.AddScaledVec(r, -alpha, q)
		s.MulVecTo(g, true, r)
		next := mat.Dot(g, g)
		beta := next / gamma
		gamma = next
		p.AddScaledVec(g, beta, p)
	}
	return iter
}

func finite(v *mat.VecDense) bool {
	xs := v.RawVector().Data
	if len(xs) == 0 {
		return true
	}
	return !floats.HasNaN(xs) &&
		!gomath.IsInf(floats.Max(xs), 1) &&
		!gomath.IsInf(floats.Min(xs), -1)
}
