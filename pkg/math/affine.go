package math

import "math"

// Affine2 is a 2D affine transform stored row-major as
//
//	| A B C |
//	| D E F |
//
// mapping (x, y) to (A*x + B*y + C, D*x + E*y + F).
type Affine2 [6]float64

// Identity2 returns the identity transform.
func Identity2() Affine2 {
	return Affine2{1, 0, 0, 0, 1, 0}
}

// Translate2 creates a translation transform.
func Translate2(x, y float64) Affine2 {
	return Affine2{1, 0, x, 0, 1, y}
}

// Scale2 creates a uniform scale transform.
func Scale2(s float64) Affine2 {
	return Affine2{s, 0, 0, 0, s, 0}
}

// Rotate2 creates a counter-clockwise rotation by angle radians.
func Rotate2(angle float64) Affine2 {
	s, c := math.Sincos(angle)
	return Affine2{c, -s, 0, s, c, 0}
}

// Mul returns m * other, i.e. other is applied first.
func (m Affine2) Mul(other Affine2) Affine2 {
	return Affine2{
		m[0]*other[0] + m[1]*other[3],
		m[0]*other[1] + m[1]*other[4],
		m[0]*other[2] + m[1]*other[5] + m[2],
		m[3]*other[0] + m[4]*other[3],
		m[3]*other[1] + m[4]*other[4],
		m[3]*other[2] + m[4]*other[5] + m[5],
	}
}

// Apply transforms a point.
func (m Affine2) Apply(p Vec2) Vec2 {
	return Vec2{
		m[0]*p.X + m[1]*p.Y + m[2],
		m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Determinant returns the determinant of the linear part.
func (m Affine2) Determinant() float64 {
	return m[0]*m[4] - m[1]*m[3]
}
