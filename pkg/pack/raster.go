package pack

import (
	gomath "math"

	"github.com/Faultbox/uvatlas/pkg/math"
)

// rasterTriangle sets every texel of b that the closed triangle abc touches.
// Texel (x, y) covers the square [x, x+1] x [y, y+1].
func rasterTriangle(b *Bitmap, a, bb, c math.Vec2) {
	lower := a.Min(bb).Min(c)
	upper := a.Max(bb).Max(c)
	x0 := max(int(gomath.Floor(lower.X)), 0)
	y0 := max(int(gomath.Floor(lower.Y)), 0)
	x1 := min(int(gomath.Floor(upper.X)), b.Width-1)
	y1 := min(int(gomath.Floor(upper.Y)), b.Height-1)

	tri := [3]math.Vec2{a, bb, c}
	var axes [3]math.Vec2
	for i := range tri {
		e := tri[(i+1)%3].Sub(tri[i])
		axes[i] = math.Vec2{X: -e.Y, Y: e.X}
	}

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if triangleTouchesTexel(tri, axes, x, y) {
				b.Set(x, y)
			}
		}
	}
}

// triangleTouchesTexel runs a separating axis test between the triangle and
// the texel square. The square axes are covered by the bounding box loop.
func triangleTouchesTexel(tri [3]math.Vec2, axes [3]math.Vec2, x, y int) bool {
	center := math.Vec2{X: float64(x) + 0.5, Y: float64(y) + 0.5}
	for _, n := range axes {
		if n.X == 0 && n.Y == 0 {
			continue
		}
		lo, hi := gomath.Inf(1), gomath.Inf(-1)
		for _, p := range tri {
			d := p.Dot(n)
			lo = gomath.Min(lo, d)
			hi = gomath.Max(hi, d)
		}
		c := center.Dot(n)
		r := 0.5 * (gomath.Abs(n.X) + gomath.Abs(n.Y))
		if c+r < lo || c-r > hi {
			return false
		}
	}
	return true
}
