package pack

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/uvatlas/pkg/math"
)

// convexHull returns the convex hull of points in counter-clockwise order
// without collinear points.
func convexHull(points []math.Vec2) []math.Vec2 {
	ps := append([]math.Vec2(nil), points...)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
	if len(ps) < 3 {
		return ps
	}

	hull := make([]math.Vec2, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && hull[len(hull)-1].Sub(hull[len(hull)-2]).Cross(p.Sub(hull[len(hull)-2])) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && hull[len(hull)-1].Sub(hull[len(hull)-2]).Cross(p.Sub(hull[len(hull)-2])) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// alignAngle returns the rotation that turns the minimum area bounding
// rectangle of points parallel to the axes.
func alignAngle(points []math.Vec2) float64 {
	hull := convexHull(points)
	switch len(hull) {
	case 0, 1:
		return 0
	case 2:
		d := hull[1].Sub(hull[0])
		return -gomath.Atan2(d.Y, d.X)
	}

	best, angle := gomath.Inf(1), 0.0
	for i := range hull {
		e := hull[(i+1)%len(hull)].Sub(hull[i])
		if e.X == 0 && e.Y == 0 {
			continue
		}
		theta := -gomath.Atan2(e.Y, e.X)
		lo, hi := rotatedBounds(hull, theta)
		area := (hi.X - lo.X) * (hi.Y - lo.Y)
		if area < best*(1-1e-9) {
			best, angle = area, theta
		}
	}
	return angle
}

func rotatedBounds(points []math.Vec2, theta float64) (math.Vec2, math.Vec2) {
	lo := math.Vec2{X: gomath.Inf(1), Y: gomath.Inf(1)}
	hi := math.Vec2{X: gomath.Inf(-1), Y: gomath.Inf(-1)}
	for _, p := range points {
		r := p.Rotate(theta)
		lo = lo.Min(r)
		hi = hi.Max(r)
	}
	return lo, hi
}
