package mesh

import (
	"fmt"
	gomath "math"
	"sort"
)

// Primitive is generated mesh data in the layout accepted by Input.
type Primitive struct {
	Name      string
	Indices   []uint32
	Positions []float32
	Normals   []float32
	UVs       []float32
}

// Input converts the primitive into mesh input.
func (p *Primitive) Input() Input {
	return Input{
		Indices:   p.Indices,
		Positions: p.Positions,
		Normals:   p.Normals,
		UVs:       p.UVs,
	}
}

// VertexCount returns the number of vertices.
func (p *Primitive) VertexCount() int { return len(p.Positions) / 3 }

// Translate offsets all positions.
func (p *Primitive) Translate(x, y, z float32) *Primitive {
	for i := 0; i < len(p.Positions); i += 3 {
		p.Positions[i] += x
		p.Positions[i+1] += y
		p.Positions[i+2] += z
	}
	return p
}

func (p *Primitive) addVertex(pos, normal [3]float32, uv [2]float32) uint32 {
	idx := uint32(len(p.Positions) / 3)
	p.Positions = append(p.Positions, pos[0], pos[1], pos[2])
	p.Normals = append(p.Normals, normal[0], normal[1], normal[2])
	p.UVs = append(p.UVs, uv[0], uv[1])
	return idx
}

func (p *Primitive) addTriangle(a, b, c uint32) {
	p.Indices = append(p.Indices, a, b, c)
}

// Grid creates a flat nx*ny quad grid of the given size in the XY plane,
// facing +Z, with shared vertices.
func Grid(nx, ny int, size float32) *Primitive {
	p := &Primitive{Name: "plane"}
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			u := float32(i) / float32(nx)
			v := float32(j) / float32(ny)
			p.addVertex([3]float32{u * size, v * size, 0}, [3]float32{0, 0, 1}, [2]float32{u, v})
		}
	}
	row := uint32(nx + 1)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00 := uint32(j)*row + uint32(i)
			v10 := v00 + 1
			v01 := v00 + row
			v11 := v01 + 1
			p.addTriangle(v00, v10, v11)
			p.addTriangle(v00, v11, v01)
		}
	}
	return p
}

// Cube creates an axis-aligned cube centered at the origin with 4 vertices
// per side, so normals and UVs are split along every cube edge.
func Cube(size float32) *Primitive {
	p := &Primitive{Name: "cube"}
	h := size / 2
	sides := [6][3][3]float32{
		// normal, u axis, v axis with u x v = normal
		{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
		{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}},
		{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
		{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
		{{0, 0, -1}, {0, 1, 0}, {1, 0, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, s := range sides {
		n, u, v := s[0], s[1], s[2]
		var idx [4]uint32
		for c, k := range corners {
			var pos [3]float32
			for a := 0; a < 3; a++ {
				pos[a] = h * (n[a] + k[0]*u[a] + k[1]*v[a])
			}
			idx[c] = p.addVertex(pos, n, [2]float32{(k[0] + 1) / 2, (k[1] + 1) / 2})
		}
		p.addTriangle(idx[0], idx[1], idx[2])
		p.addTriangle(idx[0], idx[2], idx[3])
	}
	return p
}

// SharedCube creates a cube with 8 shared vertices and no normals or UVs.
func SharedCube(size float32) *Primitive {
	p := Cube(size)
	p.Name = "cube-shared"
	return p.welded()
}

// Sphere creates a UV sphere. The seam column and pole rings duplicate
// positions, which the mesh store welds back together.
func Sphere(segments, rings int, radius float32) *Primitive {
	p := &Primitive{Name: "sphere"}
	for r := 0; r <= rings; r++ {
		st, ct := gomath.Sincos(gomath.Pi * float64(r) / float64(rings))
		// Poles must land exactly on the axis so they weld.
		switch r {
		case 0:
			st, ct = 0, 1
		case rings:
			st, ct = 0, -1
		}
		for s := 0; s <= segments; s++ {
			// The seam column repeats column 0 bit for bit.
			sp, cp := gomath.Sincos(2 * gomath.Pi * float64(s%segments) / float64(segments))
			n := [3]float32{float32(st * cp), float32(ct), float32(st * sp)}
			pos := [3]float32{n[0] * radius, n[1] * radius, n[2] * radius}
			p.addVertex(pos, n, [2]float32{float32(s) / float32(segments), float32(r) / float32(rings)})
		}
	}
	row := uint32(segments + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			v00 := uint32(r)*row + uint32(s)
			v01 := v00 + 1
			v10 := v00 + row
			v11 := v10 + 1
			if r != 0 {
				p.addTriangle(v00, v01, v11)
			}
			if r != rings-1 {
				p.addTriangle(v00, v11, v10)
			}
		}
	}
	return p
}

// Cylinder creates a capped cylinder along +Y.
func Cylinder(segments int, radius, height float32) *Primitive {
	p := &Primitive{Name: "cylinder"}
	row := uint32(segments + 1)

	ring := func(s int) (float32, float32) {
		sp, cp := gomath.Sincos(2 * gomath.Pi * float64(s%segments) / float64(segments))
		return float32(cp), float32(sp)
	}

	base := uint32(0)
	for s := 0; s <= segments; s++ {
		c, sn := ring(s)
		u := float32(s) / float32(segments)
		p.addVertex([3]float32{c * radius, 0, sn * radius}, [3]float32{c, 0, sn}, [2]float32{u, 0})
	}
	for s := 0; s <= segments; s++ {
		c, sn := ring(s)
		u := float32(s) / float32(segments)
		p.addVertex([3]float32{c * radius, height, sn * radius}, [3]float32{c, 0, sn}, [2]float32{u, 1})
	}
	for s := uint32(0); s < uint32(segments); s++ {
		b0, b1 := base+s, base+s+1
		t0, t1 := base+row+s, base+row+s+1
		p.addTriangle(b0, t0, t1)
		p.addTriangle(b0, t1, b1)
	}

	for _, top := range []bool{false, true} {
		y, ny := float32(0), float32(-1)
		if top {
			y, ny = height, 1
		}
		center := p.addVertex([3]float32{0, y, 0}, [3]float32{0, ny, 0}, [2]float32{0.5, 0.5})
		first := uint32(len(p.Positions) / 3)
		for s := 0; s < segments; s++ {
			c, sn := ring(s)
			p.addVertex([3]float32{c * radius, y, sn * radius}, [3]float32{0, ny, 0}, [2]float32{0.5 + c/2, 0.5 + sn/2})
		}
		for s := uint32(0); s < uint32(segments); s++ {
			a := first + s
			b := first + (s+1)%uint32(segments)
			if top {
				p.addTriangle(center, b, a)
			} else {
				p.addTriangle(center, a, b)
			}
		}
	}
	return p
}

// DisjointTriangles creates n unit right triangles that share no vertices or edges.
func DisjointTriangles(n int) *Primitive {
	p := &Primitive{Name: "triangles"}
	for i := 0; i < n; i++ {
		x := float32(2 * i)
		a := p.addVertex([3]float32{x, 0, 0}, [3]float32{0, 0, 1}, [2]float32{0, 0})
		b := p.addVertex([3]float32{x + 1, 0, 0}, [3]float32{0, 0, 1}, [2]float32{1, 0})
		c := p.addVertex([3]float32{x, 1, 0}, [3]float32{0, 0, 1}, [2]float32{0, 1})
		p.addTriangle(a, b, c)
	}
	return p
}

// welded merges vertices with identical positions and drops normals and UVs.
func (p *Primitive) welded() *Primitive {
	out := &Primitive{Name: p.Name}
	remap := make(map[[3]float32]uint32)
	for _, idx := range p.Indices {
		pos := [3]float32{p.Positions[idx*3], p.Positions[idx*3+1], p.Positions[idx*3+2]}
		v, ok := remap[pos]
		if !ok {
			v = uint32(len(out.Positions) / 3)
			out.Positions = append(out.Positions, pos[0], pos[1], pos[2])
			remap[pos] = v
		}
		out.Indices = append(out.Indices, v)
	}
	return out
}

var primitives = map[string]func() *Primitive{
	"plane":       func() *Primitive { return Grid(8, 8, 2) },
	"cube":        func() *Primitive { return Cube(1) },
	"cube-shared": func() *Primitive { return SharedCube(1) },
	"sphere":      func() *Primitive { return Sphere(24, 12, 1) },
	"cylinder":    func() *Primitive { return Cylinder(24, 0.5, 2) },
	"triangles":   func() *Primitive { return DisjointTriangles(4) },
}

// PrimitiveNames lists the primitives available to NewPrimitive.
func PrimitiveNames() []string {
	names := make([]string, 0, len(primitives))
	for name := range primitives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPrimitive creates a named primitive with default parameters.
func NewPrimitive(name string) (*Primitive, error) {
	fn, ok := primitives[name]
	if !ok {
		return nil, fmt.Errorf("unknown primitive %q", name)
	}
	return fn(), nil
}
