// Package mesh stores triangle meshes for atlas generation and derives the
// per-face geometry and edge adjacency the chart builder works on.
package mesh

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/uvatlas/pkg/math"
)

// ErrInvalidMesh is returned for malformed index or vertex data.
var ErrInvalidMesh = errors.New("invalid mesh")

// Input is the raw data for one mesh. Normals and UVs are optional; when set
// they must hold 3 and 2 floats per vertex respectively.
type Input struct {
	Indices   []uint32
	Positions []float32
	Normals   []float32
	UVs       []float32
	// Scale multiplies positions component-wise. The zero value means no scaling.
	Scale math.Vec3
}

// Face is a triangle of a mesh.
type Face struct {
	V      [3]uint32
	Normal math.Vec3 // unit normal, zero for degenerate faces
	Area   float64
	// EdgeLength[i] is the length of the edge V[i] -> V[(i+1)%3].
	EdgeLength [3]float64
}

// Perimeter returns the sum of edge lengths.
func (f *Face) Perimeter() float64 {
	return f.EdgeLength[0] + f.EdgeLength[1] + f.EdgeLength[2]
}

// Mesh is an immutable triangle mesh with derived adjacency.
type Mesh struct {
	ID        int
	Indices   []uint32
	Positions []math.Vec3
	Normals   []math.Vec3 // nil if not supplied
	UVs       []math.Vec2 // nil if not supplied
	Faces     []Face

	// Canonical maps each vertex to the lowest-index vertex with the same
	// position.
	Canonical []uint32
	// Neighbors[f][i] is the face across edge i of face f, or -1 on a
	// boundary or non-manifold edge.
	Neighbors [][3]int32

	TotalArea float64
}

// New validates input and builds a mesh.
func New(id int, in Input) (*Mesh, error) {
	if len(in.Positions) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrInvalidMesh)
	}
	if len(in.Positions)%3 != 0 {
		return nil, fmt.Errorf("%w: position count %d is not a multiple of 3", ErrInvalidMesh, len(in.Positions))
	}
	if len(in.Indices) == 0 {
		return nil, fmt.Errorf("%w: no triangles", ErrInvalidMesh)
	}
	if len(in.Indices)%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d is not a multiple of 3", ErrInvalidMesh, len(in.Indices))
	}

	vertexCount := len(in.Positions) / 3
	if in.Normals != nil && len(in.Normals) != vertexCount*3 {
		return nil, fmt.Errorf("%w: normal count %d does not match vertex count %d", ErrInvalidMesh, len(in.Normals)/3, vertexCount)
	}
	if in.UVs != nil && len(in.UVs) != vertexCount*2 {
		return nil, fmt.Errorf("%w: uv count %d does not match vertex count %d", ErrInvalidMesh, len(in.UVs)/2, vertexCount)
	}
	for i, idx := range in.Indices {
		if int(idx) >= vertexCount {
			return nil, fmt.Errorf("%w: index %d at position %d out of range (vertex count %d)", ErrInvalidMesh, idx, i, vertexCount)
		}
	}

	scale := in.Scale
	if scale.IsZero() {
		scale = math.Vec3{X: 1, Y: 1, Z: 1}
	}

	m := &Mesh{
		ID:        id,
		Indices:   append([]uint32(nil), in.Indices...),
		Positions: make([]math.Vec3, vertexCount),
	}
	for v := range vertexCount {
		p := math.Vec3{
			X: float64(in.Positions[v*3]),
			Y: float64(in.Positions[v*3+1]),
			Z: float64(in.Positions[v*3+2]),
		}.Mul(scale)
		if !p.IsFinite() {
			return nil, fmt.Errorf("%w: vertex %d has a non-finite position", ErrInvalidMesh, v)
		}
		m.Positions[v] = p
	}
	if in.Normals != nil {
		m.Normals = make([]math.Vec3, vertexCount)
		for v := range vertexCount {
			m.Normals[v] = math.Vec3{
				X: float64(in.Normals[v*3]),
				Y: float64(in.Normals[v*3+1]),
				Z: float64(in.Normals[v*3+2]),
			}
		}
	}
	if in.UVs != nil {
		m.UVs = make([]math.Vec2, vertexCount)
		for v := range vertexCount {
			m.UVs[v] = math.Vec2{X: float64(in.UVs[v*2]), Y: float64(in.UVs[v*2+1])}
		}
	}

	m.buildFaces()
	m.weld()
	m.buildAdjacency()
	return m, nil
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// Neighbor returns the face across edge e of face f, or -1.
func (m *Mesh) Neighbor(f, e int) int {
	return int(m.Neighbors[f][e])
}

// Edge returns the vertices of edge e of face f.
func (m *Mesh) Edge(f, e int) (a, b uint32) {
	v := m.Faces[f].V
	return v[e], v[(e+1)%3]
}

// Centroid returns the face centroid.
func (m *Mesh) Centroid(f int) math.Vec3 {
	v := m.Faces[f].V
	return m.Positions[v[0]].Add(m.Positions[v[1]]).Add(m.Positions[v[2]]).Scale(1.0 / 3)
}

// IsTextureSeam reports whether the input UVs differ across edge e of face f.
func (m *Mesh) IsTextureSeam(f, e int) bool {
	if m.UVs == nil {
		return false
	}
	a, b, oa, ob, ok := m.matchEdge(f, e)
	if !ok {
		return false
	}
	return m.UVs[a] != m.UVs[oa] || m.UVs[b] != m.UVs[ob]
}

// IsNormalSeam reports whether the input normals differ across edge e of face f.
func (m *Mesh) IsNormalSeam(f, e int) bool {
	if m.Normals == nil {
		return false
	}
	a, b, oa, ob, ok := m.matchEdge(f, e)
	if !ok {
		return false
	}
	return m.Normals[a] != m.Normals[oa] || m.Normals[b] != m.Normals[ob]
}

// EstimateBytes approximates the memory held by the mesh.
func (m *Mesh) EstimateBytes() int64 {
	n := int64(len(m.Indices)) * 4
	n += int64(len(m.Positions)) * 24
	n += int64(len(m.Normals)) * 24
	n += int64(len(m.UVs)) * 16
	n += int64(len(m.Faces)) * (12 + 24 + 8 + 24)
	n += int64(len(m.Canonical)) * 4
	n += int64(len(m.Neighbors)) * 12
	return n
}

// matchEdge returns the endpoints of edge e of face f and the vertices of the
// neighbouring face at the same positions.
func (m *Mesh) matchEdge(f, e int) (a, b, oa, ob uint32, ok bool) {
	g := m.Neighbor(f, e)
	if g < 0 {
		return 0, 0, 0, 0, false
	}
	a, b = m.Edge(f, e)
	ca, cb := m.Canonical[a], m.Canonical[b]
	var foundA, foundB bool
	for _, v := range m.Faces[g].V {
		switch m.Canonical[v] {
		case ca:
			oa, foundA = v, true
		case cb:
			ob, foundB = v, true
		}
	}
	return a, b, oa, ob, foundA && foundB
}

func (m *Mesh) buildFaces() {
	faceCount := len(m.Indices) / 3
	m.Faces = make([]Face, faceCount)
	for f := range faceCount {
		face := &m.Faces[f]
		face.V = [3]uint32{m.Indices[f*3], m.Indices[f*3+1], m.Indices[f*3+2]}

		p0 := m.Positions[face.V[0]]
		p1 := m.Positions[face.V[1]]
		p2 := m.Positions[face.V[2]]
		cross := p1.Sub(p0).Cross(p2.Sub(p0))
		length := cross.Length()
		face.Area = 0.5 * length
		if length > 1e-20 {
			face.Normal = cross.Scale(1 / length)
		}
		face.EdgeLength = [3]float64{p0.Distance(p1), p1.Distance(p2), p2.Distance(p0)}
		m.TotalArea += face.Area
	}
}

// weld assigns canonical ids to bit-identical positions.
func (m *Mesh) weld() {
	m.Canonical = make([]uint32, len(m.Positions))
	seen := make(map[[3]uint64]uint32, len(m.Positions))
	for v, p := range m.Positions {
		// Adding zero folds -0 into +0.
		key := [3]uint64{
			gomath.Float64bits(p.X + 0),
			gomath.Float64bits(p.Y + 0),
			gomath.Float64bits(p.Z + 0),
		}
		if first, ok := seen[key]; ok {
			m.Canonical[v] = first
			continue
		}
		seen[key] = uint32(v)
		m.Canonical[v] = uint32(v)
	}
}

type edgeKey struct{ a, b uint32 }

func (m *Mesh) canonicalEdge(f, e int) (edgeKey, bool) {
	a, b := m.Edge(f, e)
	ca, cb := m.Canonical[a], m.Canonical[b]
	if ca == cb {
		return edgeKey{}, false
	}
	if ca > cb {
		ca, cb = cb, ca
	}
	return edgeKey{ca, cb}, true
}

func (m *Mesh) buildAdjacency() {
	edges := make(map[edgeKey][]int32, len(m.Faces)*3/2)
	for f := range m.Faces {
		for e := 0; e < 3; e++ {
			key, ok := m.canonicalEdge(f, e)
			if !ok {
				continue
			}
			edges[key] = append(edges[key], int32(f))
		}
	}

	m.Neighbors = make([][3]int32, len(m.Faces))
	for f := range m.Faces {
		for e := 0; e < 3; e++ {
			m.Neighbors[f][e] = -1
			key, ok := m.canonicalEdge(f, e)
			if !ok {
				continue
			}
			faces := edges[key]
			// Only manifold edges link faces.
			if len(faces) != 2 || faces[0] == faces[1] {
				continue
			}
			if faces[0] == int32(f) {
				m.Neighbors[f][e] = faces[1]
			} else {
				m.Neighbors[f][e] = faces[0]
			}
		}
	}
}
