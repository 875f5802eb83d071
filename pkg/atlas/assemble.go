package atlas

import (
	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/math"
	"github.com/Faultbox/uvatlas/pkg/pack"
)

// assemble writes one output vertex per chart-local vertex and rewrites the
// triangle list against the new numbering. Input vertices no triangle
// references follow the chart vertices with atlas -1 and a zero UV, so the
// output never has fewer vertices than the input. Attributes are copied from
// the caller's buffers through the original vertex index.
func assemble(e *meshEntry, charts []*chart.Chart, placements []*pack.Placement) MeshResult {
	m := e.mesh
	out := MeshResult{
		MeshID:  m.ID,
		Tag:     e.decl.Tag,
		Indices: make([]uint32, len(m.Indices)),
	}

	used := make([]bool, m.VertexCount())
	for _, v := range m.Indices {
		used[v] = true
	}
	vertexCount := 0
	for _, c := range charts {
		vertexCount += len(c.Vertices)
	}
	for _, ok := range used {
		if !ok {
			vertexCount++
		}
	}
	out.OriginalVertexIndices = make([]uint32, 0, vertexCount)
	out.AtlasIndices = make([]int32, 0, vertexCount)
	out.Vertices = make([]float32, 0, vertexCount*3)
	out.UVs = make([]float32, 0, vertexCount*2)
	if e.decl.Normals != nil {
		out.Normals = make([]float32, 0, vertexCount*3)
	}
	if e.decl.UVs != nil {
		out.Coords = make([]float32, 0, vertexCount*2)
	}

	for ci, c := range charts {
		pl := placements[ci]
		tr := pl.Transform()
		start := len(out.OriginalVertexIndices)
		for li, v := range c.Vertices {
			out.appendVertex(e.decl, v, int32(pl.Atlas), tr.Apply(c.UVs[li]))
		}
		for fi, f := range c.Faces {
			for k := 0; k < 3; k++ {
				out.Indices[3*f+k] = uint32(start) + c.Indices[3*fi+k]
			}
		}
		out.SubMeshes = append(out.SubMeshes, SubMesh{
			Chart:       ci,
			Atlas:       pl.Atlas,
			VertexStart: start,
			VertexCount: len(c.Vertices),
			FaceCount:   len(c.Faces),
		})
	}
	for v, ok := range used {
		if !ok {
			out.appendVertex(e.decl, uint32(v), -1, math.Vec2{})
		}
	}
	if out.Coords == nil {
		out.Coords = out.UVs
	}
	return out
}

func (m *MeshResult) appendVertex(d MeshDecl, v uint32, atlas int32, uv math.Vec2) {
	m.OriginalVertexIndices = append(m.OriginalVertexIndices, v)
	m.AtlasIndices = append(m.AtlasIndices, atlas)
	m.Vertices = append(m.Vertices, d.Positions[3*v:3*v+3]...)
	m.UVs = append(m.UVs, float32(uv.X), float32(uv.Y))
	if m.Normals != nil {
		m.Normals = append(m.Normals, d.Normals[3*v:3*v+3]...)
	}
	if m.Coords != nil {
		m.Coords = append(m.Coords, d.UVs[2*v:2*v+2]...)
	}
}
