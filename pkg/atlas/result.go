package atlas

import "image"

// Result describes a generated atlas set.
type Result struct {
	// Width and Height are the largest atlas dimensions in texels.
	Width, Height int
	AtlasCount    int
	MeshCount     int
	ChartCount    int
	TexelsPerUnit float64
	// Utilization is the share of atlas texels covered by charts.
	Utilization float64

	Meshes  []MeshResult
	Atlases []AtlasInfo
	// Charts lists every chart in mesh order, then chart order.
	Charts []ChartInfo
	// Images holds one preview per atlas when PackOptions.CreateImage is set.
	Images []*image.RGBA
	// Diagnostics collects non-fatal problems, such as charts flattened by
	// planar projection. They wrap ErrParametrizationFailed.
	Diagnostics []error
}

// AtlasInfo describes one atlas.
type AtlasInfo struct {
	Index         int
	Width, Height int
	ChartCount    int
	Utilization   float64
}

// ChartInfo describes one packed chart.
type ChartInfo struct {
	MeshID int
	// Faces lists the mesh faces of the chart.
	Faces    []int
	Atlas    int
	Fallback bool
	Flipped  int
	Stretch  float64

	// X, Y, Width and Height give the padded footprint in texels.
	X, Y, Width, Height int
	Rotation            float64
}

// MeshResult holds the output vertex streams of one mesh. Vertices used by
// several charts are duplicated, so the vertex count may exceed the input
// vertex count while the index count never changes.
type MeshResult struct {
	MeshID int
	Tag    any

	// Indices lists the triangles in input face order.
	Indices []uint32
	// Vertices holds 3 position floats per vertex, copied from the input.
	Vertices []float32
	// UVs holds 2 texel space coordinates per vertex.
	UVs []float32
	// Normals holds 3 floats per vertex when the mesh had normals.
	Normals []float32
	// Coords holds the input UVs per vertex, or the atlas UVs when the
	// mesh had none.
	Coords []float32
	// AtlasIndices gives the atlas of each vertex, or -1 for input vertices
	// no triangle references.
	AtlasIndices []int32
	// OriginalVertexIndices maps each vertex to the input vertex it was
	// copied from.
	OriginalVertexIndices []uint32
	SubMeshes             []SubMesh
}

// SubMesh is the vertex range written for one chart.
type SubMesh struct {
	Chart       int
	Atlas       int
	VertexStart int
	VertexCount int
	FaceCount   int
}

// VertexCount returns the number of output vertices.
func (m *MeshResult) VertexCount() int { return len(m.OriginalVertexIndices) }

// NormalizedUVs returns the UVs divided by the atlas size.
func (m *MeshResult) NormalizedUVs(width, height int) []float32 {
	out := make([]float32, len(m.UVs))
	if width <= 0 || height <= 0 {
		return out
	}
	for i := 0; i < len(m.UVs); i += 2 {
		out[i] = m.UVs[i] / float32(width)
		out[i+1] = m.UVs[i+1] / float32(height)
	}
	return out
}

func (m *MeshResult) bytes() int64 {
	return int64(len(m.Indices)+len(m.OriginalVertexIndices)+len(m.AtlasIndices))*4 +
		int64(len(m.Vertices)+len(m.UVs)+len(m.Normals)+len(m.Coords))*4
}
