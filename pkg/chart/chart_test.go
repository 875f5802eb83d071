package chart

import (
	"container/heap"
	"errors"
	"reflect"
	"testing"

	"github.com/Faultbox/uvatlas/pkg/mesh"
)

func mustMesh(t *testing.T, p *mesh.Primitive) *mesh.Mesh {
	t.Helper()
	m, err := mesh.New(0, p.Input())
	if err != nil {
		t.Fatalf("mesh.New(%s): %v", p.Name, err)
	}
	return m
}

func TestBuild_SingleTriangle(t *testing.T) {
	m, err := mesh.New(0, mesh.Input{
		Indices:   []uint32{0, 1, 2},
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	charts, err := Build(m, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(charts) != 1 {
		t.Fatalf("charts = %d, want 1", len(charts))
	}
	if !reflect.DeepEqual(charts[0].Faces, []int{0}) {
		t.Errorf("faces = %v", charts[0].Faces)
	}
}

func TestBuild_DisjointIslands(t *testing.T) {
	m := mustMesh(t, mesh.DisjointTriangles(5))
	charts, err := Build(m, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(charts) != 5 {
		t.Errorf("charts = %d, want 5", len(charts))
	}
	if err := CheckPartition(m, charts); err != nil {
		t.Error(err)
	}
}

func TestBuild_FlatGridIsOneChart(t *testing.T) {
	m := mustMesh(t, mesh.Grid(6, 6, 2))
	charts, err := Build(m, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(charts) != 1 {
		t.Fatalf("charts = %d, want 1", len(charts))
	}
	if charts[0].FaceCount() != m.FaceCount() {
		t.Errorf("chart has %d faces, want %d", charts[0].FaceCount(), m.FaceCount())
	}
	// Boundary of a 2x2 square.
	if p := charts[0].Perimeter; p < 7.999 || p > 8.001 {
		t.Errorf("perimeter = %v, want 8", p)
	}
}

func TestBuild_CubeSides(t *testing.T) {
	for _, p := range []*mesh.Primitive{mesh.Cube(1), mesh.SharedCube(1)} {
		t.Run(p.Name, func(t *testing.T) {
			m := mustMesh(t, p)
			charts, err := Build(m, DefaultOptions(), nil)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(charts) != 6 {
				t.Fatalf("charts = %d, want 6", len(charts))
			}
			for i, c := range charts {
				if c.FaceCount() != 2 {
					t.Errorf("chart %d has %d faces, want 2", i, c.FaceCount())
				}
				n := m.Faces[c.Faces[0]].Normal
				for _, f := range c.Faces {
					if m.Faces[f].Normal.Dot(n) < 0.999 {
						t.Errorf("chart %d mixes cube sides", i)
					}
				}
			}
		})
	}
}

func TestBuild_Partition(t *testing.T) {
	small := DefaultOptions()
	small.MaxChartArea = 0.3

	bounded := DefaultOptions()
	bounded.MaxBoundaryLength = 2

	loose := DefaultOptions()
	loose.MaxCost = 10
	loose.MaxIterations = 4

	primitives := []*mesh.Primitive{
		mesh.Grid(5, 3, 2),
		mesh.Cube(1),
		mesh.Sphere(16, 8, 1),
		mesh.Cylinder(12, 0.5, 2),
	}
	options := map[string]Options{"default": DefaultOptions(), "small": small, "bounded": bounded, "loose": loose}

	for _, p := range primitives {
		for name, opts := range options {
			t.Run(p.Name+"/"+name, func(t *testing.T) {
				m := mustMesh(t, p)
				charts, err := Build(m, opts, nil)
				if err != nil {
					t.Fatalf("Build: %v", err)
				}
				if err := CheckPartition(m, charts); err != nil {
					t.Fatal(err)
				}
				if opts.MaxChartArea > 0 {
					for i, c := range charts {
						if c.FaceCount() > 1 && c.Area > opts.MaxChartArea+1e-9 {
							t.Errorf("chart %d area %v exceeds %v", i, c.Area, opts.MaxChartArea)
						}
					}
				}
			})
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIterations = 3
	m1 := mustMesh(t, mesh.Sphere(20, 10, 1))
	m2 := mustMesh(t, mesh.Sphere(20, 10, 1))

	a, err := Build(m1, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(m2, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("chart counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !reflect.DeepEqual(a[i].Faces, b[i].Faces) {
			t.Fatalf("chart %d differs", i)
		}
	}
}

func TestBuild_SeedCallback(t *testing.T) {
	m := mustMesh(t, mesh.Cube(1))
	var calls []int
	charts, err := Build(m, DefaultOptions(), func(assigned int) error {
		calls = append(calls, assigned)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != len(charts)+1 {
		t.Errorf("callback calls = %d, want %d", len(calls), len(charts)+1)
	}
	for i := 1; i < len(calls); i++ {
		if calls[i] < calls[i-1] {
			t.Errorf("assigned count went backwards: %v", calls)
		}
	}
	if calls[len(calls)-1] != m.FaceCount() {
		t.Errorf("final assigned = %d, want %d", calls[len(calls)-1], m.FaceCount())
	}

	stop := errors.New("stop")
	if _, err := Build(m, DefaultOptions(), func(int) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("Build() error = %v, want callback error", err)
	}
}

func TestBuild_InputUVIslands(t *testing.T) {
	opts := DefaultOptions()
	opts.UseInputMeshUvs = true

	grid := mustMesh(t, mesh.Grid(4, 4, 1))
	charts, err := Build(grid, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(charts) != 1 || !charts[0].InputUVs {
		t.Fatalf("grid islands = %d, want 1 input-uv chart", len(charts))
	}

	cube := mustMesh(t, mesh.Cube(1))
	charts, err = Build(cube, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPartition(cube, charts); err != nil {
		t.Fatal(err)
	}
}

func TestCheckPartition_Detects(t *testing.T) {
	m := mustMesh(t, mesh.Grid(2, 1, 1))
	tests := []struct {
		name   string
		charts []*Chart
	}{
		{"missing face", []*Chart{New(m, []int{0, 1, 2})}},
		{"duplicate face", []*Chart{New(m, []int{0, 1, 2, 3}), New(m, []int{3})}},
		{"disconnected", []*Chart{New(m, []int{1, 2}), New(m, []int{0, 3})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckPartition(m, tt.charts); err == nil {
				t.Error("expected partition error")
			}
		})
	}
}

// seamGrid builds a flat 4x4 grid over the unit square whose middle column of
// vertices is duplicated. The right half carries shifted UVs when uvSeam is
// set and tilted normals when normalSeam is set. Faces 0-15 lie left of the
// seam.
func seamGrid(t *testing.T, uvSeam, normalSeam bool) *mesh.Mesh {
	t.Helper()
	const n = 4
	var in mesh.Input
	half := func(i0, i1 int, du float32, normal [3]float32) {
		base := uint32(len(in.Positions) / 3)
		cols := uint32(i1 - i0 + 1)
		for j := 0; j <= n; j++ {
			for i := i0; i <= i1; i++ {
				x, y := float32(i)/n, float32(j)/n
				in.Positions = append(in.Positions, x, y, 0)
				if normalSeam {
					in.Normals = append(in.Normals, normal[:]...)
				}
				if uvSeam {
					in.UVs = append(in.UVs, x+du, y)
				}
			}
		}
		for j := 0; j < n; j++ {
			for i := 0; i < i1-i0; i++ {
				v00 := base + uint32(j)*cols + uint32(i)
				v10, v01 := v00+1, v00+cols
				in.Indices = append(in.Indices, v00, v10, v01+1, v00, v01+1, v01)
			}
		}
	}
	half(0, n/2, 0, [3]float32{0, 0, 1})
	half(n/2, n, 1, [3]float32{0, 0.6, 0.8})

	m, err := mesh.New(0, in)
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	return m
}

func TestBuild_SeamsShapeBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		uvSeam     bool
		normalSeam bool
		configure  func(*Options)
		want       int
	}{
		{"uv seam", true, false, func(o *Options) { o.TextureSeamWeight = 100 }, 2},
		{"uv seam unweighted", true, false, func(o *Options) { o.TextureSeamWeight = 0 }, 1},
		{"normal seam", false, true, func(o *Options) {}, 2},
		{"normal seam unweighted", false, true, func(o *Options) { o.NormalSeamWeight = 0 }, 1},
		{"no seam data", false, false, func(o *Options) { o.TextureSeamWeight = 100 }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seamGrid(t, tt.uvSeam, tt.normalSeam)
			opts := DefaultOptions()
			tt.configure(&opts)
			charts, err := Build(m, opts, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := CheckPartition(m, charts); err != nil {
				t.Fatal(err)
			}
			if len(charts) != tt.want {
				t.Fatalf("charts = %d, want %d", len(charts), tt.want)
			}
			if tt.want == 1 {
				return
			}
			for ci, c := range charts {
				left := c.Faces[0] < 16
				for _, f := range c.Faces {
					if (f < 16) != left {
						t.Errorf("chart %d crosses the seam at face %d", ci, f)
					}
				}
			}
		})
	}
}

func TestReevaluate_ReleasesRejectedFaces(t *testing.T) {
	// Two cells, four faces of area 0.25. Face 0 borders faces 1 and 3.
	m := mustMesh(t, mesh.Grid(2, 1, 1))
	opts := DefaultOptions()
	opts.MaxChartArea = 0.3
	b := newBuilder(m, opts)
	r := &region{id: 0}
	b.regions = append(b.regions, r)
	b.add(r, 0)

	h := &candidateHeap{}
	b.queueNeighbors(h, r, 0)
	if h.Len() != 2 {
		t.Fatalf("queued %d neighbours, want 2", h.Len())
	}
	c := heap.Pop(h).(*candidate)
	cost := b.cost(r, c.face)
	if cost != rejected {
		t.Fatalf("cost = %v, want rejected", cost)
	}
	if b.reevaluate(h, r, c, cost) {
		t.Fatal("reevaluate() = true with every candidate over the area limit")
	}
	for f, q := range b.queued {
		if f != 0 && q != 0 {
			t.Errorf("face %d still marked queued", f)
		}
	}

	b.opts.MaxChartArea = 0
	b.queueNeighbors(h, r, 0)
	if h.Len() != 2 {
		t.Errorf("requeued %d neighbours, want 2", h.Len())
	}
}
