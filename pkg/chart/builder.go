package chart

import (
	"container/heap"
	gomath "math"
	"sort"

	"github.com/Faultbox/uvatlas/pkg/math"
	"github.com/Faultbox/uvatlas/pkg/mesh"
)

// rejected marks a candidate that may never join the chart.
var rejected = gomath.Inf(1)

// SeedFunc is called each time a chart is seeded with the number of faces
// assigned so far. A non-nil error aborts the build.
type SeedFunc func(assigned int) error

// Build segments m into charts. The result is deterministic for identical
// input and options.
func Build(m *mesh.Mesh, opts Options, onSeed SeedFunc) ([]*Chart, error) {
	if opts.UseInputMeshUvs && m.UVs != nil {
		return buildIslands(m, onSeed)
	}

	b := newBuilder(m, opts)
	if err := b.grow(onSeed); err != nil {
		return nil, err
	}
	for i := 0; i < opts.MaxIterations; i++ {
		if !b.merge() {
			break
		}
	}
	return b.charts(), nil
}

// region is a chart under construction.
type region struct {
	id        int
	faces     []int
	normalSum math.Vec3
	area      float64
	perimeter float64
	dead      bool
}

func (r *region) normal() math.Vec3 {
	return r.normalSum.Normalize()
}

type builder struct {
	m         *mesh.Mesh
	opts      Options
	faceChart []int
	queued    []int // region id+1 that queued the face
	regions   []*region
}

func newBuilder(m *mesh.Mesh, opts Options) *builder {
	b := &builder{
		m:         m,
		opts:      opts,
		faceChart: make([]int, m.FaceCount()),
		queued:    make([]int, m.FaceCount()),
	}
	for i := range b.faceChart {
		b.faceChart[i] = -1
	}
	return b
}

// seedOrder returns faces sorted by decreasing area, then increasing index.
func (b *builder) seedOrder() []int {
	order := make([]int, b.m.FaceCount())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return b.m.Faces[order[i]].Area > b.m.Faces[order[j]].Area
	})
	return order
}

func (b *builder) grow(onSeed SeedFunc) error {
	assigned := 0
	for _, seed := range b.seedOrder() {
		if b.faceChart[seed] >= 0 {
			continue
		}
		if onSeed != nil {
			if err := onSeed(assigned); err != nil {
				return err
			}
		}
		r := &region{id: len(b.regions)}
		b.regions = append(b.regions, r)
		b.add(r, seed)
		b.growRegion(r)
		assigned += len(r.faces)
	}
	if onSeed != nil {
		return onSeed(assigned)
	}
	return nil
}

func (b *builder) add(r *region, f int) {
	face := &b.m.Faces[f]
	lIn, lOut := b.edgeSplit(r, f)
	r.faces = append(r.faces, f)
	r.normalSum = r.normalSum.Add(face.Normal.Scale(face.Area))
	r.area += face.Area
	r.perimeter += lOut - lIn
	b.faceChart[f] = r.id
}

// edgeSplit returns the length of f's edges shared with r and the rest.
func (b *builder) edgeSplit(r *region, f int) (lIn, lOut float64) {
	face := &b.m.Faces[f]
	for e := 0; e < 3; e++ {
		if g := b.m.Neighbor(f, e); g >= 0 && b.faceChart[g] == r.id {
			lIn += face.EdgeLength[e]
		} else {
			lOut += face.EdgeLength[e]
		}
	}
	return lIn, lOut
}

func (b *builder) growRegion(r *region) {
	h := &candidateHeap{}
	b.queueNeighbors(h, r, r.faces[0])

	for h.Len() > 0 {
		c := heap.Pop(h).(*candidate)
		if b.faceChart[c.face] >= 0 {
			continue
		}

		cost := b.cost(r, c.face)
		// Costs drift as the chart grows; requeue if another candidate is now cheaper.
		if h.Len() > 0 && cost > (*h)[0].cost {
			c.cost = cost
			heap.Push(h, c)
			continue
		}

		if cost > b.opts.MaxCost {
			if !b.reevaluate(h, r, c, cost) {
				break
			}
			continue
		}

		b.add(r, c.face)
		b.queueNeighbors(h, r, c.face)
	}
}

// reevaluate refreshes every queued cost after the cheapest candidate failed
// the threshold. Rejected faces leave the queue but may be queued again when
// a neighbour joins. It returns false when growth should stop.
func (b *builder) reevaluate(h *candidateHeap, r *region, c *candidate, cost float64) bool {
	if cost != rejected {
		c.cost = cost
		heap.Push(h, c)
	} else {
		b.queued[c.face] = 0
	}
	for _, q := range *h {
		q.cost = b.cost(r, q.face)
	}
	heap.Init(h)
	for h.Len() > 0 && (*h)[0].cost == rejected {
		q := heap.Pop(h).(*candidate)
		b.queued[q.face] = 0
	}
	return h.Len() > 0 && (*h)[0].cost <= b.opts.MaxCost
}

func (b *builder) queueNeighbors(h *candidateHeap, r *region, f int) {
	for e := 0; e < 3; e++ {
		g := b.m.Neighbor(f, e)
		if g < 0 || b.faceChart[g] >= 0 || b.queued[g] == r.id+1 {
			continue
		}
		b.queued[g] = r.id + 1
		heap.Push(h, &candidate{face: g, cost: b.cost(r, g)})
	}
}

// cost scores adding face f to region r. Lower is better; rejected means
// the face must not join.
func (b *builder) cost(r *region, f int) float64 {
	face := &b.m.Faces[f]
	o := &b.opts

	normalDeviation := 0.0
	if !face.Normal.IsZero() {
		d := face.Normal.Dot(r.normal())
		if d <= 0 {
			return rejected
		}
		normalDeviation = 1 - d
	}

	var lIn, lOut, normalSeam, textureSeam float64
	for e := 0; e < 3; e++ {
		length := face.EdgeLength[e]
		g := b.m.Neighbor(f, e)
		if g < 0 || b.faceChart[g] != r.id {
			lOut += length
			continue
		}
		lIn += length
		normalSeam += length * b.normalSeam(f, e, g)
		if b.m.IsTextureSeam(f, e) {
			textureSeam += length
		}
	}

	area := r.area + face.Area
	perimeter := r.perimeter + lOut - lIn
	if o.MaxChartArea > 0 && area > o.MaxChartArea {
		return rejected
	}
	if o.MaxBoundaryLength > 0 && perimeter > o.MaxBoundaryLength {
		return rejected
	}

	roundness := 0.0
	if perimeter > 0 {
		roundness = math.Clamp(1-4*gomath.Pi*area/(perimeter*perimeter), 0, 1)
	}
	straightness := 0.0
	if lIn+lOut > 0 {
		straightness = gomath.Min(0, (lOut-lIn)/(lOut+lIn))
	}
	if lIn > 0 {
		normalSeam /= lIn
		textureSeam /= lIn
	}
	if b.m.UVs == nil {
		textureSeam = 0
	}

	return o.NormalDeviationWeight*normalDeviation +
		o.RoundnessWeight*roundness +
		o.StraightnessWeight*straightness +
		o.NormalSeamWeight*normalSeam +
		o.TextureSeamWeight*textureSeam
}

// normalSeam returns 1 for explicit normal seams, otherwise the crease
// between the two face normals in [0, 1].
func (b *builder) normalSeam(f, e, g int) float64 {
	if b.m.IsNormalSeam(f, e) {
		return 1
	}
	nf, ng := b.m.Faces[f].Normal, b.m.Faces[g].Normal
	if nf.IsZero() || ng.IsZero() {
		return 0
	}
	return math.Clamp(1-nf.Dot(ng), 0, 1)
}

// charts returns the live regions as charts in creation order.
func (b *builder) charts() []*Chart {
	var out []*Chart
	for _, r := range b.regions {
		if r.dead {
			continue
		}
		c := &Chart{
			MeshID:    b.m.ID,
			Faces:     r.faces,
			Normal:    r.normal(),
			Area:      r.area,
			Perimeter: r.perimeter,
		}
		out = append(out, c)
	}
	return out
}
