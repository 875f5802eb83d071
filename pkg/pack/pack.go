// Package pack places parametrized charts into texel atlases without
// overlap.
package pack

import (
	"errors"
	"fmt"
	"image"
	gomath "math"
	"sort"

	"github.com/Faultbox/uvatlas/internal/arena"
	"github.com/Faultbox/uvatlas/internal/progress"
	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/math"
)

// ErrChartTooLarge is returned when a chart cannot be packed with the given
// limits.
var ErrChartTooLarge = errors.New("chart too large")

var errNoFit = errors.New("chart does not fit the atlas")

const (
	defaultResolution = 1024
	// fillRatio is the share of the target atlas area an estimated scale
	// assigns to charts.
	fillRatio     = 0.45
	scaleAttempts = 32
	scaleShrink   = 0.9
)

// Placement positions a chart in an atlas. A chart UV maps to texel
// coordinates as Rotate(Rotation)·(Scale·uv) + Offset.
type Placement struct {
	Chart *chart.Chart
	Index int // position of the chart in the Pack input
	Atlas int

	Offset   math.Vec2
	Rotation float64
	Scale    float64

	// X, Y, Width and Height give the footprint rectangle, padding included.
	X, Y, Width, Height int
	// Footprint holds the padded occupancy relative to X, Y.
	Footprint *Bitmap
	// Coverage holds the texels touched by chart triangles relative to X, Y.
	Coverage *Bitmap
}

// Transform returns the chart UV to texel transform.
func (p *Placement) Transform() math.Affine2 {
	return math.Translate2(p.Offset.X, p.Offset.Y).
		Mul(math.Rotate2(p.Rotation)).
		Mul(math.Scale2(p.Scale))
}

// Atlas is one packed texel grid.
type Atlas struct {
	Index         int
	Width, Height int
	Placements    []*Placement
	// Occupancy is the union of the padded footprints.
	Occupancy   *Bitmap
	Utilization float64
}

// Result is the output of Pack.
type Result struct {
	Atlases []*Atlas
	// Placements is indexed like the Pack input.
	Placements    []*Placement
	Width, Height int
	TexelsPerUnit float64
	Utilization   float64
	Images        []*image.RGBA
}

// Pack places charts into one or more atlases. Charts must be parametrized.
// Progress is reported under progress.PackCharts. Occupancy grids are
// accounted in a while packing runs; a may be nil.
func Pack(charts []*chart.Chart, opts Options, mon *progress.Monitor, a *arena.Arena) (*Result, error) {
	if err := mon.Begin(progress.PackCharts, len(charts)); err != nil {
		return nil, err
	}

	scale := opts.TexelsPerUnit
	estimated := scale <= 0
	if estimated {
		scale = estimateScale(charts, opts.Resolution)
	}
	attempts := 1
	if estimated && opts.Resolution > 0 {
		attempts = scaleAttempts
	}

	for i := 0; ; i++ {
		last := i+1 >= attempts
		p := &packer{opts: opts, scale: scale, mon: mon, arena: a}
		res, err := p.run(charts)
		switch {
		case err == nil && (len(res.Atlases) <= 1 || last):
			if opts.CreateImage {
				res.Images = Render(res, opts.Bilinear)
			}
			return res, nil
		case err != nil && !errors.Is(err, errNoFit):
			return nil, err
		case err != nil && last:
			return nil, fmt.Errorf("%w: %w", ErrChartTooLarge, err)
		}
		scale *= scaleShrink
	}
}

// estimateScale picks texels per unit so the charts cover fillRatio of a
// square atlas of the target resolution.
func estimateScale(charts []*chart.Chart, resolution int) float64 {
	target := float64(resolution)
	if resolution <= 0 {
		target = defaultResolution
	}
	var area float64
	for _, c := range charts {
		for i := 0; i+2 < len(c.Indices); i += 3 {
			area += gomath.Abs(math.TriangleArea(c.UVs[c.Indices[i]], c.UVs[c.Indices[i+1]], c.UVs[c.Indices[i+2]]))
		}
	}
	if area <= 0 {
		return 1
	}
	return gomath.Sqrt(fillRatio * target * target / area)
}

type packer struct {
	opts  Options
	scale float64
	mon   *progress.Monitor
	arena *arena.Arena

	items   []*item
	atlases []*atlasState
}

type item struct {
	index  int
	chart  *chart.Chart
	base   float64
	shapes [8]*shape
}

// shape is a chart rasterized at one orientation.
type shape struct {
	rotation float64
	// origin moves rotated, scaled chart coordinates into the footprint.
	origin    math.Vec2
	extent    [2]int
	coverage  *Bitmap
	footprint *Bitmap
}

type rect struct{ x, y, w, h int }

type atlasState struct {
	index         int
	grid          *Bitmap
	block         arena.Block
	rects         []rect
	usedW, usedH  int
	width, height int
	placements    []*Placement
}

func (p *packer) run(charts []*chart.Chart) (res *Result, err error) {
	defer func() {
		if rerr := p.release(); rerr != nil {
			res, err = nil, errors.Join(err, rerr)
		}
	}()

	p.items = make([]*item, len(charts))
	for i, c := range charts {
		it := &item{index: i, chart: c}
		if p.opts.RotateChartsToAxis {
			it.base = alignAngle(c.UVs)
		}
		if s := p.shape(it, 0); p.opts.RotateCharts && s.extent[0] > s.extent[1] {
			// Stand charts upright so tall footprints sort first.
			it.base += gomath.Pi / 2
			it.shapes = [8]*shape{}
		}
		if limit := p.opts.MaxChartSize; limit > 0 {
			s := p.shape(it, 0)
			if s.extent[0] > limit || s.extent[1] > limit {
				return nil, fmt.Errorf("%w: chart %d of mesh %d is %dx%d texels, limit is %d",
					ErrChartTooLarge, i, c.MeshID, s.extent[0], s.extent[1], limit)
			}
		}
		p.items[i] = it
	}

	order := append([]*item(nil), p.items...)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := p.shape(order[i], 0).footprint, p.shape(order[j], 0).footprint
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.Width != b.Width {
			return a.Width > b.Width
		}
		return order[i].index < order[j].index
	})

	if p.opts.Resolution > 0 {
		err = p.packFixed(order)
	} else {
		err = p.packGrowing(order)
	}
	if err != nil {
		return nil, err
	}
	return p.result(), nil
}

// steps lists the orientations tried, in eighths of a turn.
func (p *packer) steps(brute bool) []int {
	switch {
	case !p.opts.RotateCharts:
		return []int{0}
	case !brute:
		return []int{0, 2}
	case p.opts.RotateChartsToAxis:
		return []int{0, 2, 4, 6}
	default:
		return []int{0, 1, 2, 3, 4, 5, 6, 7}
	}
}

func (p *packer) shape(it *item, step int) *shape {
	if s := it.shapes[step]; s != nil {
		return s
	}
	c := it.chart
	theta := it.base + float64(step)*gomath.Pi/4
	pts := make([]math.Vec2, len(c.UVs))
	for i, uv := range c.UVs {
		pts[i] = uv.Scale(p.scale).Rotate(theta)
	}
	lo, hi := math.Bounds(pts)

	pad := p.opts.Padding
	align := p.opts.align()
	ew := int(gomath.Floor(hi.X-lo.X)) + 1
	eh := int(gomath.Floor(hi.Y-lo.Y)) + 1
	w := math.AlignUp(ew+2*pad, align)
	h := math.AlignUp(eh+2*pad, align)
	origin := math.Vec2{X: float64(pad) - lo.X, Y: float64(pad) - lo.Y}

	cov := NewBitmap(w, h)
	for i := 0; i+2 < len(c.Indices); i += 3 {
		rasterTriangle(cov,
			pts[c.Indices[i]].Add(origin),
			pts[c.Indices[i+1]].Add(origin),
			pts[c.Indices[i+2]].Add(origin))
	}
	s := &shape{
		rotation:  theta,
		origin:    origin,
		extent:    [2]int{ew, eh},
		coverage:  cov,
		footprint: cov.Dilate(pad),
	}
	it.shapes[step] = s
	return s
}

func (p *packer) packGrowing(order []*item) error {
	maxDim, area := 1, 0
	for _, it := range order {
		f := p.shape(it, 0).footprint
		maxDim = max(maxDim, f.Width+1, f.Height+1)
		area += f.Width * f.Height
	}
	size := math.NextPowerOfTwo(max(maxDim, int(gomath.Ceil(gomath.Sqrt(float64(area))))))

	at, err := p.newAtlas(size, size)
	if err != nil {
		return err
	}
	for n, it := range order {
		for p.place(at, it) == nil {
			if err := p.resize(at, 2*at.grid.Width, 2*at.grid.Height); err != nil {
				return err
			}
		}
		if err := p.mon.Advance(progress.PackCharts, n+1); err != nil {
			return err
		}
	}

	if p.opts.BlockAlign {
		at.width, at.height = math.AlignUp(at.usedW, 4), math.AlignUp(at.usedH, 4)
	} else {
		at.width, at.height = math.NextPowerOfTwo(at.usedW), math.NextPowerOfTwo(at.usedH)
	}
	return nil
}

func (p *packer) packFixed(order []*item) error {
	res := p.opts.Resolution
	for n, it := range order {
		fits := false
		for _, step := range p.steps(p.opts.BruteForce) {
			f := p.shape(it, step).footprint
			if f.Width <= res && f.Height <= res {
				fits = true
				break
			}
		}
		if !fits {
			f := p.shape(it, 0).footprint
			return fmt.Errorf("%w: chart %d of mesh %d needs %dx%d texels, atlas is %dx%d",
				errNoFit, it.index, it.chart.MeshID, f.Width, f.Height, res, res)
		}

		var placed *Placement
		for _, at := range p.atlases {
			if placed = p.place(at, it); placed != nil {
				break
			}
		}
		if placed == nil {
			at, err := p.newAtlas(res, res)
			if err != nil {
				return err
			}
			if p.place(at, it) == nil {
				return fmt.Errorf("%w: chart %d of mesh %d", errNoFit, it.index, it.chart.MeshID)
			}
		}
		if err := p.mon.Advance(progress.PackCharts, n+1); err != nil {
			return err
		}
	}
	for _, at := range p.atlases {
		at.width, at.height = res, res
	}
	return nil
}

// place finds the first free position for the chart in at, scanning top to
// bottom and left to right, and commits it. It returns nil if nothing fits.
func (p *packer) place(at *atlasState, it *item) *Placement {
	align := p.opts.align()
	var best *shape
	bx, by := 0, 0
	better := func(x, y int) bool {
		return best == nil || y < by || (y == by && x < bx)
	}

	candidates := at.candidates(align)
	for _, step := range p.steps(false) {
		s := p.shape(it, step)
		for _, c := range candidates {
			if !better(c[0], c[1]) {
				break
			}
			if !at.grid.Overlaps(s.footprint, c[0], c[1]) {
				best, bx, by = s, c[0], c[1]
				break
			}
		}
	}

	if best == nil && p.opts.BruteForce {
		for _, step := range p.steps(true) {
			s := p.shape(it, step)
		scan:
			for y := 0; y+s.footprint.Height <= at.grid.Height; y += align {
				for x := 0; x+s.footprint.Width <= at.grid.Width; x += align {
					if !better(x, y) {
						break scan
					}
					if !at.grid.Overlaps(s.footprint, x, y) {
						best, bx, by = s, x, y
						break scan
					}
				}
			}
		}
	}

	if best == nil {
		return nil
	}
	return p.commit(at, it, best, bx, by)
}

func (p *packer) commit(at *atlasState, it *item, s *shape, x, y int) *Placement {
	f := s.footprint
	at.grid.Or(f, x, y)
	at.rects = append(at.rects, rect{x, y, f.Width, f.Height})
	at.usedW = max(at.usedW, x+f.Width)
	at.usedH = max(at.usedH, y+f.Height)

	pl := &Placement{
		Chart:     it.chart,
		Index:     it.index,
		Atlas:     at.index,
		Offset:    s.origin.Add(math.Vec2{X: float64(x), Y: float64(y)}),
		Rotation:  s.rotation,
		Scale:     p.scale,
		X:         x,
		Y:         y,
		Width:     f.Width,
		Height:    f.Height,
		Footprint: f,
		Coverage:  s.coverage,
	}
	at.placements = append(at.placements, pl)
	return pl
}

// candidates returns the origin, the used extent corners and the corners of
// placed rectangles, sorted top to bottom then left to right.
func (at *atlasState) candidates(align int) [][2]int {
	seen := make(map[[2]int]bool)
	var out [][2]int
	add := func(x, y int) {
		c := [2]int{math.AlignUp(x, align), math.AlignUp(y, align)}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	add(0, 0)
	add(at.usedW, 0)
	add(0, at.usedH)
	for _, r := range at.rects {
		add(r.x+r.w, r.y)
		add(r.x, r.y+r.h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][1] != out[j][1] {
			return out[i][1] < out[j][1]
		}
		return out[i][0] < out[j][0]
	})
	return out
}

func (p *packer) newAtlas(w, h int) (*atlasState, error) {
	at := &atlasState{index: len(p.atlases), grid: NewBitmap(w, h)}
	if p.arena != nil {
		blk, err := p.arena.Alloc(arena.KindGrid, at.grid.Bytes())
		if err != nil {
			return nil, err
		}
		at.block = blk
	}
	p.atlases = append(p.atlases, at)
	return at, nil
}

func (p *packer) resize(at *atlasState, w, h int) error {
	grid := at.grid.Resize(w, h)
	if p.arena != nil {
		blk, err := p.arena.Alloc(arena.KindGrid, grid.Bytes())
		if err != nil {
			return err
		}
		if err := p.arena.Free(at.block); err != nil {
			return errors.Join(err, p.arena.Free(blk))
		}
		at.block = blk
	}
	at.grid = grid
	return nil
}

func (p *packer) release() error {
	if p.arena == nil {
		return nil
	}
	var errs []error
	for _, at := range p.atlases {
		errs = append(errs, p.arena.Free(at.block))
	}
	return errors.Join(errs...)
}

func (p *packer) result() *Result {
	res := &Result{
		TexelsPerUnit: p.scale,
		Placements:    make([]*Placement, len(p.items)),
	}
	var covered, total int
	for _, at := range p.atlases {
		a := &Atlas{
			Index:      at.index,
			Width:      at.width,
			Height:     at.height,
			Placements: at.placements,
			Occupancy:  at.grid.Resize(at.width, at.height),
		}
		texels := 0
		for _, pl := range at.placements {
			texels += pl.Coverage.Count()
			res.Placements[pl.Index] = pl
		}
		if n := a.Width * a.Height; n > 0 {
			a.Utilization = float64(texels) / float64(n)
		}
		covered += texels
		total += a.Width * a.Height
		res.Width = max(res.Width, a.Width)
		res.Height = max(res.Height, a.Height)
		res.Atlases = append(res.Atlases, a)
	}
	if total > 0 {
		res.Utilization = float64(covered) / float64(total)
	}
	return res
}
