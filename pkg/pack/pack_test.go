package pack

import (
	"context"
	"errors"
	gomath "math"
	"reflect"
	"testing"

	"github.com/Faultbox/uvatlas/internal/arena"
	"github.com/Faultbox/uvatlas/internal/progress"
	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/math"
)

// rectChart returns a parametrized w*h rectangle made of two triangles.
func rectChart(w, h float64) *chart.Chart {
	return &chart.Chart{
		Faces:    []int{0, 1},
		Vertices: []uint32{0, 1, 2, 3},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
		UVs:      []math.Vec2{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}},
		Area:     w * h,
	}
}

// triChart returns a parametrized right triangle with legs of length s.
func triChart(s float64) *chart.Chart {
	return &chart.Chart{
		Faces:    []int{0},
		Vertices: []uint32{0, 1, 2},
		Indices:  []uint32{0, 1, 2},
		UVs:      []math.Vec2{{X: 0, Y: 0}, {X: s, Y: 0}, {X: 0, Y: s}},
		Area:     s * s / 2,
	}
}

func mixedCharts() []*chart.Chart {
	return []*chart.Chart{
		rectChart(10, 4), rectChart(3, 3), triChart(6), rectChart(1, 12),
		triChart(2), rectChart(7, 7), rectChart(0.2, 0.2), triChart(9),
		rectChart(5, 2), rectChart(2, 5),
	}
}

func fixedOptions(tpu float64) Options {
	opts := DefaultOptions()
	opts.TexelsPerUnit = tpu
	opts.RotateCharts = false
	opts.RotateChartsToAxis = false
	return opts
}

// checkPacking verifies that footprints stay inside their atlas, never
// overlap, and contain the placed chart geometry.
func checkPacking(t *testing.T, charts []*chart.Chart, res *Result) {
	t.Helper()
	if len(res.Placements) != len(charts) {
		t.Fatalf("placements = %d, want %d", len(res.Placements), len(charts))
	}
	for _, at := range res.Atlases {
		union := NewBitmap(at.Width, at.Height)
		for _, pl := range at.Placements {
			if union.Overlaps(pl.Footprint, pl.X, pl.Y) {
				t.Fatalf("atlas %d: chart %d overlaps or leaves the atlas at (%d, %d)", at.Index, pl.Index, pl.X, pl.Y)
			}
			union.Or(pl.Footprint, pl.X, pl.Y)

			tr := pl.Transform()
			for _, uv := range pl.Chart.UVs {
				p := tr.Apply(uv)
				if p.X < float64(pl.X)-1e-6 || p.Y < float64(pl.Y)-1e-6 ||
					p.X > float64(pl.X+pl.Width)+1e-6 || p.Y > float64(pl.Y+pl.Height)+1e-6 {
					t.Fatalf("chart %d vertex %v outside footprint %d,%d %dx%d", pl.Index, p, pl.X, pl.Y, pl.Width, pl.Height)
				}
			}
		}
	}
	for i, pl := range res.Placements {
		if pl == nil || pl.Index != i || pl.Chart != charts[i] {
			t.Fatalf("placement %d does not match its chart", i)
		}
	}
}

func TestPack_NoOverlap(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"defaults", func(o *Options) {}},
		{"padding", func(o *Options) { o.Padding = 2 }},
		{"no rotation", func(o *Options) { o.RotateCharts = false; o.RotateChartsToAxis = false }},
		{"rotate without axis", func(o *Options) { o.RotateChartsToAxis = false }},
		{"block align", func(o *Options) { o.BlockAlign = true; o.Padding = 1 }},
		{"brute force", func(o *Options) { o.BruteForce = true; o.Padding = 1 }},
		{"fixed resolution", func(o *Options) { o.Resolution = 32; o.Padding = 1 }},
		{"fixed brute force", func(o *Options) { o.Resolution = 48; o.BruteForce = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.TexelsPerUnit = 2
			tt.modify(&opts)
			charts := mixedCharts()
			res, err := Pack(charts, opts, nil, nil)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			checkPacking(t, charts, res)
		})
	}
}

func TestPack_GrowingSize(t *testing.T) {
	charts := mixedCharts()

	res, err := Pack(charts, fixedOptions(3), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Atlases) != 1 {
		t.Fatalf("atlases = %d, want 1", len(res.Atlases))
	}
	at := res.Atlases[0]
	if at.Width&(at.Width-1) != 0 || at.Height&(at.Height-1) != 0 {
		t.Errorf("atlas %dx%d is not a power of two", at.Width, at.Height)
	}
	if at.Utilization <= 0 || at.Utilization > 1 {
		t.Errorf("utilization = %v", at.Utilization)
	}

	opts := fixedOptions(3)
	opts.BlockAlign = true
	res, err = Pack(charts, opts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	at = res.Atlases[0]
	if at.Width%4 != 0 || at.Height%4 != 0 {
		t.Errorf("atlas %dx%d is not block aligned", at.Width, at.Height)
	}
	for _, pl := range at.Placements {
		if pl.X%4 != 0 || pl.Y%4 != 0 || pl.Width%4 != 0 || pl.Height%4 != 0 {
			t.Errorf("chart %d footprint %d,%d %dx%d not block aligned", pl.Index, pl.X, pl.Y, pl.Width, pl.Height)
		}
	}
	checkPacking(t, charts, res)
}

func TestPack_FixedResolution(t *testing.T) {
	tests := []struct {
		resolution  int
		wantAtlases int
	}{
		{16, 2},
		{32, 1},
	}
	for _, tt := range tests {
		charts := []*chart.Chart{triChart(1), triChart(1)}
		opts := fixedOptions(10)
		opts.Resolution = tt.resolution
		res, err := Pack(charts, opts, nil, nil)
		if err != nil {
			t.Fatalf("resolution %d: %v", tt.resolution, err)
		}
		if len(res.Atlases) != tt.wantAtlases {
			t.Errorf("resolution %d: atlases = %d, want %d", tt.resolution, len(res.Atlases), tt.wantAtlases)
		}
		for _, at := range res.Atlases {
			if at.Width != tt.resolution || at.Height != tt.resolution {
				t.Errorf("atlas size %dx%d, want %d", at.Width, at.Height, tt.resolution)
			}
		}
		checkPacking(t, charts, res)
	}
}

func TestPack_FirstFitOrder(t *testing.T) {
	charts := []*chart.Chart{rectChart(10, 10), rectChart(10, 10)}
	opts := fixedOptions(1)
	opts.Resolution = 32
	res, err := Pack(charts, opts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, b := res.Placements[0], res.Placements[1]
	if a.X != 0 || a.Y != 0 {
		t.Errorf("first chart at %d,%d, want origin", a.X, a.Y)
	}
	if b.Y != 0 || b.X != a.Width {
		t.Errorf("second chart at %d,%d, want %d,0", b.X, b.Y, a.Width)
	}
}

func TestPack_EstimatedScaleShrinksToOneAtlas(t *testing.T) {
	charts := []*chart.Chart{triChart(1), triChart(1), rectChart(2, 1)}
	opts := DefaultOptions()
	opts.Resolution = 64
	res, err := Pack(charts, opts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Atlases) != 1 {
		t.Errorf("atlases = %d, want 1", len(res.Atlases))
	}
	if res.TexelsPerUnit <= 0 {
		t.Errorf("texels per unit = %v", res.TexelsPerUnit)
	}
	checkPacking(t, charts, res)
}

func TestPack_ChartTooLarge(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"max chart size", func(o *Options) { o.MaxChartSize = 5 }},
		{"larger than fixed atlas", func(o *Options) { o.Resolution = 8 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fixedOptions(10)
			tt.modify(&opts)
			_, err := Pack([]*chart.Chart{triChart(1)}, opts, nil, nil)
			if !errors.Is(err, ErrChartTooLarge) {
				t.Errorf("Pack() error = %v, want ErrChartTooLarge", err)
			}
		})
	}
}

func TestPack_Deterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.Padding = 1
	opts.TexelsPerUnit = 4

	place := func() [][4]int {
		res, err := Pack(mixedCharts(), opts, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		var out [][4]int
		for _, pl := range res.Placements {
			out = append(out, [4]int{pl.Atlas, pl.X, pl.Y, int(gomath.Round(pl.Rotation * 1000))})
		}
		return out
	}
	if a, b := place(), place(); !reflect.DeepEqual(a, b) {
		t.Errorf("placements differ:\n%v\n%v", a, b)
	}
}

func TestPack_ProgressAndArena(t *testing.T) {
	var last int
	mon := progress.NewMonitor(context.Background(), func(c progress.Category, current, total int) {
		if c != progress.PackCharts {
			t.Errorf("category = %v", c)
		}
		if current < last {
			t.Errorf("progress went backwards: %d after %d", current, last)
		}
		last = current
	})
	a := arena.New(0)
	charts := mixedCharts()
	if _, err := Pack(charts, fixedOptions(2), mon, a); err != nil {
		t.Fatal(err)
	}
	if last != len(charts) {
		t.Errorf("final progress = %d, want %d", last, len(charts))
	}
	if s := a.Stats(); s.Blocks != 0 || s.Peak == 0 {
		t.Errorf("arena stats = %+v", s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Pack(charts, fixedOptions(2), progress.NewMonitor(ctx, nil), a)
	if !errors.Is(err, progress.ErrCanceled) {
		t.Errorf("Pack() error = %v, want ErrCanceled", err)
	}
	if a.Stats().Blocks != 0 {
		t.Error("canceled pack leaked grid blocks")
	}
}

func TestPack_Images(t *testing.T) {
	charts := []*chart.Chart{rectChart(4, 4), triChart(4)}
	opts := fixedOptions(2)
	opts.CreateImage = true
	opts.Padding = 1
	res, err := Pack(charts, opts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Images) != len(res.Atlases) {
		t.Fatalf("images = %d, atlases = %d", len(res.Images), len(res.Atlases))
	}
	img := res.Images[0]
	if b := img.Bounds(); b.Dx() != res.Atlases[0].Width || b.Dy() != res.Atlases[0].Height {
		t.Errorf("image bounds %v", b)
	}
	pl := res.Placements[0]
	center := pl.Transform().Apply(math.Vec2{X: 2, Y: 2})
	if got := img.RGBAAt(int(center.X), int(center.Y)); got != ChartColor(0) {
		t.Errorf("chart center color = %v, want %v", got, ChartColor(0))
	}
}

func TestAlignAngle(t *testing.T) {
	const angle = 0.5
	var pts []math.Vec2
	for _, p := range []math.Vec2{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 1}, {X: 0, Y: 1}, {X: 2, Y: 0.5}} {
		pts = append(pts, p.Rotate(angle))
	}
	got := alignAngle(pts)
	lo, hi := rotatedBounds(pts, got)
	if area := (hi.X - lo.X) * (hi.Y - lo.Y); gomath.Abs(area-4) > 1e-9 {
		t.Errorf("aligned area = %v, want 4", area)
	}

	if hull := convexHull(pts); len(hull) != 4 {
		t.Errorf("hull has %d points, want 4", len(hull))
	}
}
