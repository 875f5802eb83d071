package pack

import (
	"image"
	"image/color"
	gomath "math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// goldenAngle spreads chart hues evenly around the color wheel.
const goldenAngle = 137.50776

var background = color.RGBA{A: 0}

// ChartColor returns the preview color of the chart packed at index i.
func ChartColor(i int) color.RGBA {
	h := gomath.Mod(float64(i)*goldenAngle, 360)
	r, g, b := colorful.Hsv(h, 0.65, 0.9).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Render draws every chart of res into one image per atlas. With bilinear
// set, chart colors bleed one texel into empty neighbours so filtered
// lookups near chart borders stay inside the chart color.
func Render(res *Result, bilinear bool) []*image.RGBA {
	images := make([]*image.RGBA, len(res.Atlases))
	for i, at := range res.Atlases {
		img := image.NewRGBA(image.Rect(0, 0, at.Width, at.Height))
		draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
		for _, pl := range at.Placements {
			col := ChartColor(pl.Index)
			if bilinear {
				bleed(img, pl, col)
			}
			fill(img, pl, col)
		}
		images[i] = img
	}
	return images
}

// fill rasterizes the chart triangles with anti-aliased coverage.
func fill(img *image.RGBA, pl *Placement, col color.RGBA) {
	c := pl.Chart
	if len(c.Indices) == 0 {
		return
	}
	t := pl.Transform()
	z := vector.NewRasterizer(pl.Width, pl.Height)
	for i := 0; i+2 < len(c.Indices); i += 3 {
		for k := 0; k < 3; k++ {
			p := t.Apply(c.UVs[c.Indices[i+k]])
			x, y := float32(p.X-float64(pl.X)), float32(p.Y-float64(pl.Y))
			if k == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
	}
	r := image.Rect(pl.X, pl.Y, pl.X+pl.Width, pl.Y+pl.Height)
	z.Draw(img, r, image.NewUniform(col), image.Point{})
}

// bleed paints empty texels within one texel of the chart coverage.
func bleed(img *image.RGBA, pl *Placement, col color.RGBA) {
	edge := pl.Coverage.Dilate(1)
	bounds := img.Bounds()
	for y := 0; y < edge.Height; y++ {
		for x := 0; x < edge.Width; x++ {
			if !edge.Get(x, y) {
				continue
			}
			px, py := pl.X+x, pl.Y+y
			if !image.Pt(px, py).In(bounds) || img.RGBAAt(px, py).A != 0 {
				continue
			}
			img.SetRGBA(px, py, col)
		}
	}
}
