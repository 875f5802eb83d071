package pack

// Options controls chart packing.
type Options struct {
	// MaxChartSize rejects charts whose texel extent exceeds it. 0 disables.
	MaxChartSize int `yaml:"max_chart_size" toml:"max_chart_size"`
	// Padding is the number of texels kept free around each chart.
	Padding int `yaml:"padding" toml:"padding"`
	// TexelsPerUnit converts chart units to texels. 0 estimates a scale
	// from Resolution.
	TexelsPerUnit float64 `yaml:"texels_per_unit" toml:"texels_per_unit"`
	// Resolution fixes the atlas size. 0 grows a single atlas as needed.
	Resolution int `yaml:"resolution" toml:"resolution"`

	// Bilinear bleeds chart colors one texel outward in preview images.
	Bilinear bool `yaml:"bilinear" toml:"bilinear"`
	// BlockAlign snaps footprints and positions to 4x4 texel blocks.
	BlockAlign bool `yaml:"block_align" toml:"block_align"`
	// BruteForce scans every position and orientation when the candidate
	// positions fail.
	BruteForce bool `yaml:"brute_force" toml:"brute_force"`
	// CreateImage renders a preview image per atlas.
	CreateImage bool `yaml:"create_image" toml:"create_image"`
	// RotateCharts allows charts to be turned when placing them.
	RotateCharts bool `yaml:"rotate_charts" toml:"rotate_charts"`
	// RotateChartsToAxis aligns each chart's minimum area bounding box
	// with the axes before placement.
	RotateChartsToAxis bool `yaml:"rotate_charts_to_axis" toml:"rotate_charts_to_axis"`
}

// DefaultOptions returns the default pack options.
func DefaultOptions() Options {
	return Options{
		MaxChartSize:       0,
		Padding:            0,
		TexelsPerUnit:      0,
		Resolution:         0,
		Bilinear:           true,
		BlockAlign:         false,
		BruteForce:         false,
		CreateImage:        false,
		RotateCharts:       true,
		RotateChartsToAxis: true,
	}
}

func (o *Options) align() int {
	if o.BlockAlign {
		return 4
	}
	return 1
}
