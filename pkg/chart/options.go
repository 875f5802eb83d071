package chart

// Options controls chart segmentation and parametrization.
type Options struct {
	// MaxChartArea stops a chart from growing past this surface area. 0 disables.
	MaxChartArea float64 `yaml:"max_chart_area" toml:"max_chart_area"`
	// MaxBoundaryLength stops a chart from growing past this perimeter. 0 disables.
	MaxBoundaryLength float64 `yaml:"max_boundary_length" toml:"max_boundary_length"`

	NormalDeviationWeight float64 `yaml:"normal_deviation_weight" toml:"normal_deviation_weight"`
	RoundnessWeight       float64 `yaml:"roundness_weight" toml:"roundness_weight"`
	StraightnessWeight    float64 `yaml:"straightness_weight" toml:"straightness_weight"`
	NormalSeamWeight      float64 `yaml:"normal_seam_weight" toml:"normal_seam_weight"`
	TextureSeamWeight     float64 `yaml:"texture_seam_weight" toml:"texture_seam_weight"`

	// MaxCost is the highest candidate cost a chart accepts while growing.
	MaxCost float64 `yaml:"max_cost" toml:"max_cost"`
	// MaxIterations bounds the chart merging passes run after growth.
	MaxIterations int `yaml:"max_iterations" toml:"max_iterations"`

	// UseInputMeshUvs builds charts from the input UV islands and keeps the
	// input UVs as the parametrization.
	UseInputMeshUvs bool `yaml:"use_input_mesh_uvs" toml:"use_input_mesh_uvs"`
	// FixWinding mirrors charts whose parametrization has negative total area.
	FixWinding bool `yaml:"fix_winding" toml:"fix_winding"`

	// MaxFlippedFraction is the fraction of inverted triangles a chart
	// parametrization may have before it is split and solved again.
	MaxFlippedFraction float64 `yaml:"max_flipped_fraction" toml:"max_flipped_fraction"`
	// MaxSplitDepth bounds how many times a chart is halved on retries
	// before falling back to a planar projection.
	MaxSplitDepth int `yaml:"max_split_depth" toml:"max_split_depth"`
}

// DefaultOptions returns the default chart options.
func DefaultOptions() Options {
	return Options{
		MaxChartArea:          0,
		MaxBoundaryLength:     0,
		NormalDeviationWeight: 2,
		RoundnessWeight:       0.01,
		StraightnessWeight:    6,
		NormalSeamWeight:      4,
		TextureSeamWeight:     0.5,
		MaxCost:               2,
		MaxIterations:         1,
		UseInputMeshUvs:       false,
		FixWinding:            false,
		MaxFlippedFraction:    0.01,
		MaxSplitDepth:         3,
	}
}
