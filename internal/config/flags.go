package config

import "flag"

// Flags holds command-line overrides. Zero values leave the config alone,
// except Padding, which is unset at -1 as registered.
type Flags struct {
	Config        string
	Debug         bool
	Workers       int
	Resolution    int
	TexelsPerUnit float64
	Padding       int
	BruteForce    bool
	Images        bool
	Output        string
	UseInputUVs   bool
}

// Register binds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file (.yaml, .yml or .toml)")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.IntVar(&f.Workers, "workers", 0, "Meshes processed in parallel")
	fs.IntVar(&f.Resolution, "resolution", 0, "Fixed atlas resolution in texels")
	fs.Float64Var(&f.TexelsPerUnit, "tpu", 0, "Texels per world unit")
	fs.IntVar(&f.Padding, "padding", -1, "Texels of padding around charts")
	fs.BoolVar(&f.BruteForce, "brute", false, "Try every position when packing")
	fs.BoolVar(&f.Images, "images", false, "Write PNG previews of each atlas")
	fs.StringVar(&f.Output, "out", "", "Output directory")
	fs.BoolVar(&f.UseInputUVs, "input-uvs", false, "Chart along input UV islands")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Workers > 0 {
		cfg.Session.Workers = f.Workers
	}
	if f.Resolution > 0 {
		cfg.Pack.Resolution = f.Resolution
	}
	if f.TexelsPerUnit > 0 {
		cfg.Pack.TexelsPerUnit = f.TexelsPerUnit
	}
	if f.Padding >= 0 {
		cfg.Pack.Padding = f.Padding
	}
	if f.BruteForce {
		cfg.Pack.BruteForce = true
	}
	if f.Images {
		cfg.Output.Images = true
		cfg.Pack.CreateImage = true
	}
	if f.Output != "" {
		cfg.Output.Dir = f.Output
	}
	if f.UseInputUVs {
		cfg.Chart.UseInputMeshUvs = true
		cfg.Output.UseCoords = true
	}
}
