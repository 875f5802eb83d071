// Package config handles atlastool configuration loading and management.
package config

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/uvatlas/pkg/atlas"
)

// Config holds all atlastool settings.
type Config struct {
	Chart   atlas.ChartOptions `yaml:"chart" toml:"chart"`
	Pack    atlas.PackOptions  `yaml:"pack" toml:"pack"`
	Session SessionConfig      `yaml:"session" toml:"session"`
	Output  OutputConfig       `yaml:"output" toml:"output"`
	Logging LoggingConfig      `yaml:"logging" toml:"logging"`
}

// SessionConfig holds engine session settings.
type SessionConfig struct {
	Workers      int   `yaml:"workers" toml:"workers"`             // 0 uses every CPU
	MemoryLimit  int64 `yaml:"memory_limit" toml:"memory_limit"`   // bytes, 0 is unlimited
	RetainMeshes bool  `yaml:"retain_meshes" toml:"retain_meshes"` // keep meshes across regenerations
}

// OutputConfig controls what atlastool builds and writes.
type OutputConfig struct {
	Dir        string   `yaml:"dir" toml:"dir"`
	Primitives []string `yaml:"primitives" toml:"primitives"`
	Images     bool     `yaml:"images" toml:"images"`
	ImageScale int      `yaml:"image_scale" toml:"image_scale"`
	UseNormals bool     `yaml:"use_normals" toml:"use_normals"`
	UseCoords  bool     `yaml:"use_coords" toml:"use_coords"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Chart: atlas.DefaultChartOptions(),
		Pack:  atlas.DefaultPackOptions(),
		Session: SessionConfig{
			Workers:      0,
			MemoryLimit:  0,
			RetainMeshes: true,
		},
		Output: OutputConfig{
			Dir:        "out",
			Primitives: []string{"cube", "sphere", "cylinder"},
			Images:     false,
			ImageScale: 1,
			UseNormals: true,
			UseCoords:  false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Pack.Padding < 0:
		return fmt.Errorf("pack.padding must not be negative, got %d", c.Pack.Padding)
	case c.Pack.Resolution < 0:
		return fmt.Errorf("pack.resolution must not be negative, got %d", c.Pack.Resolution)
	case c.Pack.TexelsPerUnit < 0:
		return fmt.Errorf("pack.texels_per_unit must not be negative, got %g", c.Pack.TexelsPerUnit)
	case c.Chart.MaxFlippedFraction < 0 || c.Chart.MaxFlippedFraction > 1:
		return fmt.Errorf("chart.max_flipped_fraction must be within [0, 1], got %g", c.Chart.MaxFlippedFraction)
	case c.Session.MemoryLimit < 0:
		return fmt.Errorf("session.memory_limit must not be negative, got %d", c.Session.MemoryLimit)
	case c.Output.ImageScale < 1:
		return fmt.Errorf("output.image_scale must be at least 1, got %d", c.Output.ImageScale)
	}
	return nil
}

// SessionOptions converts the session settings into engine options.
func (c *Config) SessionOptions(log *zap.Logger) []atlas.SessionOption {
	return []atlas.SessionOption{
		atlas.WithLogger(log),
		atlas.WithWorkers(c.Session.Workers),
		atlas.WithMemoryLimit(c.Session.MemoryLimit),
		atlas.WithRetainMeshes(c.Session.RetainMeshes),
	}
}
