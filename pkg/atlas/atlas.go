// Package atlas generates texture atlases for triangle meshes.
//
// A Session collects meshes, segments them into charts, flattens every
// chart and packs the charts into one or more atlases:
//
//	s := atlas.NewSession(atlas.WithLogger(log))
//	defer s.Destroy()
//	if _, err := s.AddMesh(atlas.MeshDecl{Indices: idx, Positions: pos}); err != nil {
//		return err
//	}
//	res, err := s.GenerateAtlas(ctx, atlas.DefaultChartOptions(), atlas.DefaultPackOptions())
package atlas

import (
	"errors"

	"github.com/Faultbox/uvatlas/internal/arena"
	"github.com/Faultbox/uvatlas/internal/progress"
	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/mesh"
	"github.com/Faultbox/uvatlas/pkg/pack"
	"github.com/Faultbox/uvatlas/pkg/param"
)

// Errors returned by a Session. Match them with errors.Is.
var (
	ErrInvalidMesh           = mesh.ErrInvalidMesh
	ErrSessionNotReady       = errors.New("session not ready")
	ErrChartTooLarge         = pack.ErrChartTooLarge
	ErrParametrizationFailed = param.ErrParametrizationFailed
	ErrAllocationFailure     = arena.ErrAllocationFailure
	ErrSessionBusy           = errors.New("session busy")
	ErrCanceled              = progress.ErrCanceled
	ErrLeak                  = arena.ErrLeak
	ErrNoMeshes              = errors.New("no meshes added")
)

// ChartOptions controls chart segmentation and parametrization.
type ChartOptions = chart.Options

// PackOptions controls chart packing.
type PackOptions = pack.Options

// DefaultChartOptions returns the default chart options. A zero ChartOptions
// is valid but disables merging cost limits, splitting and seam weights.
func DefaultChartOptions() ChartOptions { return chart.DefaultOptions() }

// DefaultPackOptions returns the default pack options.
func DefaultPackOptions() PackOptions { return pack.DefaultOptions() }

// ProgressCategory identifies a pipeline stage in progress reports.
type ProgressCategory = progress.Category

// Progress categories in pipeline order.
const (
	ProgressAddMesh            = progress.AddMesh
	ProgressComputeCharts      = progress.ComputeCharts
	ProgressParameterizeCharts = progress.ParameterizeCharts
	ProgressPackCharts         = progress.PackCharts
	ProgressBuildOutputMeshes  = progress.BuildOutputMeshes
)

// ProgressFunc receives milestone reports. It is called synchronously and
// must not block.
type ProgressFunc = progress.Func
