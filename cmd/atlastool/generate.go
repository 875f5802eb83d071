package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/uvatlas/internal/config"
	"github.com/Faultbox/uvatlas/internal/logger"
	"github.com/Faultbox/uvatlas/pkg/atlas"
)

func cmdGenerate(args []string) {
	cfg, err := parseInvocation("generate", args).load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := generate(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// generate runs one atlas generation for cfg and writes its outputs.
func generate(ctx context.Context, cfg *config.Config) (*atlas.Result, error) {
	decls, err := buildScene(cfg.Output.Primitives, cfg.Output.UseNormals, cfg.Output.UseCoords)
	if err != nil {
		return nil, err
	}

	opts := append(cfg.SessionOptions(logger.Component("atlas")), atlas.WithProgress(progressLogger()))
	session := atlas.NewSession(opts...)
	defer func() {
		if err := session.Destroy(); err != nil {
			logger.Error("destroying session", zap.Error(err))
		}
		if err := session.LeakCheck(); err != nil {
			logger.Error("session leaked buffers", zap.Error(err))
		}
	}()

	for i, d := range decls {
		if _, err := session.AddMesh(d); err != nil {
			return nil, fmt.Errorf("mesh %d (%v): %w", i, d.Tag, err)
		}
	}

	start := time.Now()
	res, err := session.GenerateAtlas(ctx, cfg.Chart, cfg.Pack)
	if err != nil {
		return nil, err
	}
	printStats(res, time.Since(start), session.Memory())

	if err := writeOutputs(cfg.Output, res); err != nil {
		return nil, err
	}
	return res, nil
}

func progressLogger() atlas.ProgressFunc {
	return func(c atlas.ProgressCategory, current, total int) {
		if current == total {
			logger.Debug("stage complete", zap.Stringer("stage", c), zap.Int("steps", total))
		}
	}
}

func printStats(res *atlas.Result, elapsed time.Duration, mem atlas.MemoryStats) {
	fmt.Printf("Meshes:      %d\n", res.MeshCount)
	fmt.Printf("Charts:      %d\n", res.ChartCount)
	fmt.Printf("Atlases:     %d (%dx%d)\n", res.AtlasCount, res.Width, res.Height)
	fmt.Printf("Texels/unit: %.3f\n", res.TexelsPerUnit)
	fmt.Printf("Utilization: %.1f%%\n", res.Utilization*100)
	fmt.Printf("Peak memory: %.2f MB\n", float64(mem.Peak)/(1024*1024))
	fmt.Printf("Elapsed:     %v\n", elapsed.Round(time.Millisecond))
	fmt.Println()

	for _, at := range res.Atlases {
		fmt.Printf("  atlas %-3d %4dx%-4d %4d charts %5.1f%%\n", at.Index, at.Width, at.Height, at.ChartCount, at.Utilization*100)
	}

	fmt.Println()
	for i := range res.Meshes {
		m := &res.Meshes[i]
		fmt.Printf("  mesh %-3d %-12v %6d vertices %6d triangles %4d charts\n",
			m.MeshID, m.Tag, m.VertexCount(), len(m.Indices)/3, len(m.SubMeshes))
	}

	fallback, flipped := 0, 0
	for _, c := range res.Charts {
		if c.Fallback {
			fallback++
		}
		flipped += c.Flipped
	}
	if fallback > 0 || flipped > 0 {
		fmt.Printf("\n  %d charts projected to plane, %d flipped triangles\n", fallback, flipped)
	}
	for _, d := range res.Diagnostics {
		logger.Warn("diagnostic", zap.Error(d))
	}
}

// writeOutputs writes a PNG preview per atlas when enabled.
func writeOutputs(out config.OutputConfig, res *atlas.Result) error {
	if out.Dir == "" || !out.Images {
		return nil
	}
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return err
	}
	for i, img := range res.Images {
		path := filepath.Join(out.Dir, fmt.Sprintf("atlas%02d.png", i))
		if err := writePreview(path, img, out.ImageScale); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		logger.Info("preview written", zap.String("path", path))
	}
	return nil
}

// writePreview encodes img as PNG, enlarged by an integer scale with nearest
// neighbour sampling so texel edges stay visible.
func writePreview(path string, img *image.RGBA, scale int) error {
	var src image.Image = img
	if scale > 1 {
		b := img.Bounds()
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		src = dst
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
