package atlas

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/uvatlas/internal/arena"
	"github.com/Faultbox/uvatlas/internal/progress"
	"github.com/Faultbox/uvatlas/pkg/chart"
	"github.com/Faultbox/uvatlas/pkg/math"
	"github.com/Faultbox/uvatlas/pkg/mesh"
	"github.com/Faultbox/uvatlas/pkg/pack"
	"github.com/Faultbox/uvatlas/pkg/param"
)

// Scale multiplies mesh positions per axis. The zero value means no scaling.
type Scale struct {
	X, Y, Z float64
}

// UniformScale returns a scale of s on every axis.
func UniformScale(s float64) Scale { return Scale{X: s, Y: s, Z: s} }

// MeshDecl describes a mesh to add. Normals and UVs are optional and hold 3
// and 2 floats per vertex.
type MeshDecl struct {
	Indices   []uint32
	Positions []float32
	Normals   []float32
	UVs       []float32

	// UseNormals lets normal seams guide chart boundaries.
	UseNormals bool
	// UseCoords lets input UV seams guide chart boundaries and enables
	// ChartOptions.UseInputMeshUvs for this mesh.
	UseCoords bool
	Scale     Scale

	// Tag is returned unchanged in the mesh result.
	Tag any
}

// MeshHandle identifies a mesh within its session.
type MeshHandle int

type state int

const (
	stateOpen state = iota
	stateGenerated
	stateFailed
	stateDestroyed
)

type meshEntry struct {
	decl  MeshDecl
	mesh  *mesh.Mesh
	block arena.Block
}

// Session owns the meshes and derived data of one atlas generation. Its
// methods are safe for concurrent use, but only one GenerateAtlas call runs
// at a time.
type Session struct {
	id       uuid.UUID
	log      *zap.Logger
	progress ProgressFunc
	workers  int
	retain   bool
	arena    *arena.Arena

	mu      sync.Mutex
	busy    bool
	state   state
	meshes  []*meshEntry
	result  *Result
	derived []arena.Block
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) SessionOption {
	return func(s *Session) { s.progress = fn }
}

// WithWorkers bounds the number of meshes processed in parallel. Values
// below 1 select runtime.NumCPU.
func WithWorkers(n int) SessionOption {
	return func(s *Session) { s.workers = n }
}

// WithMemoryLimit caps the bytes of derived data a session may hold. 0
// disables the limit.
func WithMemoryLimit(bytes int64) SessionOption {
	return func(s *Session) { s.arena = arena.New(bytes) }
}

// WithRetainMeshes keeps added meshes across Reset.
func WithRetainMeshes(retain bool) SessionOption {
	return func(s *Session) { s.retain = retain }
}

// NewSession creates an empty session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:    uuid.New(),
		log:   zap.NewNop(),
		arena: arena.New(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = runtime.NumCPU()
	}
	s.log = s.log.With(zap.String("session", s.id.String()))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// ready reports why the session cannot accept a call. s.mu must be held.
func (s *Session) ready() error {
	switch {
	case s.state == stateDestroyed:
		return fmt.Errorf("%w: session destroyed", ErrSessionNotReady)
	case s.state == stateFailed:
		return fmt.Errorf("%w: session must be destroyed after an allocation failure", ErrAllocationFailure)
	case s.busy:
		return ErrSessionBusy
	}
	return nil
}

// AddMesh validates and stores a mesh. Invalid input returns ErrInvalidMesh
// and leaves the session usable. Adding a mesh discards any previous result.
func (s *Session) AddMesh(d MeshDecl) (MeshHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return -1, err
	}

	id := len(s.meshes)
	in := mesh.Input{
		Indices:   d.Indices,
		Positions: d.Positions,
		Scale:     math.Vec3{X: d.Scale.X, Y: d.Scale.Y, Z: d.Scale.Z},
	}
	if d.UseNormals {
		in.Normals = d.Normals
	}
	if d.UseCoords {
		in.UVs = d.UVs
	}
	// Output attributes are copied from the caller's buffers, so check
	// them even when they do not guide charting.
	vertexCount := len(d.Positions) / 3
	if d.Normals != nil && len(d.Normals) != vertexCount*3 {
		return -1, fmt.Errorf("%w: normal count %d does not match vertex count %d", ErrInvalidMesh, len(d.Normals)/3, vertexCount)
	}
	if d.UVs != nil && len(d.UVs) != vertexCount*2 {
		return -1, fmt.Errorf("%w: uv count %d does not match vertex count %d", ErrInvalidMesh, len(d.UVs)/2, vertexCount)
	}

	m, err := mesh.New(id, in)
	if err != nil {
		s.log.Debug("mesh rejected", zap.Int("mesh", id), zap.Error(err))
		return -1, err
	}

	decl := d
	decl.Indices = nil
	decl.Positions = append([]float32(nil), d.Positions...)
	if d.Normals != nil {
		decl.Normals = append([]float32(nil), d.Normals...)
	}
	if d.UVs != nil {
		decl.UVs = append([]float32(nil), d.UVs...)
	}
	bytes := m.EstimateBytes() + int64(len(decl.Positions)+len(decl.Normals)+len(decl.UVs))*4
	blk, err := s.arena.Alloc(arena.KindMesh, bytes)
	if err != nil {
		s.fail(err)
		return -1, err
	}

	s.releaseDerived()
	s.meshes = append(s.meshes, &meshEntry{decl: decl, mesh: m, block: blk})
	s.log.Debug("mesh added",
		zap.Int("mesh", id),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("faces", m.FaceCount()),
	)
	if s.progress != nil {
		s.progress(ProgressAddMesh, len(s.meshes), len(s.meshes))
	}
	return MeshHandle(id), nil
}

// GenerateAtlas runs the pipeline over every added mesh. Chart building and
// parametrization run per mesh on a worker pool; packing starts after every
// mesh is done. Cancellation of ctx is honoured at progress milestones; a nil
// ctx means context.Background. Options are used as given and zero fields are
// not replaced by defaults, so callers start from DefaultChartOptions and
// DefaultPackOptions.
func (s *Session) GenerateAtlas(ctx context.Context, co ChartOptions, po PackOptions) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if err := s.ready(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(s.meshes) == 0 {
		s.mu.Unlock()
		return nil, ErrNoMeshes
	}
	s.busy = true
	s.releaseDerived()
	meshes := append([]*meshEntry(nil), s.meshes...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("generating atlas", zap.Int("meshes", len(meshes)), zap.Int("workers", s.workers))

	res, blocks, err := s.generate(ctx, meshes, co, po)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.release(blocks...)
		if errors.Is(err, ErrAllocationFailure) {
			s.fail(err)
		}
		s.log.Warn("atlas generation failed", zap.Error(err))
		return nil, err
	}
	s.derived = blocks
	s.result = res
	s.state = stateGenerated
	s.log.Info("atlas generated",
		zap.Int("atlases", res.AtlasCount),
		zap.Int("charts", res.ChartCount),
		zap.Int("width", res.Width),
		zap.Int("height", res.Height),
		zap.Float64("utilization", res.Utilization),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// meshCharts is the per-mesh output of the parallel stages.
type meshCharts struct {
	charts []*chart.Chart
	diags  []error
}

func (s *Session) generate(ctx context.Context, meshes []*meshEntry, co ChartOptions, po PackOptions) (*Result, []arena.Block, error) {
	mon := progress.NewMonitor(ctx, s.progress)
	var (
		blocks []arena.Block
		mu     sync.Mutex
	)
	track := func(kind arena.Kind, bytes int64) error {
		blk, err := s.arena.Alloc(kind, bytes)
		if err != nil {
			return err
		}
		mu.Lock()
		blocks = append(blocks, blk)
		mu.Unlock()
		return nil
	}

	// Charts.
	totalFaces := 0
	for _, e := range meshes {
		totalFaces += e.mesh.FaceCount()
	}
	if err := mon.Begin(progress.ComputeCharts, totalFaces); err != nil {
		return nil, blocks, err
	}
	per := make([]meshCharts, len(meshes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, e := range meshes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return mon.Check()
			}
			opts := co
			if !e.decl.UseCoords {
				opts.UseInputMeshUvs = false
			}
			seen := 0
			charts, err := chart.Build(e.mesh, opts, func(assigned int) error {
				step := assigned - seen
				seen = assigned
				return mon.Step(progress.ComputeCharts, step)
			})
			if err != nil {
				return err
			}
			per[i].charts = charts
			s.log.Debug("charts built", zap.Int("mesh", e.mesh.ID), zap.Int("charts", len(charts)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, blocks, err
	}

	// Parametrization.
	totalCharts := 0
	for _, p := range per {
		totalCharts += len(p.charts)
	}
	if err := mon.Begin(progress.ParameterizeCharts, totalCharts); err != nil {
		return nil, blocks, err
	}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, e := range meshes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return mon.Check()
			}
			var out []*chart.Chart
			var diags []error
			for _, c := range per[i].charts {
				cs, ds, err := param.Parametrize(e.mesh, c, co, s.arena)
				if err != nil {
					return err
				}
				for _, d := range ds {
					s.log.Warn("chart projected to plane", zap.Int("mesh", e.mesh.ID), zap.Error(d))
				}
				out = append(out, cs...)
				diags = append(diags, ds...)
				if err := mon.Step(progress.ParameterizeCharts, 1); err != nil {
					return err
				}
			}
			var bytes int64
			for _, c := range out {
				bytes += c.EstimateBytes()
			}
			if err := track(arena.KindChart, bytes); err != nil {
				return err
			}
			per[i] = meshCharts{charts: out, diags: diags}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, blocks, err
	}

	// Packing is sequential over every chart of every mesh.
	var all []*chart.Chart
	for _, p := range per {
		all = append(all, p.charts...)
	}
	packed, err := pack.Pack(all, po, mon, s.arena)
	if err != nil {
		return nil, blocks, err
	}

	res := &Result{
		Width:         packed.Width,
		Height:        packed.Height,
		AtlasCount:    len(packed.Atlases),
		MeshCount:     len(meshes),
		ChartCount:    len(all),
		TexelsPerUnit: packed.TexelsPerUnit,
		Utilization:   packed.Utilization,
		Images:        packed.Images,
	}
	var atlasBytes int64
	for _, at := range packed.Atlases {
		res.Atlases = append(res.Atlases, AtlasInfo{
			Index:       at.Index,
			Width:       at.Width,
			Height:      at.Height,
			ChartCount:  len(at.Placements),
			Utilization: at.Utilization,
		})
		atlasBytes += at.Occupancy.Bytes()
	}
	if err := track(arena.KindAtlas, atlasBytes); err != nil {
		return nil, blocks, err
	}
	var imageBytes int64
	for _, img := range packed.Images {
		imageBytes += int64(len(img.Pix))
	}
	if imageBytes > 0 {
		if err := track(arena.KindPreview, imageBytes); err != nil {
			return nil, blocks, err
		}
	}

	// Output meshes.
	if err := mon.Begin(progress.BuildOutputMeshes, len(meshes)); err != nil {
		return nil, blocks, err
	}
	next := 0
	for i, e := range meshes {
		charts := per[i].charts
		placements := packed.Placements[next : next+len(charts)]
		next += len(charts)

		mr := assemble(e, charts, placements)
		if err := track(arena.KindOutput, mr.bytes()); err != nil {
			return nil, blocks, err
		}
		res.Meshes = append(res.Meshes, mr)
		for ci, c := range charts {
			pl := placements[ci]
			res.Charts = append(res.Charts, ChartInfo{
				MeshID:   e.mesh.ID,
				Faces:    c.Faces,
				Atlas:    pl.Atlas,
				Fallback: c.Fallback,
				Flipped:  c.Flipped,
				Stretch:  param.Measure(e.mesh, c).Stretch,
				X:        pl.X,
				Y:        pl.Y,
				Width:    pl.Width,
				Height:   pl.Height,
				Rotation: pl.Rotation,
			})
		}
		res.Diagnostics = append(res.Diagnostics, per[i].diags...)
		if err := mon.Step(progress.BuildOutputMeshes, 1); err != nil {
			return nil, blocks, err
		}
	}
	return res, blocks, nil
}

// Result returns the last generated result, or ErrSessionNotReady.
func (s *Session) Result() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateGenerated || s.result == nil {
		return nil, fmt.Errorf("%w: no atlas generated", ErrSessionNotReady)
	}
	return s.result, nil
}

// MeshCount returns the number of meshes added.
func (s *Session) MeshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meshes)
}

// Reset releases charts, atlases and results. Meshes are kept when the
// session was created WithRetainMeshes(true).
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateDestroyed {
		return fmt.Errorf("%w: session destroyed", ErrSessionNotReady)
	}
	if s.busy {
		return ErrSessionBusy
	}
	err := s.releaseDerived()
	if !s.retain {
		err = errors.Join(err, s.releaseMeshes())
	}
	if s.state == stateGenerated {
		s.state = stateOpen
	}
	return err
}

// Destroy releases everything the session holds. Later calls return
// ErrSessionNotReady.
func (s *Session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateDestroyed {
		return fmt.Errorf("%w: session destroyed", ErrSessionNotReady)
	}
	if s.busy {
		return ErrSessionBusy
	}
	err := errors.Join(s.releaseDerived(), s.releaseMeshes())
	s.state = stateDestroyed
	s.log.Debug("session destroyed")
	return err
}

// LeakCheck returns ErrLeak if any accounted buffer is still held.
func (s *Session) LeakCheck() error {
	return s.arena.LeakCheck()
}

// MemoryStats is a snapshot of the bytes a session accounts for.
type MemoryStats = arena.Stats

// Memory returns the current accounting snapshot.
func (s *Session) Memory() MemoryStats {
	return s.arena.Stats()
}

func (s *Session) releaseDerived() error {
	err := s.release(s.derived...)
	s.derived = nil
	s.result = nil
	if s.state == stateGenerated {
		s.state = stateOpen
	}
	return err
}

func (s *Session) releaseMeshes() error {
	var errs []error
	for _, e := range s.meshes {
		errs = append(errs, s.release(e.block))
	}
	s.meshes = nil
	return errors.Join(errs...)
}

// release frees blocks, logging every accounting error.
func (s *Session) release(blocks ...arena.Block) error {
	var errs []error
	for _, b := range blocks {
		if err := s.arena.Free(b); err != nil {
			s.log.Error("releasing buffer", zap.String("kind", string(b.Kind())), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) fail(err error) {
	s.state = stateFailed
	s.log.Error("session unusable", zap.Error(err))
}
