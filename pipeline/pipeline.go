package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/merge"
	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

// Pipeline orchestrates packing, per-point projection and merging.
// It is not safe for concurrent use; see the package documentation.
type Pipeline struct {
	cfg     Config
	log     *zap.Logger
	sched   *scheduler
	pending *pendingForward
}

// New builds a pipeline. A pipeline without a projector, or without a
// sampler for the batch operations, fails those calls with ErrUnconfigured.
func New(opts ...Option) *Pipeline {
	cfg := newConfig(opts...)
	return &Pipeline{
		cfg:   cfg,
		log:   cfg.Logger,
		sched: newScheduler(cfg),
	}
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Parallelism returns the number of concurrent per-point tasks.
func (p *Pipeline) Parallelism() int {
	return p.cfg.Parallelism
}

// ProjectAll projects the input around every tangent point of the sampler
// and returns the patches by ordinal.
func (p *Pipeline) ProjectAll(ctx context.Context, in Input, fov tangent.FOV) (Projections, error) {
	if p.cfg.Sampler == nil {
		return nil, fmt.Errorf("%w: no sampler set", ErrUnconfigured)
	}
	if p.cfg.Projector == nil {
		return nil, fmt.Errorf("%w: no projector set", ErrUnconfigured)
	}

	img, err := p.beginForward(in)
	if err != nil {
		return nil, err
	}

	points := tangent.Enumerate(p.cfg.Sampler)
	p.log.Debug("forward pass",
		zap.Stringer("run_id", p.pending.runID),
		zap.Int("tasks", len(points)),
		zap.Int("parallelism", p.cfg.Parallelism))

	return p.sched.forward(ctx, points, img, fov)
}

// ProjectOne projects the input around a single tangent point given in
// degrees. It records the pending forward context like ProjectAll.
func (p *Pipeline) ProjectOne(in Input, latDeg, lonDeg float64, fov tangent.FOV) (*raster.Image, error) {
	if p.cfg.Projector == nil {
		return nil, fmt.Errorf("%w: no projector set", ErrUnconfigured)
	}

	img, err := p.beginForward(in)
	if err != nil {
		return nil, err
	}

	if err := p.sched.throttle(context.Background()); err != nil {
		return nil, err
	}
	out, err := p.cfg.Projector.Forward(img, tangent.DegToRad(latDeg), tangent.DegToRad(lonDeg), fov)
	if err != nil {
		return nil, fmt.Errorf("forward (%g, %g): %w", latDeg, lonDeg, err)
	}
	return out, nil
}

// UnprojectAll projects every patch back, merges them and, when the pending
// forward input was a bundle, unpacks the merged array into its channels.
func (p *Pipeline) UnprojectAll(ctx context.Context, patches Projections, target raster.Shape, fov tangent.FOV) (Output, error) {
	if p.cfg.Sampler == nil {
		return Output{}, fmt.Errorf("%w: no sampler set", ErrUnconfigured)
	}
	if p.cfg.Projector == nil {
		return Output{}, fmt.Errorf("%w: no projector set", ErrUnconfigured)
	}

	target = p.effectiveShape(target)
	if err := target.Validate(); err != nil {
		return Output{}, err
	}

	points := tangent.Enumerate(p.cfg.Sampler)
	runID := p.runID()

	start := time.Now()
	p.log.Info("starting backward pass",
		zap.Stringer("run_id", runID),
		zap.Int("tasks", len(points)),
		zap.Int("parallelism", p.cfg.Parallelism))

	contributions, err := p.sched.backward(ctx, points, patches, target, fov)
	if err != nil {
		return Output{}, err
	}

	acc, err := merge.Merge(target, contributions)
	if err != nil {
		return Output{}, err
	}

	p.log.Info("backward pass completed",
		zap.Stringer("run_id", runID),
		zap.Duration("elapsed", time.Since(start)))

	return p.finishBackward(acc.Sum(), acc.Coverage())
}

// UnprojectOne projects a single patch back around a tangent point given in
// degrees. The same shape override and unpacking rules as UnprojectAll apply.
// The returned Coverage is the point's validity mask.
func (p *Pipeline) UnprojectOne(patch *raster.Image, target raster.Shape, latDeg, lonDeg float64, fov tangent.FOV) (Output, error) {
	if p.cfg.Projector == nil {
		return Output{}, fmt.Errorf("%w: no projector set", ErrUnconfigured)
	}
	if patch == nil {
		return Output{}, fmt.Errorf("%w: no patch given", ErrTypeMismatch)
	}

	target = p.effectiveShape(target)
	if err := target.Validate(); err != nil {
		return Output{}, err
	}
	if patch.Shape.C != target.C {
		return Output{}, fmt.Errorf("%w: patch has %d channels, target shape %s has %d",
			ErrShapeMismatch, patch.Shape.C, target, target.C)
	}

	if err := p.sched.throttle(context.Background()); err != nil {
		return Output{}, err
	}
	out, mask, err := p.cfg.Projector.Backward(patch, target, tangent.DegToRad(latDeg), tangent.DegToRad(lonDeg), fov, true)
	if err != nil {
		return Output{}, fmt.Errorf("backward (%g, %g): %w", latDeg, lonDeg, err)
	}
	return p.finishBackward(out, mask)
}

// beginForward packs and resizes the input and records it as the pending
// forward context, replacing any earlier one.
func (p *Pipeline) beginForward(in Input) (*raster.Image, error) {
	packed, err := in.pack()
	if err != nil {
		return nil, err
	}

	img := packed.Image
	if p.cfg.Resizer != nil && p.cfg.ResizeFactor != 1 {
		img, err = p.cfg.Resizer.Resize(img, p.cfg.ResizeFactor > 1)
		if err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
		if img.Shape.C != packed.Image.Shape.C {
			return nil, fmt.Errorf("%w: resizer changed channel count from %d to %d",
				ErrShapeMismatch, packed.Image.Shape.C, img.Shape.C)
		}
	}

	p.pending = &pendingForward{
		runID: uuid.New(),
		keys:  packed.Keys,
		shape: img.Shape,
	}
	if !packed.Raw() {
		p.pending.bundle = in.bundle
	}
	return img, nil
}

// effectiveShape applies the shape override rule.
func (p *Pipeline) effectiveShape(requested raster.Shape) raster.Shape {
	if p.pending == nil || requested == p.pending.shape {
		return requested
	}
	p.log.Warn("overriding backward target shape with the shape recorded by the forward pass",
		zap.Stringer("run_id", p.pending.runID),
		zap.Stringer("requested", requested),
		zap.Stringer("recorded", p.pending.shape))
	return p.pending.shape
}

func (p *Pipeline) runID() uuid.UUID {
	if p.pending == nil {
		return uuid.Nil
	}
	return p.pending.runID
}

// finishBackward unpacks the merged array when the pending forward context
// was bundled, then clears the context.
func (p *Pipeline) finishBackward(merged, coverage *raster.Image) (Output, error) {
	out := Output{Raw: merged, Coverage: coverage, RunID: p.runID()}

	if p.pending != nil && p.pending.bundled() {
		b, err := channels.Unpack(merged, p.pending.keys)
		if err != nil {
			return Output{}, err
		}
		out.Channels = b
		out.Keys = p.pending.keys
	}

	p.pending = nil
	return out, nil
}
