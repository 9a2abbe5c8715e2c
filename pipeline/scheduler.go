package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/panotile/merge"
	"github.com/utkarsh5026/panotile/pool"
	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

// Direction names the projection direction of a task.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// TaskEvent describes one finished per-point task.
type TaskEvent struct {
	Direction Direction
	Point     tangent.Point
	Duration  time.Duration
	Err       error
}

// scheduler runs one task per tangent point on a bounded worker pool and
// hands the results back by ordinal.
type scheduler struct {
	projector tangent.Projector
	workers   int
	opts      []pool.WorkerPoolOption
	log       *zap.Logger
	observe   func(TaskEvent)

	// limiter is shared by every call of the pipeline, nil when unthrottled.
	limiter *rate.Limiter
}

func newScheduler(cfg Config) *scheduler {
	s := &scheduler{
		projector: cfg.Projector,
		workers:   cfg.Parallelism,
		log:       cfg.Logger,
		observe:   cfg.Observer,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	s.opts = []pool.WorkerPoolOption{
		pool.WithWorkerCount(cfg.Parallelism),
		pool.WithLimiter(s.limiter),
	}
	if cfg.PinWorkers {
		s.opts = append(s.opts, pool.WithAffinity())
	}
	return s
}

// throttle waits for the shared limiter before an unscheduled projector call.
func (s *scheduler) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// run executes fn once per point and returns the results in point order.
func run[R any](
	ctx context.Context,
	s *scheduler,
	dir Direction,
	points []tangent.Point,
	fn func(p tangent.Point) (R, error),
) ([]R, error) {
	started := make([]time.Time, len(points))

	opts := append([]pool.WorkerPoolOption{}, s.opts...)
	opts = append(opts,
		pool.WithBeforeTaskStart(func(i int) {
			started[i] = time.Now()
			p := points[i]
			s.log.Debug("projecting point",
				zap.String("direction", string(dir)),
				zap.Int("point", p.Ordinal),
				zap.Float64("lat_deg", p.LatDeg),
				zap.Float64("lon_deg", p.LonDeg))
		}),
		pool.WithOnTaskEnd(func(i int, err error) {
			if s.observe != nil {
				s.observe(TaskEvent{
					Direction: dir,
					Point:     points[i],
					Duration:  time.Since(started[i]),
					Err:       err,
				})
			}
		}),
	)

	wp := pool.NewWorkerPool[tangent.Point, R](opts...)
	return wp.Process(ctx, points, func(_ context.Context, p tangent.Point) (R, error) {
		return fn(p)
	})
}

// forward projects img around every point.
func (s *scheduler) forward(ctx context.Context, points []tangent.Point, img *raster.Image, fov tangent.FOV) (Projections, error) {
	patches, err := run(ctx, s, DirectionForward, points, func(p tangent.Point) (*raster.Image, error) {
		out, err := s.projector.Forward(img, tangent.DegToRad(p.LatDeg), tangent.DegToRad(p.LonDeg), fov)
		if err != nil {
			return nil, fmt.Errorf("forward %s: %w", p.Key(), err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	out := make(Projections, len(points))
	for i, p := range points {
		out[p.Ordinal] = patches[i]
	}
	return out, nil
}

// backward projects each point's patch onto a target-shaped canvas.
// Every point must have an input whose channel count matches target; both
// are checked before any task is scheduled.
func (s *scheduler) backward(
	ctx context.Context,
	points []tangent.Point,
	inputs Projections,
	target raster.Shape,
	fov tangent.FOV,
) ([]merge.Contribution, error) {
	for _, p := range points {
		img, ok := inputs[p.Ordinal]
		if !ok || img == nil {
			return nil, &MissingProjectionError{Ordinal: p.Ordinal}
		}
		if img.Shape.C != target.C {
			return nil, fmt.Errorf("%w: %s has %d channels, target shape %s has %d",
				ErrShapeMismatch, p.Key(), img.Shape.C, target, target.C)
		}
	}

	return run(ctx, s, DirectionBackward, points, func(p tangent.Point) (merge.Contribution, error) {
		patch, mask, err := s.projector.Backward(inputs[p.Ordinal], target,
			tangent.DegToRad(p.LatDeg), tangent.DegToRad(p.LonDeg), fov, true)
		if err != nil {
			return merge.Contribution{}, fmt.Errorf("backward %s: %w", p.Key(), err)
		}
		if mask == nil {
			return merge.Contribution{}, fmt.Errorf("%w: projector returned no mask for %s", ErrShapeMismatch, p.Key())
		}
		return merge.Contribution{Ordinal: p.Ordinal, Patch: patch, Mask: mask}, nil
	})
}
