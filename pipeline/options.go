package pipeline

import (
	"go.uber.org/zap"

	"github.com/utkarsh5026/panotile/tangent"
)

// Config is the assembled configuration of a Pipeline.
type Config struct {
	Sampler   tangent.Sampler
	Projector tangent.Projector

	// Resizer rescales the packed forward input when ResizeFactor != 1.
	Resizer      tangent.Resizer
	ResizeFactor float64

	// Parallelism is the number of per-point tasks run concurrently.
	Parallelism int

	// RateLimit caps projector calls per second across all calls of the
	// pipeline; RateBurst is the burst size.
	RateLimit float64
	RateBurst int

	// PinWorkers pins each worker to its own CPU.
	PinWorkers bool

	Logger   *zap.Logger
	Observer func(TaskEvent)
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Config)

// WithSampler sets the strategy enumerating tangent points.
func WithSampler(s tangent.Sampler) Option {
	return func(c *Config) {
		c.Sampler = s
	}
}

// WithProjector sets the single-point projector.
func WithProjector(p tangent.Projector) Option {
	return func(c *Config) {
		c.Projector = p
	}
}

// WithResizer resizes forward input by factor before projection. The resizer
// is told to upsample when factor > 1.
func WithResizer(r tangent.Resizer, factor float64) Option {
	return func(c *Config) {
		if factor > 0 {
			c.Resizer = r
			c.ResizeFactor = factor
		}
	}
}

// WithParallelism fixes how many per-point tasks may run at once.
// 1 (the default) runs every task sequentially in ordinal order.
func WithParallelism(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Parallelism = n
		}
	}
}

// WithRateLimit throttles projector calls, for projectors backed by a shared
// device or service. One budget covers every call made through the pipeline,
// batch and single-point alike.
func WithRateLimit(callsPerSecond float64, burst int) Option {
	return func(c *Config) {
		c.RateLimit = callsPerSecond
		c.RateBurst = burst
	}
}

// WithWorkerAffinity pins each worker goroutine to one CPU.
func WithWorkerAffinity() Option {
	return func(c *Config) {
		c.PinWorkers = true
	}
}

// WithLogger injects the structured log sink.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithTaskObserver registers a callback invoked after every scheduled
// per-point task. It runs on worker goroutines.
func WithTaskObserver(fn func(TaskEvent)) Option {
	return func(c *Config) {
		c.Observer = fn
	}
}

func newConfig(opts ...Option) Config {
	cfg := Config{
		ResizeFactor: 1,
		Parallelism:  1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	return cfg
}
