// Package config loads the panotile CLI configuration from YAML and
// PANOTILE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/utkarsh5026/panotile/internal/synthetic"
	"github.com/utkarsh5026/panotile/pipeline"
	"github.com/utkarsh5026/panotile/tangent"
)

const (
	configFileName = "panotile"
	configFileType = "yaml"
	envPrefix      = "PANOTILE"

	keyParallelism  = "parallelism"
	keyResizeFactor = "resize_factor"
	keyFOVHeight    = "fov.height"
	keyFOVWidth     = "fov.width"
	keyPoints       = "sampler.points"
	keyPatchHeight  = "projector.patch_height"
	keyPatchWidth   = "projector.patch_width"
	keyLatency      = "projector.latency"
	keyRatePerSec   = "rate_limit.per_second"
	keyRateBurst    = "rate_limit.burst"
	keyPinWorkers   = "pin_workers"
	keyLogLevel     = "log_level"
	keySceneHeight  = "scene.height"
	keySceneWidth   = "scene.width"
)

// Validation errors.
var (
	ErrParallelismInvalid  = errors.New("parallelism must be positive")
	ErrResizeFactorInvalid = errors.New("resize factor must be positive")
	ErrFOVInvalid          = errors.New("field of view must be positive")
	ErrNoTangentPoints     = errors.New("sampler has no tangent points")
	ErrTangentPointInvalid = errors.New("tangent point must be [lat, lon] within range")
	ErrPatchSizeInvalid    = errors.New("patch size must be positive")
	ErrRateLimitInvalid    = errors.New("rate limit must not be negative")
	ErrLogLevelUnknown     = errors.New("unknown log level")
	ErrSceneSizeInvalid    = errors.New("scene size must be positive")
)

// Config is the full CLI configuration.
type Config struct {
	Parallelism  int             `mapstructure:"parallelism"`
	ResizeFactor float64         `mapstructure:"resize_factor"`
	FOV          FOVConfig       `mapstructure:"fov"`
	Sampler      SamplerConfig   `mapstructure:"sampler"`
	Projector    ProjectorConfig `mapstructure:"projector"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
	PinWorkers   bool            `mapstructure:"pin_workers"`
	LogLevel     string          `mapstructure:"log_level"`
	Scene        SceneConfig     `mapstructure:"scene"`
}

type FOVConfig struct {
	Height float64 `mapstructure:"height"`
	Width  float64 `mapstructure:"width"`
}

// SamplerConfig lists tangent points as [lat, lon] pairs in degrees.
type SamplerConfig struct {
	Points [][]float64 `mapstructure:"points"`
}

type ProjectorConfig struct {
	PatchHeight int           `mapstructure:"patch_height"`
	PatchWidth  int           `mapstructure:"patch_width"`
	Latency     time.Duration `mapstructure:"latency"`
}

// RateLimitConfig throttles projector calls. PerSecond 0 disables it.
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// SceneConfig sizes the synthetic panorama used by the CLI.
type SceneConfig struct {
	Height int `mapstructure:"height"`
	Width  int `mapstructure:"width"`
}

// Six cube-face centres.
var defaultPoints = [][]float64{
	{0, 0}, {0, 90}, {0, 180}, {0, -90}, {90, 0}, {-90, 0},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyParallelism, 1)
	v.SetDefault(keyResizeFactor, 1.0)
	v.SetDefault(keyFOVHeight, 1.0)
	v.SetDefault(keyFOVWidth, 1.0)
	v.SetDefault(keyPoints, defaultPoints)
	v.SetDefault(keyPatchHeight, 64)
	v.SetDefault(keyPatchWidth, 64)
	v.SetDefault(keyLatency, time.Duration(0))
	v.SetDefault(keyRatePerSec, 0.0)
	v.SetDefault(keyRateBurst, 1)
	v.SetDefault(keyPinWorkers, false)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keySceneHeight, 256)
	v.SetDefault(keySceneWidth, 512)
}

// Load reads the configuration. An empty path searches the working directory
// for panotile.yaml, and a missing file there is not an error. An explicit
// path must exist. Environment variables override file values, e.g.
// PANOTILE_PARALLELISM or PANOTILE_FOV_HEIGHT.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the Config is well-formed. It returns one of this
// package's sentinel errors on failure.
func (c Config) Validate() error {
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: %d", ErrParallelismInvalid, c.Parallelism)
	}
	if c.ResizeFactor <= 0 {
		return fmt.Errorf("%w: %g", ErrResizeFactorInvalid, c.ResizeFactor)
	}
	if c.FOV.Height <= 0 || c.FOV.Width <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrFOVInvalid, c.FOV.Height, c.FOV.Width)
	}
	if len(c.Sampler.Points) == 0 {
		return ErrNoTangentPoints
	}
	for i, p := range c.Sampler.Points {
		if len(p) != 2 || p[0] < -90 || p[0] > 90 || p[1] < -180 || p[1] > 180 {
			return fmt.Errorf("%w: point %d is %v", ErrTangentPointInvalid, i+1, p)
		}
	}
	if c.Projector.PatchHeight < 1 || c.Projector.PatchWidth < 1 {
		return fmt.Errorf("%w: %dx%d", ErrPatchSizeInvalid, c.Projector.PatchHeight, c.Projector.PatchWidth)
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return ErrRateLimitInvalid
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrLogLevelUnknown, c.LogLevel)
	}
	if c.Scene.Height < 1 || c.Scene.Width < 1 {
		return fmt.Errorf("%w: %dx%d", ErrSceneSizeInvalid, c.Scene.Height, c.Scene.Width)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// FieldOfView returns the patch field of view.
func (c Config) FieldOfView() tangent.FOV {
	return tangent.FOV{H: c.FOV.Height, W: c.FOV.Width}
}

// TangentPoints returns the configured points as a sampler.
func (c Config) TangentPoints() tangent.StaticSampler {
	out := make(tangent.StaticSampler, 0, len(c.Sampler.Points))
	for _, p := range c.Sampler.Points {
		if len(p) == 2 {
			out = append(out, tangent.LatLon{LatDeg: p[0], LonDeg: p[1]})
		}
	}
	return out
}

// CropProjector returns the synthetic crop projector sized by the configuration.
func (c Config) CropProjector() synthetic.CropProjector {
	return synthetic.CropProjector{
		PatchH:  c.Projector.PatchHeight,
		PatchW:  c.Projector.PatchWidth,
		Latency: c.Projector.Latency,
	}
}

// PipelineOptions translates the configuration into pipeline options.
// parallelism overrides the configured value when positive.
func (c Config) PipelineOptions(logger *zap.Logger, parallelism int) []pipeline.Option {
	if parallelism < 1 {
		parallelism = c.Parallelism
	}
	opts := []pipeline.Option{
		pipeline.WithSampler(c.TangentPoints()),
		pipeline.WithProjector(c.CropProjector()),
		pipeline.WithParallelism(parallelism),
		pipeline.WithLogger(logger),
	}
	if c.ResizeFactor != 1 {
		magnitude := c.ResizeFactor
		if magnitude < 1 {
			magnitude = 1 / magnitude
		}
		opts = append(opts, pipeline.WithResizer(synthetic.NearestResizer{Factor: magnitude}, c.ResizeFactor))
	}
	if c.RateLimit.PerSecond > 0 {
		opts = append(opts, pipeline.WithRateLimit(c.RateLimit.PerSecond, c.RateLimit.Burst))
	}
	if c.PinWorkers {
		opts = append(opts, pipeline.WithWorkerAffinity())
	}
	return opts
}
