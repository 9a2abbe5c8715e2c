package benchmarks

import (
	"context"
	"testing"
	"time"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/internal/synthetic"
	"github.com/utkarsh5026/panotile/pipeline"
	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

var fov = tangent.FOV{H: 1, W: 1}

// ringPoints spaces n tangent points evenly along the equator plus two rings
// at ±45°.
func ringPoints(n int) tangent.StaticSampler {
	points := make(tangent.StaticSampler, 0, n)
	lats := []float64{0, 45, -45}
	for i := range n {
		points = append(points, tangent.LatLon{
			LatDeg: lats[i%len(lats)],
			LonDeg: -180 + 360*float64(i)/float64(n),
		})
	}
	return points
}

// workload describes one pipeline benchmark setup.
type workload struct {
	name    string
	sceneH  int
	sceneW  int
	points  int
	patch   int
	latency time.Duration
}

var workloads = []workload{
	{name: "CPU_Small", sceneH: 64, sceneW: 128, points: 12, patch: 24},
	{name: "CPU_Large", sceneH: 256, sceneW: 512, points: 26, patch: 96},
	// Projector latency stands in for a device or remote projector.
	{name: "Latency_1ms", sceneH: 64, sceneW: 128, points: 26, patch: 24, latency: time.Millisecond},
}

func newScene(b *testing.B, w workload) *channels.Bundle {
	b.Helper()
	scene, err := synthetic.Scene(w.sceneH, w.sceneW)
	if err != nil {
		b.Fatalf("scene: %v", err)
	}
	return scene
}

func newPipeline(w workload, parallelism int) *pipeline.Pipeline {
	return pipeline.New(
		pipeline.WithSampler(ringPoints(w.points)),
		pipeline.WithProjector(synthetic.CropProjector{PatchH: w.patch, PatchW: w.patch, Latency: w.latency}),
		pipeline.WithParallelism(parallelism),
	)
}

// roundTrip runs one forward and one backward pass.
func roundTrip(b *testing.B, p *pipeline.Pipeline, scene *channels.Bundle) pipeline.Output {
	ctx := context.Background()
	patches, err := p.ProjectAll(ctx, pipeline.Bundled(scene), fov)
	if err != nil {
		b.Fatalf("forward: %v", err)
	}
	out, err := p.UnprojectAll(ctx, patches, packedShape(b, scene), fov)
	if err != nil {
		b.Fatalf("backward: %v", err)
	}
	return out
}

func packedShape(b *testing.B, scene *channels.Bundle) raster.Shape {
	b.Helper()
	packed, err := channels.Pack(scene)
	if err != nil {
		b.Fatalf("pack: %v", err)
	}
	return packed.Image.Shape
}

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) func(ctx context.Context, task int) (int, error) {
	return func(ctx context.Context, task int) (int, error) {
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result, nil
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) func(ctx context.Context, task int) (int, error) {
	return func(ctx context.Context, task int) (int, error) {
		select {
		case <-time.After(delay):
			return task * 2, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
