package pipeline_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/internal/synthetic"
	"github.com/utkarsh5026/panotile/pipeline"
	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

func TestProjectAll_Unconfigured(t *testing.T) {
	ctx := context.Background()
	b := scene(t)

	tests := []struct {
		name string
		p    *pipeline.Pipeline
	}{
		{name: "no sampler", p: pipeline.New(pipeline.WithProjector(crop))},
		{name: "no projector", p: pipeline.New(pipeline.WithSampler(points))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.p.ProjectAll(ctx, pipeline.Bundled(b), fov); !errors.Is(err, pipeline.ErrUnconfigured) {
				t.Errorf("ProjectAll: expected ErrUnconfigured, got %v", err)
			}
			_, err := tt.p.UnprojectAll(ctx, pipeline.Projections{}, raster.Shape{H: 4, W: 4, C: 1}, fov)
			if !errors.Is(err, pipeline.ErrUnconfigured) {
				t.Errorf("UnprojectAll: expected ErrUnconfigured, got %v", err)
			}
		})
	}

	if _, err := pipeline.New().ProjectOne(pipeline.Bundled(b), 0, 0, fov); !errors.Is(err, pipeline.ErrUnconfigured) {
		t.Errorf("ProjectOne: expected ErrUnconfigured, got %v", err)
	}
}

func TestProjectAll_TypeMismatch(t *testing.T) {
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))

	for name, in := range map[string]pipeline.Input{
		"zero input":  {},
		"nil raw":     pipeline.Raw(nil),
		"nil bundled": pipeline.Bundled(nil),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := p.ProjectAll(context.Background(), in, fov); !errors.Is(err, pipeline.ErrTypeMismatch) {
				t.Fatalf("expected ErrTypeMismatch, got %v", err)
			}
		})
	}
}

func TestProjectAll_BundleSpatialMismatch(t *testing.T) {
	rgb, _ := raster.New(raster.Shape{H: 4, W: 4, C: 3})
	depth, _ := raster.New(raster.Shape{H: 4, W: 5, C: 1})
	b, _ := channels.NewBundle(channels.Channel{Name: "rgb", Data: rgb}, channels.Channel{Name: "depth", Data: depth})

	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))
	if _, err := p.ProjectAll(context.Background(), pipeline.Bundled(b), fov); !errors.Is(err, pipeline.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestRoundTrip_BundledInput(t *testing.T) {
	ctx := context.Background()
	b := scene(t)
	orig := packed(t, b)

	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points), pipeline.WithParallelism(3))

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5, 6}, patches.Ordinals()); diff != "" {
		t.Fatalf("ordinals (-want +got):\n%s", diff)
	}
	for n, patch := range patches {
		if patch.Shape != (raster.Shape{H: 8, W: 12, C: 7}) {
			t.Fatalf("point %d: unexpected patch shape %s", n, patch.Shape)
		}
	}

	out, err := p.UnprojectAll(ctx, patches, orig.Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	if !out.Bundled() {
		t.Fatal("bundled forward input should produce named channels")
	}
	if diff := cmp.Diff(b.Names(), out.Channels.Names()); diff != "" {
		t.Fatalf("channel names (-want +got):\n%s", diff)
	}
	for _, ch := range b.Channels() {
		got, _ := out.Channels.Get(ch.Name)
		if got.Shape != ch.Data.Shape {
			t.Errorf("%s: shape %s, want %s", ch.Name, got.Shape, ch.Data.Shape)
		}
	}

	// Each covering patch copies the source pixel, so the additive merge
	// yields coverage × source.
	covered := 0
	for y := 0; y < sceneH; y++ {
		for x := 0; x < sceneW; x++ {
			w := out.Coverage.At(y, x, 0)
			if w > 0 {
				covered++
			}
			for c := 0; c < orig.Shape.C; c++ {
				want := w * orig.At(y, x, c)
				if got := out.Raw.At(y, x, c); math.Abs(got-want) > 1e-9 {
					t.Fatalf("(%d,%d,%d): got %v, want %v (coverage %v)", y, x, c, got, want, w)
				}
			}
		}
	}
	if covered == 0 || covered == sceneH*sceneW {
		t.Fatalf("expected partial coverage, got %d of %d pixels", covered, sceneH*sceneW)
	}
}

func TestMerge_IsAdditiveNotAveraged(t *testing.T) {
	ctx := context.Background()
	b := scene(t)
	orig := packed(t, b)

	// Two identical points cover the same window twice.
	twice := tangent.StaticSampler{{LatDeg: 0, LonDeg: 0}, {LatDeg: 0, LonDeg: 0}}
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(twice))

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	out, err := p.UnprojectAll(ctx, patches, orig.Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	y, x := sceneH/2, sceneW/2
	if got, want := out.Raw.At(y, x, 0), 2*orig.At(y, x, 0); got != want {
		t.Fatalf("overlap should double the value: got %v, want %v", got, want)
	}

	norm, err := out.NormalizedChannels(1e-9)
	if err != nil {
		t.Fatalf("NormalizedChannels: %v", err)
	}
	rgb, _ := norm.Get("rgb")
	origRGB, _ := b.Get("rgb")
	if got, want := rgb.At(y, x, 0), origRGB.At(y, x, 0); math.Abs(got-want) > 1e-12 {
		t.Fatalf("normalized value %v, want %v", got, want)
	}
}

func TestShapeOverride_ExactlyOneWarning(t *testing.T) {
	ctx := context.Background()
	b := scene(t)
	recorded := packed(t, b).Shape

	logger, logs := warnObserver()
	p := pipeline.New(
		pipeline.WithProjector(crop),
		pipeline.WithSampler(points),
		pipeline.WithParallelism(2),
		pipeline.WithLogger(logger),
	)

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}

	requested := raster.Shape{H: sceneH, W: sceneW, C: 3}
	out, err := p.UnprojectAll(ctx, patches, requested, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	if out.Raw.Shape != recorded {
		t.Fatalf("output shape %s, want recorded %s", out.Raw.Shape, recorded)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected exactly one warning, got %d: %v", logs.Len(), logs.All())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["requested"] != requested.String() || entry.ContextMap()["recorded"] != recorded.String() {
		t.Errorf("unexpected warning fields %v", entry.ContextMap())
	}
}

func TestShapeOverride_NoWarningWhenShapesAgree(t *testing.T) {
	ctx := context.Background()
	b := scene(t)

	logger, logs := warnObserver()
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points), pipeline.WithLogger(logger))

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	if _, err := p.UnprojectAll(ctx, patches, packed(t, b).Shape, fov); err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no warning, got %v", logs.All())
	}
}

func TestShapeOverride_NotAppliedWithoutForward(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))

	// Patches come from a different instance; this one has no pending forward.
	producer := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))
	patches, err := producer.ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}

	logger, logs := warnObserver()
	consumer := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points), pipeline.WithLogger(logger))

	bigger := raster.Shape{H: 20, W: 40, C: img.Shape.C}
	out, err := consumer.UnprojectAll(ctx, patches, bigger, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}
	if out.Raw.Shape != bigger {
		t.Fatalf("caller shape should be used unmodified, got %s", out.Raw.Shape)
	}
	if out.Bundled() {
		t.Fatal("no pending bundle, output should be raw")
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no warning, got %v", logs.All())
	}
}

func TestBackward_ClearsPendingForward(t *testing.T) {
	ctx := context.Background()
	b := scene(t)

	logger, logs := warnObserver()
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points), pipeline.WithLogger(logger))

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	first, err := p.UnprojectAll(ctx, patches, packed(t, b).Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}
	if !first.Bundled() {
		t.Fatal("first backward should unpack")
	}

	second, err := p.UnprojectAll(ctx, patches, raster.Shape{H: 10, W: 20, C: 7}, fov)
	if err != nil {
		t.Fatalf("second UnprojectAll: %v", err)
	}
	if second.Bundled() {
		t.Fatal("pending context should have been consumed by the first backward")
	}
	if second.Raw.Shape != (raster.Shape{H: 10, W: 20, C: 7}) {
		t.Fatalf("unexpected shape %s", second.Raw.Shape)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no override warning, got %v", logs.All())
	}
}

func TestForward_OverwritesPendingContext(t *testing.T) {
	ctx := context.Background()
	b := scene(t)
	img := packed(t, b)

	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))

	if _, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov); err != nil {
		t.Fatalf("ProjectAll bundled: %v", err)
	}
	patches, err := p.ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll raw: %v", err)
	}

	out, err := p.UnprojectAll(ctx, patches, img.Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}
	if out.Bundled() {
		t.Fatal("the later raw forward should have replaced the bundled context")
	}
}

func TestUnprojectAll_MissingProjectionNamesOrdinal(t *testing.T) {
	ctx := context.Background()
	b := scene(t)

	for k := 1; k <= len(points); k++ {
		p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))
		patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
		if err != nil {
			t.Fatalf("ProjectAll: %v", err)
		}
		delete(patches, k)

		_, err = p.UnprojectAll(ctx, patches, packed(t, b).Shape, fov)
		if !errors.Is(err, pipeline.ErrMissingProjection) {
			t.Fatalf("k=%d: expected ErrMissingProjection, got %v", k, err)
		}
		var missing *pipeline.MissingProjectionError
		if !errors.As(err, &missing) || missing.Ordinal != k {
			t.Fatalf("k=%d: error should name ordinal %d, got %v", k, k, err)
		}
	}
}

func TestUnprojectAll_ChannelMismatchFailsFast(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))

	rec := &recordingProjector{Projector: crop}
	p := pipeline.New(pipeline.WithProjector(rec), pipeline.WithSampler(points), pipeline.WithParallelism(4))

	patches, err := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points)).
		ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	patches[4], _ = raster.New(raster.Shape{H: 8, W: 12, C: 2})

	_, err = p.UnprojectAll(ctx, patches, img.Shape, fov)
	if !errors.Is(err, pipeline.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if n := rec.backwardCalls(); n != 0 {
		t.Fatalf("no task should be scheduled before the check, saw %d backward calls", n)
	}
}

func TestUnprojectAll_ProjectorErrorAborts(t *testing.T) {
	ctx := context.Background()
	b := scene(t)

	rec := &recordingProjector{Projector: crop, fail: true, failAtLat: tangent.DegToRad(45)}
	p := pipeline.New(pipeline.WithProjector(rec), pipeline.WithSampler(points), pipeline.WithParallelism(2))

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	out, err := p.UnprojectAll(ctx, patches, packed(t, b).Shape, fov)
	if !errors.Is(err, errProjector) {
		t.Fatalf("expected projector error, got %v", err)
	}
	if out.Raw != nil || out.Channels != nil {
		t.Fatal("a failed call must not return partial output")
	}

	// The failure left the pending context in place, so a retry still unpacks.
	rec.fail = false
	out, err = p.UnprojectAll(ctx, patches, packed(t, b).Shape, fov)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !out.Bundled() {
		t.Fatal("retry should still unpack into channels")
	}
}

func TestUnprojectAll_MissingMask(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))

	rec := &recordingProjector{Projector: crop, noMask: true}
	p := pipeline.New(pipeline.WithProjector(rec), pipeline.WithSampler(points))

	patches, err := p.ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	if _, err := p.UnprojectAll(ctx, patches, img.Shape, fov); !errors.Is(err, pipeline.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestProjectAll_ConvertsDegreesToRadians(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))

	rec := &recordingProjector{Projector: crop}
	p := pipeline.New(pipeline.WithProjector(rec), pipeline.WithSampler(points))

	patches, err := p.ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	if _, err := p.UnprojectAll(ctx, patches, img.Shape, fov); err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	want := make([]tangent.LatLon, len(points))
	for i, ll := range points {
		want[i] = tangent.LatLon{LatDeg: tangent.DegToRad(ll.LatDeg), LonDeg: tangent.DegToRad(ll.LonDeg)}
	}
	if diff := cmp.Diff(want, rec.forward); diff != "" {
		t.Errorf("forward angles (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, rec.backward); diff != "" {
		t.Errorf("backward angles (-want +got):\n%s", diff)
	}
}

func TestParallelismEquivalence(t *testing.T) {
	ctx := context.Background()
	b := scene(t)
	shape := packed(t, b).Shape

	run := func(n int) (pipeline.Projections, pipeline.Output) {
		p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points), pipeline.WithParallelism(n))
		patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
		if err != nil {
			t.Fatalf("P=%d ProjectAll: %v", n, err)
		}
		out, err := p.UnprojectAll(ctx, patches, shape, fov)
		if err != nil {
			t.Fatalf("P=%d UnprojectAll: %v", n, err)
		}
		return patches, out
	}

	refPatches, refOut := run(1)
	for _, n := range []int{2, 4, 8} {
		patches, out := run(n)
		for k, want := range refPatches {
			if !bitsEqual(want, patches[k]) {
				t.Fatalf("P=%d: forward patch %d differs", n, k)
			}
		}
		if !bitsEqual(refOut.Raw, out.Raw) {
			t.Fatalf("P=%d: merged output differs", n)
		}
		if !bitsEqual(refOut.Coverage, out.Coverage) {
			t.Fatalf("P=%d: coverage differs", n)
		}
	}
}

func TestSinglePoint_RoundTrip(t *testing.T) {
	b := scene(t)
	orig := packed(t, b)

	logger, logs := warnObserver()
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithLogger(logger))

	patch, err := p.ProjectOne(pipeline.Bundled(b), 0, 0, fov)
	if err != nil {
		t.Fatalf("ProjectOne: %v", err)
	}

	out, err := p.UnprojectOne(patch, raster.Shape{H: 1, W: 1, C: 7}, 0, 0, fov)
	if err != nil {
		t.Fatalf("UnprojectOne: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one override warning, got %d", logs.Len())
	}
	if out.Raw.Shape != orig.Shape {
		t.Fatalf("expected recorded shape %s, got %s", orig.Shape, out.Raw.Shape)
	}
	if !out.Bundled() {
		t.Fatal("single backward should unpack a bundled forward")
	}
	if out.Coverage == nil {
		t.Fatal("single backward should return the validity mask as coverage")
	}

	depth, _ := out.Channels.Get("depth")
	origDepth, _ := b.Get("depth")
	y, x := sceneH/2, sceneW/2
	if depth.At(y, x, 0) != origDepth.At(y, x, 0) {
		t.Fatalf("depth at centre %v, want %v", depth.At(y, x, 0), origDepth.At(y, x, 0))
	}
}

func TestUnprojectOne_ChannelMismatch(t *testing.T) {
	p := pipeline.New(pipeline.WithProjector(crop))
	patch, _ := raster.New(raster.Shape{H: 8, W: 12, C: 3})

	_, err := p.UnprojectOne(patch, raster.Shape{H: sceneH, W: sceneW, C: 4}, 0, 0, fov)
	if !errors.Is(err, pipeline.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestKeyedProjections_RoundTrip(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))

	patches, err := p.ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	keyed := patches.Keyed()
	if _, ok := keyed["point_6"]; !ok {
		t.Fatalf("expected point_6 key, got %v", keyed)
	}

	back, err := pipeline.ParseKeyed(keyed)
	if err != nil {
		t.Fatalf("ParseKeyed: %v", err)
	}
	if _, err := p.UnprojectAll(ctx, back, img.Shape, fov); err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	keyed["stacked"] = img
	if _, err := pipeline.ParseKeyed(keyed); !errors.Is(err, pipeline.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for an unknown key, got %v", err)
	}
}

func TestResize_AppliedBeforeProjection(t *testing.T) {
	ctx := context.Background()
	b := scene(t)

	p := pipeline.New(
		pipeline.WithProjector(crop),
		pipeline.WithSampler(points),
		pipeline.WithResizer(synthetic.NearestResizer{Factor: 2}, 2),
	)

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	out, err := p.UnprojectAll(ctx, patches, packed(t, b).Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	want := raster.Shape{H: 2 * sceneH, W: 2 * sceneW, C: 7}
	if out.Raw.Shape != want {
		t.Fatalf("expected resized shape %s, got %s", want, out.Raw.Shape)
	}
	rgb, _ := out.Channels.Get("rgb")
	if rgb.Shape != (raster.Shape{H: 2 * sceneH, W: 2 * sceneW, C: 3}) {
		t.Fatalf("unexpected rgb shape %s", rgb.Shape)
	}
}

func TestTaskObserver_SeesEveryPoint(t *testing.T) {
	ctx := context.Background()
	b := scene(t)

	var forward, backward atomic.Int32
	p := pipeline.New(
		pipeline.WithProjector(crop),
		pipeline.WithSampler(points),
		pipeline.WithParallelism(4),
		pipeline.WithTaskObserver(func(ev pipeline.TaskEvent) {
			if ev.Err != nil {
				t.Errorf("unexpected task error: %v", ev.Err)
			}
			switch ev.Direction {
			case pipeline.DirectionForward:
				forward.Add(1)
			case pipeline.DirectionBackward:
				backward.Add(1)
			}
		}),
	)

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(b), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	if _, err := p.UnprojectAll(ctx, patches, packed(t, b).Shape, fov); err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	if forward.Load() != int32(len(points)) || backward.Load() != int32(len(points)) {
		t.Fatalf("expected %d events per direction, got forward=%d backward=%d",
			len(points), forward.Load(), backward.Load())
	}
}

func TestRunID_CorrelatesForwardAndBackward(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))

	patches, err := p.ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	out, err := p.UnprojectAll(ctx, patches, img.Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}
	if out.RunID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("output should carry the forward call's run id")
	}

	again, err := p.UnprojectAll(ctx, patches, img.Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}
	if again.RunID == out.RunID {
		t.Fatal("a backward call without a pending forward should not reuse the run id")
	}
}

func TestDefaultLogger_CapturedAtConstruction(t *testing.T) {
	logger, logs := warnObserver()
	pipeline.SetLogger(logger)
	t.Cleanup(func() { pipeline.SetLogger(nil) })

	p := pipeline.New(pipeline.WithProjector(crop))
	b := scene(t)
	patch, err := p.ProjectOne(pipeline.Bundled(b), 0, 0, fov)
	if err != nil {
		t.Fatalf("ProjectOne: %v", err)
	}
	if _, err := p.UnprojectOne(patch, raster.Shape{H: 2, W: 2, C: 7}, 0, 0, fov); err != nil {
		t.Fatalf("UnprojectOne: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("default logger should receive the override warning, got %d entries", logs.Len())
	}
}

func TestParseKeyed_RejectsOrdinalAliases(t *testing.T) {
	a, _ := raster.New(raster.Shape{H: 2, W: 2, C: 1})
	b, _ := raster.Filled(raster.Shape{H: 2, W: 2, C: 1}, 1)

	tests := map[string]map[string]*raster.Image{
		"leading zero": {"point_1": a, "point_01": b},
		"plus sign":    {"point_2": a, "point_+2": b},
		"zero ordinal": {"point_0": a},
	}
	for name, keyed := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := pipeline.ParseKeyed(keyed)
			if !errors.Is(err, pipeline.ErrTypeMismatch) {
				t.Fatalf("expected ErrTypeMismatch, got %v (ordinals %v)", err, got.Ordinals())
			}
		})
	}
}

func TestNormalizedChannels_RawOutput(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))
	p := pipeline.New(pipeline.WithProjector(crop), pipeline.WithSampler(points))

	patches, err := p.ProjectAll(ctx, pipeline.Raw(img), fov)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	out, err := p.UnprojectAll(ctx, patches, img.Shape, fov)
	if err != nil {
		t.Fatalf("UnprojectAll: %v", err)
	}

	if _, err := out.NormalizedChannels(1e-9); !errors.Is(err, pipeline.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for a raw output, got %v", err)
	}
	norm, err := out.Normalized(1e-9)
	if err != nil {
		t.Fatalf("Normalized: %v", err)
	}
	if norm.Shape != img.Shape {
		t.Fatalf("normalized shape %s, want %s", norm.Shape, img.Shape)
	}
}

func TestRateLimit_SharedAcrossCalls(t *testing.T) {
	ctx := context.Background()
	img := packed(t, scene(t))
	two := tangent.StaticSampler{{LatDeg: 0, LonDeg: 0}, {LatDeg: 0, LonDeg: 90}}

	// One projector call up front, then one every 50ms.
	p := pipeline.New(
		pipeline.WithProjector(crop),
		pipeline.WithSampler(two),
		pipeline.WithParallelism(2),
		pipeline.WithRateLimit(20, 1),
	)

	start := time.Now()
	if _, err := p.ProjectAll(ctx, pipeline.Raw(img), fov); err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	for range 2 {
		if _, err := p.ProjectOne(pipeline.Raw(img), 0, 0, fov); err != nil {
			t.Fatalf("ProjectOne: %v", err)
		}
	}

	// Four calls on one budget take ~150ms; a per-call budget would allow ~50ms.
	if elapsed := time.Since(start); elapsed < 130*time.Millisecond {
		t.Fatalf("expected single-point calls to share the batch budget, took %v", elapsed)
	}
}
