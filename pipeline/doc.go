// Package pipeline turns a panorama, optionally bundled with co-registered
// data channels, into planar patches around a set of tangent points and
// rebuilds the panorama from such patches.
//
// A forward call packs the input into one multi-channel array, projects it
// once per tangent point on a bounded worker pool and returns the patches
// keyed by ordinal. The pipeline remembers the packed shape and channel
// layout of that call. The next backward call projects every patch back,
// merges the results with mask weights and, when the forward input was a
// bundle, unpacks the merged array into the same named channels.
//
//	p := pipeline.New(
//	    pipeline.WithProjector(proj),
//	    pipeline.WithSampler(tangent.StaticSampler{{LatDeg: 0, LonDeg: 0}, {LatDeg: 0, LonDeg: 90}}),
//	    pipeline.WithParallelism(4),
//	)
//	patches, err := p.ProjectAll(ctx, pipeline.Bundled(bundle), fov)
//	...
//	out, err := p.UnprojectAll(ctx, patches, shape, fov)
//	rgb, _ := out.Channels.Get("rgb")
//
// # Shape override
//
// If a forward call is pending, the backward target shape is forced to the
// packed shape that call recorded. A caller shape that differs is replaced
// and a single warning is logged.
//
// # Merging
//
// Overlapping patches are summed, not averaged, so overlap regions come out
// brighter. Output.Normalized divides by coverage when an average is wanted.
//
// # Concurrency
//
// A Pipeline keeps one pending forward context between calls and is not safe
// for concurrent use. Serialize calls on one instance, or use one instance
// per goroutine.
package pipeline
