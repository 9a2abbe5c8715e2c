package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/internal/synthetic"
	"github.com/utkarsh5026/panotile/pipeline"
)

var roundtripParallelism int

var roundtripCmd = &cobra.Command{
	Use:   "roundtrip",
	Short: "Project a synthetic panorama to tangent patches and reconstruct it",
	Long: `Builds a synthetic {rgb, depth, normal} panorama, projects it around every
configured tangent point, projects the patches back and merges them. Prints
per-channel statistics of the reconstruction and the coverage of the points.`,
	RunE: runRoundtrip,
}

func init() {
	roundtripCmd.Flags().IntVarP(&roundtripParallelism, "parallelism", "p", 0, "concurrent per-point tasks (default from config)")
}

func runRoundtrip(cmd *cobra.Command, args []string) error {
	scene, err := synthetic.Scene(cfg.Scene.Height, cfg.Scene.Width)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}
	packed, err := channels.Pack(scene)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg.PipelineOptions(logger, roundtripParallelism)...)
	fov := cfg.FieldOfView()

	out := cmd.OutOrStdout()
	printHeader(out, "⚙️  Configuration")
	fmt.Fprintf(out, "  Scene:        %s (%s)\n", packed.Image.Shape, packed.Keys)
	fmt.Fprintf(out, "  Points:       %d\n", len(cfg.Sampler.Points))
	fmt.Fprintf(out, "  Patch:        %dx%d\n", cfg.Projector.PatchHeight, cfg.Projector.PatchWidth)
	fmt.Fprintf(out, "  Parallelism:  %d\n", p.Parallelism())
	fmt.Fprintln(out)

	start := time.Now()
	patches, err := p.ProjectAll(cmd.Context(), pipeline.Bundled(scene), fov)
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	forward := time.Since(start)

	start = time.Now()
	result, err := p.UnprojectAll(cmd.Context(), patches, packed.Image.Shape, fov)
	if err != nil {
		return fmt.Errorf("backward: %w", err)
	}
	backward := time.Since(start)

	normalized, err := result.NormalizedChannels(coverageEps)
	if err != nil {
		return err
	}

	printHeader(out, "📊 Reconstruction")
	var reference *channels.Bundle
	if cfg.ResizeFactor == 1 {
		reference = scene
	}
	if err := renderChannelTable(out, normalized, reference, result.Coverage); err != nil {
		return err
	}

	cov := summarizeCoverage(result.Coverage)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Covered:      %d of %d pixels (%.1f%%)\n", cov.Covered, cov.Total, 100*cov.Fraction())
	fmt.Fprintf(out, "  Max overlap:  %g\n", cov.MaxOverlap)
	fmt.Fprintf(out, "  Forward:      %s\n", forward.Round(time.Microsecond))
	fmt.Fprintf(out, "  Backward:     %s\n", backward.Round(time.Microsecond))
	fmt.Fprintf(out, "  Run:          %s\n", result.RunID)
	return nil
}
