package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/internal/synthetic"
	"github.com/utkarsh5026/panotile/pipeline"
	"github.com/utkarsh5026/panotile/raster"
)

var (
	benchParallelism []int
	benchCI          bool
)

var errNotDeterministic = errors.New("reconstruction differs between parallelism levels")

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare round-trip time across parallelism levels",
	Long: `Runs the synthetic round trip once per parallelism level, ranks the runs
by wall time and checks that every run reconstructs exactly the same array
as the lowest level.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntSliceVar(&benchParallelism, "parallelism", []int{1, 2, 4, 8}, "parallelism levels to compare")
	benchCmd.Flags().BoolVar(&benchCI, "ci", false, "CI mode: print one line per run instead of a progress bar")
}

// benchResult is one timed round trip.
type benchResult struct {
	Parallelism int
	Elapsed     time.Duration
	Tasks       int
	Identical   bool
	Rank        int
}

func runBench(cmd *cobra.Command, args []string) error {
	levels := slices.Clone(benchParallelism)
	slices.Sort(levels)
	levels = slices.Compact(levels)
	if len(levels) == 0 || levels[0] < 1 {
		return fmt.Errorf("parallelism levels must be positive, got %v", benchParallelism)
	}

	scene, err := synthetic.Scene(cfg.Scene.Height, cfg.Scene.Width)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}
	packed, err := channels.Pack(scene)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tasksPerRun := 2 * len(cfg.Sampler.Points)

	var bar *progressbar.ProgressBar
	if !benchCI {
		bar = progressbar.NewOptions(tasksPerRun*len(levels),
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("Projecting"),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "│",
				BarEnd:        "│",
			}),
			progressbar.OptionEnableColorCodes(true),
		)
	}

	var (
		results   []benchResult
		reference *raster.Image
	)
	for i, n := range levels {
		if bar != nil {
			bar.Describe(fmt.Sprintf("Parallelism %d", n))
		}

		opts := cfg.PipelineOptions(logger, n)
		if bar != nil {
			opts = append(opts, pipeline.WithTaskObserver(func(pipeline.TaskEvent) {
				_ = bar.Add(1)
			}))
		}

		merged, elapsed, err := timedRoundTrip(cmd.Context(), pipeline.New(opts...), scene, packed.Image.Shape)
		if err != nil {
			return fmt.Errorf("parallelism %d: %w", n, err)
		}
		if i == 0 {
			reference = merged
		}

		r := benchResult{
			Parallelism: n,
			Elapsed:     elapsed,
			Tasks:       tasksPerRun,
			Identical:   reference.Equal(merged),
		}
		results = append(results, r)

		if benchCI {
			fmt.Fprintf(out, "[%d/%d] parallelism %d: %s\n", i+1, len(levels), n, elapsed.Round(time.Millisecond))
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)

	rankResults(results)
	if err := renderBenchTable(out, results); err != nil {
		return err
	}

	for _, r := range results {
		if !r.Identical {
			_, _ = red.Fprintf(out, "✗ parallelism %d differs from parallelism %d\n", r.Parallelism, levels[0])
			return errNotDeterministic
		}
	}
	_, _ = green.Fprintln(out, "✓ every run reconstructed the same array")
	return nil
}

func timedRoundTrip(ctx context.Context, p *pipeline.Pipeline, scene *channels.Bundle, shape raster.Shape) (*raster.Image, time.Duration, error) {
	fov := cfg.FieldOfView()
	start := time.Now()

	patches, err := p.ProjectAll(ctx, pipeline.Bundled(scene), fov)
	if err != nil {
		return nil, 0, err
	}
	result, err := p.UnprojectAll(ctx, patches, shape, fov)
	if err != nil {
		return nil, 0, err
	}
	return result.Raw, time.Since(start), nil
}

// rankResults sorts by elapsed time, fastest first, and assigns ranks.
func rankResults(results []benchResult) {
	slices.SortStableFunc(results, func(a, b benchResult) int {
		return cmp.Compare(a.Elapsed, b.Elapsed)
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}

func renderBenchTable(w io.Writer, results []benchResult) error {
	printHeader(w, "📊 PARALLELISM COMPARISON")

	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Parallelism", "Time", "Tasks/sec", "vs Fastest", "Identical")

	fastest := results[0].Elapsed.Seconds()
	for _, r := range results {
		comparison := "baseline"
		if r.Rank != 1 && fastest > 0 {
			comparison = fmt.Sprintf("+%.1f%%", (r.Elapsed.Seconds()/fastest-1)*100)
		}
		throughput := "n/a"
		if s := r.Elapsed.Seconds(); s > 0 {
			throughput = fmt.Sprintf("%.1f", float64(r.Tasks)/s)
		}
		identical := "yes"
		if !r.Identical {
			identical = "NO"
		}

		if err := table.Append(
			rankIcon(r.Rank),
			fmt.Sprintf("%d", r.Parallelism),
			r.Elapsed.Round(time.Microsecond).String(),
			throughput,
			comparison,
			identical,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
