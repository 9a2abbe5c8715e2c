package main

import (
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/raster"
)

// coverageEps guards the coverage division of uncovered pixels.
const coverageEps = 1e-9

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

func printHeader(w io.Writer, title string) {
	_, _ = bold.Fprintln(w, "═══════════════════════════════════════════════════════════")
	_, _ = bold.Fprintln(w, title)
	_, _ = bold.Fprintln(w, "═══════════════════════════════════════════════════════════")
}

// channelStats summarizes one channel over the covered pixels.
type channelStats struct {
	Min, Max, Mean float64
	// MaxAbsErr is the largest deviation from the reference; NaN without one.
	MaxAbsErr float64
}

// computeStats gathers the covered samples of img (and ref, if given) and
// reduces them.
func computeStats(img, ref, coverage *raster.Image) channelStats {
	var values, diffs []float64
	for y := 0; y < img.Shape.H; y++ {
		for x := 0; x < img.Shape.W; x++ {
			if coverage.At(y, x, 0) == 0 {
				continue
			}
			for c := 0; c < img.Shape.C; c++ {
				v := img.At(y, x, c)
				values = append(values, v)
				if ref != nil {
					diffs = append(diffs, math.Abs(v-ref.At(y, x, c)))
				}
			}
		}
	}

	st := channelStats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), MaxAbsErr: math.NaN()}
	if len(values) == 0 {
		return st
	}
	st.Min = floats.Min(values)
	st.Max = floats.Max(values)
	st.Mean = stat.Mean(values, nil)
	if len(diffs) > 0 {
		st.MaxAbsErr = floats.Max(diffs)
	}
	return st
}

// renderChannelTable prints per-channel statistics of b. ref, when non-nil,
// must share b's layout and adds an error column.
func renderChannelTable(w io.Writer, b, ref *channels.Bundle, coverage *raster.Image) error {
	table := tablewriter.NewWriter(w)
	table.Header("Channel", "Depth", "Min", "Max", "Mean", "Max |err|")

	for _, ch := range b.Channels() {
		var refImg *raster.Image
		if ref != nil {
			refImg, _ = ref.Get(ch.Name)
		}
		st := computeStats(ch.Data, refImg, coverage)

		errStr := "n/a"
		if !math.IsNaN(st.MaxAbsErr) {
			errStr = fmt.Sprintf("%.2e", st.MaxAbsErr)
		}
		if err := table.Append(
			ch.Name,
			fmt.Sprintf("%d", ch.Data.Shape.C),
			fmt.Sprintf("%.4f", st.Min),
			fmt.Sprintf("%.4f", st.Max),
			fmt.Sprintf("%.4f", st.Mean),
			errStr,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// coverageSummary counts how many pixels at least one point reached.
type coverageSummary struct {
	Total      int
	Covered    int
	MaxOverlap float64
}

func (c coverageSummary) Fraction() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Covered) / float64(c.Total)
}

func summarizeCoverage(coverage *raster.Image) coverageSummary {
	s := coverageSummary{Total: len(coverage.Pix)}
	for _, v := range coverage.Pix {
		if v > 0 {
			s.Covered++
		}
	}
	if s.Total > 0 {
		s.MaxOverlap = floats.Max(coverage.Pix)
	}
	return s
}

func rankIcon(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d", rank)
	}
}
