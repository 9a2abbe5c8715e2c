// Package merge reconstructs an equirectangular array from overlapping
// per-point backward projections.
//
// Each contribution is added to an accumulator weighted by its validity
// mask, and the mask itself is added to a coverage buffer:
//
//	sum      += patch * mask   (mask broadcast across channels)
//	coverage += mask
//
// The accumulated sum is returned as is. Where patches overlap the result is
// brighter than either patch; dividing by coverage is an explicit opt-in
// through Normalized and never happens automatically.
package merge

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/utkarsh5026/panotile/raster"
)

// Contribution is one point's backward projection and validity mask.
type Contribution struct {
	Ordinal int
	Patch   *raster.Image
	Mask    *raster.Image
}

// Accumulator holds the running weighted sum and coverage for one target shape.
type Accumulator struct {
	sum      *raster.Image
	coverage *raster.Image
}

// NewAccumulator returns a zero-filled accumulator for shape.
func NewAccumulator(shape raster.Shape) (*Accumulator, error) {
	sum, err := raster.New(shape)
	if err != nil {
		return nil, err
	}
	coverage, err := raster.New(shape.Spatial())
	if err != nil {
		return nil, err
	}
	return &Accumulator{sum: sum, coverage: coverage}, nil
}

// Add folds one patch into the accumulator. Pixels with a zero mask are
// skipped entirely, so the sum stays zero wherever coverage is zero even if
// the patch holds NaN or Inf there.
func (a *Accumulator) Add(patch, mask *raster.Image) error {
	if patch == nil || patch.Shape != a.sum.Shape {
		return fmt.Errorf("%w: patch %s, accumulator %s", raster.ErrShapeMismatch, shapeOf(patch), a.sum.Shape)
	}
	if mask == nil || mask.Shape != a.coverage.Shape {
		return fmt.Errorf("%w: mask %s, expected %s", raster.ErrShapeMismatch, shapeOf(mask), a.coverage.Shape)
	}

	s := a.sum.Shape
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			m := mask.At(y, x, 0)
			if m == 0 {
				continue
			}
			floats.AddScaled(a.sum.Pixel(y, x), m, patch.Pixel(y, x))
		}
	}
	floats.Add(a.coverage.Pix, mask.Pix)
	return nil
}

// Sum returns the accumulated, unnormalized array. It aliases the accumulator.
func (a *Accumulator) Sum() *raster.Image {
	return a.sum
}

// Coverage returns the H×W×1 accumulated mask. It aliases the accumulator.
func (a *Accumulator) Coverage() *raster.Image {
	return a.coverage
}

// Normalized returns a copy of the sum divided per pixel by
// max(coverage, eps). Pixels with zero coverage stay zero.
func (a *Accumulator) Normalized(eps float64) *raster.Image {
	return Normalize(a.sum, a.coverage, eps)
}

// Normalize divides each pixel of sum by max(coverage, eps) into a new array.
func Normalize(sum, coverage *raster.Image, eps float64) *raster.Image {
	out := sum.Clone()
	s := out.Shape
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			w := coverage.At(y, x, 0)
			if w == 0 {
				continue
			}
			floats.Scale(1/max(w, eps), out.Pixel(y, x))
		}
	}
	return out
}

// Merge accumulates every contribution into a fresh accumulator of shape.
//
// Contributions are reduced in ascending ordinal order whatever order they
// arrive in, so the result is bit-identical for any delivery permutation.
func Merge(shape raster.Shape, contributions []Contribution) (*Accumulator, error) {
	acc, err := NewAccumulator(shape)
	if err != nil {
		return nil, err
	}

	ordered := slices.Clone(contributions)
	slices.SortStableFunc(ordered, func(a, b Contribution) int {
		return a.Ordinal - b.Ordinal
	})

	for _, c := range ordered {
		if err := acc.Add(c.Patch, c.Mask); err != nil {
			return nil, fmt.Errorf("point %d: %w", c.Ordinal, err)
		}
	}
	return acc, nil
}

func shapeOf(img *raster.Image) string {
	if img == nil {
		return "<nil>"
	}
	return img.Shape.String()
}
