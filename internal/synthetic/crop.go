// Package synthetic provides stand-in collaborators for exercising the
// pipeline without real spherical geometry: a projector that cuts planar
// windows out of the equirectangular grid, a nearest-neighbour resizer and
// a deterministic multi-channel scene.
//
// CropProjector is not a gnomonic projection. It maps the tangent point
// linearly onto the grid and copies a fixed-size window, which is enough to
// produce overlapping, partially covering patches with exact masks.
package synthetic

import (
	"fmt"
	"math"
	"time"

	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

// CropProjector copies a PatchH×PatchW window centred on the tangent point.
// Columns wrap around the longitude seam; rows are clamped on the forward
// pass and dropped on the backward pass. The field of view is ignored.
type CropProjector struct {
	PatchH int
	PatchW int

	// Latency is slept on every call to imitate an expensive projector.
	Latency time.Duration
}

// Forward implements tangent.Projector.
func (c CropProjector) Forward(img *raster.Image, lat, lon float64, _ tangent.FOV) (*raster.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("crop: nil image")
	}
	c.wait()

	out, err := raster.New(raster.Shape{H: c.PatchH, W: c.PatchW, C: img.Shape.C})
	if err != nil {
		return nil, fmt.Errorf("crop: %w", err)
	}

	y0, x0 := c.origin(img.Shape, lat, lon)
	for i := 0; i < c.PatchH; i++ {
		y := min(max(y0+i, 0), img.Shape.H-1)
		for j := 0; j < c.PatchW; j++ {
			x := wrap(x0+j, img.Shape.W)
			copy(out.Pixel(i, j), img.Pixel(y, x))
		}
	}
	return out, nil
}

// Backward implements tangent.Projector.
func (c CropProjector) Backward(
	patch *raster.Image,
	target raster.Shape,
	lat, lon float64,
	_ tangent.FOV,
	wantMask bool,
) (*raster.Image, *raster.Image, error) {
	if patch == nil {
		return nil, nil, fmt.Errorf("crop: nil patch")
	}
	want := raster.Shape{H: c.PatchH, W: c.PatchW, C: target.C}
	if patch.Shape != want {
		return nil, nil, fmt.Errorf("crop: %w: patch %s, expected %s", raster.ErrShapeMismatch, patch.Shape, want)
	}
	c.wait()

	canvas, err := raster.New(target)
	if err != nil {
		return nil, nil, fmt.Errorf("crop: %w", err)
	}
	mask, err := raster.New(target.Spatial())
	if err != nil {
		return nil, nil, fmt.Errorf("crop: %w", err)
	}

	y0, x0 := c.origin(target, lat, lon)
	for i := 0; i < c.PatchH; i++ {
		y := y0 + i
		if y < 0 || y >= target.H {
			continue
		}
		for j := 0; j < c.PatchW; j++ {
			x := wrap(x0+j, target.W)
			copy(canvas.Pixel(y, x), patch.Pixel(i, j))
			mask.Set(y, x, 0, 1)
		}
	}

	if !wantMask {
		return canvas, nil, nil
	}
	return canvas, mask, nil
}

// origin returns the top-left grid cell of the window around (lat, lon).
func (c CropProjector) origin(s raster.Shape, lat, lon float64) (int, int) {
	cy := int(math.Round((0.5 - lat/math.Pi) * float64(s.H-1)))
	cx := int(math.Round((lon + math.Pi) / (2 * math.Pi) * float64(s.W)))
	return cy - c.PatchH/2, cx - c.PatchW/2
}

func (c CropProjector) wait() {
	if c.Latency > 0 {
		time.Sleep(c.Latency)
	}
}

func wrap(x, n int) int {
	x %= n
	if x < 0 {
		x += n
	}
	return x
}
