package synthetic

import (
	"fmt"
	"math"

	"github.com/utkarsh5026/panotile/raster"
)

// NearestResizer rescales by nearest-neighbour sampling. Factor is the
// magnitude of the change: upsampling multiplies both spatial dimensions by
// it, downsampling divides them.
type NearestResizer struct {
	Factor float64
}

// Resize implements tangent.Resizer.
func (r NearestResizer) Resize(img *raster.Image, upsample bool) (*raster.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("resize: nil image")
	}
	if r.Factor <= 0 {
		return nil, fmt.Errorf("resize: factor must be positive, got %g", r.Factor)
	}

	scale := r.Factor
	if !upsample {
		scale = 1 / r.Factor
	}
	shape := raster.Shape{
		H: max(int(math.Round(float64(img.Shape.H)*scale)), 1),
		W: max(int(math.Round(float64(img.Shape.W)*scale)), 1),
		C: img.Shape.C,
	}

	out, err := raster.New(shape)
	if err != nil {
		return nil, err
	}
	for y := 0; y < shape.H; y++ {
		sy := min(y*img.Shape.H/shape.H, img.Shape.H-1)
		for x := 0; x < shape.W; x++ {
			sx := min(x*img.Shape.W/shape.W, img.Shape.W-1)
			copy(out.Pixel(y, x), img.Pixel(sy, sx))
		}
	}
	return out, nil
}
