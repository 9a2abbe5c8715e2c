package synthetic

import (
	"math"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/raster"
)

// Scene builds a deterministic {rgb, depth, normal} bundle of h×w pixels.
func Scene(h, w int) (*channels.Bundle, error) {
	rgb, err := raster.New(raster.Shape{H: h, W: w, C: 3})
	if err != nil {
		return nil, err
	}
	depth, err := raster.New(raster.Shape{H: h, W: w, C: 1})
	if err != nil {
		return nil, err
	}
	normal, err := raster.New(raster.Shape{H: h, W: w, C: 3})
	if err != nil {
		return nil, err
	}

	for y := 0; y < h; y++ {
		lat := math.Pi/2 - math.Pi*(float64(y)+0.5)/float64(h)
		for x := 0; x < w; x++ {
			lon := 2*math.Pi*(float64(x)+0.5)/float64(w) - math.Pi

			rgb.Set(y, x, 0, float64(x)/float64(w))
			rgb.Set(y, x, 1, float64(y)/float64(h))
			rgb.Set(y, x, 2, 0.5+0.5*math.Sin(3*lon))

			depth.Set(y, x, 0, 1+math.Abs(math.Cos(lat)*math.Sin(lon)))

			normal.Set(y, x, 0, math.Cos(lat)*math.Cos(lon))
			normal.Set(y, x, 1, math.Cos(lat)*math.Sin(lon))
			normal.Set(y, x, 2, math.Sin(lat))
		}
	}

	return channels.NewBundle(
		channels.Channel{Name: "rgb", Data: rgb},
		channels.Channel{Name: "depth", Data: depth},
		channels.Channel{Name: "normal", Data: normal},
	)
}
