// Package tangent defines tangent points on the sphere and the external
// collaborators that sample and project them.
//
// The pipeline owns none of the geometry: a Sampler decides where the tangent
// points are, a Projector resamples between the equirectangular image and a
// planar patch centred on one point, and a Resizer rescales whole images.
package tangent

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/utkarsh5026/panotile/raster"
)

// KeyPrefix prefixes the string key of a per-point projection.
const KeyPrefix = "point_"

// LatLon is a location on the sphere in degrees.
type LatLon struct {
	LatDeg float64
	LonDeg float64
}

// Point is a tangent point together with its 1-based ordinal in the
// sampler's enumeration. The ordinal correlates forward output with
// backward input.
type Point struct {
	Ordinal int
	LatLon
}

// Key returns the "point_<ordinal>" key of the point.
func (p Point) Key() string {
	return Key(p.Ordinal)
}

// FOV is the angular (height, width) extent of a planar patch.
type FOV struct {
	H float64
	W float64
}

// Sampler enumerates tangent points. The sequence must be finite and stable
// for the duration of one pipeline call.
type Sampler interface {
	TangentPoints() []LatLon
}

// Projector performs the spherical to planar resampling around one tangent
// point. Latitudes and longitudes are in radians.
type Projector interface {
	Forward(img *raster.Image, lat, lon float64, fov FOV) (*raster.Image, error)
	// Backward maps a planar patch onto an equirectangular canvas of target
	// shape. When wantMask is true it also returns an H×W×1 validity mask.
	Backward(img *raster.Image, target raster.Shape, lat, lon float64, fov FOV, wantMask bool) (*raster.Image, *raster.Image, error)
}

// Resizer rescales an image up or down by its configured factor.
type Resizer interface {
	Resize(img *raster.Image, upsample bool) (*raster.Image, error)
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Enumerate assigns 1-based ordinals to the sampler's points in order.
func Enumerate(s Sampler) []Point {
	raw := s.TangentPoints()
	points := make([]Point, len(raw))
	for i, ll := range raw {
		points[i] = Point{Ordinal: i + 1, LatLon: ll}
	}
	return points
}

// Key formats the string key of ordinal n.
func Key(n int) string {
	return KeyPrefix + strconv.Itoa(n)
}

// ParseKey extracts the ordinal from a "point_<ordinal>" key. Only the form
// Key produces is accepted, so every ordinal has exactly one key.
func ParseKey(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return 0, fmt.Errorf("key %q lacks prefix %q", key, KeyPrefix)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("key %q has no positive ordinal", key)
	}
	if strconv.Itoa(n) != rest {
		return 0, fmt.Errorf("key %q is not canonical, want %q", key, Key(n))
	}
	return n, nil
}

// StaticSampler returns a fixed list of points, typically read from
// configuration.
type StaticSampler []LatLon

// TangentPoints implements Sampler.
func (s StaticSampler) TangentPoints() []LatLon {
	out := make([]LatLon, len(s))
	copy(out, s)
	return out
}
