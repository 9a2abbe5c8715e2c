package pipeline

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/merge"
	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

type inputKind int

const (
	kindUnknown inputKind = iota
	kindRaw
	kindBundled
)

// Input is the forward input: either a raw array or a channel bundle.
// The zero Input is of neither kind and is rejected with ErrTypeMismatch.
type Input struct {
	kind   inputKind
	raw    *raster.Image
	bundle *channels.Bundle
}

// Raw wraps a single multi-channel array.
func Raw(img *raster.Image) Input {
	return Input{kind: kindRaw, raw: img}
}

// Bundled wraps a bundle of named channels sharing height and width.
func Bundled(b *channels.Bundle) Input {
	return Input{kind: kindBundled, bundle: b}
}

// pack converts the input into a packed array and key order.
func (in Input) pack() (channels.Packed, error) {
	switch in.kind {
	case kindRaw:
		if in.raw == nil {
			return channels.Packed{}, fmt.Errorf("%w: raw input has no array", ErrTypeMismatch)
		}
		return channels.PackRaw(in.raw), nil
	case kindBundled:
		if in.bundle == nil {
			return channels.Packed{}, fmt.Errorf("%w: bundled input has no bundle", ErrTypeMismatch)
		}
		return channels.Pack(in.bundle)
	default:
		return channels.Packed{}, fmt.Errorf("%w: input must be Raw or Bundled", ErrTypeMismatch)
	}
}

// Projections holds per-point planar arrays by 1-based ordinal.
type Projections map[int]*raster.Image

// Ordinals returns the stored ordinals in ascending order.
func (p Projections) Ordinals() []int {
	out := make([]int, 0, len(p))
	for n := range p {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Keyed returns the projections keyed "point_<ordinal>".
func (p Projections) Keyed() map[string]*raster.Image {
	out := make(map[string]*raster.Image, len(p))
	for n, img := range p {
		out[tangent.Key(n)] = img
	}
	return out
}

// ParseKeyed rebuilds Projections from "point_<ordinal>" keys. Keys that
// are malformed or name the same ordinal fail with ErrTypeMismatch.
func ParseKeyed(m map[string]*raster.Image) (Projections, error) {
	out := make(Projections, len(m))
	for key, img := range m {
		n, err := tangent.ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		if _, dup := out[n]; dup {
			return nil, fmt.Errorf("%w: more than one key for %s", ErrTypeMismatch, tangent.Key(n))
		}
		out[n] = img
	}
	return out, nil
}

// Output is the result of a backward call.
type Output struct {
	// Raw is the merged packed array. It is always set.
	Raw *raster.Image

	// Channels is Raw unpacked into the forward call's named channels. It is
	// nil when the forward input was raw or no forward call was pending.
	Channels *channels.Bundle

	// Keys is the channel layout Channels was unpacked with.
	Keys channels.KeyOrder

	// Coverage is the H×W×1 accumulated validity mask.
	Coverage *raster.Image

	// RunID identifies the forward call this output completes.
	RunID uuid.UUID
}

// Bundled reports whether the output carries named channels.
func (o Output) Bundled() bool {
	return o.Channels != nil
}

// Normalized divides Raw by max(Coverage, eps) per pixel. The pipeline never
// does this on its own.
func (o Output) Normalized(eps float64) (*raster.Image, error) {
	if o.Coverage == nil {
		return nil, fmt.Errorf("%w: output has no coverage", ErrShapeMismatch)
	}
	return merge.Normalize(o.Raw, o.Coverage, eps), nil
}

// NormalizedChannels is Normalized unpacked into the output's channels.
// A raw output has no channels and fails with ErrTypeMismatch; use
// Normalized for it.
func (o Output) NormalizedChannels(eps float64) (*channels.Bundle, error) {
	if o.Keys.Empty() {
		return nil, fmt.Errorf("%w: output carries no channel layout", ErrTypeMismatch)
	}
	img, err := o.Normalized(eps)
	if err != nil {
		return nil, err
	}
	return channels.Unpack(img, o.Keys)
}
