package channels

import (
	"fmt"
	"strings"

	"github.com/utkarsh5026/panotile/raster"
)

// Span records the name and depth of one packed channel.
type Span struct {
	Name  string
	Depth int
}

// KeyOrder lists the spans of a packed array in channel-axis order.
// An empty KeyOrder describes a raw array that was never packed from a bundle.
type KeyOrder []Span

// Depth is the total channel count the key order describes.
func (k KeyOrder) Depth() int {
	total := 0
	for _, s := range k {
		total += s.Depth
	}
	return total
}

// Empty reports whether the key order describes a raw array.
func (k KeyOrder) Empty() bool {
	return len(k) == 0
}

func (k KeyOrder) String() string {
	parts := make([]string, len(k))
	for i, s := range k {
		parts[i] = fmt.Sprintf("(%q,%d)", s.Name, s.Depth)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Packed is a multi-channel array with the key order used to build it.
type Packed struct {
	Image *raster.Image
	Keys  KeyOrder
}

// Raw reports whether the packed array came from raw input.
func (p Packed) Raw() bool {
	return p.Keys.Empty()
}

// Pack concatenates the bundle's channels along the channel axis in
// insertion order.
func Pack(b *Bundle) (Packed, error) {
	if b == nil || b.Len() == 0 {
		return Packed{}, fmt.Errorf("%w: cannot pack an empty bundle", raster.ErrShapeMismatch)
	}

	chs := b.Channels()
	images := make([]*raster.Image, len(chs))
	keys := make(KeyOrder, len(chs))
	base := chs[0].Data.Shape
	for i, ch := range chs {
		if !ch.Data.Shape.SameSpatial(base) {
			return Packed{}, fmt.Errorf("%w: channel %q is %s, channel %q is %s",
				raster.ErrShapeMismatch, ch.Name, ch.Data.Shape, chs[0].Name, base)
		}
		if ch.Data.Shape.C < 1 {
			return Packed{}, fmt.Errorf("%w: channel %q has depth %d", raster.ErrShapeMismatch, ch.Name, ch.Data.Shape.C)
		}
		images[i] = ch.Data
		keys[i] = Span{Name: ch.Name, Depth: ch.Data.Shape.C}
	}

	img, err := raster.Concat(images...)
	if err != nil {
		return Packed{}, err
	}
	return Packed{Image: img, Keys: keys}, nil
}

// PackRaw wraps a raw array as-is with an empty key order.
func PackRaw(img *raster.Image) Packed {
	return Packed{Image: img}
}

// Unpack slices a packed array back into a bundle following keys.
//
// With an empty key order there is nothing to unpack: Unpack returns a nil
// bundle and the caller keeps the array unchanged.
func Unpack(img *raster.Image, keys KeyOrder) (*Bundle, error) {
	if keys.Empty() {
		return nil, nil
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nothing to unpack", raster.ErrShapeMismatch)
	}
	if got, want := img.Shape.C, keys.Depth(); got != want {
		return nil, fmt.Errorf("%w: packed array has %d channels, key order %s needs %d",
			raster.ErrShapeMismatch, got, keys, want)
	}

	b := &Bundle{byName: make(map[string]*raster.Image, len(keys))}
	lo := 0
	for _, s := range keys {
		if s.Depth < 1 {
			return nil, fmt.Errorf("%w: channel %q has depth %d", raster.ErrShapeMismatch, s.Name, s.Depth)
		}
		if _, dup := b.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate channel %q in key order", raster.ErrShapeMismatch, s.Name)
		}
		data, err := img.Channels(lo, lo+s.Depth)
		if err != nil {
			return nil, err
		}
		if err := b.Set(s.Name, data); err != nil {
			return nil, err
		}
		lo += s.Depth
	}
	return b, nil
}

// Unpack is shorthand for Unpack(p.Image, p.Keys).
func (p Packed) Unpack() (*Bundle, error) {
	return Unpack(p.Image, p.Keys)
}
