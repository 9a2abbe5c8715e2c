// Package raster holds the dense multi-channel arrays that flow through the
// projection pipeline.
//
// An Image is an H×W×C block of float64 samples stored row-major with the
// channel axis innermost (HWC), so the C samples of one pixel are contiguous.
// That layout lets channel packing and weighted merging work on whole pixel
// slices with gonum's floats kernels.
package raster

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrShapeMismatch is returned whenever two arrays, or an array and a declared
// shape, disagree on their dimensions.
var ErrShapeMismatch = errors.New("shape mismatch")

// Shape is the (height, width, channels) extent of an Image.
type Shape struct {
	H int
	W int
	C int
}

// Spatial returns the single-channel shape with the same height and width.
func (s Shape) Spatial() Shape {
	return Shape{H: s.H, W: s.W, C: 1}
}

// Len is the number of samples an Image of this shape holds.
func (s Shape) Len() int {
	return s.H * s.W * s.C
}

// SameSpatial reports whether both shapes share height and width.
func (s Shape) SameSpatial(o Shape) bool {
	return s.H == o.H && s.W == o.W
}

// Validate rejects shapes with a non-positive dimension.
func (s Shape) Validate() error {
	if s.H < 1 || s.W < 1 || s.C < 1 {
		return fmt.Errorf("%w: invalid shape %s", ErrShapeMismatch, s)
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.H, s.W, s.C)
}

// Image is a dense H×W×C array.
type Image struct {
	Shape Shape
	Pix   []float64
}

// New returns a zero-filled image of the given shape.
func New(shape Shape) (*Image, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Image{Shape: shape, Pix: make([]float64, shape.Len())}, nil
}

// Filled returns an image of the given shape with every sample set to v.
func Filled(shape Shape, v float64) (*Image, error) {
	img, err := New(shape)
	if err != nil {
		return nil, err
	}
	if v != 0 {
		floats.AddConst(v, img.Pix)
	}
	return img, nil
}

// FromSlice wraps pix as an image. pix is used directly, not copied.
func FromSlice(shape Shape, pix []float64) (*Image, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(pix) != shape.Len() {
		return nil, fmt.Errorf("%w: %d samples for shape %s", ErrShapeMismatch, len(pix), shape)
	}
	return &Image{Shape: shape, Pix: pix}, nil
}

// offset is the index of sample (y, x, 0).
func (m *Image) offset(y, x int) int {
	return (y*m.Shape.W + x) * m.Shape.C
}

// Pixel returns the C samples of pixel (y, x). The slice aliases the image.
func (m *Image) Pixel(y, x int) []float64 {
	o := m.offset(y, x)
	return m.Pix[o : o+m.Shape.C : o+m.Shape.C]
}

// At returns sample (y, x, c).
func (m *Image) At(y, x, c int) float64 {
	return m.Pix[m.offset(y, x)+c]
}

// Set stores v at sample (y, x, c).
func (m *Image) Set(y, x, c int, v float64) {
	m.Pix[m.offset(y, x)+c] = v
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	pix := make([]float64, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Shape: m.Shape, Pix: pix}
}

// Equal reports whether both images have the same shape and identical samples.
func (m *Image) Equal(o *Image) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Shape == o.Shape && floats.Equal(m.Pix, o.Pix)
}

// Channels copies the channel range [lo, hi) into a new image.
func (m *Image) Channels(lo, hi int) (*Image, error) {
	if lo < 0 || hi > m.Shape.C || lo >= hi {
		return nil, fmt.Errorf("%w: channel range [%d, %d) outside %s", ErrShapeMismatch, lo, hi, m.Shape)
	}
	out, err := New(Shape{H: m.Shape.H, W: m.Shape.W, C: hi - lo})
	if err != nil {
		return nil, err
	}
	for y := 0; y < m.Shape.H; y++ {
		for x := 0; x < m.Shape.W; x++ {
			copy(out.Pixel(y, x), m.Pixel(y, x)[lo:hi])
		}
	}
	return out, nil
}

// Concat stacks images along the channel axis, in argument order. All images
// must share height and width.
func Concat(images ...*Image) (*Image, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrShapeMismatch)
	}
	base := images[0].Shape
	depth := 0
	for i, img := range images {
		if !img.Shape.SameSpatial(base) {
			return nil, fmt.Errorf("%w: image %d is %s, expected %dx%d", ErrShapeMismatch, i, img.Shape, base.H, base.W)
		}
		depth += img.Shape.C
	}

	out, err := New(Shape{H: base.H, W: base.W, C: depth})
	if err != nil {
		return nil, err
	}
	for y := 0; y < base.H; y++ {
		for x := 0; x < base.W; x++ {
			dst := out.Pixel(y, x)
			off := 0
			for _, img := range images {
				off += copy(dst[off:], img.Pixel(y, x))
			}
		}
	}
	return out, nil
}
