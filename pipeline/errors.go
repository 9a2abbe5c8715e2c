package pipeline

import (
	"errors"
	"fmt"

	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

var (
	// ErrUnconfigured is returned when the sampler or projector a call needs
	// was never set.
	ErrUnconfigured = errors.New("pipeline not configured")

	// ErrShapeMismatch is returned when channel counts or spatial sizes
	// disagree.
	ErrShapeMismatch = raster.ErrShapeMismatch

	// ErrMissingProjection is matched by every *MissingProjectionError.
	ErrMissingProjection = errors.New("missing projection")

	// ErrTypeMismatch is returned for an input of unrecognized kind.
	ErrTypeMismatch = errors.New("unrecognized input")
)

// MissingProjectionError reports a tangent point with no backward input.
type MissingProjectionError struct {
	Ordinal int
}

func (e *MissingProjectionError) Error() string {
	return fmt.Sprintf("missing projection for %s", tangent.Key(e.Ordinal))
}

// Is makes errors.Is(err, ErrMissingProjection) hold.
func (e *MissingProjectionError) Is(target error) bool {
	return target == ErrMissingProjection
}
