package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/raster"
)

// pendingForward bridges a forward call to the backward call that follows.
// A forward call replaces it and a successful backward call clears it.
type pendingForward struct {
	runID  uuid.UUID
	bundle *channels.Bundle
	keys   channels.KeyOrder
	shape  raster.Shape
}

// bundled reports whether the forward input was a bundle. A key order
// without its bundle, or the reverse, is a programming error.
func (p *pendingForward) bundled() bool {
	hasBundle, hasKeys := p.bundle != nil, !p.keys.Empty()
	if hasBundle != hasKeys {
		panic(fmt.Sprintf("pipeline: inconsistent pending forward %s (bundle=%t, keys=%d)",
			p.runID, hasBundle, len(p.keys)))
	}
	return hasBundle
}
