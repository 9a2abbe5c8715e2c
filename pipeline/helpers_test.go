package pipeline_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/utkarsh5026/panotile/channels"
	"github.com/utkarsh5026/panotile/internal/synthetic"
	"github.com/utkarsh5026/panotile/raster"
	"github.com/utkarsh5026/panotile/tangent"
)

const (
	sceneH = 16
	sceneW = 32
)

var (
	fov = tangent.FOV{H: 1, W: 1}

	// Six windows around the equator and two off-axis ones; several overlap.
	points = tangent.StaticSampler{
		{LatDeg: 0, LonDeg: 0},
		{LatDeg: 0, LonDeg: 90},
		{LatDeg: 0, LonDeg: 180},
		{LatDeg: 0, LonDeg: -90},
		{LatDeg: 45, LonDeg: 45},
		{LatDeg: -45, LonDeg: -45},
	}

	crop = synthetic.CropProjector{PatchH: 8, PatchW: 12}
)

func scene(t *testing.T) *channels.Bundle {
	t.Helper()
	b, err := synthetic.Scene(sceneH, sceneW)
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	return b
}

func packed(t *testing.T, b *channels.Bundle) *raster.Image {
	t.Helper()
	p, err := channels.Pack(b)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return p.Image
}

func warnObserver() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return zap.New(core), logs
}

func bitsEqual(a, b *raster.Image) bool {
	if a.Shape != b.Shape {
		return false
	}
	for i := range a.Pix {
		if math.Float64bits(a.Pix[i]) != math.Float64bits(b.Pix[i]) {
			return false
		}
	}
	return true
}

// recordingProjector wraps a projector and records every call.
type recordingProjector struct {
	tangent.Projector

	mu        sync.Mutex
	forward   []tangent.LatLon
	backward  []tangent.LatLon
	failAtLat float64
	fail      bool
	noMask    bool
}

var errProjector = errors.New("projector failure")

func (r *recordingProjector) Forward(img *raster.Image, lat, lon float64, f tangent.FOV) (*raster.Image, error) {
	r.mu.Lock()
	r.forward = append(r.forward, tangent.LatLon{LatDeg: lat, LonDeg: lon})
	r.mu.Unlock()
	return r.Projector.Forward(img, lat, lon, f)
}

func (r *recordingProjector) Backward(img *raster.Image, target raster.Shape, lat, lon float64, f tangent.FOV, wantMask bool) (*raster.Image, *raster.Image, error) {
	r.mu.Lock()
	r.backward = append(r.backward, tangent.LatLon{LatDeg: lat, LonDeg: lon})
	r.mu.Unlock()
	if r.fail && lat == r.failAtLat {
		return nil, nil, errProjector
	}
	out, mask, err := r.Projector.Backward(img, target, lat, lon, f, wantMask)
	if r.noMask {
		mask = nil
	}
	return out, mask, err
}

func (r *recordingProjector) backwardCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.backward)
}
