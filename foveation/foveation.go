// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package foveation computes per-view foveation adjustments from gaze and
// view geometry.
//
// A Foveator is a pure function: the same configuration type, gaze and view
// geometry always produce the same adjustments. The layer calls it once per
// view enumeration and once per frame, and applies the returned
// Adjustment values to view resolutions and fields of view.
package foveation

import (
	"math"

	"github.com/gogpu/xrfoveated/xr"
)

// Gaze is the user's gaze direction in view space.
type Gaze struct {
	// Direction is a unit vector. -Z looks straight ahead.
	Direction xr.Vector3f

	// Tracked is false when the direction is a fallback rather than a
	// measurement.
	Tracked bool
}

// CenterGaze returns an untracked gaze looking straight ahead.
func CenterGaze() Gaze {
	return Gaze{Direction: xr.Vector3f{Z: -1}}
}

// Angles returns the horizontal and vertical gaze angles in radians.
// Positive yaw looks right, positive pitch looks up.
func (g Gaze) Angles() (yaw, pitch float64) {
	x := float64(g.Direction.X)
	y := float64(g.Direction.Y)
	z := float64(g.Direction.Z)
	if x == 0 && y == 0 && z == 0 {
		return 0, 0
	}
	if x != 0 || z != 0 {
		yaw = math.Atan2(x, -z)
	}
	pitch = math.Atan2(y, math.Hypot(x, z))
	return yaw, pitch
}

// ViewGeometry is what a Foveator knows about one view.
type ViewGeometry struct {
	RecommendedWidth  uint32
	RecommendedHeight uint32
	MaxWidth          uint32
	MaxHeight         uint32
}

// Adjustment is the foveation applied to one view.
type Adjustment struct {
	// Scale multiplies the recommended resolution.
	Scale float64

	// Window, when non-zero, is the angular region the view should cover.
	// It is clamped inside the runtime's field of view when applied.
	Window xr.Fovf
}

// Identity returns an adjustment that changes nothing.
func Identity() Adjustment {
	return Adjustment{Scale: 1}
}

// HasWindow reports whether the adjustment replaces the field of view.
func (a Adjustment) HasWindow() bool {
	return a.Window != (xr.Fovf{})
}

// ScaleExtent scales a recommended extent, rounding to the nearest pixel.
// The result is at least 1 and never exceeds maxW x maxH when those are
// non-zero.
func (a Adjustment) ScaleExtent(w, h, maxW, maxH uint32) (uint32, uint32) {
	return scaleDim(w, a.Scale, maxW), scaleDim(h, a.Scale, maxH)
}

func scaleDim(v uint32, scale float64, limit uint32) uint32 {
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1
	}
	s := math.Round(float64(v) * scale)
	if s < 1 {
		s = 1
	}
	if limit > 0 && s > float64(limit) {
		return limit
	}
	if s > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(s)
}

// ApplyFov returns the field of view a view should use given the runtime's
// field of view for it. Without a window fov is returned unchanged.
func (a Adjustment) ApplyFov(fov xr.Fovf) xr.Fovf {
	if !a.HasWindow() {
		return fov
	}
	out := a.Window
	out.AngleLeft, out.AngleRight = clampSpan(out.AngleLeft, out.AngleRight, fov.AngleLeft, fov.AngleRight)
	out.AngleDown, out.AngleUp = clampSpan(out.AngleDown, out.AngleUp, fov.AngleDown, fov.AngleUp)
	return out
}

// clampSpan slides [lo, hi] inside [outerLo, outerHi], shrinking it to the
// outer span if it does not fit.
func clampSpan(lo, hi, outerLo, outerHi float32) (float32, float32) {
	if hi-lo >= outerHi-outerLo {
		return outerLo, outerHi
	}
	if lo < outerLo {
		hi += outerLo - lo
		lo = outerLo
	}
	if hi > outerHi {
		lo -= hi - outerHi
		hi = outerHi
	}
	return lo, hi
}

// Foveator computes adjustments for the views of a view configuration.
// The returned slice has the same length and order as views.
type Foveator interface {
	Adjust(typ xr.ViewConfigurationType, gaze Gaze, views []ViewGeometry) []Adjustment
}
