// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package foveation

import (
	"github.com/gogpu/xrfoveated/xr"
)

// Quad view configurations order their views as left and right peripheral,
// then left and right focus.
const quadFocusStart = 2

// Multipliers is the default Foveator. It scales peripheral and focus views
// by fixed factors and, when FocusFov is set, centers the focus views on the
// gaze.
type Multipliers struct {
	// Peripheral scales the peripheral views of quad configurations and
	// every view of other configurations.
	Peripheral float64

	// Focus scales the focus views of quad configurations.
	Focus float64

	// FocusFov is the angular size, in radians, of the focus window. Zero
	// leaves focus fields of view to the runtime.
	FocusFov float64
}

// DefaultMultipliers returns multipliers that leave resolutions unchanged.
func DefaultMultipliers() Multipliers {
	return Multipliers{Peripheral: 1, Focus: 1}
}

// Adjust implements Foveator.
func (m Multipliers) Adjust(typ xr.ViewConfigurationType, gaze Gaze, views []ViewGeometry) []Adjustment {
	out := make([]Adjustment, len(views))
	for i := range views {
		out[i] = Identity()
		switch typ {
		case xr.ViewConfigurationTypePrimaryQuadVarjo:
			if i%4 < quadFocusStart {
				out[i].Scale = m.Peripheral
			} else {
				out[i].Scale = m.Focus
				out[i].Window = m.focusWindow(gaze)
			}
		case xr.ViewConfigurationTypePrimaryStereo, xr.ViewConfigurationTypePrimaryMono:
			out[i].Scale = m.Peripheral
		}
	}
	return out
}

// focusWindow returns the focus window around the gaze, or the zero window
// when FocusFov is unset. An untracked gaze centers the window.
func (m Multipliers) focusWindow(gaze Gaze) xr.Fovf {
	if m.FocusFov <= 0 {
		return xr.Fovf{}
	}
	var yaw, pitch float64
	if gaze.Tracked {
		yaw, pitch = gaze.Angles()
	}
	half := m.FocusFov / 2
	return xr.Fovf{
		AngleLeft:  float32(yaw - half),
		AngleRight: float32(yaw + half),
		AngleUp:    float32(pitch + half),
		AngleDown:  float32(pitch - half),
	}
}
