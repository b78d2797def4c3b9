// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package manifest lists the OpenXR functions the foveated rendering layer
// overrides and the functions it calls on the layer beneath it.
//
// Two override sets exist. Minimal is the set of the first release of the
// layer (view configuration, swapchain creation, session begin and view
// location). Full is the superset that also covers session, swapchain image
// and frame lifecycle tracking. Minimal is a strict subset of Full.
package manifest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/xrfoveated/xr"
)

// Name is the layer name registered with the OpenXR loader.
const Name = "XR_APILAYER_GOGPU_foveated"

// Always lists the functions every layer intercepts regardless of its
// override set.
var Always = []xr.Command{
	xr.CmdGetInstanceProcAddr,
	xr.CmdDestroyInstance,
}

// minimalOverrides is the first-release override set.
var minimalOverrides = []xr.Command{
	xr.CmdEnumerateViewConfigurationViews,
	xr.CmdCreateSwapchain,
	xr.CmdBeginSession,
	xr.CmdLocateViews,
}

// fullOverrides covers the whole frame and swapchain lifecycle.
var fullOverrides = []xr.Command{
	xr.CmdEnumerateViewConfigurationViews,
	xr.CmdCreateSession,
	xr.CmdBeginSession,
	xr.CmdEndSession,
	xr.CmdDestroySession,
	xr.CmdCreateSwapchain,
	xr.CmdDestroySwapchain,
	xr.CmdEnumerateSwapchainImages,
	xr.CmdAcquireSwapchainImage,
	xr.CmdWaitSwapchainImage,
	xr.CmdReleaseSwapchainImage,
	xr.CmdWaitFrame,
	xr.CmdBeginFrame,
	xr.CmdEndFrame,
	xr.CmdLocateViews,
}

// requested lists the functions the layer calls on the next layer for its
// own purposes. It may repeat entries of the override sets.
var requested = []xr.Command{
	xr.CmdGetInstanceProperties,
	xr.CmdGetSystem,
	xr.CmdGetSystemProperties,
	xr.CmdCreateReferenceSpace,
	xr.CmdLocateSpace,
	xr.CmdDestroySpace,
}

// Manifest is an override set plus the requested set.
type Manifest struct {
	Overrides []xr.Command
	Requested []xr.Command
}

// Minimal returns the first-release manifest.
func Minimal() Manifest {
	return Manifest{
		Overrides: slices.Clone(minimalOverrides),
		Requested: slices.Clone(requested),
	}
}

// Full returns the complete lifecycle manifest. This is the default.
func Full() Manifest {
	return Manifest{
		Overrides: slices.Clone(fullOverrides),
		Requested: slices.Clone(requested),
	}
}

// Intercepts reports whether cmd is handled locally by the layer.
func (m Manifest) Intercepts(cmd xr.Command) bool {
	return slices.Contains(Always, cmd) || slices.Contains(m.Overrides, cmd)
}

// Required returns every function the layer must obtain from the next layer:
// the overrides (to forward to), the requested functions and the always
// intercepted ones except xrGetInstanceProcAddr itself, deduplicated and
// sorted by name.
func (m Manifest) Required() []xr.Command {
	all := make([]xr.Command, 0, len(m.Overrides)+len(m.Requested)+len(Always))
	all = append(all, m.Overrides...)
	all = append(all, m.Requested...)
	for _, c := range Always {
		if c != xr.CmdGetInstanceProcAddr {
			all = append(all, c)
		}
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// ErrUnknownOverride is returned by Validate for an override the layer has no
// handler for.
var ErrUnknownOverride = errors.New("manifest: override has no handler")

// Validate checks that every override belongs to the Full set.
func (m Manifest) Validate() error {
	for _, c := range m.Overrides {
		if !slices.Contains(fullOverrides, c) {
			return fmt.Errorf("%w: %s", ErrUnknownOverride, c)
		}
	}
	return nil
}

// Has reports whether m overrides every function in other.
func (m Manifest) Has(other Manifest) bool {
	for _, c := range other.Overrides {
		if !slices.Contains(m.Overrides, c) {
			return false
		}
	}
	return true
}

// ImplicitExtensions returns the extensions the layer adds to the instance
// when the application enabled the given ones.
func ImplicitExtensions(enabled []string) []string {
	if slices.Contains(enabled, xr.ExtensionVarjoQuadViews) &&
		!slices.Contains(enabled, xr.ExtensionVarjoFoveatedRendering) {
		return []string{xr.ExtensionVarjoFoveatedRendering}
	}
	return nil
}
