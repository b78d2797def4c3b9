// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package xrfoveated is an OpenXR API layer that adds gaze-tracked foveated
// rendering to applications using quad views.
//
// # Overview
//
// The layer sits between the application and the runtime. It forwards every
// call unchanged except a fixed set of overrides listed by package
// manifest, and uses those to:
//   - ask the runtime for foveated view recommendations and scale them by
//     the configured peripheral and focus multipliers
//   - size swapchains to the scaled views
//   - track session, swapchain image and frame lifecycles, rejecting calls
//     made out of order with xr.ErrorCallOrderInvalid
//   - sample the user's gaze once per frame and apply it to every
//     xrLocateViews of that frame
//
// # Quick Start
//
// The loader talks to an Entry:
//
//	entry := xrfoveated.NewEntry(xrfoveated.WithConfigPaths(cfgPath))
//	var req xr.NegotiateAPILayerRequest
//	if err := entry.Negotiate(&loaderInfo, manifest.Name, &req); err != nil {
//	    return err
//	}
//	instance, err := req.CreateAPILayerInstance(&createInfo, &layerInfo)
//
// From then on the application resolves functions through
// req.GetInstanceProcAddr.
//
// # Errors
//
// Every protocol function returns an error. A nil error is xr.Success; an
// xr.Result that Succeeded is a qualified success and is propagated as is.
// Failures from the runtime are returned unchanged and never alter the
// layer's bookkeeping.
//
// # Collaborators
//
// Gaze comes from a GazeSource created per session from a
// gpucontext.Registry. Foveation math is a foveation.Foveator; the default
// is foveation.Multipliers built from Config.
package xrfoveated

// Version is the layer version reported to the loader.
const Version = "0.1.0"
