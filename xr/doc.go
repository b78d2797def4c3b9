// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package xr models the subset of the OpenXR API that the foveated
// rendering layer intercepts or calls.
//
// # Handles
//
// Instance, Session, Swapchain and Space are opaque 64-bit handles issued by
// the runtime. The layer never invents handles of its own: every handle an
// application sees is the runtime's handle, returned unchanged.
//
// # Results
//
// OpenXR reports every outcome as an XrResult. Here every protocol function
// returns a Go error:
//
//   - nil means XR_SUCCESS
//   - a Result with Succeeded() == true is a qualified success (for example
//     TimeoutExpired or FrameDiscarded) and must be returned to the caller
//     unchanged
//   - a Result with Failed() == true is a failure
//
// Use Failed and ResultOf to classify any error, including errors that are
// not a Result (those count as ErrorRuntimeFailure).
//
// # Functions
//
// Each OpenXR command has a Command name and a PFN function type. Function
// tables are exchanged through PFNGetInstanceProcAddr, which returns the
// PFN value for a command as an any.
package xr
