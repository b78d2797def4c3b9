// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xr

// Command is the name of an OpenXR function, as passed to
// xrGetInstanceProcAddr.
type Command string

// Commands known to this package.
const (
	CmdGetInstanceProcAddr                  Command = "xrGetInstanceProcAddr"
	CmdEnumerateInstanceExtensionProperties Command = "xrEnumerateInstanceExtensionProperties"
	CmdDestroyInstance                      Command = "xrDestroyInstance"
	CmdGetInstanceProperties                Command = "xrGetInstanceProperties"
	CmdGetSystem                            Command = "xrGetSystem"
	CmdGetSystemProperties                  Command = "xrGetSystemProperties"
	CmdEnumerateViewConfigurationViews      Command = "xrEnumerateViewConfigurationViews"
	CmdCreateSession                        Command = "xrCreateSession"
	CmdDestroySession                       Command = "xrDestroySession"
	CmdBeginSession                         Command = "xrBeginSession"
	CmdEndSession                           Command = "xrEndSession"
	CmdCreateReferenceSpace                 Command = "xrCreateReferenceSpace"
	CmdLocateSpace                          Command = "xrLocateSpace"
	CmdDestroySpace                         Command = "xrDestroySpace"
	CmdCreateSwapchain                      Command = "xrCreateSwapchain"
	CmdDestroySwapchain                     Command = "xrDestroySwapchain"
	CmdEnumerateSwapchainImages             Command = "xrEnumerateSwapchainImages"
	CmdAcquireSwapchainImage                Command = "xrAcquireSwapchainImage"
	CmdWaitSwapchainImage                   Command = "xrWaitSwapchainImage"
	CmdReleaseSwapchainImage                Command = "xrReleaseSwapchainImage"
	CmdWaitFrame                            Command = "xrWaitFrame"
	CmdBeginFrame                           Command = "xrBeginFrame"
	CmdEndFrame                             Command = "xrEndFrame"
	CmdLocateViews                          Command = "xrLocateViews"
)

// Function types, one per command.
//
// Enumeration functions follow the two-call idiom: the capacity is the length
// of the output slice, a zero-length slice only queries the count, and a
// too-small non-empty slice yields ErrorSizeInsufficient together with the
// required count.
type (
	PFNGetInstanceProcAddr                  func(instance Instance, name Command) (any, error)
	PFNEnumerateInstanceExtensionProperties func(layerName string, props []ExtensionProperties) (uint32, error)
	PFNDestroyInstance                      func(instance Instance) error
	PFNGetInstanceProperties                func(instance Instance, props *InstanceProperties) error
	PFNGetSystem                            func(instance Instance, info *SystemGetInfo) (SystemID, error)
	PFNGetSystemProperties                  func(instance Instance, system SystemID, props *SystemProperties) error
	PFNEnumerateViewConfigurationViews      func(instance Instance, system SystemID, typ ViewConfigurationType, views []ViewConfigurationView) (uint32, error)
	PFNCreateSession                        func(instance Instance, info *SessionCreateInfo) (Session, error)
	PFNDestroySession                       func(session Session) error
	PFNBeginSession                         func(session Session, info *SessionBeginInfo) error
	PFNEndSession                           func(session Session) error
	PFNCreateReferenceSpace                 func(session Session, info *ReferenceSpaceCreateInfo) (Space, error)
	PFNLocateSpace                          func(space, baseSpace Space, time Time, location *SpaceLocation) error
	PFNDestroySpace                         func(space Space) error
	PFNCreateSwapchain                      func(session Session, info *SwapchainCreateInfo) (Swapchain, error)
	PFNDestroySwapchain                     func(swapchain Swapchain) error
	PFNEnumerateSwapchainImages             func(swapchain Swapchain, images []SwapchainImage) (uint32, error)
	PFNAcquireSwapchainImage                func(swapchain Swapchain, info *SwapchainImageAcquireInfo) (uint32, error)
	PFNWaitSwapchainImage                   func(swapchain Swapchain, info *SwapchainImageWaitInfo) error
	PFNReleaseSwapchainImage                func(swapchain Swapchain, info *SwapchainImageReleaseInfo) error
	PFNWaitFrame                            func(session Session, info *FrameWaitInfo, state *FrameState) error
	PFNBeginFrame                           func(session Session, info *FrameBeginInfo) error
	PFNEndFrame                             func(session Session, info *FrameEndInfo) error
	PFNLocateViews                          func(session Session, info *ViewLocateInfo, state *ViewState, views []View) (uint32, error)
)
