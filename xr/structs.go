// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xr

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ApplicationInfo identifies the application creating an instance.
type ApplicationInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	APIVersion         Version
}

// InstanceCreateInfo is the argument of xrCreateInstance.
type InstanceCreateInfo struct {
	ApplicationInfo       ApplicationInfo
	EnabledAPILayerNames  []string
	EnabledExtensionNames []string
}

// HasExtension reports whether name is among the enabled extensions.
func (ci *InstanceCreateInfo) HasExtension(name string) bool {
	for _, e := range ci.EnabledExtensionNames {
		if e == name {
			return true
		}
	}
	return false
}

// ExtensionProperties describes an extension offered by the runtime.
type ExtensionProperties struct {
	ExtensionName    string
	ExtensionVersion uint32
}

// InstanceProperties is filled by xrGetInstanceProperties.
type InstanceProperties struct {
	RuntimeVersion Version
	RuntimeName    string
}

// SystemGetInfo is the argument of xrGetSystem.
type SystemGetInfo struct {
	FormFactor FormFactor
}

// SystemFoveatedRenderingProperties is chained to SystemProperties when
// XR_VARJO_foveated_rendering is enabled.
type SystemFoveatedRenderingProperties struct {
	SupportsFoveatedRendering bool
}

// SystemProperties is filled by xrGetSystemProperties.
type SystemProperties struct {
	SystemID                SystemID
	VendorID                uint32
	SystemName              string
	MaxSwapchainImageWidth  uint32
	MaxSwapchainImageHeight uint32
	MaxLayerCount           uint32
	OrientationTracking     bool
	PositionTracking        bool

	// FoveatedRendering is filled only when non-nil on input.
	FoveatedRendering *SystemFoveatedRenderingProperties
}

// SessionCreateInfo is the argument of xrCreateSession. Graphics is the
// graphics binding supplied by the application.
type SessionCreateInfo struct {
	SystemID SystemID
	Graphics gpucontext.DeviceProvider
}

// SessionBeginInfo is the argument of xrBeginSession.
type SessionBeginInfo struct {
	PrimaryViewConfigurationType ViewConfigurationType
}

// FoveatedViewConfigurationView is chained to ViewConfigurationView to ask
// for the foveated recommendations.
type FoveatedViewConfigurationView struct {
	FoveatedRenderingActive bool
}

// ViewConfigurationView describes one view of a view configuration.
type ViewConfigurationView struct {
	RecommendedImageRectWidth       uint32
	MaxImageRectWidth               uint32
	RecommendedImageRectHeight      uint32
	MaxImageRectHeight              uint32
	RecommendedSwapchainSampleCount uint32
	MaxSwapchainSampleCount         uint32

	// Foveated is an optional input chain.
	Foveated *FoveatedViewConfigurationView
}

// SwapchainCreateFlags are the XrSwapchainCreateFlags bits.
type SwapchainCreateFlags uint64

const (
	SwapchainCreateProtectedContent SwapchainCreateFlags = 1 << iota
	SwapchainCreateStaticImage
)

// SwapchainCreateInfo is the argument of xrCreateSwapchain.
// Size.DepthOrArrayLayers is the swapchain array size.
type SwapchainCreateInfo struct {
	CreateFlags SwapchainCreateFlags
	Usage       gputypes.TextureUsage
	Format      gputypes.TextureFormat
	SampleCount uint32
	Size        gputypes.Extent3D
	FaceCount   uint32
	MipCount    uint32
}

// SwapchainImage is one image of a swapchain as returned by
// xrEnumerateSwapchainImages.
type SwapchainImage struct {
	Texture gpucontext.Texture
}

// SwapchainImageAcquireInfo is the argument of xrAcquireSwapchainImage.
type SwapchainImageAcquireInfo struct{}

// SwapchainImageWaitInfo is the argument of xrWaitSwapchainImage.
type SwapchainImageWaitInfo struct {
	Timeout Duration
}

// SwapchainImageReleaseInfo is the argument of xrReleaseSwapchainImage.
type SwapchainImageReleaseInfo struct{}

// FrameWaitInfo is the argument of xrWaitFrame.
type FrameWaitInfo struct{}

// FrameState is filled by xrWaitFrame.
type FrameState struct {
	PredictedDisplayTime   Time
	PredictedDisplayPeriod Duration
	ShouldRender           bool
}

// FrameBeginInfo is the argument of xrBeginFrame.
type FrameBeginInfo struct{}

// CompositionLayer is a layer submitted by xrEndFrame.
type CompositionLayer interface {
	LayerSpace() Space
}

// SwapchainSubImage references a region of a swapchain image.
type SwapchainSubImage struct {
	Swapchain       Swapchain
	ImageRect       Rect2Di
	ImageArrayIndex uint32
}

// CompositionLayerProjectionView is one view of a projection layer.
type CompositionLayerProjectionView struct {
	Pose     Posef
	Fov      Fovf
	SubImage SwapchainSubImage
}

// CompositionLayerProjection is a projection layer, one view per eye.
type CompositionLayerProjection struct {
	Space Space
	Views []CompositionLayerProjectionView
}

// LayerSpace implements CompositionLayer.
func (l *CompositionLayerProjection) LayerSpace() Space { return l.Space }

// CompositionLayerQuad is a flat quad placed in space.
type CompositionLayerQuad struct {
	Space    Space
	SubImage SwapchainSubImage
	Pose     Posef
	Width    float32
	Height   float32
}

// LayerSpace implements CompositionLayer.
func (l *CompositionLayerQuad) LayerSpace() Space { return l.Space }

// FrameEndInfo is the argument of xrEndFrame.
type FrameEndInfo struct {
	DisplayTime          Time
	EnvironmentBlendMode EnvironmentBlendMode
	Layers               []CompositionLayer
}

// ViewLocateFoveatedRendering is chained to ViewLocateInfo to ask for
// foveated view poses and fields of view.
type ViewLocateFoveatedRendering struct {
	FoveatedRenderingActive bool
}

// ViewLocateInfo is the argument of xrLocateViews.
type ViewLocateInfo struct {
	ViewConfigurationType ViewConfigurationType
	DisplayTime           Time
	Space                 Space

	// FoveatedRendering is an optional input chain.
	FoveatedRendering *ViewLocateFoveatedRendering
}

// ViewStateFlags are the XrViewStateFlags bits.
type ViewStateFlags uint64

const (
	ViewStateOrientationValid ViewStateFlags = 1 << iota
	ViewStatePositionValid
	ViewStateOrientationTracked
	ViewStatePositionTracked
)

// ViewState is filled by xrLocateViews.
type ViewState struct {
	Flags ViewStateFlags
}

// View is one located view.
type View struct {
	Pose Posef
	Fov  Fovf
}

// ReferenceSpaceCreateInfo is the argument of xrCreateReferenceSpace.
type ReferenceSpaceCreateInfo struct {
	ReferenceSpaceType   ReferenceSpaceType
	PoseInReferenceSpace Posef
}

// SpaceLocationFlags are the XrSpaceLocationFlags bits.
type SpaceLocationFlags uint64

const (
	SpaceLocationOrientationValid SpaceLocationFlags = 1 << iota
	SpaceLocationPositionValid
	SpaceLocationOrientationTracked
	SpaceLocationPositionTracked
)

// SpaceLocation is filled by xrLocateSpace.
type SpaceLocation struct {
	Flags SpaceLocationFlags
	Pose  Posef
}
