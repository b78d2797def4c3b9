// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xr

// CurrentLoaderAPILayerVersion is the loader/layer interface version this
// package implements.
const CurrentLoaderAPILayerVersion uint32 = 1

// NegotiateLoaderInfo is what the loader offers in
// xrNegotiateLoaderApiLayerInterface.
type NegotiateLoaderInfo struct {
	MinInterfaceVersion uint32
	MaxInterfaceVersion uint32
	MinAPIVersion       Version
	MaxAPIVersion       Version
}

// NegotiateAPILayerRequest is filled by the layer during negotiation.
type NegotiateAPILayerRequest struct {
	LayerInterfaceVersion  uint32
	LayerAPIVersion        Version
	GetInstanceProcAddr    PFNGetInstanceProcAddr
	CreateAPILayerInstance PFNCreateAPILayerInstance
}

// APILayerNextInfo is one link of the chain below a layer.
type APILayerNextInfo struct {
	LayerName                  string
	NextGetInstanceProcAddr    PFNGetInstanceProcAddr
	NextCreateAPILayerInstance PFNCreateAPILayerInstance
	Next                       *APILayerNextInfo
}

// APILayerCreateInfo is passed down the chain by xrCreateApiLayerInstance.
type APILayerCreateInfo struct {
	SettingsFileLocation string
	NextInfo             *APILayerNextInfo
}

// PFNCreateAPILayerInstance creates an instance through the rest of the chain.
type PFNCreateAPILayerInstance func(info *InstanceCreateInfo, layerInfo *APILayerCreateInfo) (Instance, error)
