// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xr

import (
	"fmt"
	"math"
)

// Handles issued by the runtime.
type (
	Instance  uint64
	Session   uint64
	Swapchain uint64
	Space     uint64
)

// NullHandle is the value of an unset handle of any type.
const NullHandle = 0

// SystemID identifies a system (e.g. a headset) within an instance.
type SystemID uint64

// NullSystemID is the invalid system identifier.
const NullSystemID SystemID = 0

// Time is an absolute time in nanoseconds on the runtime's clock.
type Time int64

// Duration is a time span in nanoseconds.
type Duration int64

// InfiniteDuration makes a wait block until it completes.
const InfiniteDuration Duration = math.MaxInt64

// Version packs an OpenXR major.minor.patch version.
type Version uint64

// MakeVersion packs a version the same way XR_MAKE_VERSION does.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(uint64(major&0xffff)<<48 | uint64(minor&0xffff)<<32 | uint64(patch))
}

// Major returns the major version number.
func (v Version) Major() uint32 { return uint32(v>>48) & 0xffff }

// Minor returns the minor version number.
func (v Version) Minor() uint32 { return uint32(v>>32) & 0xffff }

// Patch returns the patch version number.
func (v Version) Patch() uint32 { return uint32(v) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// CurrentAPIVersion is the OpenXR version this package models.
var CurrentAPIVersion = MakeVersion(1, 0, 34)

// Extension names used by the layer.
const (
	ExtensionVarjoQuadViews         = "XR_VARJO_quad_views"
	ExtensionVarjoFoveatedRendering = "XR_VARJO_foveated_rendering"
)

// FormFactor selects the kind of system requested by xrGetSystem.
type FormFactor int32

const (
	FormFactorHeadMountedDisplay FormFactor = 1
	FormFactorHandheldDisplay    FormFactor = 2
)

// ViewConfigurationType is the primary view configuration of a session.
type ViewConfigurationType int32

const (
	ViewConfigurationTypePrimaryMono      ViewConfigurationType = 1
	ViewConfigurationTypePrimaryStereo    ViewConfigurationType = 2
	ViewConfigurationTypePrimaryQuadVarjo ViewConfigurationType = 1000037000
)

func (t ViewConfigurationType) String() string {
	switch t {
	case ViewConfigurationTypePrimaryMono:
		return "PrimaryMono"
	case ViewConfigurationTypePrimaryStereo:
		return "PrimaryStereo"
	case ViewConfigurationTypePrimaryQuadVarjo:
		return "PrimaryQuadVarjo"
	default:
		return fmt.Sprintf("ViewConfigurationType(%d)", int32(t))
	}
}

// ReferenceSpaceType selects a well-known reference space.
type ReferenceSpaceType int32

const (
	ReferenceSpaceTypeView             ReferenceSpaceType = 1
	ReferenceSpaceTypeLocal            ReferenceSpaceType = 2
	ReferenceSpaceTypeStage            ReferenceSpaceType = 3
	ReferenceSpaceTypeCombinedEyeVarjo ReferenceSpaceType = 1000121000
)

// EnvironmentBlendMode controls how rendered frames blend with the real world.
type EnvironmentBlendMode int32

const (
	EnvironmentBlendModeOpaque     EnvironmentBlendMode = 1
	EnvironmentBlendModeAdditive   EnvironmentBlendMode = 2
	EnvironmentBlendModeAlphaBlend EnvironmentBlendMode = 3
)

// Vector3f is a 3D vector.
type Vector3f struct {
	X, Y, Z float32
}

// Quaternionf is a rotation quaternion.
type Quaternionf struct {
	X, Y, Z, W float32
}

// Posef is a rigid transform.
type Posef struct {
	Orientation Quaternionf
	Position    Vector3f
}

// IdentityPose returns the identity transform.
func IdentityPose() Posef {
	return Posef{Orientation: Quaternionf{W: 1}}
}

// Rotate rotates v by q.
func (q Quaternionf) Rotate(v Vector3f) Vector3f {
	// t = 2 * cross(q.xyz, v); v' = v + w*t + cross(q.xyz, t)
	tx := 2 * (q.Y*v.Z - q.Z*v.Y)
	ty := 2 * (q.Z*v.X - q.X*v.Z)
	tz := 2 * (q.X*v.Y - q.Y*v.X)
	return Vector3f{
		X: v.X + q.W*tx + (q.Y*tz - q.Z*ty),
		Y: v.Y + q.W*ty + (q.Z*tx - q.X*tz),
		Z: v.Z + q.W*tz + (q.X*ty - q.Y*tx),
	}
}

// Fovf holds the four half-angles of a view frustum in radians. Left and
// Down are normally negative.
type Fovf struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// Contains reports whether inner lies entirely within f.
func (f Fovf) Contains(inner Fovf) bool {
	return inner.AngleLeft >= f.AngleLeft && inner.AngleRight <= f.AngleRight &&
		inner.AngleDown >= f.AngleDown && inner.AngleUp <= f.AngleUp
}

// Offset2Di is an integer 2D offset.
type Offset2Di struct {
	X, Y int32
}

// Extent2Di is an integer 2D extent.
type Extent2Di struct {
	Width, Height int32
}

// Rect2Di is an integer rectangle.
type Rect2Di struct {
	Offset Offset2Di
	Extent Extent2Di
}
