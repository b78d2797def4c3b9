// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package xr

import (
	"errors"
	"fmt"
)

// Result mirrors XrResult. Non-negative values are successes, negative
// values are failures.
type Result int32

// Success codes.
const (
	Success                Result = 0
	TimeoutExpired         Result = 1
	SessionLossPending     Result = 3
	EventUnavailable       Result = 4
	SpaceBoundsUnavailable Result = 7
	SessionNotFocused      Result = 8
	FrameDiscarded         Result = 9
)

// Failure codes.
const (
	ErrorValidationFailure                Result = -1
	ErrorRuntimeFailure                   Result = -2
	ErrorOutOfMemory                      Result = -3
	ErrorAPIVersionUnsupported            Result = -4
	ErrorInitializationFailed             Result = -6
	ErrorFunctionUnsupported              Result = -7
	ErrorFeatureUnsupported               Result = -8
	ErrorExtensionNotPresent              Result = -9
	ErrorLimitReached                     Result = -10
	ErrorSizeInsufficient                 Result = -11
	ErrorHandleInvalid                    Result = -12
	ErrorInstanceLost                     Result = -13
	ErrorSessionRunning                   Result = -14
	ErrorSessionNotRunning                Result = -16
	ErrorSessionLost                      Result = -17
	ErrorSystemInvalid                    Result = -18
	ErrorSwapchainRectInvalid             Result = -25
	ErrorSwapchainFormatUnsupported       Result = -26
	ErrorSessionNotReady                  Result = -28
	ErrorSessionNotStopping               Result = -29
	ErrorTimeInvalid                      Result = -30
	ErrorReferenceSpaceUnsupported        Result = -31
	ErrorFormFactorUnsupported            Result = -34
	ErrorAPILayerNotPresent               Result = -36
	ErrorCallOrderInvalid                 Result = -37
	ErrorGraphicsDeviceInvalid            Result = -38
	ErrorPoseInvalid                      Result = -39
	ErrorIndexOutOfRange                  Result = -40
	ErrorViewConfigurationTypeUnsupported Result = -41
	ErrorNameInvalid                      Result = -45
	ErrorLayerInvalid                     Result = -48
	ErrorLayerLimitExceeded               Result = -49
)

var resultNames = map[Result]string{
	Success:                               "XR_SUCCESS",
	TimeoutExpired:                        "XR_TIMEOUT_EXPIRED",
	SessionLossPending:                    "XR_SESSION_LOSS_PENDING",
	EventUnavailable:                      "XR_EVENT_UNAVAILABLE",
	SpaceBoundsUnavailable:                "XR_SPACE_BOUNDS_UNAVAILABLE",
	SessionNotFocused:                     "XR_SESSION_NOT_FOCUSED",
	FrameDiscarded:                        "XR_FRAME_DISCARDED",
	ErrorValidationFailure:                "XR_ERROR_VALIDATION_FAILURE",
	ErrorRuntimeFailure:                   "XR_ERROR_RUNTIME_FAILURE",
	ErrorOutOfMemory:                      "XR_ERROR_OUT_OF_MEMORY",
	ErrorAPIVersionUnsupported:            "XR_ERROR_API_VERSION_UNSUPPORTED",
	ErrorInitializationFailed:             "XR_ERROR_INITIALIZATION_FAILED",
	ErrorFunctionUnsupported:              "XR_ERROR_FUNCTION_UNSUPPORTED",
	ErrorFeatureUnsupported:               "XR_ERROR_FEATURE_UNSUPPORTED",
	ErrorExtensionNotPresent:              "XR_ERROR_EXTENSION_NOT_PRESENT",
	ErrorLimitReached:                     "XR_ERROR_LIMIT_REACHED",
	ErrorSizeInsufficient:                 "XR_ERROR_SIZE_INSUFFICIENT",
	ErrorHandleInvalid:                    "XR_ERROR_HANDLE_INVALID",
	ErrorInstanceLost:                     "XR_ERROR_INSTANCE_LOST",
	ErrorSessionRunning:                   "XR_ERROR_SESSION_RUNNING",
	ErrorSessionNotRunning:                "XR_ERROR_SESSION_NOT_RUNNING",
	ErrorSessionLost:                      "XR_ERROR_SESSION_LOST",
	ErrorSystemInvalid:                    "XR_ERROR_SYSTEM_INVALID",
	ErrorSwapchainRectInvalid:             "XR_ERROR_SWAPCHAIN_RECT_INVALID",
	ErrorSwapchainFormatUnsupported:       "XR_ERROR_SWAPCHAIN_FORMAT_UNSUPPORTED",
	ErrorSessionNotReady:                  "XR_ERROR_SESSION_NOT_READY",
	ErrorSessionNotStopping:               "XR_ERROR_SESSION_NOT_STOPPING",
	ErrorTimeInvalid:                      "XR_ERROR_TIME_INVALID",
	ErrorReferenceSpaceUnsupported:        "XR_ERROR_REFERENCE_SPACE_UNSUPPORTED",
	ErrorFormFactorUnsupported:            "XR_ERROR_FORM_FACTOR_UNSUPPORTED",
	ErrorAPILayerNotPresent:               "XR_ERROR_API_LAYER_NOT_PRESENT",
	ErrorCallOrderInvalid:                 "XR_ERROR_CALL_ORDER_INVALID",
	ErrorGraphicsDeviceInvalid:            "XR_ERROR_GRAPHICS_DEVICE_INVALID",
	ErrorPoseInvalid:                      "XR_ERROR_POSE_INVALID",
	ErrorIndexOutOfRange:                  "XR_ERROR_INDEX_OUT_OF_RANGE",
	ErrorViewConfigurationTypeUnsupported: "XR_ERROR_VIEW_CONFIGURATION_TYPE_UNSUPPORTED",
	ErrorNameInvalid:                      "XR_ERROR_NAME_INVALID",
	ErrorLayerInvalid:                     "XR_ERROR_LAYER_INVALID",
	ErrorLayerLimitExceeded:               "XR_ERROR_LAYER_LIMIT_EXCEEDED",
}

// String returns the OpenXR name of the result, e.g. "XR_ERROR_HANDLE_INVALID".
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	if r < 0 {
		return fmt.Sprintf("XR_UNKNOWN_FAILURE_%d", int32(r))
	}
	return fmt.Sprintf("XR_UNKNOWN_SUCCESS_%d", int32(r))
}

// Error implements the error interface.
func (r Result) Error() string {
	return "xr: " + r.String()
}

// Succeeded reports whether r is a success code (including qualified successes).
func (r Result) Succeeded() bool { return r >= 0 }

// Failed reports whether r is a failure code.
func (r Result) Failed() bool { return r < 0 }

// ResultOf converts an error returned by a protocol function to a Result.
// A nil error is Success. Errors that do not wrap a Result are reported as
// ErrorRuntimeFailure.
func ResultOf(err error) Result {
	if err == nil {
		return Success
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}
	return ErrorRuntimeFailure
}

// Failed reports whether err carries a failure code.
func Failed(err error) bool {
	return ResultOf(err).Failed()
}

// Succeeded reports whether err is nil or a qualified success.
func Succeeded(err error) bool {
	return ResultOf(err).Succeeded()
}

// Check returns nil for Success and r otherwise. Protocol implementations use
// it to turn a Result into the error they return.
func Check(r Result) error {
	if r == Success {
		return nil
	}
	return r
}
