// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package chain binds the function pointers of the next layer in the OpenXR
// call chain.
//
// Bind resolves every required function once, at layer creation, and fails
// if any of them is missing or has an unexpected type. A missing entry
// discovered later would surface as a silent no-op deep inside a frame, far
// from the root cause. After Bind returns the typed accessors are immutable
// and safe for concurrent use without locking.
package chain

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/gogpu/xrfoveated/xr"
)

// ErrMissingFunction is wrapped by MissingFunctionError when the next layer
// does not provide a required function.
var ErrMissingFunction = errors.New("chain: required function missing")

// ErrWrongType is wrapped by MissingFunctionError when the next layer returns
// a value that is not of the command's PFN type.
var ErrWrongType = errors.New("chain: function has unexpected type")

// MissingFunctionError reports the command that could not be bound.
type MissingFunctionError struct {
	Command xr.Command
	Err     error
}

func (e *MissingFunctionError) Error() string {
	return fmt.Sprintf("chain: cannot bind %s: %v", e.Command, e.Err)
}

func (e *MissingFunctionError) Unwrap() error {
	return e.Err
}

// Table holds the next layer's functions for one instance.
type Table struct {
	instance xr.Instance
	gipa     xr.PFNGetInstanceProcAddr

	// procs holds every bound function, keyed by name. Immutable after Bind.
	procs map[xr.Command]any

	// forwards caches functions outside the required set, resolved on first
	// use for verbatim forwarding.
	forwards sync.Map

	destroyInstance                 xr.PFNDestroyInstance
	getInstanceProperties           xr.PFNGetInstanceProperties
	getSystem                       xr.PFNGetSystem
	getSystemProperties             xr.PFNGetSystemProperties
	enumerateViewConfigurationViews xr.PFNEnumerateViewConfigurationViews
	createSession                   xr.PFNCreateSession
	destroySession                  xr.PFNDestroySession
	beginSession                    xr.PFNBeginSession
	endSession                      xr.PFNEndSession
	createReferenceSpace            xr.PFNCreateReferenceSpace
	locateSpace                     xr.PFNLocateSpace
	destroySpace                    xr.PFNDestroySpace
	createSwapchain                 xr.PFNCreateSwapchain
	destroySwapchain                xr.PFNDestroySwapchain
	enumerateSwapchainImages        xr.PFNEnumerateSwapchainImages
	acquireSwapchainImage           xr.PFNAcquireSwapchainImage
	waitSwapchainImage              xr.PFNWaitSwapchainImage
	releaseSwapchainImage           xr.PFNReleaseSwapchainImage
	waitFrame                       xr.PFNWaitFrame
	beginFrame                      xr.PFNBeginFrame
	endFrame                        xr.PFNEndFrame
	locateViews                     xr.PFNLocateViews
}

// slot returns a setter that stores p into dst if p has type F.
func slot[F any](dst *F) func(p any) bool {
	return func(p any) bool {
		f, ok := p.(F)
		if !ok {
			return false
		}
		*dst = f
		return true
	}
}

func (t *Table) slots() map[xr.Command]func(any) bool {
	return map[xr.Command]func(any) bool{
		xr.CmdDestroyInstance:                 slot(&t.destroyInstance),
		xr.CmdGetInstanceProperties:           slot(&t.getInstanceProperties),
		xr.CmdGetSystem:                       slot(&t.getSystem),
		xr.CmdGetSystemProperties:             slot(&t.getSystemProperties),
		xr.CmdEnumerateViewConfigurationViews: slot(&t.enumerateViewConfigurationViews),
		xr.CmdCreateSession:                   slot(&t.createSession),
		xr.CmdDestroySession:                  slot(&t.destroySession),
		xr.CmdBeginSession:                    slot(&t.beginSession),
		xr.CmdEndSession:                      slot(&t.endSession),
		xr.CmdCreateReferenceSpace:            slot(&t.createReferenceSpace),
		xr.CmdLocateSpace:                     slot(&t.locateSpace),
		xr.CmdDestroySpace:                    slot(&t.destroySpace),
		xr.CmdCreateSwapchain:                 slot(&t.createSwapchain),
		xr.CmdDestroySwapchain:                slot(&t.destroySwapchain),
		xr.CmdEnumerateSwapchainImages:        slot(&t.enumerateSwapchainImages),
		xr.CmdAcquireSwapchainImage:           slot(&t.acquireSwapchainImage),
		xr.CmdWaitSwapchainImage:              slot(&t.waitSwapchainImage),
		xr.CmdReleaseSwapchainImage:           slot(&t.releaseSwapchainImage),
		xr.CmdWaitFrame:                       slot(&t.waitFrame),
		xr.CmdBeginFrame:                      slot(&t.beginFrame),
		xr.CmdEndFrame:                        slot(&t.endFrame),
		xr.CmdLocateViews:                     slot(&t.locateViews),
	}
}

// Bind resolves every command in required through gipa for instance.
// It fails on the first command that is missing, nil or of the wrong type;
// the returned error is a *MissingFunctionError.
func Bind(gipa xr.PFNGetInstanceProcAddr, instance xr.Instance, required []xr.Command) (*Table, error) {
	if gipa == nil {
		return nil, &MissingFunctionError{Command: xr.CmdGetInstanceProcAddr, Err: ErrMissingFunction}
	}

	t := &Table{
		instance: instance,
		gipa:     gipa,
		procs:    make(map[xr.Command]any, len(required)),
	}
	slots := t.slots()

	for _, cmd := range required {
		p, err := gipa(instance, cmd)
		if err != nil {
			return nil, &MissingFunctionError{Command: cmd, Err: fmt.Errorf("%w: %w", ErrMissingFunction, err)}
		}
		if isNil(p) {
			return nil, &MissingFunctionError{Command: cmd, Err: ErrMissingFunction}
		}
		if set, ok := slots[cmd]; ok && !set(p) {
			return nil, &MissingFunctionError{
				Command: cmd,
				Err:     fmt.Errorf("%w: %T", ErrWrongType, p),
			}
		}
		t.procs[cmd] = p
	}
	return t, nil
}

// isNil reports whether p is nil or a typed nil function.
func isNil(p any) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Func && v.IsNil()
}

// Instance returns the instance the table was bound for.
func (t *Table) Instance() xr.Instance { return t.instance }

// GetInstanceProcAddr returns the next layer's xrGetInstanceProcAddr.
func (t *Table) GetInstanceProcAddr() xr.PFNGetInstanceProcAddr { return t.gipa }

// Has reports whether cmd was bound by Bind.
func (t *Table) Has(cmd xr.Command) bool {
	_, ok := t.procs[cmd]
	return ok
}

// Lookup returns the next layer's function for cmd. Bound functions are
// returned directly; anything else is resolved through the next
// xrGetInstanceProcAddr once and cached. Errors from the next layer are
// returned unchanged.
func (t *Table) Lookup(cmd xr.Command) (any, error) {
	if p, ok := t.procs[cmd]; ok {
		return p, nil
	}
	if p, ok := t.forwards.Load(cmd); ok {
		return p, nil
	}
	p, err := t.gipa(t.instance, cmd)
	if err != nil {
		return nil, err
	}
	if isNil(p) {
		return nil, xr.ErrorFunctionUnsupported
	}
	actual, _ := t.forwards.LoadOrStore(cmd, p)
	return actual, nil
}

// Typed accessors. Each returns nil if the command was not in the required
// set passed to Bind.

func (t *Table) DestroyInstance() xr.PFNDestroyInstance {
	return t.destroyInstance
}

func (t *Table) GetInstanceProperties() xr.PFNGetInstanceProperties {
	return t.getInstanceProperties
}

func (t *Table) GetSystem() xr.PFNGetSystem {
	return t.getSystem
}

func (t *Table) GetSystemProperties() xr.PFNGetSystemProperties {
	return t.getSystemProperties
}

func (t *Table) EnumerateViewConfigurationViews() xr.PFNEnumerateViewConfigurationViews {
	return t.enumerateViewConfigurationViews
}

func (t *Table) CreateSession() xr.PFNCreateSession {
	return t.createSession
}

func (t *Table) DestroySession() xr.PFNDestroySession {
	return t.destroySession
}

func (t *Table) BeginSession() xr.PFNBeginSession {
	return t.beginSession
}

func (t *Table) EndSession() xr.PFNEndSession {
	return t.endSession
}

func (t *Table) CreateReferenceSpace() xr.PFNCreateReferenceSpace {
	return t.createReferenceSpace
}

func (t *Table) LocateSpace() xr.PFNLocateSpace {
	return t.locateSpace
}

func (t *Table) DestroySpace() xr.PFNDestroySpace {
	return t.destroySpace
}

func (t *Table) CreateSwapchain() xr.PFNCreateSwapchain {
	return t.createSwapchain
}

func (t *Table) DestroySwapchain() xr.PFNDestroySwapchain {
	return t.destroySwapchain
}

func (t *Table) EnumerateSwapchainImages() xr.PFNEnumerateSwapchainImages {
	return t.enumerateSwapchainImages
}

func (t *Table) AcquireSwapchainImage() xr.PFNAcquireSwapchainImage {
	return t.acquireSwapchainImage
}

func (t *Table) WaitSwapchainImage() xr.PFNWaitSwapchainImage {
	return t.waitSwapchainImage
}

func (t *Table) ReleaseSwapchainImage() xr.PFNReleaseSwapchainImage {
	return t.releaseSwapchainImage
}

func (t *Table) WaitFrame() xr.PFNWaitFrame {
	return t.waitFrame
}

func (t *Table) BeginFrame() xr.PFNBeginFrame {
	return t.beginFrame
}

func (t *Table) EndFrame() xr.PFNEndFrame {
	return t.endFrame
}

func (t *Table) LocateViews() xr.PFNLocateViews {
	return t.locateViews
}
