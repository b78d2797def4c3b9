// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package simrt is a simulated OpenXR runtime. It sits at the bottom of a
// layer chain in tests and in the demo, validates call order the way a
// conformant runtime does and records every call it receives.
//
// Swapchain images are textures of a wgpu noop device, so the runtime needs
// no GPU.
package simrt

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/xrfoveated/xr"
)

// CmdCreateAPILayerInstance names instance creation in the call record and
// for FailNext.
const CmdCreateAPILayerInstance xr.Command = "xrCreateApiLayerInstance"

// Name is the runtime name reported by xrGetInstanceProperties.
const Name = "gogpu simulated runtime"

// SystemName is the name of the simulated headset.
const SystemName = "Simulated HMD"

// HeadMountedSystem is the system identifier of the simulated headset.
const HeadMountedSystem xr.SystemID = 0x484d44

// DefaultDisplayPeriod is the frame period of the simulated display (90 Hz).
const DefaultDisplayPeriod xr.Duration = 11_111_111

// Runtime is a simulated OpenXR runtime. All methods are safe for
// concurrent use.
type Runtime struct {
	log        *slog.Logger
	dev        *device
	procs      map[xr.Command]any
	extensions []xr.ExtensionProperties
	missing    map[xr.Command]bool
	imageCount int
	period     xr.Duration
	foveation  bool

	mu          sync.Mutex
	calls       []xr.Command
	fail        map[xr.Command]xr.Result
	handles     uint64
	instances   map[xr.Instance]*instanceState
	sessions    map[xr.Session]*sessionState
	swapchains  map[xr.Swapchain]*swapchainState
	spaces      map[xr.Space]*spaceState
	nextDisplay xr.Time
	gaze        xr.Quaternionf
	gazeTracked bool
	lastLocate  *xr.ViewLocateInfo
	lastRequest []*xr.FoveatedViewConfigurationView
	lastWait    *xr.SwapchainImageWaitInfo
}

type instanceState struct {
	extensions []string
}

func (s *instanceState) has(ext string) bool {
	return slices.Contains(s.extensions, ext)
}

type sessionState struct {
	instance xr.Instance
	running  bool
	waited   bool
	begun    bool
	ended    uint64
}

type swapchainState struct {
	session  xr.Session
	info     xr.SwapchainCreateInfo
	images   []*Image
	next     uint32
	acquired []uint32
	waited   []uint32

	// misreport, when set, replaces the index the next acquire returns.
	misreport *uint32
}

type spaceState struct {
	session xr.Session
	typ     xr.ReferenceSpaceType
	pose    xr.Posef
}

// New opens the simulated runtime's device.
func New(opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev, err := openDevice()
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		log:         o.logger,
		dev:         dev,
		missing:     make(map[xr.Command]bool),
		imageCount:  o.imageCount,
		period:      o.period,
		foveation:   o.foveation,
		fail:        make(map[xr.Command]xr.Result),
		instances:   make(map[xr.Instance]*instanceState),
		sessions:    make(map[xr.Session]*sessionState),
		swapchains:  make(map[xr.Swapchain]*swapchainState),
		spaces:      make(map[xr.Space]*spaceState),
		nextDisplay: xr.Time(o.period),
		gaze:        xr.Quaternionf{W: 1},
		gazeTracked: true,
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	for _, ext := range []string{xr.ExtensionVarjoQuadViews, xr.ExtensionVarjoFoveatedRendering} {
		if !slices.Contains(o.withheld, ext) {
			r.extensions = append(r.extensions, xr.ExtensionProperties{ExtensionName: ext, ExtensionVersion: 1})
		}
	}
	for _, cmd := range o.missing {
		r.missing[cmd] = true
	}
	r.procs = r.functions()
	return r, nil
}

// Close releases the runtime's device and every image still allocated.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, sc := range r.swapchains {
		r.dev.destroyImages(sc.images)
		delete(r.swapchains, h)
	}
	r.dev.destroy()
}

// Graphics returns a graphics binding for xrCreateSession.
func (r *Runtime) Graphics() gpucontext.DeviceProvider {
	return graphics{d: r.dev}
}

// Link returns the chain link that makes the runtime the next layer of the
// layer named layerName.
func (r *Runtime) Link(layerName string) *xr.APILayerNextInfo {
	return &xr.APILayerNextInfo{
		LayerName:                  layerName,
		NextGetInstanceProcAddr:    r.GetInstanceProcAddr,
		NextCreateAPILayerInstance: r.CreateAPILayerInstance,
	}
}

func (r *Runtime) functions() map[xr.Command]any {
	return map[xr.Command]any{
		xr.CmdGetInstanceProcAddr:                  xr.PFNGetInstanceProcAddr(r.GetInstanceProcAddr),
		xr.CmdEnumerateInstanceExtensionProperties: xr.PFNEnumerateInstanceExtensionProperties(r.enumerateInstanceExtensionProperties),
		xr.CmdDestroyInstance:                      xr.PFNDestroyInstance(r.destroyInstance),
		xr.CmdGetInstanceProperties:                xr.PFNGetInstanceProperties(r.getInstanceProperties),
		xr.CmdGetSystem:                            xr.PFNGetSystem(r.getSystem),
		xr.CmdGetSystemProperties:                  xr.PFNGetSystemProperties(r.getSystemProperties),
		xr.CmdEnumerateViewConfigurationViews:      xr.PFNEnumerateViewConfigurationViews(r.enumerateViewConfigurationViews),
		xr.CmdCreateSession:                        xr.PFNCreateSession(r.createSession),
		xr.CmdDestroySession:                       xr.PFNDestroySession(r.destroySession),
		xr.CmdBeginSession:                         xr.PFNBeginSession(r.beginSession),
		xr.CmdEndSession:                           xr.PFNEndSession(r.endSession),
		xr.CmdCreateReferenceSpace:                 xr.PFNCreateReferenceSpace(r.createReferenceSpace),
		xr.CmdLocateSpace:                          xr.PFNLocateSpace(r.locateSpace),
		xr.CmdDestroySpace:                         xr.PFNDestroySpace(r.destroySpace),
		xr.CmdCreateSwapchain:                      xr.PFNCreateSwapchain(r.createSwapchain),
		xr.CmdDestroySwapchain:                     xr.PFNDestroySwapchain(r.destroySwapchain),
		xr.CmdEnumerateSwapchainImages:             xr.PFNEnumerateSwapchainImages(r.enumerateSwapchainImages),
		xr.CmdAcquireSwapchainImage:                xr.PFNAcquireSwapchainImage(r.acquireSwapchainImage),
		xr.CmdWaitSwapchainImage:                   xr.PFNWaitSwapchainImage(r.waitSwapchainImage),
		xr.CmdReleaseSwapchainImage:                xr.PFNReleaseSwapchainImage(r.releaseSwapchainImage),
		xr.CmdWaitFrame:                            xr.PFNWaitFrame(r.waitFrame),
		xr.CmdBeginFrame:                           xr.PFNBeginFrame(r.beginFrame),
		xr.CmdEndFrame:                             xr.PFNEndFrame(r.endFrame),
		xr.CmdLocateViews:                          xr.PFNLocateViews(r.locateViews),
	}
}

// GetInstanceProcAddr implements xrGetInstanceProcAddr.
func (r *Runtime) GetInstanceProcAddr(instance xr.Instance, name xr.Command) (any, error) {
	r.mu.Lock()
	_, live := r.instances[instance]
	r.mu.Unlock()

	if !live && !(instance == xr.NullHandle && name == xr.CmdEnumerateInstanceExtensionProperties) {
		return nil, xr.ErrorHandleInvalid
	}
	fn, ok := r.procs[name]
	if !ok || r.missing[name] {
		return nil, xr.ErrorFunctionUnsupported
	}
	return fn, nil
}

// CreateAPILayerInstance creates an instance. Every enabled extension must
// be offered.
func (r *Runtime) CreateAPILayerInstance(info *xr.InstanceCreateInfo, _ *xr.APILayerCreateInfo) (xr.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(CmdCreateAPILayerInstance); err != nil {
		return xr.NullHandle, err
	}
	if info == nil {
		return xr.NullHandle, xr.ErrorValidationFailure
	}
	for _, ext := range info.EnabledExtensionNames {
		if !r.offers(ext) {
			return xr.NullHandle, xr.ErrorExtensionNotPresent
		}
	}

	h := xr.Instance(r.newHandle())
	r.instances[h] = &instanceState{extensions: slices.Clone(info.EnabledExtensionNames)}
	r.log.Debug("simrt: instance created", "instance", uint64(h), "extensions", info.EnabledExtensionNames)
	return h, nil
}

func (r *Runtime) offers(ext string) bool {
	return slices.ContainsFunc(r.extensions, func(p xr.ExtensionProperties) bool {
		return p.ExtensionName == ext
	})
}

// enter records a call and returns the result injected for it, if any.
// r.mu must be held.
func (r *Runtime) enter(cmd xr.Command) error {
	r.calls = append(r.calls, cmd)
	if res, ok := r.fail[cmd]; ok {
		delete(r.fail, cmd)
		r.log.Debug("simrt: injected result", "cmd", string(cmd), "result", res.String())
		return res
	}
	return nil
}

func (r *Runtime) newHandle() uint64 {
	r.handles++
	return 0x1000 + r.handles
}

// fill implements the two-call idiom.
func fill[T any](dst, src []T) (uint32, error) {
	n := uint32(len(src))
	switch {
	case len(dst) == 0:
	case len(dst) < len(src):
		return n, xr.ErrorSizeInsufficient
	default:
		copy(dst, src)
	}
	return n, nil
}

func (r *Runtime) enumerateInstanceExtensionProperties(layerName string, props []xr.ExtensionProperties) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdEnumerateInstanceExtensionProperties); err != nil {
		return 0, err
	}
	if layerName != "" {
		return 0, xr.ErrorAPILayerNotPresent
	}
	return fill(props, r.extensions)
}

func (r *Runtime) destroyInstance(instance xr.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdDestroyInstance); err != nil {
		return err
	}
	if _, ok := r.instances[instance]; !ok {
		return xr.ErrorHandleInvalid
	}
	for h, s := range r.sessions {
		if s.instance == instance {
			r.dropSession(h)
		}
	}
	delete(r.instances, instance)
	return nil
}

func (r *Runtime) getInstanceProperties(instance xr.Instance, props *xr.InstanceProperties) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdGetInstanceProperties); err != nil {
		return err
	}
	if _, ok := r.instances[instance]; !ok {
		return xr.ErrorHandleInvalid
	}
	if props == nil {
		return xr.ErrorValidationFailure
	}
	props.RuntimeName = Name
	props.RuntimeVersion = xr.MakeVersion(0, 1, 0)
	return nil
}

func (r *Runtime) getSystem(instance xr.Instance, info *xr.SystemGetInfo) (xr.SystemID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdGetSystem); err != nil {
		return xr.NullSystemID, err
	}
	if _, ok := r.instances[instance]; !ok {
		return xr.NullSystemID, xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.NullSystemID, xr.ErrorValidationFailure
	}
	if info.FormFactor != xr.FormFactorHeadMountedDisplay {
		return xr.NullSystemID, xr.ErrorFormFactorUnsupported
	}
	return HeadMountedSystem, nil
}

func (r *Runtime) getSystemProperties(instance xr.Instance, system xr.SystemID, props *xr.SystemProperties) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdGetSystemProperties); err != nil {
		return err
	}
	inst, ok := r.instances[instance]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if system != HeadMountedSystem {
		return xr.ErrorSystemInvalid
	}
	if props == nil {
		return xr.ErrorValidationFailure
	}
	props.SystemID = system
	props.SystemName = SystemName
	props.MaxSwapchainImageWidth = maxImageSize
	props.MaxSwapchainImageHeight = maxImageSize
	props.MaxLayerCount = maxLayers
	props.OrientationTracking = true
	props.PositionTracking = true
	if props.FoveatedRendering != nil {
		props.FoveatedRendering.SupportsFoveatedRendering = r.foveation && inst.has(xr.ExtensionVarjoFoveatedRendering)
	}
	return nil
}

// Calls returns the functions received so far, in order.
func (r *Runtime) Calls() []xr.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallCount returns how many times cmd was received.
func (r *Runtime) CallCount(cmd xr.Command) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

// ResetCalls clears the call record.
func (r *Runtime) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// FailNext makes the next call of cmd return res without any effect.
// res may be a qualified success such as xr.TimeoutExpired.
func (r *Runtime) FailNext(cmd xr.Command, res xr.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[cmd] = res
}

// LiveInstances returns the number of instances not yet destroyed.
func (r *Runtime) LiveInstances() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// LiveSpaces returns the number of reference spaces not yet destroyed.
func (r *Runtime) LiveSpaces() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// SessionRunning reports whether h exists and was begun.
func (r *Runtime) SessionRunning(h xr.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[h]
	return ok && s.running
}

// EndedFrames returns the number of frames session h submitted.
func (r *Runtime) EndedFrames(h xr.Session) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[h]; ok {
		return s.ended
	}
	return 0
}

// Swapchain returns the creation parameters the runtime received for h.
func (r *Runtime) Swapchain(h xr.Swapchain) (xr.SwapchainCreateInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.swapchains[h]
	if !ok {
		return xr.SwapchainCreateInfo{}, false
	}
	return sc.info, true
}

// SetGaze sets the orientation of the combined eye gaze relative to the
// view, and whether the eye tracker reports it as tracked.
func (r *Runtime) SetGaze(q xr.Quaternionf, tracked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gaze = q
	r.gazeTracked = tracked
}

// SetNextDisplayTime sets the display time the next xrWaitFrame predicts.
// Later frames follow at the display period.
func (r *Runtime) SetNextDisplayTime(t xr.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextDisplay = t
}

// MisreportNextIndex makes the next xrAcquireSwapchainImage on h acquire an
// image as usual but return index instead of its real index.
func (r *Runtime) MisreportNextIndex(h xr.Swapchain, index uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sc, ok := r.swapchains[h]; ok {
		sc.misreport = &index
	}
}

// LastSwapchainWait returns the arguments of the latest
// xrWaitSwapchainImage.
func (r *Runtime) LastSwapchainWait() (xr.SwapchainImageWaitInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastWait == nil {
		return xr.SwapchainImageWaitInfo{}, false
	}
	return *r.lastWait, true
}

// LastViewLocate returns the arguments of the latest xrLocateViews.
func (r *Runtime) LastViewLocate() (xr.ViewLocateInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastLocate == nil {
		return xr.ViewLocateInfo{}, false
	}
	return *r.lastLocate, true
}

// LastFoveatedViewRequest returns the foveated chain structures attached to
// the views of the latest full xrEnumerateViewConfigurationViews, nil where
// none was attached.
func (r *Runtime) LastFoveatedViewRequest() []*xr.FoveatedViewConfigurationView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.lastRequest)
}
