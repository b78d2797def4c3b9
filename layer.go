package xrfoveated

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/internal/chain"
	"github.com/gogpu/xrfoveated/internal/handle"
	"github.com/gogpu/xrfoveated/manifest"
	"github.com/gogpu/xrfoveated/xr"
)

// Layer is the foveated rendering layer bound to one instance.
//
// The application reaches the layer only through GetInstanceProcAddr; every
// intercepted function is a method of Layer installed in the route table at
// construction.
type Layer struct {
	log      *slog.Logger
	manifest manifest.Manifest
	instance xr.Instance
	next     *chain.Table

	// bypass forwards everything except the always intercepted functions.
	bypass bool

	// lifecycle enables session, swapchain and frame tracking. It requires
	// the full manifest; with a smaller one the layer only foveates.
	lifecycle bool

	routes map[xr.Command]route

	config      Config
	foveator    foveation.Foveator
	foveated    []xr.ViewConfigurationType
	gazeSource  string
	gazeSources *gpucontext.Registry[GazeSource]

	system             xr.SystemID
	foveationSupported bool

	sessions   *handle.Table[xr.Session, *session]
	swapchains *handle.Table[xr.Swapchain, *swapchain]
	views      viewCache

	destroyOnce sync.Once
	onDestroy   func()
}

func newLayer(instance xr.Instance, next *chain.Table, o *options, bypass bool) *Layer {
	l := &Layer{
		log:         o.logger,
		manifest:    o.manifest,
		instance:    instance,
		next:        next,
		bypass:      bypass,
		lifecycle:   !bypass && o.manifest.Has(manifest.Full()),
		config:      o.config,
		foveator:    o.foveator,
		foveated:    slices.Clone(o.viewConfigs),
		gazeSource:  o.gazeSource,
		gazeSources: o.gazeSources,
		sessions:    handle.NewTable[xr.Session, *session](),
		swapchains:  handle.NewTable[xr.Swapchain, *swapchain](),
	}
	if l.log == nil {
		l.log = Logger()
	}
	if l.foveator == nil {
		l.foveator = o.config.Multipliers()
	}
	if o.config.NoEyeTracking {
		l.gazeSource = GazeSourceFixed
	}
	l.views.init()
	l.routes = l.buildRoutes()
	return l
}

// Instance returns the instance the layer is bound to.
func (l *Layer) Instance() xr.Instance { return l.instance }

// Bypassed reports whether the layer forwards every call unchanged.
func (l *Layer) Bypassed() bool { return l.bypass }

// SystemID returns the head-mounted system found at instance creation.
func (l *Layer) SystemID() xr.SystemID { return l.system }

// foveates reports whether views of typ are adjusted.
func (l *Layer) foveates(typ xr.ViewConfigurationType) bool {
	return !l.bypass && slices.Contains(l.foveated, typ)
}

// routeKind tells whether a function is handled locally or forwarded.
type routeKind uint8

const (
	routeForward routeKind = iota
	routeOverride
)

// route is one entry of the dispatch table.
type route struct {
	kind routeKind
	fn   any
}

// handlers returns the local implementation of every function the layer can
// intercept.
func (l *Layer) handlers() map[xr.Command]any {
	return map[xr.Command]any{
		xr.CmdGetInstanceProcAddr:             xr.PFNGetInstanceProcAddr(l.GetInstanceProcAddr),
		xr.CmdDestroyInstance:                 xr.PFNDestroyInstance(l.destroyInstance),
		xr.CmdEnumerateViewConfigurationViews: xr.PFNEnumerateViewConfigurationViews(l.enumerateViewConfigurationViews),
		xr.CmdCreateSession:                   xr.PFNCreateSession(l.createSession),
		xr.CmdDestroySession:                  xr.PFNDestroySession(l.destroySession),
		xr.CmdBeginSession:                    xr.PFNBeginSession(l.beginSession),
		xr.CmdEndSession:                      xr.PFNEndSession(l.endSession),
		xr.CmdCreateSwapchain:                 xr.PFNCreateSwapchain(l.createSwapchain),
		xr.CmdDestroySwapchain:                xr.PFNDestroySwapchain(l.destroySwapchain),
		xr.CmdEnumerateSwapchainImages:        xr.PFNEnumerateSwapchainImages(l.enumerateSwapchainImages),
		xr.CmdAcquireSwapchainImage:           xr.PFNAcquireSwapchainImage(l.acquireSwapchainImage),
		xr.CmdWaitSwapchainImage:              xr.PFNWaitSwapchainImage(l.waitSwapchainImage),
		xr.CmdReleaseSwapchainImage:           xr.PFNReleaseSwapchainImage(l.releaseSwapchainImage),
		xr.CmdWaitFrame:                       xr.PFNWaitFrame(l.waitFrame),
		xr.CmdBeginFrame:                      xr.PFNBeginFrame(l.beginFrame),
		xr.CmdEndFrame:                        xr.PFNEndFrame(l.endFrame),
		xr.CmdLocateViews:                     xr.PFNLocateViews(l.locateViews),
	}
}

// buildRoutes resolves the dispatch table once. Overridden functions map to
// their handler; every other bound function maps to the next layer's
// pointer. Names outside the table are resolved lazily by the binder.
func (l *Layer) buildRoutes() map[xr.Command]route {
	handlers := l.handlers()
	routes := make(map[xr.Command]route, len(handlers))

	for _, cmd := range manifest.Always {
		routes[cmd] = route{kind: routeOverride, fn: handlers[cmd]}
	}
	if l.bypass {
		return routes
	}
	for _, cmd := range l.manifest.Required() {
		if _, done := routes[cmd]; done {
			continue
		}
		if fn, ok := handlers[cmd]; ok && l.manifest.Intercepts(cmd) {
			routes[cmd] = route{kind: routeOverride, fn: fn}
			continue
		}
		if fn, err := l.next.Lookup(cmd); err == nil {
			routes[cmd] = route{kind: routeForward, fn: fn}
		}
	}
	return routes
}

// GetInstanceProcAddr implements xrGetInstanceProcAddr for the layer's
// instance. Intercepted names return the layer's handler, everything else
// the next layer's function. Names nobody provides fail with the next
// layer's error, normally xr.ErrorFunctionUnsupported.
func (l *Layer) GetInstanceProcAddr(instance xr.Instance, name xr.Command) (any, error) {
	if instance != l.instance {
		return nil, xr.ErrorHandleInvalid
	}
	if r, ok := l.routes[name]; ok {
		return r.fn, nil
	}
	return l.next.Lookup(name)
}

// Intercepted reports whether calls to cmd are handled by the layer rather
// than forwarded.
func (l *Layer) Intercepted(cmd xr.Command) bool {
	r, ok := l.routes[cmd]
	return ok && r.kind == routeOverride
}

// destroyInstance stops every session's gaze source, forwards the call and
// drops all bookkeeping once the runtime no longer knows the instance. On
// failure the gaze sources are started again.
func (l *Layer) destroyInstance(instance xr.Instance) error {
	if instance != l.instance {
		return xr.ErrorHandleInvalid
	}
	var stopped []*session
	for _, s := range l.sessions.Values() {
		if s.stopGaze() {
			stopped = append(stopped, s)
		}
	}

	err := l.next.DestroyInstance()(instance)
	if xr.Failed(err) && xr.ResultOf(err) != xr.ErrorHandleInvalid {
		l.log.Warn("xrfoveated: xrDestroyInstance failed", "err", err)
		for _, s := range stopped {
			s.startGaze(l)
		}
		return err
	}

	l.swapchains.DeleteFunc(func(xr.Swapchain, *swapchain) bool { return true })
	l.sessions.DeleteFunc(func(xr.Session, *session) bool { return true })
	l.destroyOnce.Do(func() {
		if l.onDestroy != nil {
			l.onDestroy()
		}
	})
	l.log.Info("xrfoveated: instance destroyed", "instance", uint64(instance))
	return err
}
