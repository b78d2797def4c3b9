package xrfoveated

import (
	"math"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrfoveated/internal/simrt"
	"github.com/gogpu/xrfoveated/manifest"
	"github.com/gogpu/xrfoveated/xr"
)

// testConfig halves peripheral views and enlarges focus views past their
// maximum.
func testConfig() Config {
	return Config{PeripheralMultiplier: 0.5, FocusMultiplier: 1.5}
}

func newRuntime(t *testing.T, opts ...simrt.Option) *simrt.Runtime {
	t.Helper()
	rt, err := simrt.New(opts...)
	if err != nil {
		t.Fatalf("simrt.New: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

// app is an application talking to the simulated runtime through the layer.
type app struct {
	t        *testing.T
	rt       *simrt.Runtime
	entry    *Entry
	instance xr.Instance
}

// layerInfo returns the chain information the loader passes to the layer.
func layerInfo(rt *simrt.Runtime) *xr.APILayerCreateInfo {
	return &xr.APILayerCreateInfo{NextInfo: rt.Link(manifest.Name)}
}

// newApp creates an instance with the given extensions through a new entry.
func newApp(t *testing.T, rt *simrt.Runtime, exts []string, opts ...Option) *app {
	t.Helper()
	a := &app{t: t, rt: rt, entry: NewEntry(opts...)}
	inst, err := a.entry.CreateAPILayerInstance(&xr.InstanceCreateInfo{
		ApplicationInfo: xr.ApplicationInfo{
			ApplicationName: t.Name(),
			EngineName:      "test",
			APIVersion:      xr.CurrentAPIVersion,
		},
		EnabledExtensionNames: exts,
	}, layerInfo(rt))
	if err != nil {
		t.Fatalf("CreateAPILayerInstance: %v", err)
	}
	a.instance = inst
	t.Cleanup(func() {
		if a.entry.Layer() != nil {
			_ = fn[xr.PFNDestroyInstance](a, xr.CmdDestroyInstance)(a.instance)
		}
	})
	return a
}

// newQuadApp is newApp for an application using quad views.
func newQuadApp(t *testing.T, rt *simrt.Runtime, opts ...Option) *app {
	t.Helper()
	return newApp(t, rt, []string{xr.ExtensionVarjoQuadViews}, opts...)
}

// fn resolves cmd through the layer's xrGetInstanceProcAddr.
func fn[F any](a *app, cmd xr.Command) F {
	a.t.Helper()
	p, err := a.entry.GetInstanceProcAddr(a.instance, cmd)
	if err != nil {
		a.t.Fatalf("xrGetInstanceProcAddr(%s): %v", cmd, err)
	}
	f, ok := p.(F)
	if !ok {
		a.t.Fatalf("xrGetInstanceProcAddr(%s) returned %T", cmd, p)
	}
	return f
}

func (a *app) layer() *Layer {
	a.t.Helper()
	l := a.entry.Layer()
	if l == nil {
		a.t.Fatal("no active layer")
	}
	return l
}

// views enumerates the views of typ with the two-call idiom.
func (a *app) views(typ xr.ViewConfigurationType) []xr.ViewConfigurationView {
	a.t.Helper()
	enumerate := fn[xr.PFNEnumerateViewConfigurationViews](a, xr.CmdEnumerateViewConfigurationViews)
	n, err := enumerate(a.instance, simrt.HeadMountedSystem, typ, nil)
	if err != nil {
		a.t.Fatalf("view count: %v", err)
	}
	views := make([]xr.ViewConfigurationView, n)
	if _, err := enumerate(a.instance, simrt.HeadMountedSystem, typ, views); err != nil {
		a.t.Fatalf("views: %v", err)
	}
	return views
}

// createSession creates a session without beginning it.
func (a *app) createSession() xr.Session {
	a.t.Helper()
	s, err := fn[xr.PFNCreateSession](a, xr.CmdCreateSession)(a.instance, &xr.SessionCreateInfo{
		SystemID: simrt.HeadMountedSystem,
		Graphics: a.rt.Graphics(),
	})
	if err != nil {
		a.t.Fatalf("xrCreateSession: %v", err)
	}
	return s
}

// session creates and begins a session of typ.
func (a *app) session(typ xr.ViewConfigurationType) xr.Session {
	a.t.Helper()
	s := a.createSession()
	err := fn[xr.PFNBeginSession](a, xr.CmdBeginSession)(s, &xr.SessionBeginInfo{PrimaryViewConfigurationType: typ})
	if err != nil {
		a.t.Fatalf("xrBeginSession: %v", err)
	}
	return s
}

// swapchain creates a color swapchain of the given size.
func (a *app) swapchain(s xr.Session, w, h uint32) xr.Swapchain {
	a.t.Helper()
	sc, err := fn[xr.PFNCreateSwapchain](a, xr.CmdCreateSwapchain)(s, swapchainRequest(w, h))
	if err != nil {
		a.t.Fatalf("xrCreateSwapchain(%dx%d): %v", w, h, err)
	}
	return sc
}

func swapchainRequest(w, h uint32) *xr.SwapchainCreateInfo {
	return &xr.SwapchainCreateInfo{
		Usage:       gputypes.TextureUsageRenderAttachment,
		Format:      gputypes.TextureFormatRGBA8UnormSrgb,
		SampleCount: 1,
		Size:        gputypes.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		FaceCount:   1,
		MipCount:    1,
	}
}

// beginFrame waits for and begins a frame.
func (a *app) beginFrame(s xr.Session) xr.FrameState {
	a.t.Helper()
	var state xr.FrameState
	if err := fn[xr.PFNWaitFrame](a, xr.CmdWaitFrame)(s, &xr.FrameWaitInfo{}, &state); err != nil {
		a.t.Fatalf("xrWaitFrame: %v", err)
	}
	if err := fn[xr.PFNBeginFrame](a, xr.CmdBeginFrame)(s, &xr.FrameBeginInfo{}); err != nil {
		a.t.Fatalf("xrBeginFrame: %v", err)
	}
	return state
}

// locateViews locates the views of typ at time t.
func (a *app) locateViews(s xr.Session, typ xr.ViewConfigurationType, t xr.Time) ([]xr.View, error) {
	a.t.Helper()
	views := make([]xr.View, viewCount(typ))
	var state xr.ViewState
	n, err := fn[xr.PFNLocateViews](a, xr.CmdLocateViews)(s, &xr.ViewLocateInfo{
		ViewConfigurationType: typ,
		DisplayTime:           t,
	}, &state, views)
	return views[:min(int(n), len(views))], err
}

// yawQuat returns a rotation of angle radians about +Y.
func yawQuat(angle float64) xr.Quaternionf {
	return xr.Quaternionf{Y: float32(math.Sin(angle / 2)), W: float32(math.Cos(angle / 2))}
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func fovNear(a, b xr.Fovf) bool {
	return near(a.AngleLeft, b.AngleLeft) && near(a.AngleRight, b.AngleRight) &&
		near(a.AngleUp, b.AngleUp) && near(a.AngleDown, b.AngleDown)
}
