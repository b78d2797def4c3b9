package xrfoveated

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/xrfoveated/internal/simrt"
	"github.com/gogpu/xrfoveated/xr"
)

// swapchainOps bundles the image functions of an app.
type swapchainOps struct {
	acquire xr.PFNAcquireSwapchainImage
	wait    xr.PFNWaitSwapchainImage
	release xr.PFNReleaseSwapchainImage
	destroy xr.PFNDestroySwapchain
}

func imageOps(a *app) swapchainOps {
	a.t.Helper()
	return swapchainOps{
		acquire: fn[xr.PFNAcquireSwapchainImage](a, xr.CmdAcquireSwapchainImage),
		wait:    fn[xr.PFNWaitSwapchainImage](a, xr.CmdWaitSwapchainImage),
		release: fn[xr.PFNReleaseSwapchainImage](a, xr.CmdReleaseSwapchainImage),
		destroy: fn[xr.PFNDestroySwapchain](a, xr.CmdDestroySwapchain),
	}
}

func (o swapchainOps) cycle(sc xr.Swapchain) (uint32, error) {
	i, err := o.acquire(sc, &xr.SwapchainImageAcquireInfo{})
	if err != nil {
		return i, err
	}
	if err := o.wait(sc, &xr.SwapchainImageWaitInfo{Timeout: xr.InfiniteDuration}); err != nil {
		return i, err
	}
	return i, o.release(sc, &xr.SwapchainImageReleaseInfo{})
}

// TestSwapchainImageRotation tests a three image swapchain through two
// cycles and its destruction.
func TestSwapchainImageRotation(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt)
	s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)
	sc := a.swapchain(s, 640, 480)
	ops := imageOps(a)

	enumerate := fn[xr.PFNEnumerateSwapchainImages](a, xr.CmdEnumerateSwapchainImages)
	n, err := enumerate(sc, nil)
	if err != nil || n != 3 {
		t.Fatalf("image count = %d, %v; want 3", n, err)
	}
	images := make([]xr.SwapchainImage, n)
	if _, err := enumerate(sc, images); err != nil {
		t.Fatalf("xrEnumerateSwapchainImages: %v", err)
	}
	if images[2].Texture == nil || images[2].Texture.Width() != 640 {
		t.Errorf("image = %+v", images[2])
	}

	for want := range uint32(2) {
		i, err := ops.cycle(sc)
		if err != nil || i != want {
			t.Fatalf("cycle = %d, %v; want %d", i, err, want)
		}
	}

	sw := a.layer().swapchains
	if rec, ok := sw.Get(sc); !ok || rec.Next() != 2 {
		t.Errorf("next image = %v", rec)
	}

	if err := ops.destroy(sc); err != nil {
		t.Fatalf("xrDestroySwapchain: %v", err)
	}
	if _, err := ops.acquire(sc, &xr.SwapchainImageAcquireInfo{}); !errors.Is(err, xr.ErrorHandleInvalid) {
		t.Errorf("acquire after destroy: err = %v", err)
	}
	if _, ok := a.layer().Swapchain(sc); ok {
		t.Error("destroyed swapchain still tracked")
	}
	if err := ops.destroy(sc); !errors.Is(err, xr.ErrorHandleInvalid) {
		t.Errorf("second destroy: err = %v", err)
	}
}

// TestSwapchainCallOrder tests that only acquire, wait, release in that
// order reach the runtime.
func TestSwapchainCallOrder(t *testing.T) {
	type step struct {
		op        string
		inject    xr.Result
		misreport bool
		want      xr.Result
	}
	tests := []struct {
		name    string
		steps   []step
		forward map[xr.Command]int
	}{
		{
			name:    "wait before acquire",
			steps:   []step{{op: "wait", want: xr.ErrorCallOrderInvalid}},
			forward: map[xr.Command]int{xr.CmdWaitSwapchainImage: 0},
		},
		{
			name:    "release before wait",
			steps:   []step{{op: "acquire"}, {op: "release", want: xr.ErrorCallOrderInvalid}},
			forward: map[xr.Command]int{xr.CmdReleaseSwapchainImage: 0},
		},
		{
			name:    "second acquire",
			steps:   []step{{op: "acquire"}, {op: "acquire", want: xr.ErrorCallOrderInvalid}},
			forward: map[xr.Command]int{xr.CmdAcquireSwapchainImage: 1},
		},
		{
			name: "double release",
			steps: []step{
				{op: "acquire"}, {op: "wait"}, {op: "release"},
				{op: "release", want: xr.ErrorCallOrderInvalid},
			},
			forward: map[xr.Command]int{xr.CmdReleaseSwapchainImage: 1},
		},
		{
			name: "timed out wait is retried",
			steps: []step{
				{op: "acquire"},
				{op: "wait", inject: xr.TimeoutExpired, want: xr.TimeoutExpired},
				{op: "release", want: xr.ErrorCallOrderInvalid},
				{op: "wait"}, {op: "release"},
				{op: "acquire"},
			},
			forward: map[xr.Command]int{xr.CmdWaitSwapchainImage: 2, xr.CmdReleaseSwapchainImage: 1},
		},
		{
			name: "failed acquire keeps the swapchain idle",
			steps: []step{
				{op: "acquire", inject: xr.ErrorRuntimeFailure, want: xr.ErrorRuntimeFailure},
				{op: "wait", want: xr.ErrorCallOrderInvalid},
				{op: "acquire"},
			},
			forward: map[xr.Command]int{xr.CmdAcquireSwapchainImage: 2, xr.CmdWaitSwapchainImage: 0},
		},
		{
			name: "out of range index is still released",
			steps: []step{
				{op: "acquire", misreport: true, want: xr.ErrorRuntimeFailure},
				{op: "acquire", want: xr.ErrorCallOrderInvalid},
				{op: "wait"}, {op: "release"},
				{op: "acquire"},
			},
			forward: map[xr.Command]int{xr.CmdAcquireSwapchainImage: 2, xr.CmdReleaseSwapchainImage: 1},
		},
	}

	cmds := map[string]xr.Command{
		"acquire": xr.CmdAcquireSwapchainImage,
		"wait":    xr.CmdWaitSwapchainImage,
		"release": xr.CmdReleaseSwapchainImage,
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			a := newQuadApp(t, rt)
			s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)
			sc := a.swapchain(s, 256, 256)
			ops := imageOps(a)
			rt.ResetCalls()

			for i, st := range tt.steps {
				if st.inject != xr.Success {
					rt.FailNext(cmds[st.op], st.inject)
				}
				if st.misreport {
					rt.MisreportNextIndex(sc, 7)
				}
				var err error
				switch st.op {
				case "acquire":
					_, err = ops.acquire(sc, &xr.SwapchainImageAcquireInfo{})
				case "wait":
					err = ops.wait(sc, &xr.SwapchainImageWaitInfo{Timeout: xr.InfiniteDuration})
				case "release":
					err = ops.release(sc, &xr.SwapchainImageReleaseInfo{})
				}
				if got := xr.ResultOf(err); got != st.want {
					t.Fatalf("step %d (%s) = %v, want %v", i, st.op, got, st.want)
				}
			}
			for cmd, want := range tt.forward {
				if got := rt.CallCount(cmd); got != want {
					t.Errorf("%s forwarded %d times, want %d", cmd, got, want)
				}
			}
		})
	}
}

func TestSwapchainWaitTimeoutForwarded(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt)
	s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)
	sc := a.swapchain(s, 256, 256)
	ops := imageOps(a)

	for _, timeout := range []xr.Duration{5_000_000, 0, xr.InfiniteDuration} {
		if _, err := ops.acquire(sc, &xr.SwapchainImageAcquireInfo{}); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if err := ops.wait(sc, &xr.SwapchainImageWaitInfo{Timeout: timeout}); err != nil {
			t.Fatalf("wait: %v", err)
		}
		if got, ok := rt.LastSwapchainWait(); !ok || got.Timeout != timeout {
			t.Errorf("runtime timeout = %d, want %d", got.Timeout, timeout)
		}
		if err := ops.release(sc, &xr.SwapchainImageReleaseInfo{}); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
}

// TestSwapchainCreateFailure tests that a swapchain the runtime refuses
// leaves no record.
func TestSwapchainCreateFailure(t *testing.T) {
	tests := []struct {
		name    string
		inject  xr.Result
		request *xr.SwapchainCreateInfo
		want    xr.Result
	}{
		{"runtime failure", xr.ErrorRuntimeFailure, swapchainRequest(256, 256), xr.ErrorRuntimeFailure},
		{"out of memory", xr.ErrorOutOfMemory, swapchainRequest(256, 256), xr.ErrorOutOfMemory},
		{"undefined format", xr.Success, &xr.SwapchainCreateInfo{Size: swapchainRequest(256, 256).Size}, xr.ErrorSwapchainFormatUnsupported},
		{"too large", xr.Success, swapchainRequest(8192, 8192), xr.ErrorValidationFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			a := newQuadApp(t, rt)
			l := a.layer()
			s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)
			if tt.inject != xr.Success {
				rt.FailNext(xr.CmdCreateSwapchain, tt.inject)
			}

			sc, err := fn[xr.PFNCreateSwapchain](a, xr.CmdCreateSwapchain)(s, tt.request)
			if got := xr.ResultOf(err); got != tt.want {
				t.Fatalf("result = %v, want %v", got, tt.want)
			}
			if sc != xr.NullHandle {
				t.Errorf("handle = %#x, want null", uint64(sc))
			}
			if l.swapchains.Len() != 0 || len(l.SessionSwapchains(s)) != 0 {
				t.Error("refused swapchain recorded")
			}
			if rt.CallCount(xr.CmdEnumerateSwapchainImages) != 0 {
				t.Error("images enumerated for a refused swapchain")
			}
		})
	}
}

// TestSwapchainConcurrentAcquire tests that racing acquires on one swapchain
// let exactly one through while other swapchains proceed independently.
func TestSwapchainConcurrentAcquire(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt)
	s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)
	ops := imageOps(a)

	shared := a.swapchain(s, 128, 128)
	own := make([]xr.Swapchain, 4)
	for i := range own {
		own[i] = a.swapchain(s, 64, 64)
	}

	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
		failures atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ops.acquire(shared, &xr.SwapchainImageAcquireInfo{})
			switch {
			case err == nil:
				acquired.Add(1)
			case errors.Is(err, xr.ErrorCallOrderInvalid):
			default:
				failures.Add(1)
			}
		}()
	}
	for _, sc := range own {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				if _, err := ops.cycle(sc); err != nil {
					failures.Add(1)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := acquired.Load(); got != 1 {
		t.Errorf("concurrent acquires succeeded %d times, want 1", got)
	}
	if got := failures.Load(); got != 0 {
		t.Errorf("%d unexpected failures", got)
	}
	if got := rt.CallCount(xr.CmdReleaseSwapchainImage); got != 40 {
		t.Errorf("releases = %d, want 40", got)
	}
}

// TestSwapchainSizeAdjustment tests the foveated sizing of swapchain
// requests.
func TestSwapchainSizeAdjustment(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt, WithConfig(testConfig()))
	a.views(xr.ViewConfigurationTypePrimaryQuadVarjo)
	s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)
	l := a.layer()

	tests := []struct {
		name         string
		w, h         uint32
		wantW, wantH uint32
		view         int
	}{
		{"runtime peripheral size is scaled", 1000, 900, 500, 450, 0},
		{"adjusted peripheral size is kept", 500, 450, 500, 450, 0},
		{"runtime focus size is clamped", 800, 800, 1000, 1000, 2},
		{"adjusted focus size is kept", 1000, 1000, 1000, 1000, 2},
		{"other size passes through", 640, 480, 640, 480, -1},
	}
	var created []xr.Swapchain
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := a.swapchain(s, tt.w, tt.h)
			created = append(created, sc)

			info, ok := l.Swapchain(sc)
			if !ok {
				t.Fatal("swapchain not tracked")
			}
			size := info.Effective.Size
			if size.Width != tt.wantW || size.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", size.Width, size.Height, tt.wantW, tt.wantH)
			}
			got, _ := rt.Swapchain(sc)
			if got.Size != size {
				t.Errorf("runtime received %+v, layer recorded %+v", got.Size, size)
			}
			if info.View != tt.view {
				t.Errorf("matched view %d, want %d", info.View, tt.view)
			}
			if info.Requested.Size.Width != tt.w || info.Session != s || info.Images != 3 {
				t.Errorf("info = %+v", info)
			}
			if tt.view >= 0 && info.ViewConfiguration != xr.ViewConfigurationTypePrimaryQuadVarjo {
				t.Errorf("view configuration = %v", info.ViewConfiguration)
			}
		})
	}

	if got := l.SessionSwapchains(s); len(got) != len(created) {
		t.Errorf("SessionSwapchains = %v, want %d handles", got, len(created))
	}
}

func TestSwapchainWithoutViewEnumeration(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt, WithConfig(testConfig()))
	s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)

	sc := a.swapchain(s, 1000, 900)
	if info, _ := rt.Swapchain(sc); info.Size.Width != 1000 || info.Size.Height != 900 {
		t.Errorf("size = %+v, want the request unchanged", info.Size)
	}
}

func TestSwapchainImageCountFailure(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt)
	s := a.session(xr.ViewConfigurationTypePrimaryQuadVarjo)

	rt.FailNext(xr.CmdEnumerateSwapchainImages, xr.ErrorRuntimeFailure)
	sc, err := fn[xr.PFNCreateSwapchain](a, xr.CmdCreateSwapchain)(s, swapchainRequest(64, 64))
	if !errors.Is(err, xr.ErrorRuntimeFailure) || sc != xr.NullHandle {
		t.Fatalf("create = %#x, %v", uint64(sc), err)
	}
	if rt.CallCount(xr.CmdDestroySwapchain) != 1 {
		t.Error("half-created swapchain not destroyed")
	}
	if got := a.layer().SessionSwapchains(s); len(got) != 0 {
		t.Errorf("SessionSwapchains = %v", got)
	}
}

func TestSwapchainUnknownSession(t *testing.T) {
	rt := newRuntime(t, simrt.WithImageCount(2))
	a := newQuadApp(t, rt)

	_, err := fn[xr.PFNCreateSwapchain](a, xr.CmdCreateSwapchain)(0xdead, swapchainRequest(64, 64))
	if !errors.Is(err, xr.ErrorHandleInvalid) {
		t.Errorf("err = %v", err)
	}
	if rt.CallCount(xr.CmdCreateSwapchain) != 0 {
		t.Error("request for an unknown session was forwarded")
	}
}
