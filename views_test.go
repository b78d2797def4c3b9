package xrfoveated

import (
	"errors"
	"testing"

	"github.com/gogpu/xrfoveated/internal/simrt"
	"github.com/gogpu/xrfoveated/xr"
)

// TestEnumerateViewConfigurationViews tests the adjusted recommendations
// for quad views.
func TestEnumerateViewConfigurationViews(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt, WithConfig(testConfig()))

	views := a.views(quad)
	if len(views) != 4 {
		t.Fatalf("got %d views, want 4", len(views))
	}
	want := []struct{ w, h, maxW, maxH uint32 }{
		{500, 450, 2000, 1800},
		{500, 450, 2000, 1800},
		{1000, 1000, 1000, 1000},
		{1000, 1000, 1000, 1000},
	}
	for i, v := range views {
		got := struct{ w, h, maxW, maxH uint32 }{
			v.RecommendedImageRectWidth, v.RecommendedImageRectHeight,
			v.MaxImageRectWidth, v.MaxImageRectHeight,
		}
		if got != want[i] {
			t.Errorf("view %d = %+v, want %+v", i, got, want[i])
		}
		if v.RecommendedSwapchainSampleCount != 1 {
			t.Errorf("view %d sample count = %d", i, v.RecommendedSwapchainSampleCount)
		}
	}

	o := a.layer().views.get(simrt.HeadMountedSystem, quad)
	if o == nil {
		t.Fatal("override not cached")
	}
	if o.runtime[0].RecommendedImageRectWidth != 1000 || o.adjusted[0].RecommendedImageRectWidth != 500 {
		t.Errorf("override = %+v", o)
	}
}

func TestEnumerateViewsTwoCallIdiom(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt, WithConfig(testConfig()))
	enumerate := fn[xr.PFNEnumerateViewConfigurationViews](a, xr.CmdEnumerateViewConfigurationViews)
	l := a.layer()

	n, err := enumerate(a.instance, simrt.HeadMountedSystem, quad, nil)
	if err != nil || n != 4 {
		t.Fatalf("count = %d, %v", n, err)
	}
	short := make([]xr.ViewConfigurationView, 2)
	if n, err := enumerate(a.instance, simrt.HeadMountedSystem, quad, short); !errors.Is(err, xr.ErrorSizeInsufficient) || n != 4 {
		t.Errorf("short slice = %d, %v", n, err)
	}
	if short[0].Foveated != nil {
		t.Error("chain not restored after a failed call")
	}
	if l.views.get(simrt.HeadMountedSystem, quad) != nil {
		t.Error("incomplete enumeration cached an override")
	}
	if _, err := enumerate(a.instance+1, simrt.HeadMountedSystem, quad, nil); !errors.Is(err, xr.ErrorHandleInvalid) {
		t.Errorf("wrong instance: err = %v", err)
	}
}

func TestEnumerateViewsFoveatedRequest(t *testing.T) {
	for _, noEyeTracking := range []bool{false, true} {
		rt := newRuntime(t)
		cfg := testConfig()
		cfg.NoEyeTracking = noEyeTracking
		a := newQuadApp(t, rt, WithConfig(cfg))
		enumerate := fn[xr.PFNEnumerateViewConfigurationViews](a, xr.CmdEnumerateViewConfigurationViews)

		views := make([]xr.ViewConfigurationView, 4)
		mine := xr.FoveatedViewConfigurationView{FoveatedRenderingActive: noEyeTracking}
		views[1].Foveated = &mine
		if _, err := enumerate(a.instance, simrt.HeadMountedSystem, quad, views); err != nil {
			t.Fatalf("enumerate: %v", err)
		}
		if views[0].Foveated != nil || views[1].Foveated != &mine {
			t.Error("application chain not restored")
		}
		for i, req := range rt.LastFoveatedViewRequest() {
			if req == nil || req.FoveatedRenderingActive == noEyeTracking {
				t.Errorf("noEyeTracking=%v: view %d request = %+v", noEyeTracking, i, req)
			}
		}
	}
}

func TestEnumerateViewsUnfoveatedType(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt, WithConfig(testConfig()))

	views := a.views(xr.ViewConfigurationTypePrimaryStereo)
	if len(views) != 2 || views[0].RecommendedImageRectWidth != 1400 {
		t.Errorf("stereo views = %+v", views)
	}
	if rt.LastFoveatedViewRequest()[0] != nil {
		t.Error("foveation requested for stereo views")
	}
}
