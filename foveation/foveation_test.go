package foveation

import (
	"math"
	"testing"

	"github.com/gogpu/xrfoveated/xr"
)

func quadGeometry() []ViewGeometry {
	return []ViewGeometry{
		{RecommendedWidth: 1000, RecommendedHeight: 800, MaxWidth: 2000, MaxHeight: 1600},
		{RecommendedWidth: 1000, RecommendedHeight: 800, MaxWidth: 2000, MaxHeight: 1600},
		{RecommendedWidth: 600, RecommendedHeight: 600, MaxWidth: 700, MaxHeight: 700},
		{RecommendedWidth: 600, RecommendedHeight: 600, MaxWidth: 700, MaxHeight: 700},
	}
}

func TestMultipliersQuad(t *testing.T) {
	m := Multipliers{Peripheral: 0.5, Focus: 1.5}
	adj := m.Adjust(xr.ViewConfigurationTypePrimaryQuadVarjo, CenterGaze(), quadGeometry())
	if len(adj) != 4 {
		t.Fatalf("len(Adjust) = %d, want 4", len(adj))
	}
	want := []float64{0.5, 0.5, 1.5, 1.5}
	for i, a := range adj {
		if a.Scale != want[i] {
			t.Errorf("view %d Scale = %v, want %v", i, a.Scale, want[i])
		}
		if a.HasWindow() {
			t.Errorf("view %d has a window without FocusFov", i)
		}
	}
}

func TestMultipliersStereo(t *testing.T) {
	m := Multipliers{Peripheral: 0.8, Focus: 2}
	views := quadGeometry()[:2]
	for i, a := range m.Adjust(xr.ViewConfigurationTypePrimaryStereo, CenterGaze(), views) {
		if a.Scale != 0.8 {
			t.Errorf("view %d Scale = %v, want 0.8", i, a.Scale)
		}
	}
}

func TestMultipliersUnknownConfiguration(t *testing.T) {
	m := Multipliers{Peripheral: 0.5, Focus: 2}
	for i, a := range m.Adjust(xr.ViewConfigurationType(42), CenterGaze(), quadGeometry()) {
		if a != Identity() {
			t.Errorf("view %d = %+v, want identity", i, a)
		}
	}
}

func TestMultipliersDeterministic(t *testing.T) {
	m := Multipliers{Peripheral: 0.7, Focus: 1.2, FocusFov: 0.6}
	g := Gaze{Direction: xr.Vector3f{X: 0.2, Z: -1}, Tracked: true}
	a := m.Adjust(xr.ViewConfigurationTypePrimaryQuadVarjo, g, quadGeometry())
	b := m.Adjust(xr.ViewConfigurationTypePrimaryQuadVarjo, g, quadGeometry())
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("view %d differs between calls: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestFocusWindowFollowsGaze(t *testing.T) {
	m := Multipliers{Peripheral: 1, Focus: 1, FocusFov: 0.4}
	right := Gaze{Direction: xr.Vector3f{X: float32(math.Sin(0.3)), Z: -float32(math.Cos(0.3))}, Tracked: true}

	adj := m.Adjust(xr.ViewConfigurationTypePrimaryQuadVarjo, right, quadGeometry())
	if adj[0].HasWindow() || adj[1].HasWindow() {
		t.Error("peripheral views must not get a focus window")
	}
	w := adj[2].Window
	center := (w.AngleLeft + w.AngleRight) / 2
	if math.Abs(float64(center)-0.3) > 1e-4 {
		t.Errorf("window center = %v, want 0.3", center)
	}
	if width := w.AngleRight - w.AngleLeft; math.Abs(float64(width)-0.4) > 1e-4 {
		t.Errorf("window width = %v, want 0.4", width)
	}

	untracked := right
	untracked.Tracked = false
	w = m.Adjust(xr.ViewConfigurationTypePrimaryQuadVarjo, untracked, quadGeometry())[3].Window
	if w.AngleLeft != -w.AngleRight {
		t.Errorf("untracked window = %+v, want centered", w)
	}
}

func TestGazeAngles(t *testing.T) {
	tests := []struct {
		name       string
		dir        xr.Vector3f
		yaw, pitch float64
	}{
		{"forward", xr.Vector3f{Z: -1}, 0, 0},
		{"right", xr.Vector3f{X: 1}, math.Pi / 2, 0},
		{"up", xr.Vector3f{Y: 1}, 0, math.Pi / 2},
		{"zero", xr.Vector3f{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaw, pitch := Gaze{Direction: tt.dir}.Angles()
			if math.Abs(yaw-tt.yaw) > 1e-6 || math.Abs(pitch-tt.pitch) > 1e-6 {
				t.Errorf("Angles() = (%v, %v), want (%v, %v)", yaw, pitch, tt.yaw, tt.pitch)
			}
		})
	}
}

func TestScaleExtent(t *testing.T) {
	tests := []struct {
		name         string
		scale        float64
		w, h         uint32
		maxW, maxH   uint32
		wantW, wantH uint32
	}{
		{"identity", 1, 1000, 800, 2000, 1600, 1000, 800},
		{"down", 0.5, 1000, 801, 2000, 1600, 500, 401},
		{"clamped", 3, 1000, 800, 2000, 1600, 2000, 1600},
		{"at least one", 0.0001, 10, 10, 20, 20, 1, 1},
		{"no limit", 2, 10, 10, 0, 0, 20, 20},
		{"invalid scale", -1, 10, 10, 20, 20, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Adjustment{Scale: tt.scale}.ScaleExtent(tt.w, tt.h, tt.maxW, tt.maxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ScaleExtent() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestApplyFov(t *testing.T) {
	runtime := xr.Fovf{AngleLeft: -0.5, AngleRight: 0.5, AngleUp: 0.4, AngleDown: -0.4}

	if got := Identity().ApplyFov(runtime); got != runtime {
		t.Errorf("identity ApplyFov() = %+v, want %+v", got, runtime)
	}

	tests := []struct {
		name   string
		window xr.Fovf
		want   xr.Fovf
	}{
		{
			"inside",
			xr.Fovf{AngleLeft: -0.1, AngleRight: 0.1, AngleUp: 0.1, AngleDown: -0.1},
			xr.Fovf{AngleLeft: -0.1, AngleRight: 0.1, AngleUp: 0.1, AngleDown: -0.1},
		},
		{
			"slides left",
			xr.Fovf{AngleLeft: 0.4, AngleRight: 0.6, AngleUp: 0.1, AngleDown: -0.1},
			xr.Fovf{AngleLeft: 0.3, AngleRight: 0.5, AngleUp: 0.1, AngleDown: -0.1},
		},
		{
			"slides up",
			xr.Fovf{AngleLeft: -0.1, AngleRight: 0.1, AngleUp: -0.3, AngleDown: -0.5},
			xr.Fovf{AngleLeft: -0.1, AngleRight: 0.1, AngleUp: -0.2, AngleDown: -0.4},
		},
		{
			"too wide",
			xr.Fovf{AngleLeft: -1, AngleRight: 1, AngleUp: 0.1, AngleDown: -0.1},
			xr.Fovf{AngleLeft: -0.5, AngleRight: 0.5, AngleUp: 0.1, AngleDown: -0.1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Adjustment{Scale: 1, Window: tt.window}.ApplyFov(runtime)
			if !fovNear(got, tt.want) {
				t.Errorf("ApplyFov() = %+v, want %+v", got, tt.want)
			}
			if !runtime.Contains(got) {
				t.Errorf("ApplyFov() = %+v escapes %+v", got, runtime)
			}
		})
	}
}

func fovNear(a, b xr.Fovf) bool {
	const eps = 1e-5
	return math.Abs(float64(a.AngleLeft-b.AngleLeft)) < eps &&
		math.Abs(float64(a.AngleRight-b.AngleRight)) < eps &&
		math.Abs(float64(a.AngleUp-b.AngleUp)) < eps &&
		math.Abs(float64(a.AngleDown-b.AngleDown)) < eps
}
