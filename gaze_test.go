package xrfoveated

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/internal/simrt"
	"github.com/gogpu/xrfoveated/xr"
)

// scriptedGaze returns a fixed direction and records its lifecycle.
type scriptedGaze struct {
	mu      sync.Mutex
	gaze    foveation.Gaze
	err     error
	starts  int
	stops   int
	session xr.Session
}

func (g *scriptedGaze) Start(ctx *SessionContext) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.starts++
	g.session = ctx.Session
	return nil
}

func (g *scriptedGaze) Sample(xr.Time) (foveation.Gaze, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gaze, g.err
}

func (g *scriptedGaze) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stops++
}

func TestEyeTrackerGaze(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt)
	s := a.session(quad)

	g := a.layer().newGazeSource()
	if _, ok := g.(*eyeTrackerGaze); !ok {
		t.Fatalf("default gaze source = %T, want the eye tracker", g)
	}
	if _, err := g.Sample(0); !errors.Is(err, errGazeNotStarted) {
		t.Errorf("sample before start: err = %v", err)
	}

	rec, _ := a.layer().sessions.Get(s)
	if err := g.Start(rec.gazeCtx); err != nil {
		t.Fatal(err)
	}
	defer g.Stop()

	rt.SetGaze(yawQuat(math.Pi/2), true)
	gaze, err := g.Sample(1)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if !gaze.Tracked || !near(gaze.Direction.X, -1) || !near(gaze.Direction.Z, 0) {
		t.Errorf("gaze = %+v, want tracked and looking along -X", gaze)
	}
	yaw, pitch := gaze.Angles()
	if !near(float32(yaw), -math.Pi/2) || pitch != 0 {
		t.Errorf("angles = %v, %v", yaw, pitch)
	}

	rt.SetGaze(yawQuat(0.5), false)
	if gaze, err := g.Sample(2); err != nil || gaze.Tracked || gaze != foveation.CenterGaze() {
		t.Errorf("untracked sample = %+v, %v", gaze, err)
	}
}

func TestEyeTrackerLocateFailure(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt, WithConfig(focusConfig()))
	s := a.session(quad)

	rt.FailNext(xr.CmdLocateSpace, xr.ErrorTimeInvalid)
	a.beginFrame(s)
	p, _ := a.layer().FrameParameters(s)
	if p.Gaze != foveation.CenterGaze() || p.Active {
		t.Errorf("frame parameters after a failed sample = %+v", p)
	}
}

func TestEyeTrackerWithoutGazeSpace(t *testing.T) {
	rt := newRuntime(t, simrt.WithoutExtension(xr.ExtensionVarjoFoveatedRendering))
	a := newQuadApp(t, rt)
	s := a.session(quad)

	a.beginFrame(s)
	p, ok := a.layer().FrameParameters(s)
	if !ok || p.Gaze.Tracked {
		t.Errorf("frame parameters = %+v, %v", p, ok)
	}
	// Only the view space could be created.
	if rt.LiveSpaces() != 1 {
		t.Errorf("LiveSpaces = %d, want 1", rt.LiveSpaces())
	}
}

func TestFixedGazeSource(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"selected", []Option{WithGazeSource(GazeSourceFixed)}},
		{"no eye tracking", []Option{WithConfig(Config{PeripheralMultiplier: 1, FocusMultiplier: 1, NoEyeTracking: true})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			a := newQuadApp(t, rt, tt.opts...)
			s := a.session(quad)
			rt.SetGaze(yawQuat(0.4), true)

			a.beginFrame(s)
			p, _ := a.layer().FrameParameters(s)
			if p.Gaze != foveation.CenterGaze() || p.Active {
				t.Errorf("frame parameters = %+v", p)
			}
			if rt.LiveSpaces() != 0 || rt.CallCount(xr.CmdLocateSpace) != 0 {
				t.Error("fixed gaze used the runtime's eye tracker")
			}
		})
	}
}

func TestCustomGazeSource(t *testing.T) {
	src := &scriptedGaze{gaze: foveation.Gaze{Direction: xr.Vector3f{X: 0.1, Z: -1}, Tracked: true}}
	reg := gpucontext.NewRegistry[GazeSource]()
	reg.Register("scripted", func() GazeSource { return src })

	rt := newRuntime(t)
	a := newQuadApp(t, rt,
		WithGazeSources(reg),
		WithGazeSource("scripted"),
		WithConfig(focusConfig()))
	s := a.session(quad)
	if src.starts != 1 || src.session != s {
		t.Errorf("starts = %d, session = %#x", src.starts, uint64(src.session))
	}

	a.beginFrame(s)
	p, _ := a.layer().FrameParameters(s)
	if p.Gaze != src.gaze || !p.Active {
		t.Errorf("frame gaze = %+v", p.Gaze)
	}
	if p.Adjustments[2].Window.AngleRight <= 0.2 {
		t.Errorf("focus window did not follow the gaze: %+v", p.Adjustments[2].Window)
	}

	if err := fn[xr.PFNDestroySession](a, xr.CmdDestroySession)(s); err != nil {
		t.Fatal(err)
	}
	// One stop when the session began, one when it was destroyed.
	if src.stops != 2 {
		t.Errorf("stops = %d, want 2", src.stops)
	}
}

func TestUnknownGazeSourceFallsBack(t *testing.T) {
	rt := newRuntime(t)
	a := newQuadApp(t, rt, WithGazeSource("no-such-source"))
	if _, ok := a.layer().newGazeSource().(*eyeTrackerGaze); !ok {
		t.Error("unknown source did not fall back to the best one")
	}

	empty := gpucontext.NewRegistry[GazeSource]()
	rt2 := newRuntime(t)
	b := newQuadApp(t, rt2, WithGazeSources(empty))
	if _, ok := b.layer().newGazeSource().(fixedGaze); !ok {
		t.Error("empty registry did not fall back to the fixed gaze")
	}
}
