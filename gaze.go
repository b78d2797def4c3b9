package xrfoveated

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/xr"
)

// Registered gaze source names, best first.
const (
	GazeSourceEyeTracker = "eye-tracker"
	GazeSourceFixed      = "fixed"
)

// SessionContext gives a gaze source access to the runtime on behalf of one
// session.
type SessionContext struct {
	Session              xr.Session
	CreateReferenceSpace xr.PFNCreateReferenceSpace
	LocateSpace          xr.PFNLocateSpace
	DestroySpace         xr.PFNDestroySpace
}

// GazeSource produces gaze samples for one session.
//
// Start is called when the session begins (again on every begin), Stop when
// it is destroyed or restarted. Sample may be called from any thread between
// them.
type GazeSource interface {
	Start(ctx *SessionContext) error
	Sample(t xr.Time) (foveation.Gaze, error)
	Stop()
}

var errGazeNotStarted = errors.New("xrfoveated: gaze source not started")

// NewGazeRegistry returns a registry with the built-in gaze sources,
// preferring the eye tracker.
func NewGazeRegistry() *gpucontext.Registry[GazeSource] {
	r := gpucontext.NewRegistry[GazeSource](
		gpucontext.WithPriority(GazeSourceEyeTracker, GazeSourceFixed),
	)
	r.Register(GazeSourceEyeTracker, func() GazeSource { return &eyeTrackerGaze{} })
	r.Register(GazeSourceFixed, func() GazeSource { return fixedGaze{} })
	return r
}

// fixedGaze always looks straight ahead.
type fixedGaze struct{}

func (fixedGaze) Start(*SessionContext) error { return nil }
func (fixedGaze) Stop()                       {}

func (fixedGaze) Sample(xr.Time) (foveation.Gaze, error) {
	return foveation.CenterGaze(), nil
}

// eyeTrackerGaze locates the runtime's combined eye gaze space in view
// space. The two reference spaces are created on the first sample.
type eyeTrackerGaze struct {
	mu        sync.Mutex
	ctx       *SessionContext
	viewSpace xr.Space
	gazeSpace xr.Space
}

func (g *eyeTrackerGaze) Start(ctx *SessionContext) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctx = ctx
	return nil
}

func (g *eyeTrackerGaze) Sample(t xr.Time) (foveation.Gaze, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ctx == nil {
		return foveation.CenterGaze(), errGazeNotStarted
	}
	if err := g.createSpaces(); err != nil {
		return foveation.CenterGaze(), err
	}

	var loc xr.SpaceLocation
	if err := g.ctx.LocateSpace(g.gazeSpace, g.viewSpace, t, &loc); xr.Failed(err) {
		return foveation.CenterGaze(), fmt.Errorf("xrfoveated: locate gaze: %w", err)
	}
	if loc.Flags&xr.SpaceLocationOrientationTracked == 0 {
		return foveation.CenterGaze(), nil
	}
	return foveation.Gaze{
		Direction: loc.Pose.Orientation.Rotate(xr.Vector3f{Z: -1}),
		Tracked:   true,
	}, nil
}

// createSpaces creates the view and gaze spaces unless they exist.
func (g *eyeTrackerGaze) createSpaces() error {
	if g.gazeSpace != xr.NullHandle {
		return nil
	}
	if g.viewSpace == xr.NullHandle {
		s, err := g.ctx.CreateReferenceSpace(g.ctx.Session, &xr.ReferenceSpaceCreateInfo{
			ReferenceSpaceType:   xr.ReferenceSpaceTypeView,
			PoseInReferenceSpace: xr.IdentityPose(),
		})
		if xr.Failed(err) {
			return fmt.Errorf("xrfoveated: create view space: %w", err)
		}
		g.viewSpace = s
	}
	s, err := g.ctx.CreateReferenceSpace(g.ctx.Session, &xr.ReferenceSpaceCreateInfo{
		ReferenceSpaceType:   xr.ReferenceSpaceTypeCombinedEyeVarjo,
		PoseInReferenceSpace: xr.IdentityPose(),
	})
	if xr.Failed(err) {
		return fmt.Errorf("xrfoveated: create gaze space: %w", err)
	}
	g.gazeSpace = s
	return nil
}

func (g *eyeTrackerGaze) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ctx != nil {
		for _, s := range []xr.Space{g.gazeSpace, g.viewSpace} {
			if s != xr.NullHandle {
				_ = g.ctx.DestroySpace(s)
			}
		}
	}
	g.viewSpace, g.gazeSpace = xr.NullHandle, xr.NullHandle
	g.ctx = nil
}
