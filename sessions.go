package xrfoveated

import (
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/xrfoveated/xr"
)

// session is the layer's record of a live session.
//
// Ownership runs from session to swapchain: the session lists the handles
// it owns and the swapchain table holds the records, so a destroyed session
// takes its swapchains' bookkeeping with it.
type session struct {
	handle   xr.Session
	instance xr.Instance
	system   xr.SystemID
	graphics gpucontext.DeviceProvider

	gaze    GazeSource
	gazeCtx *SessionContext

	mu         sync.Mutex
	viewConfig xr.ViewConfigurationType
	running    bool
	closed     bool

	gazeStarted bool

	swapchains map[xr.Swapchain]struct{}
	frame      frameCycle
}

// ViewConfiguration returns the primary view configuration the session was
// begun with, or zero before the first begin.
func (s *session) ViewConfiguration() xr.ViewConfigurationType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewConfig
}

// restartGaze resets the gaze source. Reference spaces it created are
// released and recreated lazily.
func (s *session) restartGaze(l *Layer) {
	s.stopGaze()
	s.startGaze(l)
}

func (s *session) startGaze(l *Layer) {
	s.mu.Lock()
	s.gazeStarted = true
	s.mu.Unlock()
	if err := s.gaze.Start(s.gazeCtx); err != nil {
		l.log.Warn("xrfoveated: gaze source failed to start", "session", uint64(s.handle), "err", err)
	}
}

// stopGaze stops the gaze source and reports whether it was started.
func (s *session) stopGaze() bool {
	s.mu.Lock()
	started := s.gazeStarted
	s.gazeStarted = false
	s.mu.Unlock()
	s.gaze.Stop()
	return started
}

// registerSession records a session the runtime accepted. viewConfig may be
// zero; it is fixed by the first xrBeginSession.
func (l *Layer) registerSession(h xr.Session, system xr.SystemID, viewConfig xr.ViewConfigurationType, graphics gpucontext.DeviceProvider) *session {
	s := &session{
		handle:     h,
		instance:   l.instance,
		system:     system,
		graphics:   graphics,
		gaze:       l.newGazeSource(),
		viewConfig: viewConfig,
		swapchains: make(map[xr.Swapchain]struct{}),
	}
	s.gazeCtx = &SessionContext{
		Session:              h,
		CreateReferenceSpace: l.next.CreateReferenceSpace(),
		LocateSpace:          l.next.LocateSpace(),
		DestroySpace:         l.next.DestroySpace(),
	}

	if !l.sessions.Insert(h, s) {
		l.log.Warn("xrfoveated: runtime reused a live session handle", "session", uint64(h))
		if old, ok := l.sessions.Get(h); ok {
			old.stopGaze()
		}
		l.unregisterSession(h)
		l.sessions.Insert(h, s)
	}
	l.log.Debug("xrfoveated: session registered", "session", uint64(h), "system", uint64(system))
	return s
}

// unregisterSession drops a session and, first, every swapchain it owns.
func (l *Layer) unregisterSession(h xr.Session) {
	s, ok := l.sessions.Get(h)
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	owned := s.swapchains
	s.swapchains = nil
	s.mu.Unlock()

	for sc := range owned {
		l.swapchains.Delete(sc)
	}
	l.sessions.Delete(h)
	l.log.Debug("xrfoveated: session unregistered", "session", uint64(h), "swapchains", len(owned))
}

// lookupSession returns the record of h or xr.ErrorHandleInvalid.
func (l *Layer) lookupSession(h xr.Session) (*session, error) {
	s, ok := l.sessions.Get(h)
	if !ok {
		return nil, xr.ErrorHandleInvalid
	}
	return s, nil
}

func (l *Layer) newGazeSource() GazeSource {
	var g GazeSource
	if l.gazeSource != "" && l.gazeSources.Has(l.gazeSource) {
		g = l.gazeSources.Get(l.gazeSource)
	} else {
		g = l.gazeSources.Best()
	}
	if g == nil {
		g = fixedGaze{}
	}
	return g
}

func (l *Layer) createSession(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	if instance != l.instance {
		return xr.NullHandle, xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.NullHandle, xr.ErrorValidationFailure
	}

	h, err := l.next.CreateSession()(instance, info)
	if xr.Failed(err) {
		return h, err
	}

	l.registerSession(h, info.SystemID, 0, info.Graphics)
	if info.Graphics != nil {
		ai := info.Graphics.AdapterInfo()
		l.log.Info("xrfoveated: session created", "session", uint64(h),
			"adapter", ai.Name, "adapterType", ai.Type.String(), "format", info.Graphics.SurfaceFormat().String())
	} else {
		l.log.Info("xrfoveated: session created", "session", uint64(h))
	}
	return h, err
}

// destroySession releases the layer's own spaces, forwards the call and
// unregisters the session once the runtime no longer knows it. If the
// runtime keeps the session, its gaze source is started again.
func (l *Layer) destroySession(h xr.Session) error {
	s, err := l.lookupSession(h)
	if err != nil {
		return err
	}
	started := s.stopGaze()

	err = l.next.DestroySession()(h)
	if xr.Failed(err) && xr.ResultOf(err) != xr.ErrorHandleInvalid {
		if started {
			s.startGaze(l)
		}
		return err
	}
	l.unregisterSession(h)
	return err
}

func (l *Layer) beginSession(h xr.Session, info *xr.SessionBeginInfo) error {
	if info == nil {
		return xr.ErrorValidationFailure
	}
	s, lookupErr := l.lookupSession(h)
	if lookupErr != nil && l.lifecycle {
		return lookupErr
	}

	err := l.next.BeginSession()(h, info)
	if xr.Failed(err) {
		return err
	}

	if s == nil {
		// Without xrCreateSession interception sessions are learned here.
		s = l.registerSession(h, l.system, info.PrimaryViewConfigurationType, nil)
	}
	s.mu.Lock()
	s.viewConfig = info.PrimaryViewConfigurationType
	s.running = true
	s.mu.Unlock()

	s.restartGaze(l)
	l.log.Info("xrfoveated: session begun", "session", uint64(h),
		"viewConfiguration", info.PrimaryViewConfigurationType.String(),
		"foveated", l.foveates(info.PrimaryViewConfigurationType))
	return err
}

func (l *Layer) endSession(h xr.Session) error {
	s, err := l.lookupSession(h)
	if err != nil {
		return err
	}

	err = l.next.EndSession()(h)
	if xr.Failed(err) {
		return err
	}

	s.mu.Lock()
	s.running = false
	s.frame.reset()
	s.mu.Unlock()
	return err
}
