package xrfoveated

import (
	"slices"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/xr"
)

// framePhase is the per-session frame cycle state.
type framePhase uint8

const (
	frameIdle framePhase = iota
	frameWaiting
	frameInFrame
)

func (p framePhase) String() string {
	switch p {
	case frameIdle:
		return "Idle"
	case frameWaiting:
		return "WaitingFrame"
	case frameInFrame:
		return "InFrame"
	default:
		return "Unknown"
	}
}

// FrameParameters are the foveation parameters of one frame. They are fixed
// by xrWaitFrame and used unchanged by every xrLocateViews of that frame.
type FrameParameters struct {
	DisplayTime       xr.Time
	ViewConfiguration xr.ViewConfigurationType
	Gaze              foveation.Gaze

	// Active is true when the runtime was asked for gaze-driven foveation.
	Active bool

	// Adjustments has one entry per view of ViewConfiguration, or none when
	// that configuration is not foveated.
	Adjustments []foveation.Adjustment
}

// frameCycle is guarded by the owning session's mutex. The mutex is never
// held across a runtime call: pending marks a call in progress instead.
type frameCycle struct {
	phase           framePhase
	pending         bool
	current         *FrameParameters
	lastDisplayTime xr.Time
}

func (f *frameCycle) reset() {
	f.phase = frameIdle
	f.current = nil
}

// reserveFrame claims the frame cycle for a call valid in phase want.
func (s *session) reserveFrame(want framePhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame.pending || s.frame.phase != want {
		return xr.ErrorCallOrderInvalid
	}
	s.frame.pending = true
	return nil
}

// finishFrame releases the frame cycle, moving to phase to on success.
func (s *session) finishFrame(err error, to framePhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame.pending = false
	if xr.Failed(err) {
		return
	}
	s.frame.phase = to
	if to == frameIdle {
		s.frame.current = nil
	}
}

// FrameParameters returns the parameters of the frame session h is in, if
// any.
func (l *Layer) FrameParameters(h xr.Session) (FrameParameters, bool) {
	s, ok := l.sessions.Get(h)
	if !ok {
		return FrameParameters{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame.current == nil {
		return FrameParameters{}, false
	}
	p := *s.frame.current
	p.Adjustments = slices.Clone(p.Adjustments)
	return p, true
}

// frameParameters samples gaze for display time t and computes the
// adjustments of every view of the session's configuration.
func (l *Layer) frameParameters(s *session, t xr.Time) *FrameParameters {
	vc := s.ViewConfiguration()
	p := &FrameParameters{DisplayTime: t, ViewConfiguration: vc, Gaze: foveation.CenterGaze()}
	if !l.foveates(vc) {
		return p
	}

	g, err := s.gaze.Sample(t)
	if err != nil {
		l.log.Warn("xrfoveated: gaze sampling failed", "session", uint64(s.handle), "err", err)
		g = foveation.CenterGaze()
	}
	p.Gaze = g
	p.Active = g.Tracked && !l.config.NoEyeTracking && l.foveationSupported

	var geometry []foveation.ViewGeometry
	if o := l.views.get(s.system, vc); o != nil {
		geometry = o.geometry()
	} else {
		geometry = make([]foveation.ViewGeometry, viewCount(vc))
	}
	p.Adjustments = l.adjust(vc, g, geometry)
	return p
}

// viewCount returns the number of views of a known configuration type.
func viewCount(typ xr.ViewConfigurationType) int {
	switch typ {
	case xr.ViewConfigurationTypePrimaryMono:
		return 1
	case xr.ViewConfigurationTypePrimaryStereo:
		return 2
	case xr.ViewConfigurationTypePrimaryQuadVarjo:
		return 4
	default:
		return 0
	}
}

// waitFrame forwards, keeps the predicted display time strictly increasing
// and fixes the frame's foveation parameters.
func (l *Layer) waitFrame(h xr.Session, info *xr.FrameWaitInfo, state *xr.FrameState) error {
	if state == nil {
		return xr.ErrorValidationFailure
	}
	s, err := l.lookupSession(h)
	if err != nil {
		return err
	}
	if err := s.reserveFrame(frameIdle); err != nil {
		return err
	}

	err = l.next.WaitFrame()(h, info, state)
	if xr.Failed(err) {
		s.finishFrame(err, frameIdle)
		return err
	}

	s.mu.Lock()
	if state.PredictedDisplayTime <= s.frame.lastDisplayTime {
		state.PredictedDisplayTime = s.frame.lastDisplayTime + 1
	}
	s.frame.lastDisplayTime = state.PredictedDisplayTime
	s.mu.Unlock()

	p := l.frameParameters(s, state.PredictedDisplayTime)

	s.mu.Lock()
	s.frame.current = p
	s.frame.phase = frameWaiting
	s.frame.pending = false
	s.mu.Unlock()

	l.log.Debug("xrfoveated: frame waited", "session", uint64(h),
		"displayTime", int64(state.PredictedDisplayTime), "gazeTracked", p.Gaze.Tracked)
	return err
}

func (l *Layer) beginFrame(h xr.Session, info *xr.FrameBeginInfo) error {
	s, err := l.lookupSession(h)
	if err != nil {
		return err
	}
	if err := s.reserveFrame(frameWaiting); err != nil {
		return err
	}

	err = l.next.BeginFrame()(h, info)
	s.finishFrame(err, frameInFrame)
	return err
}

// locateViews requests runtime foveation for quad views and applies the
// frame's focus windows to the returned fields of view.
func (l *Layer) locateViews(h xr.Session, info *xr.ViewLocateInfo, state *xr.ViewState, views []xr.View) (uint32, error) {
	if info == nil || state == nil {
		return 0, xr.ErrorValidationFailure
	}

	var p *FrameParameters
	if l.lifecycle {
		s, err := l.lookupSession(h)
		if err != nil {
			return 0, err
		}
		s.mu.Lock()
		inFrame := s.frame.phase == frameInFrame && !s.frame.pending
		p = s.frame.current
		s.mu.Unlock()
		if !inFrame {
			return 0, xr.ErrorCallOrderInvalid
		}
	} else if s, ok := l.sessions.Get(h); ok {
		// Without frame interception the parameters are sampled per call.
		p = l.frameParameters(s, info.DisplayTime)
	}

	local := *info
	if info.ViewConfigurationType == xr.ViewConfigurationTypePrimaryQuadVarjo && l.foveates(info.ViewConfigurationType) && l.foveationSupported {
		local.FoveatedRendering = &xr.ViewLocateFoveatedRendering{
			FoveatedRenderingActive: p != nil && p.Active,
		}
	}

	n, err := l.next.LocateViews()(h, &local, state, views)
	if xr.Failed(err) || p == nil || info.ViewConfigurationType != p.ViewConfiguration {
		return n, err
	}
	for i := range min(int(n), len(views), len(p.Adjustments)) {
		views[i].Fov = p.Adjustments[i].ApplyFov(views[i].Fov)
	}
	return n, err
}

// endFrame validates the submitted layers, forwards and closes the frame.
func (l *Layer) endFrame(h xr.Session, info *xr.FrameEndInfo) error {
	if info == nil {
		return xr.ErrorValidationFailure
	}
	s, err := l.lookupSession(h)
	if err != nil {
		return err
	}
	if err := s.reserveFrame(frameInFrame); err != nil {
		return err
	}

	if err := l.validateLayers(info.Layers); err != nil {
		s.finishFrame(err, frameInFrame)
		return err
	}

	err = l.next.EndFrame()(h, info)
	s.finishFrame(err, frameIdle)
	return err
}

// validateLayers rejects nil layers. Swapchains the layer does not track,
// such as ones created through extensions it does not intercept, are left
// to the runtime to judge.
func (l *Layer) validateLayers(layers []xr.CompositionLayer) error {
	for _, layer := range layers {
		var subs []xr.SwapchainSubImage
		switch v := layer.(type) {
		case nil:
			return xr.ErrorLayerInvalid
		case *xr.CompositionLayerProjection:
			if v == nil {
				return xr.ErrorLayerInvalid
			}
			for _, view := range v.Views {
				subs = append(subs, view.SubImage)
			}
		case *xr.CompositionLayerQuad:
			if v == nil {
				return xr.ErrorLayerInvalid
			}
			subs = append(subs, v.SubImage)
		}
		for _, sub := range subs {
			if _, ok := l.swapchains.Get(sub.Swapchain); !ok {
				l.log.Debug("xrfoveated: layer references an untracked swapchain", "swapchain", uint64(sub.Swapchain))
			}
		}
	}
	return nil
}
