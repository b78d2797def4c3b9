package simrt

import (
	"github.com/gogpu/xrfoveated/xr"
)

const (
	maxImageSize = 4096
	maxLayers    = 16
)

var (
	peripheralFov = xr.Fovf{AngleLeft: -0.9, AngleRight: 0.9, AngleUp: 0.85, AngleDown: -0.85}
	focusFov      = xr.Fovf{AngleLeft: -0.35, AngleRight: 0.35, AngleUp: 0.35, AngleDown: -0.35}
)

// viewSpec is one view of a view configuration.
type viewSpec struct {
	view xr.ViewConfigurationView
	fov  xr.Fovf
}

func spec(w, h, maxW, maxH uint32, fov xr.Fovf) viewSpec {
	return viewSpec{
		view: xr.ViewConfigurationView{
			RecommendedImageRectWidth:       w,
			RecommendedImageRectHeight:      h,
			MaxImageRectWidth:               maxW,
			MaxImageRectHeight:              maxH,
			RecommendedSwapchainSampleCount: 1,
			MaxSwapchainSampleCount:         4,
		},
		fov: fov,
	}
}

// viewSpecs returns the views of typ. Quad views need XR_VARJO_quad_views;
// the mono configuration is not supported by the headset.
func viewSpecs(inst *instanceState, typ xr.ViewConfigurationType) ([]viewSpec, error) {
	switch typ {
	case xr.ViewConfigurationTypePrimaryStereo:
		return []viewSpec{
			spec(1400, 1300, 2800, 2600, peripheralFov),
			spec(1400, 1300, 2800, 2600, peripheralFov),
		}, nil
	case xr.ViewConfigurationTypePrimaryQuadVarjo:
		if !inst.has(xr.ExtensionVarjoQuadViews) {
			return nil, xr.ErrorViewConfigurationTypeUnsupported
		}
		return []viewSpec{
			spec(1000, 900, 2000, 1800, peripheralFov),
			spec(1000, 900, 2000, 1800, peripheralFov),
			spec(800, 800, 1000, 1000, focusFov),
			spec(800, 800, 1000, 1000, focusFov),
		}, nil
	default:
		return nil, xr.ErrorViewConfigurationTypeUnsupported
	}
}

func (r *Runtime) enumerateViewConfigurationViews(instance xr.Instance, system xr.SystemID, typ xr.ViewConfigurationType, views []xr.ViewConfigurationView) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdEnumerateViewConfigurationViews); err != nil {
		return 0, err
	}
	inst, ok := r.instances[instance]
	if !ok {
		return 0, xr.ErrorHandleInvalid
	}
	if system != HeadMountedSystem {
		return 0, xr.ErrorSystemInvalid
	}
	specs, err := viewSpecs(inst, typ)
	if err != nil {
		return 0, err
	}

	n := uint32(len(specs))
	if len(views) == 0 {
		return n, nil
	}
	if len(views) < len(specs) {
		return n, xr.ErrorSizeInsufficient
	}
	r.lastRequest = make([]*xr.FoveatedViewConfigurationView, len(specs))
	for i, s := range specs {
		if req := views[i].Foveated; req != nil {
			c := *req
			r.lastRequest[i] = &c
		}
		chained := views[i].Foveated
		views[i] = s.view
		views[i].Foveated = chained
	}
	return n, nil
}

func (r *Runtime) createSession(instance xr.Instance, info *xr.SessionCreateInfo) (xr.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdCreateSession); err != nil {
		return xr.NullHandle, err
	}
	if _, ok := r.instances[instance]; !ok {
		return xr.NullHandle, xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.NullHandle, xr.ErrorValidationFailure
	}
	if info.SystemID != HeadMountedSystem {
		return xr.NullHandle, xr.ErrorSystemInvalid
	}

	h := xr.Session(r.newHandle())
	r.sessions[h] = &sessionState{instance: instance}
	r.log.Debug("simrt: session created", "session", uint64(h))
	return h, nil
}

func (r *Runtime) destroySession(h xr.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdDestroySession); err != nil {
		return err
	}
	if _, ok := r.sessions[h]; !ok {
		return xr.ErrorHandleInvalid
	}
	r.dropSession(h)
	return nil
}

// dropSession destroys a session with its swapchains and spaces. r.mu must
// be held.
func (r *Runtime) dropSession(h xr.Session) {
	for sh, sc := range r.swapchains {
		if sc.session == h {
			r.dev.destroyImages(sc.images)
			delete(r.swapchains, sh)
		}
	}
	for sp, s := range r.spaces {
		if s.session == h {
			delete(r.spaces, sp)
		}
	}
	delete(r.sessions, h)
	r.log.Debug("simrt: session destroyed", "session", uint64(h))
}

func (r *Runtime) beginSession(h xr.Session, info *xr.SessionBeginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdBeginSession); err != nil {
		return err
	}
	s, ok := r.sessions[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.ErrorValidationFailure
	}
	if s.running {
		return xr.ErrorSessionRunning
	}
	if _, err := viewSpecs(r.instances[s.instance], info.PrimaryViewConfigurationType); err != nil {
		return err
	}
	s.running = true
	return nil
}

func (r *Runtime) endSession(h xr.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdEndSession); err != nil {
		return err
	}
	s, ok := r.sessions[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if !s.running {
		return xr.ErrorSessionNotRunning
	}
	s.running = false
	s.waited, s.begun = false, false
	return nil
}

func (r *Runtime) createReferenceSpace(h xr.Session, info *xr.ReferenceSpaceCreateInfo) (xr.Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdCreateReferenceSpace); err != nil {
		return xr.NullHandle, err
	}
	s, ok := r.sessions[h]
	if !ok {
		return xr.NullHandle, xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.NullHandle, xr.ErrorValidationFailure
	}
	switch info.ReferenceSpaceType {
	case xr.ReferenceSpaceTypeView, xr.ReferenceSpaceTypeLocal, xr.ReferenceSpaceTypeStage:
	case xr.ReferenceSpaceTypeCombinedEyeVarjo:
		if !r.instances[s.instance].has(xr.ExtensionVarjoFoveatedRendering) {
			return xr.NullHandle, xr.ErrorReferenceSpaceUnsupported
		}
	default:
		return xr.NullHandle, xr.ErrorReferenceSpaceUnsupported
	}

	sp := xr.Space(r.newHandle())
	r.spaces[sp] = &spaceState{session: h, typ: info.ReferenceSpaceType, pose: info.PoseInReferenceSpace}
	return sp, nil
}

// orientation returns the orientation of a space relative to the view. Only
// the gaze space rotates.
func (r *Runtime) orientation(s *spaceState) xr.Quaternionf {
	q := s.pose.Orientation
	if s.typ == xr.ReferenceSpaceTypeCombinedEyeVarjo {
		q = mul(r.gaze, q)
	}
	return q
}

func (r *Runtime) locateSpace(space, baseSpace xr.Space, _ xr.Time, location *xr.SpaceLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdLocateSpace); err != nil {
		return err
	}
	s, ok := r.spaces[space]
	base, baseOK := r.spaces[baseSpace]
	if !ok || !baseOK {
		return xr.ErrorHandleInvalid
	}
	if location == nil {
		return xr.ErrorValidationFailure
	}

	location.Pose = xr.Posef{Orientation: mul(conj(r.orientation(base)), r.orientation(s))}
	location.Flags = xr.SpaceLocationOrientationValid | xr.SpaceLocationPositionValid |
		xr.SpaceLocationOrientationTracked | xr.SpaceLocationPositionTracked
	gazeInvolved := s.typ == xr.ReferenceSpaceTypeCombinedEyeVarjo || base.typ == xr.ReferenceSpaceTypeCombinedEyeVarjo
	if gazeInvolved && !r.gazeTracked {
		location.Flags &^= xr.SpaceLocationOrientationTracked | xr.SpaceLocationPositionTracked
	}
	return nil
}

func (r *Runtime) destroySpace(space xr.Space) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdDestroySpace); err != nil {
		return err
	}
	if _, ok := r.spaces[space]; !ok {
		return xr.ErrorHandleInvalid
	}
	delete(r.spaces, space)
	return nil
}

func mul(a, b xr.Quaternionf) xr.Quaternionf {
	return xr.Quaternionf{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

func conj(q xr.Quaternionf) xr.Quaternionf {
	return xr.Quaternionf{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

func (r *Runtime) waitFrame(h xr.Session, _ *xr.FrameWaitInfo, state *xr.FrameState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdWaitFrame); err != nil {
		return err
	}
	s, ok := r.sessions[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if state == nil {
		return xr.ErrorValidationFailure
	}
	if !s.running {
		return xr.ErrorSessionNotRunning
	}

	state.PredictedDisplayTime = r.nextDisplay
	state.PredictedDisplayPeriod = r.period
	state.ShouldRender = true
	r.nextDisplay += xr.Time(r.period)
	s.waited = true
	return nil
}

func (r *Runtime) beginFrame(h xr.Session, _ *xr.FrameBeginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdBeginFrame); err != nil {
		return err
	}
	s, ok := r.sessions[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if !s.running {
		return xr.ErrorSessionNotRunning
	}
	if !s.waited {
		return xr.ErrorCallOrderInvalid
	}
	s.waited = false
	s.begun = true
	return nil
}

func (r *Runtime) endFrame(h xr.Session, info *xr.FrameEndInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdEndFrame); err != nil {
		return err
	}
	s, ok := r.sessions[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.ErrorValidationFailure
	}
	if !s.begun {
		return xr.ErrorCallOrderInvalid
	}
	if len(info.Layers) > maxLayers {
		return xr.ErrorLayerLimitExceeded
	}
	for _, layer := range info.Layers {
		if err := r.checkLayer(layer); err != nil {
			return err
		}
	}
	s.begun = false
	s.ended++
	return nil
}

// checkLayer verifies that every swapchain a layer references exists.
// r.mu must be held.
func (r *Runtime) checkLayer(layer xr.CompositionLayer) error {
	var subs []xr.SwapchainSubImage
	switch v := layer.(type) {
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
	default:
		return xr.ErrorLayerInvalid
	}
	for _, sub := range subs {
		if _, ok := r.swapchains[sub.Swapchain]; !ok {
			return xr.ErrorHandleInvalid
		}
	}
	return nil
}

func (r *Runtime) locateViews(h xr.Session, info *xr.ViewLocateInfo, state *xr.ViewState, views []xr.View) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdLocateViews); err != nil {
		return 0, err
	}
	s, ok := r.sessions[h]
	if !ok {
		return 0, xr.ErrorHandleInvalid
	}
	if info == nil || state == nil {
		return 0, xr.ErrorValidationFailure
	}
	if _, ok := r.spaces[info.Space]; !ok && info.Space != xr.NullHandle {
		return 0, xr.ErrorHandleInvalid
	}
	specs, err := viewSpecs(r.instances[s.instance], info.ViewConfigurationType)
	if err != nil {
		return 0, err
	}

	located := *info
	if info.FoveatedRendering != nil {
		c := *info.FoveatedRendering
		located.FoveatedRendering = &c
	}
	r.lastLocate = &located

	out := make([]xr.View, len(specs))
	for i, sp := range specs {
		out[i] = xr.View{Pose: xr.IdentityPose(), Fov: sp.fov}
	}
	n, err := fill(views, out)
	if err == nil && len(views) > 0 {
		state.Flags = xr.ViewStateOrientationValid | xr.ViewStatePositionValid |
			xr.ViewStateOrientationTracked | xr.ViewStatePositionTracked
	}
	return n, err
}
