package xrfoveated

import (
	"slices"
	"sync"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/xr"
)

// swapchainPhase is where a swapchain is in its acquire, wait, release
// cycle. Only one image is in flight at a time.
type swapchainPhase uint8

const (
	phaseIdle swapchainPhase = iota
	phaseAcquired
	phaseWaited
)

// swapchainFoveation is the foveation baked into a swapchain's image size.
// It never changes after creation.
type swapchainFoveation struct {
	viewConfig xr.ViewConfigurationType
	view       int // -1 when the swapchain matches no foveated view
	adjustment foveation.Adjustment
}

// swapchain tracks one swapchain created through the layer.
type swapchain struct {
	handle    xr.Swapchain
	session   *session
	requested xr.SwapchainCreateInfo
	effective xr.SwapchainCreateInfo
	foveation swapchainFoveation
	images    uint32

	mu      sync.Mutex
	phase   swapchainPhase
	pending bool
	index   uint32
	cursor  uint32
}

// begin reserves the swapchain for a call valid in phase want. The runtime
// is called without holding the lock; a concurrent call on the same
// swapchain is an ordering violation.
func (sc *swapchain) begin(want swapchainPhase) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.pending || sc.phase != want {
		return xr.ErrorCallOrderInvalid
	}
	sc.pending = true
	return nil
}

// finish ends a reserved call, moving to phase to if err is a success.
func (sc *swapchain) finish(err error, to swapchainPhase) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.pending = false
	if !xr.Failed(err) {
		sc.phase = to
	}
}

// Next returns the image index the rotation is expected to produce next.
// The runtime's index is authoritative; this is for diagnostics.
func (sc *swapchain) Next() uint32 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.cursor
}

// SwapchainInfo describes a swapchain tracked by the layer.
type SwapchainInfo struct {
	Session xr.Session

	// Requested is what the application asked for, Effective what the
	// runtime received.
	Requested xr.SwapchainCreateInfo
	Effective xr.SwapchainCreateInfo
	Images    uint32

	// View is the index of the foveated view of ViewConfiguration whose
	// size the swapchain matched, or -1. Adjustment was applied to its size.
	ViewConfiguration xr.ViewConfigurationType
	View              int
	Adjustment        foveation.Adjustment
}

// Swapchain returns the description of swapchain h.
func (l *Layer) Swapchain(h xr.Swapchain) (SwapchainInfo, bool) {
	sc, ok := l.swapchains.Get(h)
	if !ok {
		return SwapchainInfo{}, false
	}
	info := SwapchainInfo{
		Requested:         sc.requested,
		Effective:         sc.effective,
		Images:            sc.images,
		ViewConfiguration: sc.foveation.viewConfig,
		View:              sc.foveation.view,
		Adjustment:        sc.foveation.adjustment,
	}
	if sc.session != nil {
		info.Session = sc.session.handle
	}
	return info, true
}

// lookupSwapchain returns the record of h or xr.ErrorHandleInvalid.
func (l *Layer) lookupSwapchain(h xr.Swapchain) (*swapchain, error) {
	sc, ok := l.swapchains.Get(h)
	if !ok {
		return nil, xr.ErrorHandleInvalid
	}
	return sc, nil
}

// adjustSwapchain sizes a swapchain request for foveation. A request whose
// size matches a foveated view's adjusted recommendation is kept; one that
// matches the runtime's unadjusted recommendation is scaled the way the view
// was. Other sizes are left alone. The result never exceeds the view's
// maximum.
func (l *Layer) adjustSwapchain(s *session, info xr.SwapchainCreateInfo) (xr.SwapchainCreateInfo, swapchainFoveation) {
	fov := swapchainFoveation{view: -1, adjustment: foveation.Identity()}

	system := l.system
	types := l.foveated
	if s != nil {
		system = s.system
		if vc := s.ViewConfiguration(); vc != 0 {
			types = []xr.ViewConfigurationType{vc}
		}
	}

	for _, typ := range types {
		if !l.foveates(typ) {
			continue
		}
		o := l.views.get(system, typ)
		if o == nil {
			continue
		}
		i, adjusted := o.match(info.Size.Width, info.Size.Height)
		if i < 0 {
			continue
		}
		fov = swapchainFoveation{viewConfig: typ, view: i, adjustment: o.adjustments[i]}
		limit := o.runtime[i]
		if adjusted {
			info.Size.Width = min(info.Size.Width, limit.MaxImageRectWidth)
			info.Size.Height = min(info.Size.Height, limit.MaxImageRectHeight)
		} else {
			info.Size.Width, info.Size.Height = fov.adjustment.ScaleExtent(
				info.Size.Width, info.Size.Height, limit.MaxImageRectWidth, limit.MaxImageRectHeight)
		}
		break
	}
	return info, fov
}

// createSwapchain forwards a foveation-adjusted request and, on success,
// records the swapchain with its image count.
func (l *Layer) createSwapchain(h xr.Session, info *xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	sc, _, err := l.createTrackedSwapchain(h, info)
	return sc, err
}

func (l *Layer) createTrackedSwapchain(h xr.Session, info *xr.SwapchainCreateInfo) (xr.Swapchain, xr.SwapchainCreateInfo, error) {
	if info == nil {
		return xr.NullHandle, xr.SwapchainCreateInfo{}, xr.ErrorValidationFailure
	}
	s, err := l.lookupSession(h)
	if err != nil && l.lifecycle {
		return xr.NullHandle, xr.SwapchainCreateInfo{}, err
	}

	effective, fov := l.adjustSwapchain(s, *info)
	l.log.Info("xrfoveated: creating swapchain",
		"requestedWidth", info.Size.Width, "requestedHeight", info.Size.Height,
		"width", effective.Size.Width, "height", effective.Size.Height,
		"format", effective.Format.String(), "view", fov.view)

	handle, err := l.next.CreateSwapchain()(h, &effective)
	if xr.Failed(err) || !l.lifecycle {
		return handle, effective, err
	}

	images, eerr := l.countSwapchainImages(handle)
	if xr.Failed(eerr) {
		_ = l.next.DestroySwapchain()(handle)
		return xr.NullHandle, effective, eerr
	}

	rec := &swapchain{
		handle:    handle,
		session:   s,
		requested: *info,
		effective: effective,
		foveation: fov,
		images:    images,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return handle, effective, err
	}
	s.swapchains[handle] = struct{}{}
	s.mu.Unlock()

	l.swapchains.Insert(handle, rec)
	l.log.Debug("xrfoveated: swapchain tracked", "swapchain", uint64(handle), "session", uint64(h), "images", images)
	return handle, effective, err
}

func (l *Layer) countSwapchainImages(h xr.Swapchain) (uint32, error) {
	n, err := l.next.EnumerateSwapchainImages()(h, nil)
	if xr.Failed(err) {
		return 0, err
	}
	if n == 0 {
		return 0, xr.ErrorRuntimeFailure
	}
	return n, nil
}

// enumerateSwapchainImages forwards and checks the count against the one
// recorded at creation.
func (l *Layer) enumerateSwapchainImages(h xr.Swapchain, images []xr.SwapchainImage) (uint32, error) {
	sc, err := l.lookupSwapchain(h)
	if err != nil {
		return 0, err
	}
	n, err := l.next.EnumerateSwapchainImages()(h, images)
	if !xr.Failed(err) && n != sc.images {
		l.log.Warn("xrfoveated: swapchain image count changed",
			"swapchain", uint64(h), "recorded", sc.images, "reported", n)
		return n, xr.ErrorRuntimeFailure
	}
	return n, err
}

func (l *Layer) acquireSwapchainImage(h xr.Swapchain, info *xr.SwapchainImageAcquireInfo) (uint32, error) {
	sc, err := l.lookupSwapchain(h)
	if err != nil {
		return 0, err
	}
	if err := sc.begin(phaseIdle); err != nil {
		return 0, err
	}

	index, err := l.next.AcquireSwapchainImage()(h, info)

	sc.mu.Lock()
	sc.pending = false
	if !xr.Failed(err) {
		if index != sc.cursor {
			l.log.Debug("xrfoveated: image out of rotation", "swapchain", uint64(h), "index", index, "expected", sc.cursor)
		}
		// The runtime holds an image even when it misreports the index, so
		// the application must still wait for and release it.
		sc.phase = phaseAcquired
		sc.index = index
	}
	sc.mu.Unlock()

	if !xr.Failed(err) && index >= sc.images {
		l.log.Warn("xrfoveated: runtime acquired an image out of range",
			"swapchain", uint64(h), "index", index, "images", sc.images)
		return index, xr.ErrorRuntimeFailure
	}
	return index, err
}

// waitSwapchainImage forwards the caller's timeout unchanged. A timed out
// wait leaves the image acquired so the wait can be retried.
func (l *Layer) waitSwapchainImage(h xr.Swapchain, info *xr.SwapchainImageWaitInfo) error {
	sc, err := l.lookupSwapchain(h)
	if err != nil {
		return err
	}
	if err := sc.begin(phaseAcquired); err != nil {
		return err
	}

	err = l.next.WaitSwapchainImage()(h, info)
	to := phaseWaited
	if xr.ResultOf(err) == xr.TimeoutExpired {
		to = phaseAcquired
	}
	sc.finish(err, to)
	return err
}

func (l *Layer) releaseSwapchainImage(h xr.Swapchain, info *xr.SwapchainImageReleaseInfo) error {
	sc, err := l.lookupSwapchain(h)
	if err != nil {
		return err
	}
	if err := sc.begin(phaseWaited); err != nil {
		return err
	}

	err = l.next.ReleaseSwapchainImage()(h, info)

	sc.mu.Lock()
	sc.pending = false
	if !xr.Failed(err) {
		sc.phase = phaseIdle
		sc.cursor = (sc.index + 1) % sc.images
	}
	sc.mu.Unlock()
	return err
}

// destroySwapchain forwards regardless of in-flight images; the runtime
// decides whether that is an error. Bookkeeping is dropped once the runtime
// no longer knows the handle.
func (l *Layer) destroySwapchain(h xr.Swapchain) error {
	sc, err := l.lookupSwapchain(h)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	inFlight := sc.phase != phaseIdle
	sc.mu.Unlock()
	if inFlight {
		l.log.Debug("xrfoveated: destroying swapchain with an image in flight", "swapchain", uint64(h))
	}

	err = l.next.DestroySwapchain()(h)
	if xr.Failed(err) && xr.ResultOf(err) != xr.ErrorHandleInvalid {
		return err
	}

	l.swapchains.Delete(h)
	if s := sc.session; s != nil {
		s.mu.Lock()
		delete(s.swapchains, h)
		s.mu.Unlock()
	}
	return err
}

// SessionSwapchains returns the swapchains tracked for session h, sorted.
func (l *Layer) SessionSwapchains(h xr.Session) []xr.Swapchain {
	s, ok := l.sessions.Get(h)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]xr.Swapchain, 0, len(s.swapchains))
	for sc := range s.swapchains {
		out = append(out, sc)
	}
	slices.Sort(out)
	return out
}
