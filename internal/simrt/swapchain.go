package simrt

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrfoveated/xr"
)

func (r *Runtime) createSwapchain(h xr.Session, info *xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdCreateSwapchain); err != nil {
		return xr.NullHandle, err
	}
	if _, ok := r.sessions[h]; !ok {
		return xr.NullHandle, xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.NullHandle, xr.ErrorValidationFailure
	}
	if info.Format == gputypes.TextureFormatUndefined {
		return xr.NullHandle, xr.ErrorSwapchainFormatUnsupported
	}
	if info.Size.Width == 0 || info.Size.Height == 0 ||
		info.Size.Width > maxImageSize || info.Size.Height > maxImageSize {
		return xr.NullHandle, xr.ErrorValidationFailure
	}

	sc := xr.Swapchain(r.newHandle())
	images, err := r.dev.createImages(fmt.Sprintf("swapchain %#x", uint64(sc)), swapchainDesc{
		width:   info.Size.Width,
		height:  info.Size.Height,
		layers:  max(info.Size.DepthOrArrayLayers, 1),
		mips:    max(info.MipCount, 1),
		samples: max(info.SampleCount, 1),
		format:  info.Format,
		usage:   info.Usage,
	}, r.imageCount)
	if err != nil {
		r.log.Debug("simrt: image allocation failed", "err", err)
		return xr.NullHandle, xr.ErrorOutOfMemory
	}

	r.swapchains[sc] = &swapchainState{session: h, info: *info, images: images}
	r.log.Debug("simrt: swapchain created", "swapchain", uint64(sc),
		"width", info.Size.Width, "height", info.Size.Height, "images", len(images))
	return sc, nil
}

func (r *Runtime) destroySwapchain(h xr.Swapchain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdDestroySwapchain); err != nil {
		return err
	}
	sc, ok := r.swapchains[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	r.dev.destroyImages(sc.images)
	delete(r.swapchains, h)
	return nil
}

func (r *Runtime) enumerateSwapchainImages(h xr.Swapchain, images []xr.SwapchainImage) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdEnumerateSwapchainImages); err != nil {
		return 0, err
	}
	sc, ok := r.swapchains[h]
	if !ok {
		return 0, xr.ErrorHandleInvalid
	}
	all := make([]xr.SwapchainImage, len(sc.images))
	for i, img := range sc.images {
		all[i] = xr.SwapchainImage{Texture: img}
	}
	return fill(images, all)
}

// acquireSwapchainImage hands out images in rotation. Every image may be
// acquired before any is released.
func (r *Runtime) acquireSwapchainImage(h xr.Swapchain, _ *xr.SwapchainImageAcquireInfo) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdAcquireSwapchainImage); err != nil {
		return 0, err
	}
	sc, ok := r.swapchains[h]
	if !ok {
		return 0, xr.ErrorHandleInvalid
	}
	if len(sc.acquired)+len(sc.waited) == len(sc.images) {
		return 0, xr.ErrorCallOrderInvalid
	}
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	sc.acquired = append(sc.acquired, index)
	if sc.misreport != nil {
		index, sc.misreport = *sc.misreport, nil
	}
	return index, nil
}

// waitSwapchainImage waits on the oldest acquired image. Images are always
// ready; inject xr.TimeoutExpired with FailNext to simulate a slow GPU.
func (r *Runtime) waitSwapchainImage(h xr.Swapchain, info *xr.SwapchainImageWaitInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdWaitSwapchainImage); err != nil {
		return err
	}
	sc, ok := r.swapchains[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if info == nil {
		return xr.ErrorValidationFailure
	}
	wait := *info
	r.lastWait = &wait
	if len(sc.acquired) == 0 {
		return xr.ErrorCallOrderInvalid
	}
	sc.waited = append(sc.waited, sc.acquired[0])
	sc.acquired = sc.acquired[1:]
	return nil
}

// releaseSwapchainImage releases the oldest waited image.
func (r *Runtime) releaseSwapchainImage(h xr.Swapchain, _ *xr.SwapchainImageReleaseInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(xr.CmdReleaseSwapchainImage); err != nil {
		return err
	}
	sc, ok := r.swapchains[h]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if len(sc.waited) == 0 {
		return xr.ErrorCallOrderInvalid
	}
	sc.waited = sc.waited[1:]
	return nil
}
