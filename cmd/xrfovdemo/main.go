// Command xrfovdemo drives the foveated rendering layer against the
// simulated runtime and prints what the layer changes on every frame.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xrfoveated"
	"github.com/gogpu/xrfoveated/internal/simrt"
	"github.com/gogpu/xrfoveated/manifest"
	"github.com/gogpu/xrfoveated/xr"
)

func main() {
	var (
		frames  = flag.Int("frames", 10, "number of frames to render")
		config  = flag.String("config", "", "layer configuration file")
		stereo  = flag.Bool("stereo", false, "render stereo views instead of quad views")
		sweep   = flag.Float64("sweep", 20, "gaze sweep amplitude in degrees")
		verbose = flag.Bool("v", false, "log every intercepted call")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	d := demo{
		log:    log,
		frames: *frames,
		stereo: *stereo,
		sweep:  *sweep * math.Pi / 180,
	}
	opts := []xrfoveated.Option{xrfoveated.WithLogger(log)}
	if *config != "" {
		opts = append(opts, xrfoveated.WithConfigPaths(*config))
	}
	if d.stereo {
		opts = append(opts, xrfoveated.WithViewConfigurations(xr.ViewConfigurationTypePrimaryStereo))
	}

	if err := d.run(opts); err != nil {
		log.Error("xrfovdemo failed", "err", err)
		os.Exit(1)
	}
}

type demo struct {
	log    *slog.Logger
	frames int
	stereo bool
	sweep  float64

	rt       *simrt.Runtime
	gipa     xr.PFNGetInstanceProcAddr
	instance xr.Instance
}

// proc resolves name through the layer and asserts its function type.
func proc[F any](d *demo, name xr.Command) (F, error) {
	var zero F
	p, err := d.gipa(d.instance, name)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	f, ok := p.(F)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected type %T", name, p)
	}
	return f, nil
}

func (d *demo) viewType() xr.ViewConfigurationType {
	if d.stereo {
		return xr.ViewConfigurationTypePrimaryStereo
	}
	return xr.ViewConfigurationTypePrimaryQuadVarjo
}

func (d *demo) run(opts []xrfoveated.Option) error {
	rt, err := simrt.New()
	if err != nil {
		return fmt.Errorf("simulated runtime: %w", err)
	}
	defer rt.Close()
	d.rt = rt

	entry := xrfoveated.NewEntry(opts...)
	var req xr.NegotiateAPILayerRequest
	err = entry.Negotiate(&xr.NegotiateLoaderInfo{
		MinInterfaceVersion: xr.CurrentLoaderAPILayerVersion,
		MaxInterfaceVersion: xr.CurrentLoaderAPILayerVersion,
		MinAPIVersion:       xr.CurrentAPIVersion,
		MaxAPIVersion:       xr.CurrentAPIVersion,
	}, manifest.Name, &req)
	if err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}
	d.gipa = req.GetInstanceProcAddr

	var exts []string
	if !d.stereo {
		exts = []string{xr.ExtensionVarjoQuadViews}
	}
	d.instance, err = req.CreateAPILayerInstance(&xr.InstanceCreateInfo{
		ApplicationInfo: xr.ApplicationInfo{
			ApplicationName: "xrfovdemo",
			EngineName:      "gogpu",
			APIVersion:      xr.CurrentAPIVersion,
		},
		EnabledExtensionNames: exts,
	}, &xr.APILayerCreateInfo{NextInfo: rt.Link(manifest.Name)})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	destroyInstance, err := proc[xr.PFNDestroyInstance](d, xr.CmdDestroyInstance)
	if err != nil {
		return err
	}
	defer func() {
		if err := destroyInstance(d.instance); err != nil {
			d.log.Warn("xrDestroyInstance failed", "err", err)
		}
	}()

	if l := entry.Layer(); l != nil {
		for _, cmd := range manifest.Full().Overrides {
			d.log.Debug("function", "name", cmd, "intercepted", l.Intercepted(cmd))
		}
	}

	views, err := d.enumerateViews()
	if err != nil {
		return err
	}
	s, err := d.beginSession()
	if err != nil {
		return err
	}
	swapchains, err := d.createSwapchains(s, views)
	if err != nil {
		return err
	}

	for i := range d.frames {
		if err := d.frame(entry, s, swapchains, i); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return d.endSession(s)
}

func (d *demo) enumerateViews() ([]xr.ViewConfigurationView, error) {
	enumerate, err := proc[xr.PFNEnumerateViewConfigurationViews](d, xr.CmdEnumerateViewConfigurationViews)
	if err != nil {
		return nil, err
	}
	n, err := enumerate(d.instance, simrt.HeadMountedSystem, d.viewType(), nil)
	if err != nil {
		return nil, fmt.Errorf("view count: %w", err)
	}
	views := make([]xr.ViewConfigurationView, n)
	if _, err := enumerate(d.instance, simrt.HeadMountedSystem, d.viewType(), views); err != nil {
		return nil, fmt.Errorf("views: %w", err)
	}
	for i, v := range views {
		d.log.Info("view", "index", i,
			"width", v.RecommendedImageRectWidth, "height", v.RecommendedImageRectHeight,
			"maxWidth", v.MaxImageRectWidth, "maxHeight", v.MaxImageRectHeight)
	}
	return views, nil
}

func (d *demo) beginSession() (xr.Session, error) {
	create, err := proc[xr.PFNCreateSession](d, xr.CmdCreateSession)
	if err != nil {
		return xr.NullHandle, err
	}
	begin, err := proc[xr.PFNBeginSession](d, xr.CmdBeginSession)
	if err != nil {
		return xr.NullHandle, err
	}
	s, err := create(d.instance, &xr.SessionCreateInfo{
		SystemID: simrt.HeadMountedSystem,
		Graphics: d.rt.Graphics(),
	})
	if err != nil {
		return xr.NullHandle, fmt.Errorf("create session: %w", err)
	}
	if err := begin(s, &xr.SessionBeginInfo{PrimaryViewConfigurationType: d.viewType()}); err != nil {
		return s, fmt.Errorf("begin session: %w", err)
	}
	return s, nil
}

func (d *demo) endSession(s xr.Session) error {
	end, err := proc[xr.PFNEndSession](d, xr.CmdEndSession)
	if err != nil {
		return err
	}
	destroy, err := proc[xr.PFNDestroySession](d, xr.CmdDestroySession)
	if err != nil {
		return err
	}
	if err := end(s); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return destroy(s)
}

// viewSwapchain is the swapchain one view renders into.
type viewSwapchain struct {
	handle xr.Swapchain
	width  uint32
	height uint32
}

func (d *demo) createSwapchains(s xr.Session, views []xr.ViewConfigurationView) ([]viewSwapchain, error) {
	create, err := proc[xr.PFNCreateSwapchain](d, xr.CmdCreateSwapchain)
	if err != nil {
		return nil, err
	}
	out := make([]viewSwapchain, len(views))
	for i, v := range views {
		sc, err := create(s, &xr.SwapchainCreateInfo{
			Usage:       gputypes.TextureUsageRenderAttachment,
			Format:      gputypes.TextureFormatRGBA8UnormSrgb,
			SampleCount: 1,
			Size: gputypes.Extent3D{
				Width:              v.RecommendedImageRectWidth,
				Height:             v.RecommendedImageRectHeight,
				DepthOrArrayLayers: 1,
			},
			FaceCount: 1,
			MipCount:  1,
		})
		if err != nil {
			return nil, fmt.Errorf("swapchain for view %d: %w", i, err)
		}
		info, _ := d.rt.Swapchain(sc)
		out[i] = viewSwapchain{handle: sc, width: info.Size.Width, height: info.Size.Height}
		d.log.Info("swapchain", "view", i, "width", info.Size.Width, "height", info.Size.Height)
	}
	return out, nil
}

// frame renders frame i with the gaze swept horizontally across the display.
func (d *demo) frame(entry *xrfoveated.Entry, s xr.Session, swapchains []viewSwapchain, i int) error {
	waitFrame, err := proc[xr.PFNWaitFrame](d, xr.CmdWaitFrame)
	if err != nil {
		return err
	}
	beginFrame, err := proc[xr.PFNBeginFrame](d, xr.CmdBeginFrame)
	if err != nil {
		return err
	}
	locateViews, err := proc[xr.PFNLocateViews](d, xr.CmdLocateViews)
	if err != nil {
		return err
	}
	endFrame, err := proc[xr.PFNEndFrame](d, xr.CmdEndFrame)
	if err != nil {
		return err
	}

	yaw := d.sweep * math.Sin(float64(i)*math.Pi/8)
	d.rt.SetGaze(xr.Quaternionf{Y: float32(math.Sin(yaw / 2)), W: float32(math.Cos(yaw / 2))}, true)

	var state xr.FrameState
	if err := waitFrame(s, &xr.FrameWaitInfo{}, &state); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	if err := beginFrame(s, &xr.FrameBeginInfo{}); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	views := make([]xr.View, len(swapchains))
	var viewState xr.ViewState
	n, err := locateViews(s, &xr.ViewLocateInfo{
		ViewConfigurationType: d.viewType(),
		DisplayTime:           state.PredictedDisplayTime,
	}, &viewState, views)
	if err != nil {
		return fmt.Errorf("locate views: %w", err)
	}

	layer := &xr.CompositionLayerProjection{}
	for v := range min(int(n), len(swapchains)) {
		sc := swapchains[v]
		if err := d.render(sc.handle); err != nil {
			return fmt.Errorf("view %d: %w", v, err)
		}
		layer.Views = append(layer.Views, xr.CompositionLayerProjectionView{
			Pose: views[v].Pose,
			Fov:  views[v].Fov,
			SubImage: xr.SwapchainSubImage{
				Swapchain: sc.handle,
				ImageRect: xr.Rect2Di{Extent: xr.Extent2Di{Width: int32(sc.width), Height: int32(sc.height)}},
			},
		})
	}

	if l := entry.Layer(); l != nil {
		if p, ok := l.FrameParameters(s); ok {
			gy, gp := p.Gaze.Angles()
			d.log.Info("frame", "index", i,
				"displayTime", int64(p.DisplayTime),
				"gazeYaw", fmt.Sprintf("%.3f", gy), "gazePitch", fmt.Sprintf("%.3f", gp),
				"foveated", p.Active)
			for v, adj := range p.Adjustments {
				if adj.Window != (xr.Fovf{}) && v < int(n) {
					f := views[v].Fov
					d.log.Info("focus view", "index", v,
						"left", fmt.Sprintf("%.3f", f.AngleLeft), "right", fmt.Sprintf("%.3f", f.AngleRight),
						"up", fmt.Sprintf("%.3f", f.AngleUp), "down", fmt.Sprintf("%.3f", f.AngleDown))
				}
			}
		}
	}

	return endFrame(s, &xr.FrameEndInfo{
		DisplayTime: state.PredictedDisplayTime,
		Layers:      []xr.CompositionLayer{layer},
	})
}

// render acquires, waits for and releases one image of sc.
func (d *demo) render(sc xr.Swapchain) error {
	acquire, err := proc[xr.PFNAcquireSwapchainImage](d, xr.CmdAcquireSwapchainImage)
	if err != nil {
		return err
	}
	wait, err := proc[xr.PFNWaitSwapchainImage](d, xr.CmdWaitSwapchainImage)
	if err != nil {
		return err
	}
	release, err := proc[xr.PFNReleaseSwapchainImage](d, xr.CmdReleaseSwapchainImage)
	if err != nil {
		return err
	}

	index, err := acquire(sc, &xr.SwapchainImageAcquireInfo{})
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	if err := wait(sc, &xr.SwapchainImageWaitInfo{Timeout: xr.InfiniteDuration}); err != nil {
		return fmt.Errorf("wait image %d: %w", index, err)
	}
	d.log.Debug("image rendered", "swapchain", uint64(sc), "index", index)
	return release(sc, &xr.SwapchainImageReleaseInfo{})
}
