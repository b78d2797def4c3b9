package xrfoveated

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/xrfoveated/internal/chain"
	"github.com/gogpu/xrfoveated/manifest"
	"github.com/gogpu/xrfoveated/xr"
)

// Entry is the layer's connection to the OpenXR loader: it negotiates the
// interface, creates instances through the rest of the chain and hands out
// the active Layer's functions.
//
// One Entry corresponds to one position in the layer chain and allows a
// single live instance.
type Entry struct {
	opts []Option

	mu       sync.Mutex // serializes instance creation
	creating bool
	active   atomic.Pointer[Layer]
}

// NewEntry returns an entry whose instances are configured by opts.
func NewEntry(opts ...Option) *Entry {
	return &Entry{opts: opts}
}

// options evaluates the entry's options, loading the configuration file
// when paths were given.
func (e *Entry) options() (options, error) {
	o := e.baseOptions()
	if err := o.manifest.Validate(); err != nil {
		return o, err
	}
	if len(o.configPaths) > 0 {
		cfg, path, err := LoadConfig(o.configPaths...)
		switch {
		case err != nil:
			e.logger(&o).Warn("xrfoveated: configuration ignored", "err", err)
		case path != "":
			o.config = cfg
		}
	}
	return o, nil
}

// baseOptions applies the entry's options to the defaults.
func (e *Entry) baseOptions() options {
	o := defaultOptions()
	for _, opt := range e.opts {
		opt(&o)
	}
	return o
}

func (e *Entry) logger(o *options) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return Logger()
}

// Layer returns the layer of the live instance, or nil.
func (e *Entry) Layer() *Layer {
	return e.active.Load()
}

// majorMinor drops the patch number from v.
func majorMinor(v xr.Version) xr.Version {
	return xr.MakeVersion(v.Major(), v.Minor(), 0)
}

// Negotiate implements xrNegotiateLoaderApiLayerInterface. It checks that
// the loader's interface and API version ranges include the versions this
// layer implements and fills req with the layer's entry points.
func (e *Entry) Negotiate(info *xr.NegotiateLoaderInfo, layerName string, req *xr.NegotiateAPILayerRequest) error {
	o := e.baseOptions()
	log := e.logger(&o)

	if layerName != "" && layerName != manifest.Name {
		log.Error("xrfoveated: invalid api layer name", "name", layerName)
		return protocolError(xr.ErrorInitializationFailed, fmt.Errorf("%w: layer name %q", ErrInvalidNegotiation, layerName))
	}

	current := majorMinor(xr.CurrentAPIVersion)
	if info == nil || req == nil ||
		info.MinInterfaceVersion > xr.CurrentLoaderAPILayerVersion ||
		info.MaxInterfaceVersion < xr.CurrentLoaderAPILayerVersion ||
		majorMinor(info.MaxAPIVersion) < current ||
		majorMinor(info.MinAPIVersion) > current {
		log.Error("xrfoveated: loader negotiation failed")
		return protocolError(xr.ErrorInitializationFailed, ErrInvalidNegotiation)
	}

	req.LayerInterfaceVersion = xr.CurrentLoaderAPILayerVersion
	req.LayerAPIVersion = xr.CurrentAPIVersion
	req.GetInstanceProcAddr = e.GetInstanceProcAddr
	req.CreateAPILayerInstance = e.CreateAPILayerInstance

	log.Info("xrfoveated: layer is active", "name", manifest.Name, "version", Version)
	return nil
}

// GetInstanceProcAddr resolves a function of the live instance.
func (e *Entry) GetInstanceProcAddr(instance xr.Instance, name xr.Command) (any, error) {
	l := e.active.Load()
	if l == nil || instance == xr.NullHandle {
		return nil, xr.ErrorHandleInvalid
	}
	return l.GetInstanceProcAddr(instance, name)
}

// CreateAPILayerInstance implements xrCreateApiLayerInstance.
//
// It creates the instance through the next layer, adding the extensions the
// layer needs when the runtime offers them, binds every function the layer
// requires and fails if any is missing. When the application did not enable
// quad views and stereo foveation is not configured the layer bypasses
// itself.
func (e *Entry) CreateAPILayerInstance(info *xr.InstanceCreateInfo, layerInfo *xr.APILayerCreateInfo) (xr.Instance, error) {
	o, err := e.options()
	log := e.logger(&o)
	if err != nil {
		log.Error("xrfoveated: invalid layer options", "err", err)
		return xr.NullHandle, protocolError(xr.ErrorInitializationFailed, err)
	}
	if info == nil {
		return xr.NullHandle, xr.ErrorValidationFailure
	}
	if layerInfo == nil || layerInfo.NextInfo == nil ||
		layerInfo.NextInfo.LayerName != manifest.Name ||
		layerInfo.NextInfo.NextGetInstanceProcAddr == nil ||
		layerInfo.NextInfo.NextCreateAPILayerInstance == nil {
		log.Error("xrfoveated: xrCreateApiLayerInstance validation failed")
		return xr.NullHandle, protocolError(xr.ErrorInitializationFailed, ErrInvalidLayerInfo)
	}

	e.mu.Lock()
	if e.creating || e.active.Load() != nil {
		e.mu.Unlock()
		return xr.NullHandle, protocolError(xr.ErrorLimitReached, ErrInstanceActive)
	}
	e.creating = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.creating = false
		e.mu.Unlock()
	}()

	log.Info("xrfoveated: application",
		"name", info.ApplicationInfo.ApplicationName,
		"engine", info.ApplicationInfo.EngineName)
	for n := layerInfo.NextInfo; n != nil; n = n.Next {
		log.Info("xrfoveated: using layer", "name", n.LayerName)
	}
	for _, ext := range info.EnabledExtensionNames {
		log.Debug("xrfoveated: requested extension", "name", ext, "by", "application")
	}

	next := layerInfo.NextInfo
	chainInfo := &xr.APILayerCreateInfo{
		SettingsFileLocation: layerInfo.SettingsFileLocation,
		NextInfo:             next.Next,
	}

	implicit := manifest.ImplicitExtensions(info.EnabledExtensionNames)
	if len(implicit) > 0 {
		implicit = queryExtensions(log, info, next, chainInfo, implicit)
	}
	for _, ext := range implicit {
		log.Debug("xrfoveated: requested extension", "name", ext, "by", "layer")
	}

	createInfo := *info
	createInfo.EnabledExtensionNames = append(slices.Clone(info.EnabledExtensionNames), implicit...)
	instance, err := next.NextCreateAPILayerInstance(&createInfo, chainInfo)
	if xr.Failed(err) {
		log.Error("xrfoveated: instance creation failed", "err", err)
		return instance, err
	}

	bypass := !createInfo.HasExtension(xr.ExtensionVarjoQuadViews) &&
		!slices.Contains(o.viewConfigs, xr.ViewConfigurationTypePrimaryStereo)
	required := o.manifest.Required()
	if bypass {
		required = []xr.Command{xr.CmdDestroyInstance}
	}

	table, berr := chain.Bind(next.NextGetInstanceProcAddr, instance, required)
	if berr != nil {
		log.Error("xrfoveated: next layer is missing a function", "err", berr)
		destroyNext(next.NextGetInstanceProcAddr, instance)
		return xr.NullHandle, protocolError(xr.ErrorInitializationFailed, berr)
	}

	l := newLayer(instance, table, &o, bypass)
	l.onDestroy = func() { e.active.CompareAndSwap(l, nil) }
	if bypass {
		log.Info("xrfoveated: layer will be bypassed", "name", manifest.Name)
	} else {
		l.setup()
	}
	e.active.Store(l)
	return instance, err
}

// queryExtensions returns the subset of implicit the runtime offers. The
// instance extensions can only be listed through an instance, so a
// temporary one without extensions is created and destroyed.
func queryExtensions(log *slog.Logger, info *xr.InstanceCreateInfo, next *xr.APILayerNextInfo, chainInfo *xr.APILayerCreateInfo, implicit []string) []string {
	queryInfo := *info
	queryInfo.EnabledExtensionNames = nil
	scratch, err := next.NextCreateAPILayerInstance(&queryInfo, chainInfo)
	if xr.Failed(err) {
		log.Warn("xrfoveated: cannot query runtime extensions", "err", err)
		return implicit
	}
	defer destroyNext(next.NextGetInstanceProcAddr, scratch)

	p, err := next.NextGetInstanceProcAddr(scratch, xr.CmdEnumerateInstanceExtensionProperties)
	enumerate, ok := p.(xr.PFNEnumerateInstanceExtensionProperties)
	if xr.Failed(err) || !ok {
		log.Warn("xrfoveated: cannot list runtime extensions", "err", err)
		return nil
	}
	n, err := enumerate("", nil)
	if xr.Failed(err) {
		log.Warn("xrfoveated: cannot list runtime extensions", "err", err)
		return nil
	}
	props := make([]xr.ExtensionProperties, n)
	if n, err = enumerate("", props); xr.Failed(err) {
		log.Warn("xrfoveated: cannot list runtime extensions", "err", err)
		return nil
	}
	props = props[:min(int(n), len(props))]

	return slices.DeleteFunc(slices.Clone(implicit), func(ext string) bool {
		offered := slices.ContainsFunc(props, func(p xr.ExtensionProperties) bool {
			return p.ExtensionName == ext
		})
		if !offered {
			log.Warn("xrfoveated: cannot satisfy implicit extension request", "name", ext)
		}
		return !offered
	})
}

// destroyNext destroys an instance through the next layer, ignoring errors.
func destroyNext(gipa xr.PFNGetInstanceProcAddr, instance xr.Instance) {
	p, err := gipa(instance, xr.CmdDestroyInstance)
	if xr.Failed(err) {
		return
	}
	if destroy, ok := p.(xr.PFNDestroyInstance); ok && destroy != nil {
		_ = destroy(instance)
	}
}

// setup logs the runtime and system and records the head-mounted system.
// Failures only leave the layer without system information.
func (l *Layer) setup() {
	var props xr.InstanceProperties
	if err := l.next.GetInstanceProperties()(l.instance, &props); xr.Failed(err) {
		l.log.Warn("xrfoveated: xrGetInstanceProperties failed", "err", err)
	} else {
		l.log.Info("xrfoveated: using OpenXR runtime", "name", props.RuntimeName, "version", props.RuntimeVersion.String())
	}

	system, err := l.next.GetSystem()(l.instance, &xr.SystemGetInfo{FormFactor: xr.FormFactorHeadMountedDisplay})
	if xr.Failed(err) {
		l.log.Warn("xrfoveated: no head-mounted system", "err", err)
		return
	}
	l.system = system

	sys := xr.SystemProperties{FoveatedRendering: &xr.SystemFoveatedRenderingProperties{}}
	if err := l.next.GetSystemProperties()(l.instance, system, &sys); xr.Failed(err) {
		l.log.Warn("xrfoveated: xrGetSystemProperties failed", "err", err)
		return
	}
	l.foveationSupported = sys.FoveatedRendering.SupportsFoveatedRendering
	l.log.Info("xrfoveated: using OpenXR system",
		"name", sys.SystemName,
		"supportsFoveatedRendering", l.foveationSupported,
		"peripheralMultiplier", l.config.PeripheralMultiplier,
		"focusMultiplier", l.config.FocusMultiplier,
		"eyeTracking", !l.config.NoEyeTracking)
}
