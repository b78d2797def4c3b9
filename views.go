package xrfoveated

import (
	"slices"
	"sync"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/xr"
)

// viewKey identifies a view configuration of a system.
type viewKey struct {
	system xr.SystemID
	typ    xr.ViewConfigurationType
}

// viewOverride maps the views reported by the runtime to the ones reported
// to the application. It is replaced on every full enumeration.
type viewOverride struct {
	runtime     []xr.ViewConfigurationView
	adjusted    []xr.ViewConfigurationView
	adjustments []foveation.Adjustment
}

// geometry returns the runtime view sizes in foveator form.
func (o *viewOverride) geometry() []foveation.ViewGeometry {
	return viewGeometry(o.runtime)
}

// match returns the index of the view whose adjusted or, failing that,
// runtime recommended size is w x h, and whether it matched the adjusted
// size. It returns -1 if no view matches.
func (o *viewOverride) match(w, h uint32) (int, bool) {
	for i, v := range o.adjusted {
		if v.RecommendedImageRectWidth == w && v.RecommendedImageRectHeight == h {
			return i, true
		}
	}
	for i, v := range o.runtime {
		if v.RecommendedImageRectWidth == w && v.RecommendedImageRectHeight == h {
			return i, false
		}
	}
	return -1, false
}

func viewGeometry(views []xr.ViewConfigurationView) []foveation.ViewGeometry {
	g := make([]foveation.ViewGeometry, len(views))
	for i, v := range views {
		g[i] = foveation.ViewGeometry{
			RecommendedWidth:  v.RecommendedImageRectWidth,
			RecommendedHeight: v.RecommendedImageRectHeight,
			MaxWidth:          v.MaxImageRectWidth,
			MaxHeight:         v.MaxImageRectHeight,
		}
	}
	return g
}

// adjust runs the foveator and pads or truncates its result to one
// adjustment per view.
func (l *Layer) adjust(typ xr.ViewConfigurationType, gaze foveation.Gaze, views []foveation.ViewGeometry) []foveation.Adjustment {
	out := l.foveator.Adjust(typ, gaze, views)
	if len(out) > len(views) {
		return out[:len(views)]
	}
	for len(out) < len(views) {
		out = append(out, foveation.Identity())
	}
	return out
}

// viewCache holds the latest override per system and configuration type.
type viewCache struct {
	mu        sync.RWMutex
	overrides map[viewKey]*viewOverride
}

func (c *viewCache) init() {
	c.overrides = make(map[viewKey]*viewOverride)
}

func (c *viewCache) get(system xr.SystemID, typ xr.ViewConfigurationType) *viewOverride {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overrides[viewKey{system, typ}]
}

func (c *viewCache) put(system xr.SystemID, typ xr.ViewConfigurationType, o *viewOverride) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[viewKey{system, typ}] = o
}

// enumerateViewConfigurationViews reports foveation-adjusted recommended
// sizes for the configured view configuration types. The two-call idiom is
// preserved: with an empty slice only the count is queried.
func (l *Layer) enumerateViewConfigurationViews(instance xr.Instance, system xr.SystemID, typ xr.ViewConfigurationType, views []xr.ViewConfigurationView) (uint32, error) {
	if instance != l.instance {
		return 0, xr.ErrorHandleInvalid
	}
	next := l.next.EnumerateViewConfigurationViews()
	if !l.foveates(typ) {
		return next(instance, system, typ, views)
	}

	// Ask the runtime for its foveated recommendations, then restore the
	// application's chain.
	if typ == xr.ViewConfigurationTypePrimaryQuadVarjo && l.foveationSupported {
		saved := make([]*xr.FoveatedViewConfigurationView, len(views))
		request := make([]xr.FoveatedViewConfigurationView, len(views))
		for i := range views {
			saved[i] = views[i].Foveated
			request[i].FoveatedRenderingActive = !l.config.NoEyeTracking
			views[i].Foveated = &request[i]
		}
		defer func() {
			for i := range views {
				views[i].Foveated = saved[i]
			}
		}()
	}

	n, err := next(instance, system, typ, views)
	if xr.Failed(err) || len(views) == 0 {
		return n, err
	}
	count := min(int(n), len(views))

	o := &viewOverride{runtime: slices.Clone(views[:count])}
	for i := range o.runtime {
		o.runtime[i].Foveated = nil
	}
	o.adjustments = l.adjust(typ, foveation.CenterGaze(), o.geometry())
	for i, a := range o.adjustments {
		v := &views[i]
		v.RecommendedImageRectWidth, v.RecommendedImageRectHeight = a.ScaleExtent(
			v.RecommendedImageRectWidth, v.RecommendedImageRectHeight,
			v.MaxImageRectWidth, v.MaxImageRectHeight)
	}
	o.adjusted = slices.Clone(views[:count])
	for i := range o.adjusted {
		o.adjusted[i].Foveated = nil
	}
	l.views.put(system, typ, o)

	for i, v := range o.adjusted {
		l.log.Info("xrfoveated: view resolution",
			"viewConfiguration", typ.String(), "view", i,
			"width", v.RecommendedImageRectWidth, "height", v.RecommendedImageRectHeight,
			"runtimeWidth", o.runtime[i].RecommendedImageRectWidth,
			"runtimeHeight", o.runtime[i].RecommendedImageRectHeight)
	}
	return n, err
}
