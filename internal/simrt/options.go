package simrt

import (
	"log/slog"

	"github.com/gogpu/xrfoveated/xr"
)

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	imageCount int
	period     xr.Duration
	foveation  bool
	withheld   []string
	missing    []xr.Command
}

func defaultOptions() options {
	return options{
		imageCount: 3,
		period:     DefaultDisplayPeriod,
		foveation:  true,
	}
}

// WithLogger logs every runtime event at debug level to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithImageCount sets the number of images of every swapchain.
func WithImageCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.imageCount = n
		}
	}
}

// WithDisplayPeriod sets the predicted display period.
func WithDisplayPeriod(d xr.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.period = d
		}
	}
}

// WithoutFoveatedRendering makes the system report no foveated rendering
// support.
func WithoutFoveatedRendering() Option {
	return func(o *options) {
		o.foveation = false
	}
}

// WithoutExtension stops the runtime from offering the named extensions.
func WithoutExtension(names ...string) Option {
	return func(o *options) {
		o.withheld = append(o.withheld, names...)
	}
}

// WithoutFunction makes xrGetInstanceProcAddr fail for the given functions.
func WithoutFunction(cmds ...xr.Command) Option {
	return func(o *options) {
		o.missing = append(o.missing, cmds...)
	}
}
