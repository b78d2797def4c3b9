package xrfoveated

import (
	"log/slog"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/manifest"
	"github.com/gogpu/xrfoveated/xr"
)

// Option configures the layer created by an Entry.
//
// Example:
//
//	entry := xrfoveated.NewEntry(
//	    xrfoveated.WithConfig(cfg),
//	    xrfoveated.WithLogger(logger),
//	)
type Option func(*options)

// options holds the configuration applied to every instance an Entry creates.
type options struct {
	logger      *slog.Logger
	foveator    foveation.Foveator
	gazeSource  string
	gazeSources *gpucontext.Registry[GazeSource]
	manifest    manifest.Manifest
	viewConfigs []xr.ViewConfigurationType
	config      Config
	configPaths []string
}

// defaultOptions returns the full lifecycle manifest, quad view foveation
// and the default configuration.
func defaultOptions() options {
	return options{
		gazeSources: NewGazeRegistry(),
		manifest:    manifest.Full(),
		viewConfigs: []xr.ViewConfigurationType{xr.ViewConfigurationTypePrimaryQuadVarjo},
		config:      DefaultConfig(),
	}
}

// WithLogger sets the logger of the layer. Without it the layer logs through
// the package logger (see SetLogger).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFoveator replaces the foveation math. By default the layer uses the
// multipliers of its Config.
func WithFoveator(f foveation.Foveator) Option {
	return func(o *options) {
		o.foveator = f
	}
}

// WithGazeSource selects the gaze source by name. An empty name or a name
// that is not registered selects the best available source.
func WithGazeSource(name string) Option {
	return func(o *options) {
		o.gazeSource = name
	}
}

// WithGazeSources replaces the registry gaze sources are created from.
func WithGazeSources(r *gpucontext.Registry[GazeSource]) Option {
	return func(o *options) {
		if r != nil {
			o.gazeSources = r
		}
	}
}

// WithManifest selects the set of intercepted functions. The manifest must
// pass manifest.Manifest.Validate.
func WithManifest(m manifest.Manifest) Option {
	return func(o *options) {
		o.manifest = m
	}
}

// WithViewConfigurations sets the view configuration types the layer
// foveates. Adding xr.ViewConfigurationTypePrimaryStereo enables the layer
// for applications that do not use quad views.
func WithViewConfigurations(types ...xr.ViewConfigurationType) Option {
	return func(o *options) {
		o.viewConfigs = append([]xr.ViewConfigurationType(nil), types...)
	}
}

// WithConfig sets the user settings.
func WithConfig(c Config) Option {
	return func(o *options) {
		o.config = c
	}
}

// WithConfigPaths makes every instance creation load its settings from the
// first existing file among paths, falling back to the WithConfig settings.
func WithConfigPaths(paths ...string) Option {
	return func(o *options) {
		o.configPaths = append([]string(nil), paths...)
	}
}
