package xrfoveated

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gogpu/xrfoveated/foveation"
	"github.com/gogpu/xrfoveated/manifest"
)

// ConfigFileName is the name of the layer's configuration file.
const ConfigFileName = manifest.Name + ".cfg"

// Config holds the user settings of the layer.
type Config struct {
	// PeripheralMultiplier scales the resolution of peripheral views.
	PeripheralMultiplier float64

	// FocusMultiplier scales the resolution of focus views.
	FocusMultiplier float64

	// NoEyeTracking disables gaze-driven foveation. Focus views stay
	// centered.
	NoEyeTracking bool

	// FocusFov is the angular size of the focus window in radians. Zero
	// leaves the focus field of view to the runtime.
	FocusFov float64
}

// DefaultConfig returns the settings used when no configuration file exists.
func DefaultConfig() Config {
	return Config{
		PeripheralMultiplier: 1,
		FocusMultiplier:      1,
	}
}

// Multipliers returns the default foveator for c.
func (c Config) Multipliers() foveation.Multipliers {
	return foveation.Multipliers{
		Peripheral: c.PeripheralMultiplier,
		Focus:      c.FocusMultiplier,
		FocusFov:   c.FocusFov,
	}
}

// ParseConfig reads key=value statements from r on top of DefaultConfig.
//
// Recognized keys are peripheral_multiplier, focus_multiplier,
// no_eye_tracking, focus_fov (degrees) and turbo_mode (accepted but not
// supported). Blank lines and lines starting with '#' are ignored. Unknown
// keys and malformed lines are logged with their line number and skipped;
// only read errors are returned.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		cfg.parseStatement(sc.Text(), n)
	}
	if err := sc.Err(); err != nil {
		return cfg, fmt.Errorf("xrfoveated: read config: %w", err)
	}
	return cfg, nil
}

func (c *Config) parseStatement(line string, n int) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	log := Logger()

	name, value, ok := strings.Cut(line, "=")
	if !ok {
		log.Warn("xrfoveated: improperly formatted option", "line", n)
		return
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	var err error
	switch name {
	case "peripheral_multiplier":
		err = setParsed(&c.PeripheralMultiplier, value, parseMultiplier)
	case "focus_multiplier":
		err = setParsed(&c.FocusMultiplier, value, parseMultiplier)
	case "no_eye_tracking":
		err = setParsed(&c.NoEyeTracking, value, parseFlag)
	case "focus_fov":
		err = setParsed(&c.FocusFov, value, parseDegrees)
	case "turbo_mode":
		var on bool
		if on, err = parseFlag(value); err == nil && on {
			log.Warn("xrfoveated: turbo mode is not supported", "line", n)
		}
	default:
		log.Warn("xrfoveated: unrecognized option", "line", n, "name", name)
		return
	}
	if err != nil {
		log.Warn("xrfoveated: parsing error", "line", n, "name", name, "err", err)
	}
}

// setParsed stores parse(s) into dst unless parsing fails.
func setParsed[T any](dst *T, s string, parse func(string) (T, error)) error {
	v, err := parse(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

var errNonPositive = errors.New("multiplier must be positive")

func parseMultiplier(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNonPositive
	}
	return v, nil
}

func parseDegrees(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v * math.Pi / 180, nil
}

func parseFlag(s string) (bool, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// LoadConfig parses the first of paths that exists and returns the settings
// and the path used. If none exists it returns DefaultConfig and an empty
// path.
func LoadConfig(paths ...string) (Config, string, error) {
	for _, p := range paths {
		f, err := os.Open(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return DefaultConfig(), "", fmt.Errorf("xrfoveated: open config: %w", err)
		}
		cfg, err := ParseConfig(f)
		_ = f.Close()
		if err != nil {
			return cfg, p, err
		}
		Logger().Info("xrfoveated: loaded configuration", "path", p)
		return cfg, p, nil
	}
	Logger().Info("xrfoveated: no configuration was found")
	return DefaultConfig(), "", nil
}
