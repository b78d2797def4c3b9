package xrfoveated

import (
	"errors"
	"fmt"

	"github.com/gogpu/xrfoveated/xr"
)

// Errors reported while the loader sets the layer up. They are always
// wrapped together with the xr.Result the loader sees.
var (
	// ErrInvalidNegotiation is returned by Negotiate when the loader's
	// interface or API version range does not include ours.
	ErrInvalidNegotiation = errors.New("xrfoveated: invalid loader negotiation")

	// ErrInvalidLayerInfo is returned by CreateAPILayerInstance when the
	// chain information passed by the loader is incomplete or names another
	// layer.
	ErrInvalidLayerInfo = errors.New("xrfoveated: invalid api layer create info")

	// ErrInstanceActive is returned when an instance is created while
	// another one is still alive.
	ErrInstanceActive = errors.New("xrfoveated: an instance is already active")
)

// protocolError attaches a result code to a descriptive error so that
// xr.ResultOf reports r.
func protocolError(r xr.Result, err error) error {
	return fmt.Errorf("%w: %w", r, err)
}
