package pixel

import "errors"

// Error kinds surfaced by the controller. Transport, discovery and
// protocol-negotiation failures wrap ErrNetwork; awaited replies that
// miss their deadline wrap ErrTimeout. Everything carries context via
// fmt.Errorf("%w") so callers can errors.Is on the kind.
var (
	ErrNetwork      = errors.New("network error")
	ErrTimeout      = errors.New("timed out")
	ErrNotSupported = errors.New("not supported on this platform")
)
