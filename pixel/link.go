package pixel

import "context"

// Link is the platform transport for one peripheral: the raw
// open/close/discover primitives the controller drives. The BLE
// implementation lives in internal/ble; tests use an in-memory fake.
// Implementations must be safe for concurrent use.
type Link interface {
	// Name is the peripheral's advertised name.
	Name() string
	// Identity is a stable platform device identity (e.g. the BLE
	// address) used to memoize controllers in the Registry.
	Identity() string
	// IsOpen reports whether the physical link is currently up.
	IsOpen() bool
	// Open establishes the physical link.
	Open(ctx context.Context) error
	// Close tears the link down; the OnDisconnect callback still fires.
	Close() error
	// DiscoverPixelService resolves the die's service after Open.
	DiscoverPixelService() (LinkService, error)
	// OnDisconnect registers the link-loss callback. It is invoked on
	// every link drop, deliberate or not.
	OnDisconnect(fn func())
}

// LinkService is the discovered die service, holding its two
// characteristics.
type LinkService interface {
	NotifyCharacteristic() (Characteristic, error)
	WriteCharacteristic() (Characteristic, error)
}

// Characteristic is one GATT characteristic handle.
type Characteristic interface {
	// EnableNotifications starts inbound notification delivery to
	// handler. Only one handler may be active at a time.
	EnableNotifications(handler func([]byte)) error
	// DisableNotifications cancels a previous EnableNotifications.
	DisableNotifications() error
	// Write issues an acknowledged write.
	Write(p []byte) (int, error)
	// WriteWithoutResponse issues a fire-and-forget write.
	WriteWithoutResponse(p []byte) (int, error)
}
