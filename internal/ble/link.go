package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/dicewire/dicewire/internal/config"
	"github.com/dicewire/dicewire/pixel"
)

// links indexes open links by address so the adapter-wide connect
// handler can route a drop to the right one.
var (
	linksMu sync.Mutex
	links   = make(map[string]*Link)
)

func dispatchConnectEvent(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	linksMu.Lock()
	l := links[device.Address.String()]
	linksMu.Unlock()
	if l != nil {
		l.handleDrop()
	}
}

// Link is the BLE implementation of pixel.Link: one die, addressed by
// its advertisement, connected on demand.
type Link struct {
	name string
	addr bluetooth.Address

	mu           sync.Mutex
	device       bluetooth.Device
	open         bool
	onDisconnect func()
}

// NewLink builds a Link for a die seen during a scan. No connection is
// made until Open.
func NewLink(adv Advertisement) *Link {
	return &Link{name: adv.Name, addr: adv.Address}
}

func (l *Link) Name() string     { return l.name }
func (l *Link) Identity() string { return l.addr.String() }

func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *Link) Open(ctx context.Context) error {
	if err := enableAdapter(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.open {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	config.Debugf("Connecting to %s (%s)...", l.name, l.addr.String())
	device, err := adapter.Connect(l.addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %v: %w", l.addr.String(), err, pixel.ErrNetwork)
	}

	l.mu.Lock()
	l.device = device
	l.open = true
	l.mu.Unlock()

	linksMu.Lock()
	links[l.addr.String()] = l
	linksMu.Unlock()
	return nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	if !l.open {
		l.mu.Unlock()
		return nil
	}
	device := l.device
	l.mu.Unlock()

	err := device.Disconnect()
	// Some platforms never surface the disconnect event for a local
	// close; handleDrop is idempotent, so fire it ourselves.
	l.handleDrop()
	if err != nil {
		return fmt.Errorf("disconnect: %v: %w", err, pixel.ErrNetwork)
	}
	return nil
}

// handleDrop marks the link down and fires the loss callback once per
// connection.
func (l *Link) handleDrop() {
	l.mu.Lock()
	wasOpen := l.open
	l.open = false
	cb := l.onDisconnect
	l.mu.Unlock()

	if !wasOpen {
		return
	}
	linksMu.Lock()
	delete(links, l.addr.String())
	linksMu.Unlock()

	config.Debugf("Link to %s down", l.name)
	if cb != nil {
		cb()
	}
}

func (l *Link) OnDisconnect(fn func()) {
	l.mu.Lock()
	l.onDisconnect = fn
	l.mu.Unlock()
}

// DiscoverPixelService resolves the die service and its two
// characteristics, falling back to the legacy UART service for
// first-generation dice.
func (l *Link) DiscoverPixelService() (pixel.LinkService, error) {
	l.mu.Lock()
	device := l.device
	open := l.open
	l.mu.Unlock()
	if !open {
		return nil, fmt.Errorf("link not open: %w", pixel.ErrNetwork)
	}

	config.Debugf("Discovering services...")
	svcs, err := device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
	if err == nil && len(svcs) > 0 {
		return l.resolveService(svcs[0], NotifyCharUUID, WriteCharUUID)
	}
	config.Debugf("Pixels service not found, trying legacy UART service")

	svcs, err = device.DiscoverServices([]bluetooth.UUID{LegacyServiceUUID})
	if err != nil {
		return nil, fmt.Errorf("discover services: %v: %w", err, pixel.ErrNetwork)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("no die service on %s: %w", l.name, pixel.ErrNetwork)
	}
	return l.resolveService(svcs[0], LegacyNotifyCharUUID, LegacyWriteCharUUID)
}

func (l *Link) resolveService(svc bluetooth.DeviceService, notifyUUID, writeUUID bluetooth.UUID) (pixel.LinkService, error) {
	chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{notifyUUID, writeUUID})
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %v: %w", err, pixel.ErrNetwork)
	}

	out := service{}
	for i := range chars {
		switch chars[i].UUID() {
		case notifyUUID:
			out.notify = &characteristic{&chars[i]}
		case writeUUID:
			out.write = &characteristic{&chars[i]}
		}
	}
	if out.notify == nil {
		return nil, fmt.Errorf("notify characteristic missing: %w", pixel.ErrNetwork)
	}
	if out.write == nil {
		return nil, fmt.Errorf("write characteristic missing: %w", pixel.ErrNetwork)
	}
	return out, nil
}

type service struct {
	notify *characteristic
	write  *characteristic
}

func (s service) NotifyCharacteristic() (pixel.Characteristic, error) { return s.notify, nil }
func (s service) WriteCharacteristic() (pixel.Characteristic, error)  { return s.write, nil }

// characteristic wraps one GATT handle behind pixel.Characteristic.
type characteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *characteristic) EnableNotifications(handler func([]byte)) error {
	if err := c.char.EnableNotifications(handler); err != nil {
		return fmt.Errorf("enable notifications: %v: %w", err, pixel.ErrNotSupported)
	}
	return nil
}

func (c *characteristic) DisableNotifications() error {
	return c.char.EnableNotifications(nil)
}

func (c *characteristic) Write(p []byte) (int, error) {
	// tinygo bluetooth has no acknowledged write on Linux; the
	// unacknowledged variant is the best available on every platform.
	return c.char.WriteWithoutResponse(p)
}

func (c *characteristic) WriteWithoutResponse(p []byte) (int, error) {
	return c.char.WriteWithoutResponse(p)
}
