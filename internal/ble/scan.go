// Package ble adapts tinygo.org/x/bluetooth to the pixel.Link
// transport interface: adapter management, scanning for dice, and the
// GATT plumbing behind one connection.
package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/dicewire/dicewire/internal/config"
	"github.com/dicewire/dicewire/pixel"
)

var (
	adapter    = bluetooth.DefaultAdapter
	enableOnce sync.Once
	enableErr  error
)

// enableAdapter powers the default adapter exactly once and installs
// the adapter-wide connect handler that routes link drops.
func enableAdapter() error {
	enableOnce.Do(func() {
		config.Debugf("Enabling Bluetooth adapter...")
		enableErr = adapter.Enable()
		if enableErr == nil {
			adapter.SetConnectHandler(dispatchConnectEvent)
		}
	})
	if enableErr != nil {
		return fmt.Errorf("enable bluetooth adapter: %v: %w", enableErr, pixel.ErrNotSupported)
	}
	return nil
}

// Advertisement is one die seen during a scan.
type Advertisement struct {
	Name    string
	Address bluetooth.Address
	RSSI    int16
}

// Scan streams advertisements for Pixels dice until ctx is done. A
// result counts as a die when it advertises the Pixels service or its
// name carries the "Pixel" prefix; each address is reported once.
func Scan(ctx context.Context, found func(Advertisement)) error {
	if err := enableAdapter(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var mu sync.Mutex

	scanErr := make(chan error, 1)
	go func() {
		scanErr <- adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			isDie := result.HasServiceUUID(ServiceUUID) || strings.HasPrefix(name, NamePrefix)
			if !isDie {
				if config.Verbose && name != "" {
					config.Debugf("ignoring '%s' (%s)", name, result.Address.String())
				}
				return
			}

			mu.Lock()
			dup := seen[result.Address.String()]
			seen[result.Address.String()] = true
			mu.Unlock()
			if dup {
				return
			}

			config.Debugf("found die '%s' (%s) rssi=%d", name, result.Address.String(), result.RSSI)
			found(Advertisement{Name: name, Address: result.Address, RSSI: result.RSSI})
		})
	}()

	select {
	case err := <-scanErr:
		if err != nil {
			return fmt.Errorf("scan: %v: %w", err, pixel.ErrNetwork)
		}
		return nil
	case <-ctx.Done():
		if err := adapter.StopScan(); err != nil {
			config.Debugf("stop scan: %v", err)
		}
		<-scanErr
		return nil
	}
}

// FindDie scans until a die matching name shows up (any die when name
// is empty) and returns a Link for it.
func FindDie(ctx context.Context, name string) (*Link, error) {
	var (
		match Advertisement
		found bool
	)
	scanCtx, cancel := context.WithCancel(ctx)
	err := Scan(scanCtx, func(adv Advertisement) {
		if name != "" && adv.Name != name {
			return
		}
		match = adv
		found = true
		cancel()
	})
	cancel()
	if err != nil {
		return nil, err
	}
	if !found {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("no die found: %v: %w", err, pixel.ErrTimeout)
		}
		return nil, fmt.Errorf("no die found: %w", pixel.ErrNetwork)
	}
	return NewLink(match), nil
}
