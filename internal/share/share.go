// Package share defines the capability interface for shareable USB devices and
// the registry of drivers that implement it.
package share

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eugenetaranov/usbshare/internal/connector"
)

// Device is a USB device that can be exported to the network.
type Device interface {
	// IsShared reports whether the device is currently exported.
	IsShared(ctx context.Context) (bool, error)

	// IsOnline reports whether the device is reachable for clients.
	IsOnline(ctx context.Context) (bool, error)

	// EnableSharing exports the device. It is a no-op when already exported.
	EnableSharing(ctx context.Context) error

	// DisableSharing stops exporting the device. It is a no-op when not exported.
	DisableSharing(ctx context.Context) error

	// Ensure drives the device to the wanted share state and reports whether
	// anything had to change.
	Ensure(ctx context.Context, shared bool) (changed bool, err error)

	// String identifies the device in logs and output.
	String() string
}

// Driver builds devices from their raw configuration.
type Driver interface {
	// Name returns the driver's unique identifier.
	Name() string

	// Host returns the host the device is attached to, so the caller can
	// open a connector before calling Open.
	Host(cfg map[string]any) (string, error)

	// Open validates cfg and returns a device that talks through conn.
	Open(cfg map[string]any, conn connector.Connector) (Device, error)
}

// registry holds all registered drivers.
var (
	registry   = make(map[string]Driver)
	registryMu sync.RWMutex
)

// Register adds a driver to the registry.
// It panics if a driver with the same name is already registered.
func Register(d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := d.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("driver %q is already registered", name))
	}
	registry[name] = d
}

// Lookup retrieves a driver from the registry by name.
// Returns nil if the driver is not found.
func Lookup(name string) Driver {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Drivers returns the sorted names of all registered drivers.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State is a desired or observed share state.
type State string

const (
	StateShared   State = "shared"
	StateUnshared State = "unshared"
)

// StateOf converts a share flag to a State.
func StateOf(shared bool) State {
	if shared {
		return StateShared
	}
	return StateUnshared
}
