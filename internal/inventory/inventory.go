// Package inventory defines the structure and parsing of device inventories.
package inventory

import (
	"fmt"
	"time"

	"github.com/eugenetaranov/usbshare/internal/connector"
	"github.com/eugenetaranov/usbshare/internal/share"
	"github.com/eugenetaranov/usbshare/internal/usbip"
)

// Inventory is the set of devices usbshare manages.
type Inventory struct {
	// Path is the file path the inventory was loaded from.
	Path string `yaml:"-"`

	// Defaults apply to every device that does not override them.
	Defaults Defaults `yaml:"defaults"`

	// Devices is the list of managed devices.
	Devices []*Device `yaml:"devices"`
}

// Defaults holds inventory-wide settings.
type Defaults struct {
	// Driver is the default device driver (default: usbip_over_ssh).
	Driver string `yaml:"driver"`

	// Connection is the default connection type (default: ssh).
	Connection string `yaml:"connection"`

	// User overrides the configured SSH user.
	User string `yaml:"user"`

	// Port overrides the configured SSH port.
	Port int `yaml:"port"`

	// KeyFile overrides the configured SSH private key.
	KeyFile string `yaml:"key_file"`
}

// Device is a single managed USB device.
type Device struct {
	// Name identifies the device on the command line and in the API.
	Name string `yaml:"name"`

	// Driver selects the implementation that controls the device.
	Driver string `yaml:"driver"`

	// Connection specifies how to reach the device host (ssh, local, docker).
	Connection string `yaml:"connection"`

	// State is the desired share state; empty means observe only.
	State share.State `yaml:"state"`

	// Retries is the number of times to retry a failed apply.
	Retries int `yaml:"retries"`

	// Delay is the wait between retries, e.g. "2s".
	Delay time.Duration `yaml:"delay"`

	// Config is passed to the driver unchanged.
	Config map[string]any `yaml:"config"`
}

// GetDriver returns the device driver, falling back to the inventory default.
func (inv *Inventory) GetDriver(d *Device) string {
	switch {
	case d.Driver != "":
		return d.Driver
	case inv.Defaults.Driver != "":
		return inv.Defaults.Driver
	default:
		return usbip.DriverName
	}
}

// GetConnection returns the connection type, falling back to the inventory
// default and then to ssh.
func (inv *Inventory) GetConnection(d *Device) string {
	switch {
	case d.Connection != "":
		return d.Connection
	case inv.Defaults.Connection != "":
		return inv.Defaults.Connection
	default:
		return connector.TypeSSH
	}
}

// Lookup returns the device with the given name, or nil.
func (inv *Inventory) Lookup(name string) *Device {
	for _, d := range inv.Devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Names returns device names in inventory order.
func (inv *Inventory) Names() []string {
	names := make([]string, 0, len(inv.Devices))
	for _, d := range inv.Devices {
		names = append(names, d.Name)
	}
	return names
}

// Validate checks the inventory for structural errors. Driver configuration
// is checked when the driver opens the device.
func (inv *Inventory) Validate() error {
	if len(inv.Devices) == 0 {
		return fmt.Errorf("inventory has no devices")
	}

	if c := inv.Defaults.Connection; c != "" && !connector.ValidType(c) {
		return fmt.Errorf("defaults: unknown connection type '%s'", c)
	}

	seen := make(map[string]bool, len(inv.Devices))
	for i, d := range inv.Devices {
		if d == nil {
			return fmt.Errorf("device %d: empty entry", i+1)
		}
		if d.Name == "" {
			return fmt.Errorf("device %d: 'name' is required", i+1)
		}
		if seen[d.Name] {
			return fmt.Errorf("device %s: duplicate name", d.Name)
		}
		seen[d.Name] = true

		if err := inv.validateDevice(d); err != nil {
			return fmt.Errorf("device %s: %w", d.Name, err)
		}
	}
	return nil
}

func (inv *Inventory) validateDevice(d *Device) error {
	driver := inv.GetDriver(d)
	if share.Lookup(driver) == nil {
		return fmt.Errorf("unknown driver '%s'", driver)
	}

	if c := inv.GetConnection(d); !connector.ValidType(c) {
		return fmt.Errorf("unknown connection type '%s'", c)
	}

	switch d.State {
	case "", share.StateShared, share.StateUnshared:
	default:
		return fmt.Errorf("invalid state '%s': must be shared or unshared", d.State)
	}

	if d.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}
	if d.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if len(d.Config) == 0 {
		return fmt.Errorf("'config' is required")
	}
	return nil
}

// Single builds a one-device inventory, used for ad-hoc CLI invocations.
func Single(name, host, busID, connection string) *Inventory {
	return &Inventory{
		Defaults: Defaults{Connection: connection},
		Devices: []*Device{{
			Name:   name,
			Driver: usbip.DriverName,
			Config: map[string]any{
				usbip.KeyHost:  host,
				usbip.KeyBusID: busID,
			},
		}},
	}
}
