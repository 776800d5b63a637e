package usbip

import (
	"github.com/eugenetaranov/usbshare/internal/connector"
	"github.com/eugenetaranov/usbshare/internal/share"
)

// DriverName is the inventory name of this driver.
const DriverName = "usbip_over_ssh"

func init() {
	share.Register(&Driver{})
}

// Driver exports devices with the usbip tool over a remote shell. It does not
// support device authentication.
type Driver struct{}

// Name returns the driver identifier.
func (d *Driver) Name() string {
	return DriverName
}

// Host returns the configured device host.
func (d *Driver) Host(cfg map[string]any) (string, error) {
	c, err := ParseConfig(cfg)
	if err != nil {
		return "", err
	}
	return c.Host, nil
}

// Open validates cfg and returns a controller for the device.
func (d *Driver) Open(cfg map[string]any, conn connector.Connector) (share.Device, error) {
	c, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	ctrl, err := New(c, conn)
	if err != nil {
		return nil, err
	}
	return ctrl, nil
}

var (
	_ share.Driver = (*Driver)(nil)
	_ share.Device = (*Controller)(nil)
)
