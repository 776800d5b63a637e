// Package fleet opens the devices of an inventory, sharing one connector per
// device host.
package fleet

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/eugenetaranov/usbshare/internal/config"
	"github.com/eugenetaranov/usbshare/internal/connector"
	"github.com/eugenetaranov/usbshare/internal/connector/docker"
	"github.com/eugenetaranov/usbshare/internal/connector/local"
	"github.com/eugenetaranov/usbshare/internal/connector/ssh"
	"github.com/eugenetaranov/usbshare/internal/inventory"
	"github.com/eugenetaranov/usbshare/internal/share"
)

// ErrUnknownDevice is returned for names that are not in the inventory.
var ErrUnknownDevice = errors.New("unknown device")

// Dialer creates a connector of the given type for host.
type Dialer func(connType, host string) (connector.Connector, error)

// Fleet resolves inventory devices to drivers and connectors. It is safe for
// concurrent use.
type Fleet struct {
	inv    *inventory.Inventory
	dialer Dialer

	mu    sync.Mutex
	conns map[string]connector.Connector
}

// Option configures a Fleet.
type Option func(*Fleet)

// WithDialer replaces the connector factory.
func WithDialer(d Dialer) Option {
	return func(f *Fleet) {
		f.dialer = d
	}
}

// New creates a fleet for inv. Connectors are built from settings, with the
// inventory defaults taking precedence for SSH user, port and key.
func New(settings *config.Settings, inv *inventory.Inventory, opts ...Option) *Fleet {
	f := &Fleet{
		inv:   inv,
		conns: make(map[string]connector.Connector),
	}
	f.dialer = f.defaultDialer(settings)

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Inventory returns the underlying inventory.
func (f *Fleet) Inventory() *inventory.Inventory {
	return f.inv
}

// Names returns the device names in inventory order.
func (f *Fleet) Names() []string {
	return f.inv.Names()
}

// Driver returns the driver name of a device.
func (f *Fleet) Driver(name string) (string, error) {
	d := f.inv.Lookup(name)
	if d == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return f.inv.GetDriver(d), nil
}

// Device opens the named device.
func (f *Fleet) Device(name string) (share.Device, error) {
	d, driver, conn, err := f.resolve(name)
	if err != nil {
		return nil, err
	}

	dev, err := driver.Open(d.Config, conn)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", name, err)
	}
	return dev, nil
}

// Connector returns the cached connector for the named device's host.
func (f *Fleet) Connector(name string) (connector.Connector, error) {
	_, _, conn, err := f.resolve(name)
	return conn, err
}

func (f *Fleet) resolve(name string) (*inventory.Device, share.Driver, connector.Connector, error) {
	d := f.inv.Lookup(name)
	if d == nil {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}

	driverName := f.inv.GetDriver(d)
	driver := share.Lookup(driverName)
	if driver == nil {
		return nil, nil, nil, fmt.Errorf("device %s: unknown driver '%s'", name, driverName)
	}

	host, err := driver.Host(d.Config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("device %s: %w", name, err)
	}

	conn, err := f.connector(f.inv.GetConnection(d), host)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("device %s: %w", name, err)
	}
	return d, driver, conn, nil
}

// connector returns the cached connector for (connType, host), creating it on
// first use.
func (f *Fleet) connector(connType, host string) (connector.Connector, error) {
	key := connector.Key(connType, host)

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.conns[key]; ok {
		return c, nil
	}

	c, err := f.dialer(connType, host)
	if err != nil {
		return nil, err
	}
	f.conns[key] = c
	log.Debug().Str("connector", c.String()).Msg("connector created")
	return c, nil
}

// Close closes every connector the fleet opened.
func (f *Fleet) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.conns))
	for k := range f.conns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if err := f.conns[k].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", k, err))
		}
		delete(f.conns, k)
	}
	return errors.Join(errs...)
}

func (f *Fleet) defaultDialer(settings *config.Settings) Dialer {
	return func(connType, host string) (connector.Connector, error) {
		switch connType {
		case connector.TypeSSH:
			cfg := settings.Connector(host)
			if u := f.inv.Defaults.User; u != "" {
				cfg.User = u
			}
			if p := f.inv.Defaults.Port; p != 0 {
				cfg.Port = p
			}
			if k := f.inv.Defaults.KeyFile; k != "" {
				cfg.KeyFile = k
			}
			return ssh.New(host, ssh.FromConfig(cfg)...), nil

		case connector.TypeLocal:
			return local.New(), nil

		case connector.TypeDocker:
			// For docker, host is the container name/ID
			return docker.New(host), nil

		default:
			return nil, fmt.Errorf("unknown connection type: %s", connType)
		}
	}
}
