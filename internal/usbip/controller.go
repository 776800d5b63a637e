// Package usbip controls whether a USB device on a remote host is exported
// over USB/IP. Every operation runs the usbip tool on the device host through a
// connector and re-reads the export list; nothing is cached between calls.
package usbip

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eugenetaranov/usbshare/internal/connector"
)

const (
	// Tool is the usbip command line tool on the device host.
	Tool = "usbip"

	// listTarget is the usbipd queried by the listing command. The listing
	// runs on the device host, so it asks its own daemon.
	listTarget = "localhost"
)

// Stderr markers emitted by usbip.
const (
	NoExportableMarker     = Tool + ": info: no exportable devices found on "
	DaemonNotRunningMarker = "error: could not connect to localhost:3240"
	MissingModuleMarker    = "error: unable to bind device on "
)

// failureMarker maps a stderr substring to a diagnosis. Reason is formatted
// with the device host.
type failureMarker struct {
	substr string
	kind   error
	reason string
}

// failureMarkers are checked in order, first match wins. The daemon marker
// comes first because its output also carries generic failure text.
var failureMarkers = []failureMarker{
	{DaemonNotRunningMarker, ErrDaemonNotRunning, "usbipd is not running on %s"},
	{MissingModuleMarker, ErrModuleNotLoaded, "kernel modules might not be loaded on %s, try `sudo modprobe usbip_host`"},
}

// Controller drives the export state of one device.
type Controller struct {
	cfg  Config
	conn connector.Connector
}

// New creates a controller for the device described by cfg, running commands
// through conn.
func New(cfg Config, conn connector.Connector) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("usbip: nil connector")
	}
	return &Controller{cfg: cfg, conn: conn}, nil
}

// String returns a description of the device.
func (c *Controller) String() string {
	return fmt.Sprintf("usbip://%s/%s", c.cfg.Host, c.cfg.BusID)
}

// IsShared reports whether the device's bus id is in the host's export list.
func (c *Controller) IsShared(ctx context.Context) (bool, error) {
	set, err := c.ExportedSet(ctx)
	if err != nil {
		return false, err
	}
	_, ok := set[c.cfg.BusID]
	return ok, nil
}

// IsOnline reports whether clients can attach the device, which for usbip is
// exactly when it is exported.
func (c *Controller) IsOnline(ctx context.Context) (bool, error) {
	return c.IsShared(ctx)
}

// EnableSharing binds the device unless it is already exported.
func (c *Controller) EnableSharing(ctx context.Context) error {
	_, err := c.Ensure(ctx, true)
	return err
}

// DisableSharing unbinds the device unless it is not exported.
func (c *Controller) DisableSharing(ctx context.Context) error {
	_, err := c.Ensure(ctx, false)
	return err
}

// Ensure binds or unbinds the device so that its export state matches shared.
// The current state is read first; the bind/unbind result is not re-read.
// Concurrent callers on the same device can both act.
func (c *Controller) Ensure(ctx context.Context, shared bool) (bool, error) {
	current, err := c.IsShared(ctx)
	if err != nil {
		return false, err
	}
	if current == shared {
		log.Debug().Str("device", c.String()).Bool("shared", shared).Msg("already in state")
		return false, nil
	}

	verb := "unbind"
	if shared {
		verb = "bind"
	}
	if _, err := c.runPrivileged(ctx, verb, "-b", quoteArg(c.cfg.BusID)); err != nil {
		return false, err
	}

	log.Info().Str("device", c.String()).Str("action", verb).Msg("share state changed")
	return true, nil
}

// ExportedSet returns the bus ids currently exported by the device host.
func (c *Controller) ExportedSet(ctx context.Context) (map[string]struct{}, error) {
	l, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	if l.empty {
		return map[string]struct{}{}, nil
	}
	return ExportedSet(l.stdout), nil
}

// ExportedBusIDs returns the sorted bus ids exported by the device host.
func (c *Controller) ExportedBusIDs(ctx context.Context) ([]string, error) {
	set, err := c.ExportedSet(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(set)), nil
}

// ExportableDevices returns every device entry listed by the device host.
func (c *Controller) ExportableDevices(ctx context.Context) ([]ExportableDevice, error) {
	l, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	if l.empty {
		return nil, nil
	}
	return slices.Collect(ParseListing(l.stdout)), nil
}

// listing is the outcome of the listing command: either stdout to parse or
// the host's explicit "nothing exported" answer.
type listing struct {
	stdout string
	empty  bool
}

func (c *Controller) list(ctx context.Context) (listing, error) {
	cmd := command("list", "-r", listTarget)

	res, err := c.execute(ctx, cmd)
	if err != nil {
		return listing{}, err
	}

	switch {
	case res.ExitCode == 0:
		return listing{stdout: res.Stdout}, nil
	case c.nothingExported(res.Stderr):
		log.Debug().Str("host", c.cfg.Host).Msg("no exportable devices")
		return listing{empty: true}, nil
	default:
		return listing{}, c.classify(cmd, res)
	}
}

// nothingExported reports whether stderr is exactly usbip's empty-list notice.
func (c *Controller) nothingExported(stderr string) bool {
	s := strings.TrimSpace(stderr)
	return s == NoExportableMarker+c.cfg.Host || s == NoExportableMarker+listTarget
}

// runPrivileged runs `sudo usbip <args>` and fails on a non-zero exit.
func (c *Controller) runPrivileged(ctx context.Context, args ...string) (*connector.Result, error) {
	cmd := command(args...)

	res, err := c.execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, c.classify(cmd, res)
	}
	return res, nil
}

// execute runs cmd and wraps transport failures.
func (c *Controller) execute(ctx context.Context, cmd string) (*connector.Result, error) {
	res, err := c.conn.Execute(ctx, cmd)
	if err != nil {
		cerr := &ConnectionError{Remote: c.conn.String(), Cmd: cmd, Err: err}
		log.Error().Err(err).Str("remote", cerr.Remote).Str("cmd", cmd).Msg("remote execution failed")
		return nil, cerr
	}
	return res, nil
}

// classify turns a non-zero exit into a CommandError.
func (c *Controller) classify(cmd string, res *connector.Result) error {
	cerr := &CommandError{
		Host:     c.cfg.Host,
		Cmd:      cmd,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Kind:     ErrCommandFailed,
	}

	for _, m := range failureMarkers {
		if strings.Contains(res.Stderr, m.substr) {
			cerr.Kind = m.kind
			cerr.Reason = fmt.Sprintf(m.reason, c.cfg.Host)
			break
		}
	}

	log.Error().
		Str("host", c.cfg.Host).
		Str("cmd", cmd).
		Int("rc", res.ExitCode).
		Str("stderr", strings.TrimSpace(res.Stderr)).
		Msg(cerr.Error())
	return cerr
}

// command builds the privileged usbip invocation.
func command(args ...string) string {
	return "sudo " + Tool + " " + strings.Join(args, " ")
}

// quoteArg single-quotes s when it holds anything beyond the characters
// found in bus ids.
func quoteArg(s string) string {
	safe := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' ||
			r == '-' || r == '.' || r == ':' || r == '_')
	}) < 0
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
