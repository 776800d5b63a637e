package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/usbshare/internal/share"
	"github.com/eugenetaranov/usbshare/internal/usbip"
	"github.com/eugenetaranov/usbshare/pkg/facts"
)

// statusCmd shows the share state of devices
var statusCmd = &cobra.Command{
	Use:   "status [device...]",
	Short: "Show whether devices are shared",
	Long: `Query the current share state of devices. Without arguments every
device of the inventory is shown.

Examples:
  usbshare status
  usbshare status keyboard mouse
  usbshare status --host pi.lan --bus-id 1-1.2`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	names, err := a.deviceNames(args, true)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var failed bool
	for _, name := range names {
		if err := a.status(ctx, name); err != nil {
			a.out.DeviceResult(name, "-", "failed", err.Error())
			failed = true
		}
	}

	if failed {
		return errFailed
	}
	return nil
}

func (a *app) status(ctx context.Context, name string) error {
	dev, err := a.fleet.Device(name)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	shared, err := dev.IsShared(ctx)
	if err != nil {
		return err
	}
	a.out.DeviceState(name, dev.String(), shared)
	return nil
}

// enableCmd exports a device
var enableCmd = &cobra.Command{
	Use:   "enable [device]",
	Short: "Share a device",
	Long: `Bind a device to usbip-host so clients can attach it.

Examples:
  usbshare enable keyboard
  usbshare enable --host pi.lan --bus-id 1-1.2`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnsure(cmd, args, true)
	},
}

// disableCmd stops exporting a device
var disableCmd = &cobra.Command{
	Use:   "disable [device]",
	Short: "Stop sharing a device",
	Long: `Unbind a device from usbip-host.

Examples:
  usbshare disable keyboard`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnsure(cmd, args, false)
	},
}

func runEnsure(cmd *cobra.Command, args []string, shared bool) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	names, err := a.deviceNames(args, false)
	if err != nil {
		return err
	}
	name := names[0]

	dev, err := a.fleet.Device(name)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelOp := a.withTimeout(ctx)
	defer cancelOp()

	changed, err := dev.Ensure(ctx, shared)
	if err != nil {
		a.out.DeviceResult(name, dev.String(), "failed", err.Error())
		return errFailed
	}

	status := "ok"
	if changed {
		status = "changed"
	}
	a.out.DeviceResult(name, dev.String(), status, string(share.StateOf(shared)))
	return nil
}

// exportLister is implemented by devices that can list what their host exports.
type exportLister interface {
	ExportableDevices(ctx context.Context) ([]usbip.ExportableDevice, error)
}

// listCmd lists the devices exported by a device's host
var listCmd = &cobra.Command{
	Use:   "list [device]",
	Short: "List the devices exported by a device's host",
	Long: `Show every USB device the host of the given device currently exports.

Examples:
  usbshare list keyboard
  usbshare list --host pi.lan --bus-id 1-1.2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	names, err := a.deviceNames(args, false)
	if err != nil {
		return err
	}

	dev, err := a.fleet.Device(names[0])
	if err != nil {
		return err
	}
	lister, ok := dev.(exportLister)
	if !ok {
		return fmt.Errorf("device %s does not support listing", names[0])
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelOp := a.withTimeout(ctx)
	defer cancelOp()

	exported, err := lister.ExportableDevices(ctx)
	if err != nil {
		return err
	}

	if len(exported) == 0 {
		a.out.Info("No devices exported by %s", dev)
		return nil
	}

	rows := [][]string{{"BUSID", "VENDOR:PRODUCT", "DESCRIPTION"}}
	for _, d := range exported {
		ids := "-"
		if d.VendorID != "" {
			ids = d.VendorID + ":" + d.ProductID
		}
		rows = append(rows, []string{d.BusID, ids, d.Description})
	}
	a.out.Table(rows)
	return nil
}

// doctorCmd checks a device's host for usbip prerequisites
var doctorCmd = &cobra.Command{
	Use:   "doctor [device]",
	Short: "Check a device's host for USB/IP prerequisites",
	Long: `Gather facts from the host of a device and report anything that
prevents sharing: missing usbip tools, unloaded kernel modules or a
stopped usbipd.

Examples:
  usbshare doctor keyboard`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	names, err := a.deviceNames(args, false)
	if err != nil {
		return err
	}

	conn, err := a.fleet.Connector(names[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelOp := a.withTimeout(ctx)
	defer cancelOp()

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", conn, err)
	}

	found, err := facts.Gather(ctx, conn)
	if err != nil {
		return err
	}

	a.out.Section(conn.String())
	rows := [][]string{{"FACT", "VALUE"}}
	for _, k := range slices.Sorted(maps.Keys(found)) {
		rows = append(rows, []string{k, fmt.Sprint(found[k])})
	}
	a.out.Table(rows)

	problems := facts.Problems(found)
	if len(problems) == 0 {
		a.out.Info("%s is ready to share devices", conn)
		return nil
	}
	for _, p := range problems {
		a.out.Warn("%s", p)
	}
	return errFailed
}
