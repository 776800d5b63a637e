// Package main is the entrypoint for the usbshare CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/eugenetaranov/usbshare/internal/config"
	"github.com/eugenetaranov/usbshare/internal/connector"
	"github.com/eugenetaranov/usbshare/internal/fleet"
	"github.com/eugenetaranov/usbshare/internal/inventory"
	"github.com/eugenetaranov/usbshare/internal/logging"
	"github.com/eugenetaranov/usbshare/internal/output"

	// Import drivers to register them
	_ "github.com/eugenetaranov/usbshare/internal/usbip"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath string
	debug      bool
	noColor    bool

	adhocHost       string
	adhocBusID      string
	adhocConnection string
)

// errFailed signals a non-zero exit after failures were already reported.
var errFailed = errors.New("one or more devices failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "usbshare",
	Short: "usbshare - Share USB devices over the network with USB/IP",
	Long: `usbshare exports and unexports USB devices attached to remote Linux
hosts through USB/IP. Devices are described in an inventory file and
controlled over SSH, locally, or inside a docker container.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()

	// Global flags
	pf.StringVar(&configPath, "config", "", "Config file (default: usbshare.yaml in ., ~/.config/usbshare, /etc/usbshare)")
	pf.StringP("inventory", "i", "", "Inventory file")
	pf.BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.String("log-format", "", "Log format (console, json)")

	// Connection flags
	pf.String("ssh-user", "", "SSH user")
	pf.Int("ssh-port", 22, "SSH port")
	pf.String("ssh-key", "", "SSH private key file")
	pf.String("known-hosts", "", "SSH known_hosts file")
	pf.Bool("insecure", false, "Skip SSH host key verification")
	pf.Duration("connect-timeout", 0, "Connection timeout")
	pf.Duration("command-timeout", 0, "Timeout for a single device operation")

	// Ad-hoc device, bypassing the inventory
	pf.StringVar(&adhocHost, "host", "", "Host of an ad-hoc device")
	pf.StringVar(&adhocBusID, "bus-id", "", "Bus id of an ad-hoc device")
	pf.StringVar(&adhocConnection, "connection", connector.TypeSSH, "Connection type of an ad-hoc device (ssh, local, docker)")

	// Add subcommands
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(driversCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(serveCmd)
}

// app bundles what a command needs after setup.
type app struct {
	settings *config.Settings
	fleet    *fleet.Fleet
	out      *output.Output
	adhoc    bool
}

// setup loads settings, configures logging and opens the inventory.
func setup(cmd *cobra.Command) (*app, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	inv, adhoc, err := loadInventory(settings)
	if err != nil {
		return nil, err
	}

	out := output.New(os.Stdout)
	out.SetColor(!noColor)
	out.SetDebug(debug)

	return &app{
		settings: settings,
		fleet:    fleet.New(settings, inv),
		out:      out,
		adhoc:    adhoc,
	}, nil
}

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	level := settings.LogLevel
	if debug {
		level = "debug"
	}
	logging.Init(level, settings.LogFormat)

	if settings.File != "" {
		log.Debug().Str("file", settings.File).Msg("loaded config")
	}
	return settings, nil
}

func loadInventory(settings *config.Settings) (*inventory.Inventory, bool, error) {
	if adhocHost != "" || adhocBusID != "" {
		if adhocHost == "" || adhocBusID == "" {
			return nil, false, fmt.Errorf("--host and --bus-id must be used together")
		}
		inv := inventory.Single(adhocBusID, adhocHost, adhocBusID, adhocConnection)
		if err := inv.Validate(); err != nil {
			return nil, false, err
		}
		return inv, true, nil
	}

	inv, err := inventory.ParseFile(settings.Inventory)
	if err != nil {
		return nil, false, err
	}
	return inv, false, nil
}

// deviceNames returns the devices a command operates on: the arguments, the
// ad-hoc device, or the whole inventory when all is true.
func (a *app) deviceNames(args []string, all bool) ([]string, error) {
	switch {
	case len(args) > 0:
		return args, nil
	case a.adhoc || all:
		return a.fleet.Names(), nil
	default:
		return nil, fmt.Errorf("device name required")
	}
}

// withTimeout bounds a single device operation by the command timeout.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.settings.CommandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.settings.CommandTimeout)
}

func (a *app) close() {
	if err := a.fleet.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close connections")
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// reportError prints err unless the failures were already reported.
func reportError(err error) {
	if !errors.Is(err, errFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
