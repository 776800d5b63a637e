package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/usbshare/internal/executor"
	"github.com/eugenetaranov/usbshare/internal/inventory"
	"github.com/eugenetaranov/usbshare/internal/share"
)

var dryRun bool

// applyCmd drives devices to the states in the inventory
var applyCmd = &cobra.Command{
	Use:   "apply [device...]",
	Short: "Apply the desired share states from the inventory",
	Long: `Share or unshare every device that declares a state in the inventory.
Devices without a state are skipped.

Examples:
  usbshare apply
  usbshare apply -i lab.yaml --dry-run
  usbshare apply keyboard`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be done without making changes")
}

func runApply(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	exec := executor.New()
	exec.Output = a.out
	exec.Debug = debug
	exec.DryRun = dryRun
	exec.Timeout = a.settings.CommandTimeout

	ctx, cancel := signalContext()
	defer cancel()

	result, err := exec.Run(ctx, a.fleet, args...)
	if err != nil {
		return err
	}

	if !result.Success {
		return errFailed
	}
	return nil
}

// validateCmd validates inventories without touching any host
var validateCmd = &cobra.Command{
	Use:   "validate <inventory.yaml> [inventory2.yaml ...]",
	Short: "Validate one or more inventories",
	Long: `Parse and validate inventories without connecting to any host.

This checks for:
  - Valid YAML syntax and known fields
  - Unique device names
  - Known drivers and connection types
  - Valid device configuration

Examples:
  usbshare validate usbshare.inventory.yaml
  usbshare validate *.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateInventories,
}

func validateInventories(cmd *cobra.Command, args []string) error {
	var hasErrors bool

	for _, path := range args {
		if err := validateInventory(path); err != nil {
			fmt.Printf("FAIL: %s - %v\n", path, err)
			hasErrors = true
		} else {
			fmt.Printf("OK: %s\n", path)
		}
	}

	if hasErrors {
		return fmt.Errorf("one or more inventories failed validation")
	}

	fmt.Printf("\nAll %d inventory file(s) valid.\n", len(args))
	return nil
}

func validateInventory(path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("not found")
	}

	inv, err := inventory.ParseFile(path)
	if err != nil {
		return err
	}

	// Driver-level config checks
	var errs []string
	for _, d := range inv.Devices {
		driver := share.Lookup(inv.GetDriver(d))
		if _, err := driver.Host(d.Config); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", d.Name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d error(s): %s", len(errs), strings.Join(errs, "; "))
	}

	return nil
}

// driversCmd lists available drivers
var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List available device drivers",
	Long:  `Display a list of all drivers that can be used in inventories.`,
	Run: func(cmd *cobra.Command, args []string) {
		drivers := share.Drivers()
		if len(drivers) == 0 {
			fmt.Println("No drivers registered.")
			return
		}

		fmt.Println("Available drivers:")
		fmt.Println()
		for _, name := range drivers {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Println()
		fmt.Printf("Total: %d drivers\n", len(drivers))
	},
}
