package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/usbshare/internal/config"
	"github.com/eugenetaranov/usbshare/internal/fleet"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateInventory(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "valid",
			content: `
devices:
  - name: keyboard
    state: shared
    config: {host: pi.lan, bus_id: 1-1.2}
`,
		},
		{
			name: "missing bus id",
			content: `
devices:
  - name: keyboard
    config: {host: pi.lan}
`,
			wantErr: "keyboard: invalid device config: key 'bus_id' is missing",
		},
		{
			name: "unknown field",
			content: `
devices:
  - name: keyboard
    sate: shared
    config: {host: pi.lan, bus_id: 1-1}
`,
			wantErr: "invalid inventory format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInventory(writeFile(t, "inventory.yaml", tt.content))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.EqualError(t, validateInventory(filepath.Join(t.TempDir(), "missing.yaml")), "not found")
}

func setAdhoc(t *testing.T, host, busID, connection string) {
	t.Helper()
	oldHost, oldBusID, oldConn := adhocHost, adhocBusID, adhocConnection
	adhocHost, adhocBusID, adhocConnection = host, busID, connection
	t.Cleanup(func() {
		adhocHost, adhocBusID, adhocConnection = oldHost, oldBusID, oldConn
	})
}

func TestLoadInventoryAdhoc(t *testing.T) {
	setAdhoc(t, "pi.lan", "1-1.2", "ssh")

	inv, adhoc, err := loadInventory(&config.Settings{})
	require.NoError(t, err)
	assert.True(t, adhoc)
	assert.Equal(t, []string{"1-1.2"}, inv.Names())
	assert.Equal(t, "pi.lan", inv.Devices[0].Config["host"])
}

func TestLoadInventoryAdhocIncomplete(t *testing.T) {
	setAdhoc(t, "pi.lan", "", "ssh")

	_, _, err := loadInventory(&config.Settings{})
	assert.EqualError(t, err, "--host and --bus-id must be used together")
}

func TestLoadInventoryFile(t *testing.T) {
	setAdhoc(t, "", "", "ssh")
	path := writeFile(t, "lab.yaml", `
devices:
  - name: keyboard
    config: {host: pi.lan, bus_id: 1-1.2}
  - name: mouse
    config: {host: pi.lan, bus_id: 1-1.3}
`)

	inv, adhoc, err := loadInventory(&config.Settings{Inventory: path})
	require.NoError(t, err)
	assert.False(t, adhoc)
	assert.Equal(t, path, inv.Path)

	a := &app{settings: &config.Settings{}, fleet: fleet.New(&config.Settings{SSHPort: 22}, inv)}

	names, err := a.deviceNames(nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"keyboard", "mouse"}, names)

	names, err = a.deviceNames([]string{"mouse"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"mouse"}, names)

	_, err = a.deviceNames(nil, false)
	assert.EqualError(t, err, "device name required")
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"status", "enable", "disable", "list", "apply", "validate", "drivers", "doctor", "serve"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
