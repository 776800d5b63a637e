package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/usbshare/internal/config"
	"github.com/eugenetaranov/usbshare/internal/connector"
	"github.com/eugenetaranov/usbshare/internal/connector/connectortest"
	"github.com/eugenetaranov/usbshare/internal/fleet"
	"github.com/eugenetaranov/usbshare/internal/inventory"
	"github.com/eugenetaranov/usbshare/internal/output"
)

const listCmd = "sudo usbip list -r localhost"

const inventoryYAML = `
devices:
  - name: keyboard
    state: shared
    config: {host: h1, bus_id: 1-11}
  - name: mouse
    state: unshared
    config: {host: h1, bus_id: 1-12}
  - name: dongle
    state: shared
    config: {host: h1, bus_id: 1-13}
  - name: observer
    config: {host: h1, bus_id: 1-14}
`

// h1 exports 1-12 and 1-13.
const h1Listing = " 1-12: A : Mouse (0001:0002)\n 1-13: B : Dongle (0003:0004)\n"

func newTestExecutor(t *testing.T, fake *connectortest.Fake) (*Executor, *fleet.Fleet, *bytes.Buffer) {
	t.Helper()

	inv, err := inventory.Parse([]byte(inventoryYAML))
	require.NoError(t, err)

	f := fleet.New(&config.Settings{SSHPort: 22}, inv, fleet.WithDialer(
		func(connType, host string) (connector.Connector, error) {
			return fake, nil
		}))

	var buf bytes.Buffer
	e := New()
	e.Output = output.New(&buf)
	e.Output.SetColor(false)
	return e, f, &buf
}

func TestRun(t *testing.T) {
	fake := connectortest.New("h1").On(listCmd, 0, h1Listing, "")
	e, f, buf := newTestExecutor(t, fake)

	result, err := e.Run(context.Background(), f)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Stats.Devices)
	assert.Equal(t, 2, result.Stats.Changed, "keyboard bound, mouse unbound")
	assert.Equal(t, 1, result.Stats.OK, "dongle already shared")
	assert.Equal(t, 1, result.Stats.Skipped, "observer has no desired state")
	assert.Zero(t, result.Stats.Failed)

	assert.Equal(t, 1, fake.Count("sudo usbip bind -b 1-11"))
	assert.Equal(t, 1, fake.Count("sudo usbip unbind -b 1-12"))
	assert.Zero(t, fake.Count("sudo usbip bind -b 1-13"))
	assert.Zero(t, fake.Count("sudo usbip bind -b 1-14"))

	statuses := map[string]string{}
	for _, d := range result.Devices {
		statuses[d.Name] = d.Status
	}
	assert.Equal(t, map[string]string{
		"keyboard": StatusChanged,
		"mouse":    StatusChanged,
		"dongle":   StatusOK,
		"observer": StatusSkipped,
	}, statuses)

	assert.Contains(t, buf.String(), "RECAP")
	assert.Contains(t, buf.String(), "changed=2")
}

func TestRunDryRun(t *testing.T) {
	fake := connectortest.New("h1").On(listCmd, 0, h1Listing, "")
	e, f, buf := newTestExecutor(t, fake)
	e.DryRun = true

	result, err := e.Run(context.Background(), f)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.Stats.Changed)
	assert.Equal(t, 1, result.Stats.OK)
	assert.Equal(t, 3, result.Stats.Skipped)

	for _, call := range fake.Calls() {
		assert.Equal(t, listCmd, call, "dry run must only list")
	}
	assert.Contains(t, buf.String(), "skipped (dry run)")
}

func TestRunFailureContinues(t *testing.T) {
	fake := connectortest.New("h1").
		On(listCmd, 0, h1Listing, "").
		On("sudo usbip bind -b 1-11", 1, "", "usbip: error: unable to bind device on 1-11\n")
	e, f, buf := newTestExecutor(t, fake)

	result, err := e.Run(context.Background(), f)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Stats.Failed)
	assert.Equal(t, 1, result.Stats.Changed, "mouse still processed")
	assert.Contains(t, buf.String(), "modprobe usbip_host")
	assert.Equal(t, StatusFailed, result.Devices[0].Status)
	assert.Error(t, result.Devices[0].Error)
}

func TestRunRetries(t *testing.T) {
	fake := connectortest.New("h1").
		On(listCmd, 0, h1Listing, "").
		On("sudo usbip bind -b 1-11", 1, "", "boom")

	inv, err := inventory.Parse([]byte(`
devices:
  - name: keyboard
    state: shared
    retries: 2
    delay: 10ms
    config: {host: h1, bus_id: 1-11}
`))
	require.NoError(t, err)
	f := fleet.New(&config.Settings{SSHPort: 22}, inv, fleet.WithDialer(
		func(connType, host string) (connector.Connector, error) { return fake, nil }))

	var buf bytes.Buffer
	e := New()
	e.Output = output.New(&buf)

	result, err := e.Run(context.Background(), f)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, fake.Count("sudo usbip bind -b 1-11"))
	assert.Equal(t, 2, strings.Count(buf.String(), "Retry"))
}

func TestRunDebugReportsAttempts(t *testing.T) {
	run := func(t *testing.T, debug bool) string {
		fake := connectortest.New("h1").
			On(listCmd, 0, h1Listing, "").
			On("sudo usbip bind -b 1-11", 1, "", "boom")
		e, f, buf := newTestExecutor(t, fake)
		e.Debug = debug
		e.Output.SetDebug(true)

		_, err := e.Run(context.Background(), f, "keyboard")
		require.NoError(t, err)
		return buf.String()
	}

	t.Run("enabled", func(t *testing.T) {
		out := run(t, true)
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "Attempt 1/1 for device keyboard failed")
	})

	t.Run("disabled", func(t *testing.T) {
		out := run(t, false)
		assert.NotContains(t, out, "DEBUG")
	})
}

func TestRunSelectedDevices(t *testing.T) {
	fake := connectortest.New("h1").On(listCmd, 0, h1Listing, "")
	e, f, _ := newTestExecutor(t, fake)

	result, err := e.Run(context.Background(), f, "mouse")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Devices)
	assert.Zero(t, fake.Count("sudo usbip bind -b 1-11"))

	_, err = e.Run(context.Background(), f, "printer")
	assert.ErrorIs(t, err, fleet.ErrUnknownDevice)
}

func TestRunCancelled(t *testing.T) {
	fake := connectortest.New("h1").On(listCmd, 0, h1Listing, "")
	e, f, _ := newTestExecutor(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx, f)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Devices)
	assert.Empty(t, fake.Calls())
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(sleep(ctx, 0), context.Canceled))
}

func TestStatsImplementsInterface(t *testing.T) {
	stats := &Stats{
		OK:      1,
		Changed: 2,
		Failed:  3,
		Skipped: 4,
	}

	if stats.GetOK() != 1 {
		t.Errorf("GetOK() = %d, want 1", stats.GetOK())
	}
	if stats.GetChanged() != 2 {
		t.Errorf("GetChanged() = %d, want 2", stats.GetChanged())
	}
	if stats.GetFailed() != 3 {
		t.Errorf("GetFailed() = %d, want 3", stats.GetFailed())
	}
	if stats.GetSkipped() != 4 {
		t.Errorf("GetSkipped() = %d, want 4", stats.GetSkipped())
	}
}
