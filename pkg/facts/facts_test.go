package facts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/usbshare/internal/connector/connectortest"
)

func raspberryPi() *connectortest.Fake {
	return connectortest.New("pi").
		On("uname -s", 0, "Linux\n", "").
		On("hostname", 0, "usbhub\n", "").
		On("uname -r", 0, "6.6.31+rpt-rpi-v8\n", "").
		On("uname -m", 0, "aarch64\n", "").
		On("cat /etc/os-release 2>/dev/null", 0, "PRETTY_NAME=\"Debian GNU/Linux 12 (bookworm)\"\nID=debian\n", "").
		On("usbip version 2>&1", 0, "usbip (usbip-utils 2.0)\n", "").
		On("test -d /sys/module/usbip_host", 0, "", "").
		On("pgrep -x usbipd", 0, "812\n", "")
}

func TestGather(t *testing.T) {
	facts, err := Gather(context.Background(), raspberryPi())
	require.NoError(t, err)

	assert.Equal(t, "Linux", facts[OSType])
	assert.Equal(t, "usbhub", facts[Hostname])
	assert.Equal(t, "6.6.31+rpt-rpi-v8", facts[Kernel])
	assert.Equal(t, "arm64", facts[Arch])
	assert.Equal(t, "debian", facts[Distribution])
	assert.Equal(t, "Debian GNU/Linux 12 (bookworm)", facts[OSName])
	assert.Equal(t, "usbip (usbip-utils 2.0)", facts[USBIPVersion])
	assert.Equal(t, true, facts[USBIPHostLoaded])
	assert.Equal(t, true, facts[USBIPDRunning])
	assert.Empty(t, Problems(facts))
}

func TestGatherMissingPieces(t *testing.T) {
	conn := connectortest.New("pi").
		On("uname -s", 0, "Linux\n", "").
		On("usbip version 2>&1", 127, "sh: usbip: not found\n", "").
		On("test -d /sys/module/usbip_host", 1, "", "").
		On("pgrep -x usbipd", 1, "", "")

	facts, err := Gather(context.Background(), conn)
	require.NoError(t, err)

	assert.NotContains(t, facts, USBIPVersion)
	assert.Equal(t, false, facts[USBIPHostLoaded])
	assert.Equal(t, false, facts[USBIPDRunning])

	problems := Problems(facts)
	require.Len(t, problems, 3)
	assert.Equal(t, "usbip is not installed", problems[0])
	assert.Contains(t, problems[1], "modprobe usbip_host")
	assert.Equal(t, "usbipd is not running", problems[2])
}

func TestGatherTransportFailure(t *testing.T) {
	conn := connectortest.New("pi").FailConnect(errors.New("dial tcp: i/o timeout"))

	_, err := Gather(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
}

func TestProblemsNonLinux(t *testing.T) {
	problems := Problems(map[string]any{OSType: "Darwin"})
	assert.Contains(t, problems, "usbip requires Linux, host runs Darwin")
}

func TestParseOSRelease(t *testing.T) {
	got := parseOSRelease("# comment\nID=ubuntu\nVERSION_ID='24.04'\n\nBROKEN\n")
	assert.Equal(t, map[string]string{"ID": "ubuntu", "VERSION_ID": "24.04"}, got)
}
