// Package facts gathers system information relevant to USB/IP from target hosts.
package facts

import (
	"context"
	"fmt"
	"strings"

	"github.com/eugenetaranov/usbshare/internal/connector"
)

// Fact keys.
const (
	Hostname        = "hostname"
	Kernel          = "kernel"
	OSType          = "os_type"
	OSName          = "os_name"
	Distribution    = "distribution"
	Architecture    = "architecture"
	Arch            = "arch"
	USBIPVersion    = "usbip_version"
	USBIPHostLoaded = "usbip_host_loaded"
	USBIPDRunning   = "usbipd_running"
)

// Gather collects system facts from the target. A probe that fails leaves
// its fact unset; only a transport failure of the first probe is returned.
func Gather(ctx context.Context, conn connector.Connector) (map[string]any, error) {
	facts := make(map[string]any)

	result, err := conn.Execute(ctx, "uname -s")
	if err != nil {
		return nil, fmt.Errorf("failed to gather facts from %s: %w", conn, err)
	}
	if result.ExitCode == 0 {
		facts[OSType] = strings.TrimSpace(result.Stdout)
	}

	if v, ok := probe(ctx, conn, "hostname"); ok {
		facts[Hostname] = v
	}
	if v, ok := probe(ctx, conn, "uname -r"); ok {
		facts[Kernel] = v
	}

	// Get architecture
	if arch, ok := probe(ctx, conn, "uname -m"); ok {
		facts[Architecture] = arch

		// Normalize architecture names
		switch arch {
		case "x86_64", "amd64":
			facts[Arch] = "amd64"
		case "aarch64", "arm64":
			facts[Arch] = "arm64"
		case "armv7l", "armv6l":
			facts[Arch] = "arm"
		default:
			facts[Arch] = arch
		}
	}

	if facts[OSType] == "Linux" {
		if content, ok := probe(ctx, conn, "cat /etc/os-release 2>/dev/null"); ok {
			osRelease := parseOSRelease(content)
			if id, ok := osRelease["ID"]; ok {
				facts[Distribution] = id
			}
			if name, ok := osRelease["PRETTY_NAME"]; ok {
				facts[OSName] = name
			}
		}
	}

	if v, ok := probe(ctx, conn, "usbip version 2>&1"); ok {
		facts[USBIPVersion] = v
	}
	if _, ok := probe(ctx, conn, "test -d /sys/module/usbip_host"); ok {
		facts[USBIPHostLoaded] = true
	} else if ctx.Err() == nil {
		facts[USBIPHostLoaded] = false
	}
	if _, ok := probe(ctx, conn, "pgrep -x usbipd"); ok {
		facts[USBIPDRunning] = true
	} else if ctx.Err() == nil {
		facts[USBIPDRunning] = false
	}

	return facts, nil
}

// Problems returns a hint for every fact that prevents sharing devices.
func Problems(facts map[string]any) []string {
	var problems []string

	if osType, ok := facts[OSType].(string); ok && osType != "Linux" {
		problems = append(problems, fmt.Sprintf("usbip requires Linux, host runs %s", osType))
	}
	if _, ok := facts[USBIPVersion]; !ok {
		problems = append(problems, "usbip is not installed")
	}
	if loaded, ok := facts[USBIPHostLoaded].(bool); ok && !loaded {
		problems = append(problems, "kernel module usbip_host is not loaded, try `sudo modprobe usbip_host`")
	}
	if running, ok := facts[USBIPDRunning].(bool); ok && !running {
		problems = append(problems, "usbipd is not running")
	}

	return problems
}

// probe runs cmd and returns its trimmed stdout when it exits zero.
func probe(ctx context.Context, conn connector.Connector, cmd string) (string, bool) {
	result, err := conn.Execute(ctx, cmd)
	if err != nil || result.ExitCode != 0 {
		return "", false
	}
	return strings.TrimSpace(result.Stdout), true
}

// parseOSRelease parses /etc/os-release format.
func parseOSRelease(content string) map[string]string {
	result := make(map[string]string)
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok && key != "" {
			result[key] = strings.Trim(value, "\"'")
		}
	}
	return result
}
