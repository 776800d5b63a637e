// Package connector defines the interface for executing commands on hosts that
// export USB devices.
package connector

import (
	"context"
	"fmt"
	"time"
)

// Connection types understood by the fleet and the CLI.
const (
	TypeSSH    = "ssh"
	TypeLocal  = "local"
	TypeDocker = "docker"
)

// Result holds the output from command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Connector is the interface for connecting to and executing commands on targets.
//
// Execute returns an error only when the command could not be delivered or its
// outcome could not be collected. A command that ran and exited non-zero is
// reported through Result.ExitCode with a nil error.
type Connector interface {
	// Connect establishes a connection to the target.
	Connect(ctx context.Context) error

	// Execute runs a command on the target and returns the result.
	Execute(ctx context.Context, cmd string) (*Result, error)

	// Close terminates the connection.
	Close() error

	// String returns a human-readable description of the connection.
	String() string
}

// Config holds common configuration for connectors.
type Config struct {
	// Host is the target hostname or IP address.
	Host string

	// User is the username for authentication.
	User string

	// Port is the remote port, 0 means the connector default.
	Port int

	// KeyFile is a private key used for authentication.
	KeyFile string

	// Password is used when no key file is configured.
	Password string

	// KnownHostsFile is checked for the remote host key.
	KnownHostsFile string

	// InsecureIgnoreHostKey disables host key checking.
	InsecureIgnoreHostKey bool

	// Timeout bounds connection establishment.
	Timeout time.Duration
}

// ValidType reports whether t names a supported connection type.
func ValidType(t string) bool {
	switch t {
	case TypeSSH, TypeLocal, TypeDocker:
		return true
	default:
		return false
	}
}

// Key returns the cache key for a connection of type t to host.
func Key(t, host string) string {
	return fmt.Sprintf("%s://%s", t, host)
}
