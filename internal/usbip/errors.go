package usbip

import (
	"errors"
	"fmt"
)

// Failure kinds carried by CommandError.
var (
	ErrDaemonNotRunning = errors.New("usbipd not running")
	ErrModuleNotLoaded  = errors.New("usbip kernel module not loaded")
	ErrCommandFailed    = errors.New("usbip command failed")
)

// ConfigurationError reports a device configuration that cannot be used.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid device config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid device config: key '%s' %s", e.Key, e.Reason)
}

// ConnectionError reports that the remote command could not be run or its
// result could not be collected.
type ConnectionError struct {
	Remote string
	Cmd    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("problem connecting to %s: %v", e.Remote, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CommandError reports a usbip command that ran and exited non-zero.
type CommandError struct {
	Host     string
	Cmd      string
	ExitCode int
	Stdout   string
	Stderr   string

	// Reason is a short diagnosis when the failure was recognised.
	Reason string

	// Kind is one of ErrDaemonNotRunning, ErrModuleNotLoaded or ErrCommandFailed.
	Kind error
}

func (e *CommandError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("command failed: host=%s, command=%s, rc=%d, stdout=%s, stderr=%s",
		e.Host, e.Cmd, e.ExitCode, e.Stdout, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	if e.Kind == nil {
		return ErrCommandFailed
	}
	return e.Kind
}
