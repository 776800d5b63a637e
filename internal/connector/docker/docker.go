// Package docker provides a connector for executing commands in Docker containers.
//
// It targets usbip hosts that run usbipd inside a privileged container, where
// the container name takes the place of the remote hostname.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/eugenetaranov/usbshare/internal/connector"
)

// Connector executes commands inside Docker containers.
type Connector struct {
	container string
	user      string
	binary    string
	env       map[string]string
}

// Option configures the Docker connector.
type Option func(*Connector)

// WithUser sets the user for command execution.
func WithUser(user string) Option {
	return func(c *Connector) {
		c.user = user
	}
}

// WithEnv adds an environment variable for command execution.
func WithEnv(key, value string) Option {
	return func(c *Connector) {
		c.env[key] = value
	}
}

// WithBinary overrides the docker client binary (e.g. podman).
func WithBinary(path string) Option {
	return func(c *Connector) {
		c.binary = path
	}
}

// New creates a new Docker connector for the specified container.
func New(container string, opts ...Option) *Connector {
	c := &Connector{
		container: container,
		binary:    "docker",
		env:       make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect verifies the container exists and is running.
func (c *Connector) Connect(ctx context.Context) error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("%s command not found: %w", c.binary, err)
	}

	cmd := exec.CommandContext(ctx, c.binary, "inspect", "-f", "{{.State.Running}}", c.container)
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("container '%s' not found or not accessible: %w", c.container, err)
	}

	if strings.TrimSpace(string(output)) != "true" {
		return fmt.Errorf("container '%s' is not running", c.container)
	}

	return nil
}

// Execute runs a command inside the container.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	execCmd := exec.CommandContext(ctx, c.binary, c.buildExecArgs(cmd)...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("failed to execute command in container: %w", err)
		}
		// docker exec reports its own failures (no such container, daemon
		// unreachable) on stderr before the command ever runs
		if isDockerError(exitErr.ExitCode(), result.Stderr) {
			return nil, fmt.Errorf("docker exec in %s: %s", c.container, strings.TrimSpace(result.Stderr))
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

func isDockerError(code int, stderr string) bool {
	if strings.HasPrefix(stderr, "Error response from daemon") {
		return true
	}
	return code >= 125 && strings.HasPrefix(stderr, "Error")
}

// buildExecArgs builds the docker exec command arguments.
func (c *Connector) buildExecArgs(cmd string) []string {
	args := []string{"exec", "-i"}

	if c.user != "" {
		args = append(args, "-u", c.user)
	}

	// Sorted so the argument list is stable
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, c.env[k]))
	}

	return append(args, c.container, "/bin/sh", "-c", cmd)
}

// Close is a no-op for Docker connections.
func (c *Connector) Close() error {
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	if c.user != "" {
		return fmt.Sprintf("docker://%s@%s", c.user, c.container)
	}
	return fmt.Sprintf("docker://%s", c.container)
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
