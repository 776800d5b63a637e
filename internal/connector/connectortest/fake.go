// Package connectortest provides a scripted connector for tests.
package connectortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/eugenetaranov/usbshare/internal/connector"
)

// Fake answers commands from a script and records every command it receives.
// Unscripted commands succeed with empty output.
type Fake struct {
	Name string

	mu        sync.Mutex
	results   map[string]*connector.Result
	errs      map[string]error
	connErr   error
	calls     []string
	connected bool
	closed    bool
}

// New creates a fake connector identified as name.
func New(name string) *Fake {
	return &Fake{
		Name:    name,
		results: make(map[string]*connector.Result),
		errs:    make(map[string]error),
	}
}

// On scripts the result for cmd.
func (f *Fake) On(cmd string, exitCode int, stdout, stderr string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[cmd] = &connector.Result{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}
	return f
}

// Fail makes cmd fail at the transport level with err.
func (f *Fake) Fail(cmd string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[cmd] = err
	return f
}

// FailConnect makes Connect and every Execute fail with err.
func (f *Fake) FailConnect(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connErr = err
	return f
}

// Connect implements connector.Connector.
func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return f.connErr
	}
	f.connected = true
	return nil
}

// Execute implements connector.Connector.
func (f *Fake) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.connErr != nil {
		return nil, f.connErr
	}
	if err, ok := f.errs[cmd]; ok {
		return nil, err
	}
	if r, ok := f.results[cmd]; ok {
		copied := *r
		return &copied, nil
	}
	return &connector.Result{}, nil
}

// Close implements connector.Connector.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// String implements connector.Connector.
func (f *Fake) String() string {
	return fmt.Sprintf("fake://%s", f.Name)
}

// Calls returns the commands executed so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many times cmd was executed.
func (f *Fake) Count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ connector.Connector = (*Fake)(nil)
