// Package ssh provides a connector for executing commands on remote hosts over SSH.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eugenetaranov/usbshare/internal/connector"
)

const (
	defaultPort    = 22
	defaultTimeout = 10 * time.Second
)

// defaultKeys are tried, in order, when no key file or password is configured.
var defaultKeys = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// Connector executes commands on a remote host. A single client connection is
// shared by all commands; each command runs in its own session.
type Connector struct {
	host           string
	user           string
	port           int
	keyFile        string
	password       string
	knownHosts     string
	insecureHostOK bool
	timeout        time.Duration

	mu     sync.Mutex
	client *gossh.Client
}

// Option configures the SSH connector.
type Option func(*Connector)

// WithUser sets the remote login user.
func WithUser(user string) Option {
	return func(c *Connector) {
		c.user = user
	}
}

// WithPort sets the remote SSH port.
func WithPort(port int) Option {
	return func(c *Connector) {
		if port > 0 {
			c.port = port
		}
	}
}

// WithKeyFile authenticates with the private key at path.
func WithKeyFile(path string) Option {
	return func(c *Connector) {
		c.keyFile = path
	}
}

// WithPassword authenticates with a password.
func WithPassword(password string) Option {
	return func(c *Connector) {
		c.password = password
	}
}

// WithKnownHosts checks host keys against the given known_hosts file.
func WithKnownHosts(path string) Option {
	return func(c *Connector) {
		c.knownHosts = path
	}
}

// WithInsecureIgnoreHostKey accepts any host key.
func WithInsecureIgnoreHostKey() Option {
	return func(c *Connector) {
		c.insecureHostOK = true
	}
}

// WithTimeout bounds the TCP dial and SSH handshake.
func WithTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// FromConfig translates the common connector configuration into options.
func FromConfig(cfg connector.Config) []Option {
	opts := []Option{
		WithUser(cfg.User),
		WithPort(cfg.Port),
		WithKeyFile(cfg.KeyFile),
		WithPassword(cfg.Password),
		WithKnownHosts(cfg.KnownHostsFile),
		WithTimeout(cfg.Timeout),
	}
	if cfg.InsecureIgnoreHostKey {
		opts = append(opts, WithInsecureIgnoreHostKey())
	}
	return opts
}

// New creates a new SSH connector for host.
func New(host string, opts ...Option) *Connector {
	c := &Connector{
		host:    host,
		port:    defaultPort,
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.user == "" {
		c.user = os.Getenv("USER")
	}

	return c
}

// Connect dials the remote host if no connection is open yet.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

// Execute runs a command on the remote host and returns the result.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	session, err := c.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(gossh.SIGKILL)
			_ = session.Close()
		case <-done:
		}
	}()

	log.Debug().Str("remote", c.String()).Str("cmd", cmd).Msg("ssh exec")

	err = session.Run(cmd)

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command interrupted on %s: %w", c.String(), ctx.Err())
		}
		var exitErr *gossh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		// The session ended without a status but the client is still usable.
		var missing *gossh.ExitMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("command on %s exited without status: %w", c.String(), err)
		}
		c.reset()
		return nil, fmt.Errorf("failed to execute command on %s: %w", c.String(), err)
	}

	return result, nil
}

// newSession opens a session, redialing once if the cached client is dead.
func (c *Connector) newSession(ctx context.Context) (*gossh.Session, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	session, err := client.NewSession()
	if err == nil {
		return session, nil
	}

	log.Debug().Err(err).Str("remote", c.String()).Msg("ssh session failed, redialing")
	c.reset()
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	client = c.client
	c.mu.Unlock()

	session, err = client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session on %s: %w", c.String(), err)
	}
	return session, nil
}

// reset drops the cached client so the next command redials.
func (c *Connector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
}

func (c *Connector) dial(ctx context.Context) (*gossh.Client, error) {
	cfg, err := c.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := c.addr()
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.String(), err)
	}

	// Bound the handshake as well as the dial
	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	sshConn, chans, reqs, err := gossh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", c.String(), err)
	}
	_ = conn.SetDeadline(time.Time{})

	return gossh.NewClient(sshConn, chans, reqs), nil
}

func (c *Connector) clientConfig() (*gossh.ClientConfig, error) {
	auth, err := c.authMethods()
	if err != nil {
		return nil, err
	}

	hostKey, err := c.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &gossh.ClientConfig{
		User:            c.user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.timeout,
	}, nil
}

func (c *Connector) authMethods() ([]gossh.AuthMethod, error) {
	var methods []gossh.AuthMethod

	if c.keyFile != "" {
		signer, err := loadSigner(c.keyFile)
		if err != nil {
			return nil, err
		}
		methods = append(methods, gossh.PublicKeys(signer))
	}

	if c.password != "" {
		methods = append(methods, gossh.Password(c.password))
	}

	if len(methods) == 0 {
		var signers []gossh.Signer
		for _, path := range homeFiles(defaultKeys...) {
			signer, err := loadSigner(path)
			if err != nil {
				continue
			}
			signers = append(signers, signer)
		}
		if len(signers) > 0 {
			methods = append(methods, gossh.PublicKeys(signers...))
		}
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no ssh authentication method configured for %s", c.String())
	}
	return methods, nil
}

func (c *Connector) hostKeyCallback() (gossh.HostKeyCallback, error) {
	if c.insecureHostOK {
		return gossh.InsecureIgnoreHostKey(), nil
	}

	path := c.knownHosts
	if path == "" {
		files := homeFiles("known_hosts")
		if len(files) == 0 {
			return nil, fmt.Errorf("no known_hosts file found, set one or disable host key checking")
		}
		path = files[0]
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", path, err)
	}
	return cb, nil
}

func (c *Connector) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Close terminates the connection.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// String returns a description of the connection.
func (c *Connector) String() string {
	if c.port == defaultPort {
		return fmt.Sprintf("ssh://%s@%s", c.user, c.host)
	}
	return fmt.Sprintf("ssh://%s@%s:%d", c.user, c.host, c.port)
}

func loadSigner(path string) (gossh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", path, err)
	}
	signer, err := gossh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key %s: %w", path, err)
	}
	return signer, nil
}

// homeFiles returns the existing files among ~/.ssh/<names>.
func homeFiles(names ...string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var found []string
	for _, name := range names {
		path := filepath.Join(home, ".ssh", name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = append(found, path)
		}
	}
	return found
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
