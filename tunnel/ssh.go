package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "nnfp/internal/errors"
	"nnfp/util"
)

// SSHConfig holds everything needed to reach the SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// Secret reads passwords and key passphrases.  Nil reads from the
	// controlling terminal.
	Secret SecretFunc
}

// Addr is the gateway's host:port.
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel implements [Tunnel] with an ssh.Client; every Dial is a
// direct-tcpip channel opened by the gateway.
type SSHTunnel struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
}

// NewSSHTunnel creates a tunnel that is ready to [SSHTunnel.Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

// Connect dials the gateway and completes the SSH handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	authMethods, err := BuildAuthMethods(t.config)
	if err != nil {
		return ncerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return ncerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := t.config.Addr()
	t.logger.Debug("ssh: dialing %s as %s", addr, t.config.User)

	dialer := net.Dialer{Timeout: t.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return ncerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.mu.Unlock()

	go t.monitor(client)
	return nil
}

// Dial asks the gateway to open a TCP stream to address.  ctx is only
// checked before the channel is requested.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	client := t.client
	alive := t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrNotConnected
	}

	t.logger.Debug("tunnel: dialing %s %s", network, address)
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("tunnel dial %s: %w", address, err)
	}
	return conn, nil
}

// Close shuts down the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Verbose("ssh tunnel to %s closed: %v", t.config.Addr(), err)
	} else {
		t.logger.Verbose("ssh tunnel to %s closed", t.config.Addr())
	}
}
