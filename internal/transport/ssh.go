package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"nnfp/tunnel"
	"nnfp/util"
)

// SSHDialer routes connections through an SSH gateway.  The tunnel is
// connected lazily on the first Dial and re-established if the gateway
// dropped it between dials.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	config *tunnel.SSHConfig
	logger *util.Logger
	mu     sync.Mutex
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		logger: logger,
	}
}

func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	d.logger.Verbose("establishing SSH tunnel to %s@%s", d.config.User, d.config.Addr())
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.logger.Verbose("SSH tunnel established")
	return nil
}

// Dial connects to address through the SSH tunnel.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
