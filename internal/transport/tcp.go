package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration // 0 = OS default, negative disables
}

// Dial connects to address over TCP.  Nagle is disabled so small
// control frames are not held back behind the 6-byte header.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true) //nolint:errcheck
	}
	return conn, nil
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
