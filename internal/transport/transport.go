// Package transport decides how a client reaches an nnfp server: a
// plain TCP dial or a stream opened through an SSH gateway.  What is
// spoken over the connection is the client package's business.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections to an nnfp server.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH session.
	// Stateless dialers return nil.
	Close() error
}
