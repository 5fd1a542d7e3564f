// Package client is the peer side of the NNFP protocol.  A Client keeps
// at most one request outstanding: every method writes one request and
// reads frames until the matching reply arrives.
//
// Recoverable server answers surface as sentinels from
// nnfp/internal/errors (ErrAuthFailed, ErrAccessFailure,
// ErrAcceptFailure); any reply that does not fit the request is a
// ProtocolError and leaves the Client unusable.
package client

import (
	"fmt"
	"io"
	"net"

	"nnfp/internal/auth"
	ncerr "nnfp/internal/errors"
	"nnfp/internal/wire"
	"nnfp/util"
)

// Client drives one connection to an NNFP server.  It is not safe for
// concurrent use.
type Client struct {
	conn  net.Conn
	r     *wire.Reader
	w     *wire.Writer
	log   *util.Logger
	chunk int
	user  string
}

// Option customises a Client.
type Option func(*Client)

// WithChunkSize sets the upload chunk size (default util.DefaultChunkSize).
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunk = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *util.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:  conn,
		r:     wire.NewReader(conn),
		w:     wire.NewWriter(conn),
		log:   util.NewLogger(0),
		chunk: util.DefaultChunkSize,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// User returns the name of the last successful login, if any.
func (c *Client) User() string { return c.user }

// ── Handshake ────────────────────────────────────────────────────────

// Login asks for a challenge for username.
func (c *Client) Login(username string) ([]byte, error) {
	f, err := c.roundTrip(wire.ReqLogin, []byte(username), wire.RepAuthCheckData)
	if err != nil {
		return nil, err
	}
	return f.Payload, nil
}

// Authenticate answers challenge with MD5(challenge ++ password).  On
// success the server follows up with the root listing, which is
// returned.
func (c *Client) Authenticate(username string, challenge []byte, password string) ([]string, error) {
	f, err := c.roundTrip(wire.ReqAuth, auth.Response(challenge, password), wire.RepDirectoryContents)
	if err != nil {
		return nil, err
	}
	c.user = username
	return wire.DecodeDirectory(f.Payload)
}

// SignIn runs the whole handshake.
func (c *Client) SignIn(username, password string) ([]string, error) {
	challenge, err := c.Login(username)
	if err != nil {
		return nil, err
	}
	return c.Authenticate(username, challenge, password)
}

// ── Requests ─────────────────────────────────────────────────────────

// Explore lists a remote directory.  dir must end with '/'.
func (c *Client) Explore(dir string) ([]string, error) {
	f, err := c.roundTrip(wire.ReqExplore, []byte(dir), wire.RepDirectoryContents)
	if err != nil {
		return nil, err
	}
	return wire.DecodeDirectory(f.Payload)
}

// Download fetches remote into w and returns the number of bytes
// written.  The server streams the whole file before answering anything
// else, so Download reads until the trailing Eof.
func (c *Client) Download(remote string, w io.Writer) (int64, error) {
	f, err := c.roundTrip(wire.ReqServerToClientInit, []byte(remote), wire.RepServerToClientAccept)
	if err != nil {
		return 0, err
	}
	size, id, err := wire.DecodeDownloadAccept(f.Payload)
	if err != nil {
		return 0, ncerr.Violation("download-accept", f.Type, err)
	}
	c.log.Verbose("download %d: %s (%d bytes)", id, remote, size)

	var got int64
	for {
		f, err := c.r.ReadFrame()
		if err != nil {
			return got, err
		}
		switch f.Reply() {
		case wire.RepFilePart:
			part, chunk, err := wire.SplitFilePart(f.Payload)
			if err != nil {
				return got, ncerr.Violation("download", f.Type, err)
			}
			if part != id {
				return got, ncerr.Violation("download", f.Type,
					fmt.Errorf("%w: got %d, want %d", ncerr.ErrUnknownTransmission, part, id))
			}
			n, err := w.Write(chunk)
			got += int64(n)
			if err != nil {
				return got, fmt.Errorf("download %s: %w", remote, err)
			}
		case wire.RepEof:
			if got != size {
				c.log.Warn("download %d: announced %d bytes, received %d", id, size, got)
			}
			return got, nil
		default:
			return got, ncerr.Violation("download", f.Type, ncerr.ErrUnexpectedFrame)
		}
	}
}

// BeginUpload registers remote for writing and returns its transmission
// id.  The server refuses to overwrite an existing file.
func (c *Client) BeginUpload(remote string) (int32, error) {
	f, err := c.roundTrip(wire.ReqClientToServerInit, []byte(remote), wire.RepClientToServerAccept)
	if err != nil {
		return 0, err
	}
	id, err := wire.DecodeTransmissionID(f.Payload)
	if err != nil {
		return 0, ncerr.Violation("upload-accept", f.Type, err)
	}
	return id, nil
}

// SendPart appends chunk to upload id.  The server does not reply.
func (c *Client) SendPart(id int32, chunk []byte) error {
	return c.send(wire.ReqFilePart, wire.EncodeFilePart(id, chunk))
}

// EndUpload closes upload id.  The server does not reply.
func (c *Client) EndUpload(id int32) error {
	return c.send(wire.ReqEof, wire.EncodeTransmissionID(id))
}

// Upload copies r to remote in chunks and closes the transmission.
func (c *Client) Upload(remote string, r io.Reader) (int64, error) {
	id, err := c.BeginUpload(remote)
	if err != nil {
		return 0, err
	}
	c.log.Verbose("upload %d: %s", id, remote)

	buf := make([]byte, wire.TransmissionIDLen+c.chunk)
	wire.PutTransmissionID(buf, id)
	var sent int64
	for {
		n, rerr := r.Read(buf[wire.TransmissionIDLen:])
		if n > 0 {
			if err := c.send(wire.ReqFilePart, buf[:wire.TransmissionIDLen+n]); err != nil {
				return sent, err
			}
			sent += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			// Close the transmission so the server releases the handle.
			c.EndUpload(id) //nolint:errcheck
			return sent, fmt.Errorf("upload %s: %w", remote, rerr)
		}
	}
	return sent, c.EndUpload(id)
}

// Shutdown asks the server to end the session.
func (c *Client) Shutdown() error {
	return c.send(wire.ReqShutdown, nil)
}

// Close closes the connection without a Shutdown.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ── Plumbing ─────────────────────────────────────────────────────────

func (c *Client) send(typ wire.Request, payload []byte) error {
	if err := c.w.WriteFrame(int16(typ), payload); err != nil {
		return ncerr.Wrap("write", c.conn.RemoteAddr().String(), err)
	}
	return nil
}

// roundTrip sends one request and maps the reply.
func (c *Client) roundTrip(typ wire.Request, payload []byte, want wire.Reply) (wire.Frame, error) {
	if err := c.send(typ, payload); err != nil {
		return wire.Frame{}, err
	}
	f, err := c.r.ReadFrame()
	if err != nil {
		return wire.Frame{}, err
	}
	c.log.Debug("%s -> %s (%d bytes)", typ, f.Reply(), len(f.Payload))

	// Auth carries a digest, and its follow-up listing is always the root.
	subject := string(payload)
	if typ == wire.ReqAuth {
		subject = "/"
	}

	switch f.Reply() {
	case want:
		return f, nil
	case wire.RepAuthFailure:
		return f, ncerr.ErrAuthFailed
	case wire.RepAccessFailure:
		return f, fmt.Errorf("%w: %s", ncerr.ErrAccessFailure, subject)
	case wire.RepAcceptFailure:
		return f, fmt.Errorf("%w: %s", ncerr.ErrAcceptFailure, subject)
	default:
		return f, ncerr.Violation(typ.String(), f.Type, ncerr.ErrUnexpectedFrame)
	}
}
