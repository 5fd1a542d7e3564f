// Package session runs the server side of one NNFP connection.
//
// A Session owns its socket and every upload handle it opens.  Its read
// loop is strictly sequential: one frame is read, fully dispatched, and
// only then is the next frame read.  A download therefore blocks the
// session until its Eof is written, while uploads are multiplexed by
// transmission id across many frames.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"nnfp/internal/auth"
	ncerr "nnfp/internal/errors"
	"nnfp/internal/metrics"
	"nnfp/internal/transmission"
	"nnfp/internal/wire"
	"nnfp/util"
)

// Options tunes a session.  The zero value is the baseline protocol.
type Options struct {
	ChunkSize         int    // download chunk size; 0 = util.DefaultChunkSize
	MaxFrameBytes     uint32 // 0 = no cap on declared frame length
	DeadReadThreshold int    // 0 = wire.DefaultDeadReadThreshold
}

// Session is the server-side state of one accepted connection.
type Session struct {
	ID string

	conn    net.Conn
	r       *wire.Reader
	w       *wire.Writer
	gw      auth.Gateway
	log     *util.Logger
	metrics *metrics.Collector
	bufs    *util.BufPool

	state   State
	sends   *transmission.Counter
	uploads *transmission.Table

	closeOnce sync.Once
}

// New binds a session to conn.  bufs may be shared between sessions;
// nil allocates a private pool sized from opts.
func New(conn net.Conn, gw auth.Gateway, opts Options, bufs *util.BufPool, logger *util.Logger, m *metrics.Collector) *Session {
	if bufs == nil {
		chunk := opts.ChunkSize
		if chunk <= 0 {
			chunk = util.DefaultChunkSize
		}
		bufs = util.NewBufPool(wire.TransmissionIDLen + chunk)
	}

	if logger == nil {
		logger = util.NewLogger(0)
	}

	id := uuid.NewString()
	return &Session{
		ID:   id,
		conn: conn,
		r: wire.NewReader(conn,
			wire.WithMaxPayload(opts.MaxFrameBytes),
			wire.WithDeadReadThreshold(opts.DeadReadThreshold)),
		w:       wire.NewWriter(conn),
		gw:      gw,
		log:     logger.With("session", id).With("remote", conn.RemoteAddr().String()),
		metrics: m,
		bufs:    bufs,
		state:   Unauthenticated{},
		sends:   transmission.NewCounter(),
		uploads: transmission.NewTable(),
	}
}

// State returns the current authentication state.  Only meaningful from
// the goroutine running Serve or after it returned.
func (s *Session) State() State { return s.state }

// Serve runs the read loop until Shutdown, peer close, a fatal error, or
// ctx cancellation.  Resources are always released before it returns.
// A clean end (Shutdown, peer close, cancellation) returns nil.
func (s *Session) Serve(ctx context.Context) error {
	s.metrics.SessionOpened()
	s.log.Verbose("session opened")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stop:
		}
	}()

	err := s.loop()
	s.Close()
	s.log.Debug("traffic: %d bytes in, %d bytes out", s.r.BytesRead(), s.w.BytesWritten())

	switch {
	case err == nil:
		s.log.Verbose("session closed by peer shutdown")
		return nil
	case ctx.Err() != nil:
		s.log.Verbose("session cancelled")
		return nil
	case ncerr.IsClosed(err):
		s.log.Verbose("peer disconnected")
		return nil
	case ncerr.IsProtocolViolation(err):
		s.metrics.ProtocolViolation(err.Error())
		s.log.Error("protocol violation: %v", err)
		return err
	default:
		s.metrics.RecordError(err.Error())
		s.log.Error("session failed: %v", err)
		return err
	}
}

// Close shuts the socket down, which ends the read loop; the loop then
// releases its upload handles.  Safe to call more than once and from
// any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Debug("close socket: %v", err)
		}
		s.metrics.SessionClosed()
	})
}

func (s *Session) loop() error {
	defer func() {
		if err := s.uploads.CloseAll(); err != nil {
			s.log.Warn("release uploads: %v", err)
		}
	}()

	for {
		f, err := s.r.ReadFrame()
		if err != nil {
			if errors.Is(err, ncerr.ErrSocketDead) {
				return ncerr.Wrap("read", s.conn.RemoteAddr().String(), err)
			}
			return err
		}
		s.metrics.BytesReceived(int64(wire.HeaderLen + len(f.Payload)))

		done, err := s.dispatch(f)
		if err != nil || done {
			return err
		}
	}
}

// dispatch handles one frame.  done reports a Shutdown request.
func (s *Session) dispatch(f wire.Frame) (done bool, err error) {
	req := f.Request()
	s.log.Debug("recv %s (%d bytes) in %s", req, len(f.Payload), s.state)

	switch req {
	case wire.ReqShutdown:
		return true, nil

	case wire.ReqLogin:
		next, out := login(s.gw, string(f.Payload))
		s.state = next
		if out.typ == wire.RepAuthFailure {
			s.metrics.AuthFailed()
			s.log.Info("login rejected for %q", string(f.Payload))
		}
		return false, s.reply(out.typ, out.payload)

	case wire.ReqAuth:
		next, ok := authenticate(s.gw, s.state, f.Payload)
		s.state = next
		if !ok {
			s.metrics.AuthFailed()
			s.log.Info("authentication failed")
			return false, s.reply(wire.RepAuthFailure, nil)
		}
		user := next.(Authenticated)
		s.log = s.log.With("user", user.Username)
		s.log.Info("authenticated")
		return false, s.explore("/")

	case wire.ReqExplore:
		if !s.authenticated() {
			return false, s.reply(wire.RepAuthFailure, nil)
		}
		return false, s.explore(string(f.Payload))

	case wire.ReqServerToClientInit:
		if !s.authenticated() {
			return false, s.reply(wire.RepAuthFailure, nil)
		}
		return false, s.download(string(f.Payload))

	case wire.ReqClientToServerInit:
		if !s.authenticated() {
			return false, s.reply(wire.RepAuthFailure, nil)
		}
		return false, s.beginUpload(string(f.Payload))

	// FilePart and Eof are routed to the table in every state.
	case wire.ReqFilePart:
		return false, s.filePart(f)

	case wire.ReqEof:
		return false, s.finishUpload(f)

	default:
		return false, ncerr.Violation("dispatch", f.Type, ncerr.ErrUnexpectedFrame)
	}
}

func (s *Session) authenticated() bool {
	_, ok := s.state.(Authenticated)
	return ok
}

func (s *Session) home() string {
	if a, ok := s.state.(Authenticated); ok {
		return a.Home
	}
	return ""
}

func (s *Session) reply(typ wire.Reply, payload []byte) error {
	if err := s.w.WriteFrame(int16(typ), payload); err != nil {
		return ncerr.Wrap("write", s.conn.RemoteAddr().String(), fmt.Errorf("%s: %w", typ, err))
	}
	s.metrics.BytesSent(int64(wire.HeaderLen + len(payload)))
	return nil
}
