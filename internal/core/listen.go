package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"nnfp/internal/auth"
	"nnfp/internal/metrics"
	"nnfp/internal/session"
	"nnfp/internal/wire"
	"nnfp/util"
)

// ListenMode is the connection acceptor: it accepts TCP connections
// and runs one session per connection on its own goroutine.  Sessions
// share the credential gateway, the metrics collector, and a chunk
// buffer pool, and nothing else.
type ListenMode struct {
	Address     string // ":2920"
	Gateway     auth.Gateway
	Session     session.Options
	Metrics     *metrics.Collector
	MetricsAddr string        // empty = no /metrics endpoint
	GracePeriod time.Duration // how long open sessions may finish after ctx ends
	Logger      *util.Logger

	// Ready, when set, is called with the bound address once the
	// listener and the metrics endpoint are up.
	Ready func(net.Addr)
}

// Run listens until ctx is cancelled, then stops accepting and waits up
// to GracePeriod for open sessions before cutting them off.
func (m *ListenMode) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.Address, err)
	}
	defer ln.Close()

	if m.MetricsAddr != "" {
		stop, err := m.serveMetrics()
		if err != nil {
			return err
		}
		defer stop()
	}

	m.Logger.Info("listening on %s", ln.Addr())
	if m.Ready != nil {
		m.Ready(ln.Addr())
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	chunk := m.Session.ChunkSize
	if chunk <= 0 {
		chunk = util.DefaultChunkSize
	}
	bufs := util.NewBufPool(wire.TransmissionIDLen + chunk)

	// Sessions outlive ctx by the grace period.
	sessCtx, cutOff := context.WithCancel(context.Background())
	defer cutOff()
	var wg sync.WaitGroup

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = fmt.Errorf("accept: %w", err)
			}
			break
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true) //nolint:errcheck
		}

		sess := session.New(conn, m.Gateway, m.Session, bufs, m.Logger, m.Metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Serve(sessCtx) //nolint:errcheck // logged by the session
		}()
	}

	m.drain(&wg, cutOff)
	m.Logger.Verbose("server stopped\n%s", m.Metrics.JSON())
	return acceptErr
}

// drain waits for sessions to finish, cancelling them once the grace
// period is over.
func (m *ListenMode) drain(wg *sync.WaitGroup, cutOff context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if n := m.Metrics.ActiveSessions(); n > 0 {
		m.Logger.Info("waiting up to %s for %d open session(s)", m.GracePeriod, n)
	}

	timer := time.NewTimer(m.GracePeriod)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
	}

	m.Logger.Warn("grace period over, closing remaining sessions")
	cutOff()
	<-done
}

// serveMetrics exposes the collector on MetricsAddr/metrics.
func (m *ListenMode) serveMetrics() (stop func(), err error) {
	h, err := metrics.Handler(m.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	ln, err := net.Listen("tcp", m.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", m.MetricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	m.Logger.Info("metrics on http://%s/metrics", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.Logger.Error("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	}, nil
}
