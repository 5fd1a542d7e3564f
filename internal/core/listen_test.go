package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"nnfp/internal/auth"
	"nnfp/internal/client"
	"nnfp/internal/metrics"
	"nnfp/internal/session"
	"nnfp/util"
)

const (
	testUser     = "user"
	testPassword = "password"
)

type testServer struct {
	addr    string
	home    string
	metrics *metrics.Collector
	cancel  context.CancelFunc
	done    chan error
	once    sync.Once
}

// startServer runs a ListenMode on a free loopback port and waits
// until it accepts connections.
func startServer(t *testing.T, tweak func(*ListenMode)) *testServer {
	t.Helper()

	home := t.TempDir()
	store, err := auth.NewStore([]auth.Record{{Username: testUser, Password: testPassword, Home: home}})
	if err != nil {
		t.Fatal(err)
	}
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	ready := make(chan net.Addr, 1)
	mode := &ListenMode{
		Address:     fmt.Sprintf("127.0.0.1:%d", port),
		Gateway:     store,
		Session:     session.Options{ChunkSize: 16},
		Metrics:     metrics.New(),
		GracePeriod: time.Second,
		Logger:      util.NewLogger(0),
		Ready:       func(a net.Addr) { ready <- a },
	}
	if tweak != nil {
		tweak(mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &testServer{home: home, metrics: mode.Metrics, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- mode.Run(ctx) }()

	select {
	case a := <-ready:
		s.addr = a.String()
	case err := <-s.done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not start")
	}
	t.Cleanup(func() { s.stop(t) })
	return s
}

func (s *testServer) stop(t *testing.T) {
	t.Helper()
	s.once.Do(func() {
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})
}

func dialClient(t *testing.T, addr string) *client.Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := client.New(conn, client.WithChunkSize(5))
	t.Cleanup(func() { c.Close() })
	return c
}

// TestListenMode_Session runs a full session over real TCP.
func TestListenMode_Session(t *testing.T) {
	srv := startServer(t, nil)
	os.Mkdir(filepath.Join(srv.home, "docs"), 0o755) //nolint:errcheck

	c := dialClient(t, srv.addr)
	root, err := c.SignIn(testUser, testPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if len(root) != 1 || root[0] != "docs/" {
		t.Errorf("root = %q", root)
	}

	body := strings.Repeat("nnfp over tcp ", 10)
	if _, err := c.Upload("/docs/a.txt", strings.NewReader(body)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	var got bytes.Buffer
	if _, err := c.Download("/docs/a.txt", &got); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got.String() != body {
		t.Errorf("download = %q", got.String())
	}
	if err := c.Shutdown(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return srv.metrics.ActiveSessions() == 0 })
	if srv.metrics.Uploads() != 1 || srv.metrics.Downloads() != 1 {
		t.Errorf("uploads=%d downloads=%d", srv.metrics.Uploads(), srv.metrics.Downloads())
	}
}

// TestListenMode_ConcurrentSessions verifies sessions are independent:
// one client's violation does not disturb the others.
func TestListenMode_ConcurrentSessions(t *testing.T) {
	srv := startServer(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.DialTimeout("tcp", srv.addr, 2*time.Second)
			if err != nil {
				errs <- err
				return
			}
			c := client.New(conn)
			defer c.Close()
			if _, err := c.SignIn(testUser, testPassword); err != nil {
				errs <- err
				return
			}
			name := fmt.Sprintf("/f%d", i)
			if _, err := c.Upload(name, strings.NewReader(name)); err != nil {
				errs <- err
				return
			}
			var b bytes.Buffer
			if _, err := c.Download(name, &b); err != nil || b.String() != name {
				errs <- fmt.Errorf("%s: %q %v", name, b.String(), err)
			}
		}(i)
	}

	// A misbehaving peer in the middle of it all.
	bad, err := net.Dial("tcp", srv.addr)
	if err != nil {
		t.Fatal(err)
	}
	bad.Write([]byte{0, 0, 0, 0, 99, 0}) //nolint:errcheck
	io.Copy(io.Discard, bad)             //nolint:errcheck
	bad.Close()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	waitFor(t, func() bool { return srv.metrics.ProtocolViolations() == 1 })
}

// TestListenMode_GracePeriod verifies an idle session is cut off once
// the grace period is over.
func TestListenMode_GracePeriod(t *testing.T) {
	srv := startServer(t, func(m *ListenMode) { m.GracePeriod = 100 * time.Millisecond })

	c := dialClient(t, srv.addr)
	if _, err := c.SignIn(testUser, testPassword); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	srv.stop(t)
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("stopped after %v, before the grace period", elapsed)
	}
	if _, err := c.Explore("/"); err == nil {
		t.Error("session should be closed after shutdown")
	}
}

func TestListenMode_Metrics(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	metricsAddr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := startServer(t, func(m *ListenMode) { m.MetricsAddr = metricsAddr })

	c := dialClient(t, srv.addr)
	if _, err := c.SignIn(testUser, "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}

	resp, err := http.Get("http://" + metricsAddr + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"nnfp_sessions_active 1", "nnfp_auth_failures_total 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestListenMode_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	mode := &ListenMode{Address: ln.Addr().String(), Logger: util.NewLogger(0)}
	if err := mode.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
