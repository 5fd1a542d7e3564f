package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ncerr "nnfp/internal/errors"
	"nnfp/internal/retry"
	"nnfp/internal/transport"
	"nnfp/util"
)

func connectMode(addr string, action Action) (*ConnectMode, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &ConnectMode{
		Dialer:   &transport.TCPDialer{Timeout: 2 * time.Second},
		Address:  addr,
		User:     testUser,
		Password: testPassword,
		Action:   action,
		Logger:   util.NewLogger(0),
		Stdin:    strings.NewReader(""),
		Stdout:   out,
		Stderr:   &bytes.Buffer{},
	}, out
}

func runMode(t *testing.T, m Mode) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Run(ctx)
}

func TestConnectMode_List(t *testing.T) {
	srv := startServer(t, nil)
	os.MkdirAll(filepath.Join(srv.home, "docs", "old"), 0o755)
	os.WriteFile(filepath.Join(srv.home, "docs", "a.txt"), []byte("a"), 0o644)

	m, out := connectMode(srv.addr, ListAction{Dir: "/docs/"})
	if err := runMode(t, m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "old/\na.txt\n" {
		t.Errorf("listing = %q", got)
	}

	// The client ended its session with Shutdown.
	waitFor(t, func() bool { return srv.metrics.ActiveSessions() == 0 })
}

func TestConnectMode_GetPut(t *testing.T) {
	srv := startServer(t, nil)
	local := t.TempDir()

	src := filepath.Join(local, "report.pdf")
	body := strings.Repeat("%PDF ", 50)
	if err := os.WriteFile(src, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	put, _ := connectMode(srv.addr, PutAction{Local: src, Remote: "/report.pdf"})
	if err := runMode(t, put); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, _ := os.ReadFile(filepath.Join(srv.home, "report.pdf")); string(got) != body {
		t.Errorf("server copy = %q", got)
	}

	dst := filepath.Join(local, "copy.pdf")
	get, _ := connectMode(srv.addr, GetAction{Remote: "/report.pdf", Output: dst})
	if err := runMode(t, get); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got, _ := os.ReadFile(dst); string(got) != body {
		t.Errorf("local copy = %q", got)
	}

	// Output "-" streams to stdout.
	cat, out := connectMode(srv.addr, GetAction{Remote: "/report.pdf", Output: "-"})
	if err := runMode(t, cat); err != nil {
		t.Fatalf("get -: %v", err)
	}
	if out.String() != body {
		t.Errorf("stdout = %q", out.String())
	}

	// A second put to the same path is refused.
	again, _ := connectMode(srv.addr, PutAction{Local: src, Remote: "/report.pdf"})
	if err := runMode(t, again); !errors.Is(err, ncerr.ErrAcceptFailure) {
		t.Errorf("second put err = %v, want ErrAcceptFailure", err)
	}
}

func TestConnectMode_WrongPassword(t *testing.T) {
	srv := startServer(t, nil)

	m, _ := connectMode(srv.addr, ListAction{Dir: "/"})
	m.Password = "wrong"
	if err := runMode(t, m); !errors.Is(err, ncerr.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if srv.metrics.AuthFailures() != 1 {
		t.Errorf("auth failures = %d, want 1", srv.metrics.AuthFailures())
	}
}

// TestConnectMode_Console drives the interactive console with typed
// credentials: one wrong password, then the right one.
func TestConnectMode_Console(t *testing.T) {
	srv := startServer(t, nil)
	os.Mkdir(filepath.Join(srv.home, "docs"), 0o755)
	os.WriteFile(filepath.Join(srv.home, "docs", "x.bin"), []byte("xyz"), 0o644)

	local := t.TempDir()
	m, out := connectMode(srv.addr, ConsoleAction{LocalDir: local})
	m.User, m.Password = "", ""
	m.Stdin = strings.NewReader(strings.Join([]string{
		testUser,
		"nope",
		testPassword,
		"docs/",
		"get x.bin",
		"quit",
	}, "\n") + "\n")

	if err := runMode(t, m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, _ := os.ReadFile(filepath.Join(local, "x.bin")); string(got) != "xyz" {
		t.Errorf("downloaded = %q", got)
	}
	for _, want := range []string{"Username: ", "authentication failed, try again", "user:/docs/> "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("console output missing %q:\n%s", want, out.String())
		}
	}
}

func TestConnectMode_DialRetries(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := util.FormatAddr("127.0.0.1", port)

	m, _ := connectMode(addr, ListAction{Dir: "/"})
	attempts := 0
	m.Backoff = &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 3}
	m.Backoff.OnRetry = func(int, error, time.Duration) { attempts++ }

	err = runMode(t, m)
	var ne *ncerr.NetworkError
	if !errors.As(err, &ne) || ne.Op != "dial" {
		t.Fatalf("err = %v, want dial NetworkError", err)
	}
	if attempts != 2 {
		t.Errorf("retries = %d, want 2", attempts)
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"/docs/report.pdf": "report.pdf",
		"/a":               "a",
		"/dir/sub/":        "sub",
	}
	for in, want := range tests {
		if got := baseName(in); got != want {
			t.Errorf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}
