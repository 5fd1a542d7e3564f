package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "nnfp/internal/errors"
)

// startGateway runs a minimal SSH server on loopback that accepts one
// password and serves direct-tcpip channels.
func startGateway(t *testing.T, password string) (host string, port int) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if string(pw) != password {
				return nil, errors.New("denied")
			}
			return nil, nil
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveGateway(conn, cfg)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func serveGateway(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "direct-tcpip" {
			nc.Reject(ssh.UnknownChannelType, "unsupported") //nolint:errcheck
			continue
		}
		var target struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nc.ExtraData(), &target); err != nil {
			nc.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		up, err := net.Dial("tcp", net.JoinHostPort(target.Host, strconv.Itoa(int(target.Port))))
		if err != nil {
			nc.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		ch, creqs, err := nc.Accept()
		if err != nil {
			up.Close()
			continue
		}
		go ssh.DiscardRequests(creqs)
		go func() {
			io.Copy(ch, up) //nolint:errcheck
			ch.CloseWrite()  //nolint:errcheck
		}()
		go func() {
			io.Copy(up, ch) //nolint:errcheck
			up.Close()
		}()
	}
}

// startEcho runs a TCP server that echoes one line back.
func startEcho(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}()
		}
	}()
	return ln.Addr().String()
}

func TestSSHTunnel_DialThroughGateway(t *testing.T) {
	host, port := startGateway(t, "letmein")
	target := startEcho(t)

	tun := NewSSHTunnel(&SSHConfig{
		User:        "ops",
		Host:        host,
		Port:        port,
		PromptPass:  true,
		Secret:      func(string) (string, error) { return "letmein", nil },
		ConnTimeout: 5 * time.Second,
	}, nil)

	ctx := context.Background()
	if _, err := tun.Dial(ctx, "tcp", target); !errors.Is(err, ncerr.ErrNotConnected) {
		t.Fatalf("dial before connect: %v", err)
	}
	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !tun.IsAlive() {
		t.Fatal("tunnel should be alive")
	}

	conn, err := tun.Dial(ctx, "tcp", target)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	msg := "frame bytes\n"
	if _, err := conn.Write([]byte(msg)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(msg))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != msg {
		t.Errorf("echo = %q", buf)
	}
	conn.Close()

	if err := tun.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tun.IsAlive() {
		t.Error("tunnel should be down after Close")
	}
}

func TestSSHTunnel_WrongPassword(t *testing.T) {
	host, port := startGateway(t, "letmein")

	tun := NewSSHTunnel(&SSHConfig{
		User:       "ops",
		Host:       host,
		Port:       port,
		PromptPass: true,
		Secret:     func(string) (string, error) { return "nope", nil },
	}, nil)

	err := tun.Connect(context.Background())
	var se *ncerr.SSHError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SSHError", err)
	}
}

func TestSSHTunnel_GatewayDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tun := NewSSHTunnel(&SSHConfig{
		Host:       "127.0.0.1",
		Port:       port,
		PromptPass: true,
		Secret:     func(string) (string, error) { return "x", nil },
	}, nil)
	if err := tun.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestSSHConfig_Addr(t *testing.T) {
	cfg := &SSHConfig{Host: "::1", Port: 2222}
	if got, want := cfg.Addr(), fmt.Sprintf("[::1]:%d", 2222); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}
