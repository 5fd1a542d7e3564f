package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"nnfp/internal/client"
	ncerr "nnfp/internal/errors"
	"nnfp/internal/retry"
	"nnfp/internal/transport"
	"nnfp/util"
)

// maxPasswordAttempts bounds interactive sign-in retries when the
// password was typed rather than configured.
const maxPasswordAttempts = 3

// ConnectMode dials an nnfp server, signs in, and runs one client
// action.  The session always ends with a Shutdown frame.
type ConnectMode struct {
	Dialer    transport.Dialer
	Address   string
	Backoff   *retry.Backoff // nil = a single attempt
	User      string         // prompted for when empty
	Password  string         // prompted for when empty
	ChunkSize int
	Action    Action
	Logger    *util.Logger

	// Stdin/Stdout/Stderr default to the process streams when nil.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Action is the work done once signed in.
type Action interface {
	Run(ctx context.Context, env *ActionEnv) error
	// Interactive actions prompt on stdout; batch actions keep stdout
	// for data and prompt on stderr.
	Interactive() bool
}

// ActionEnv is what an Action gets to work with.
type ActionEnv struct {
	Client *client.Client
	Prompt *client.Prompter
	Stdout io.Writer
	Logger *util.Logger
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *ConnectMode) stderr() io.Writer {
	if m.Stderr != nil {
		return m.Stderr
	}
	return os.Stderr
}

// Run dials, signs in, and hands the client to the action.  The
// transport is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	promptOut := m.stderr()
	if m.Action.Interactive() {
		promptOut = m.stdout()
	}
	prompt := client.NewPrompter(m.stdin(), promptOut)

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	m.Logger.Verbose("connected to %s", conn.RemoteAddr())

	c := client.New(conn, client.WithChunkSize(m.ChunkSize), client.WithLogger(m.Logger))

	// A cancelled ctx unblocks any pending read.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := m.signIn(c, prompt); err != nil {
		return err
	}
	m.Logger.Verbose("signed in as %s", c.User())

	err = m.Action.Run(ctx, &ActionEnv{Client: c, Prompt: prompt, Stdout: m.stdout(), Logger: m.Logger})
	if ctx.Err() != nil {
		return nil
	}
	if serr := c.Shutdown(); serr != nil && err == nil && !ncerr.IsClosed(serr) {
		m.Logger.Debug("shutdown: %v", serr)
	}
	return err
}

// dial connects with the configured backoff.  SSH failures that
// another attempt cannot fix end the loop early.
func (m *ConnectMode) dial(ctx context.Context) (net.Conn, error) {
	m.Logger.Verbose("connecting to %s", m.Address)

	b := m.Backoff
	if b == nil {
		b = retry.ForDial(0)
	}
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, err error, wait time.Duration) {
			m.Logger.Warn("connect attempt %d failed: %v (retrying in %s)", attempt, err, wait.Truncate(time.Millisecond))
		}
	}

	var conn net.Conn
	err := b.Do(ctx, func(int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			var se *ncerr.SSHError
			if errors.As(err, &se) {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, ncerr.Wrap("dial", m.Address, err)
	}
	return conn, nil
}

func (m *ConnectMode) signIn(c *client.Client, prompt *client.Prompter) error {
	user := m.User
	if user == "" {
		u, err := prompt.Line("Username: ")
		if err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
		user = u
	}

	password, typed := m.Password, false
	for attempt := 1; ; attempt++ {
		if m.Password == "" {
			p, err := prompt.Secret("Password: ")
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password, typed = p, true
		}

		_, err := c.SignIn(user, password)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ncerr.ErrAuthFailed) || !typed || !m.Action.Interactive() || attempt >= maxPasswordAttempts {
			return fmt.Errorf("sign in as %s: %w", user, err)
		}
		fmt.Fprintln(m.stdout(), "authentication failed, try again")
	}
}

// ── Actions ──────────────────────────────────────────────────────────

// ConsoleAction runs the interactive browser.
type ConsoleAction struct {
	LocalDir string
}

func (ConsoleAction) Interactive() bool { return true }

func (a ConsoleAction) Run(ctx context.Context, env *ActionEnv) error {
	return client.NewConsole(env.Client, env.Prompt, env.Stdout, a.LocalDir).Run(ctx)
}

// ListAction prints one remote directory.
type ListAction struct {
	Dir string
}

func (ListAction) Interactive() bool { return false }

func (a ListAction) Run(_ context.Context, env *ActionEnv) error {
	entries, err := env.Client.Explore(a.Dir)
	if err != nil {
		return err
	}
	client.PrintListing(env.Stdout, entries)
	return nil
}

// GetAction downloads one remote file.  Output "-" streams to stdout;
// empty uses the remote base name in the working directory.
type GetAction struct {
	Remote string
	Output string
}

func (GetAction) Interactive() bool { return false }

func (a GetAction) Run(_ context.Context, env *ActionEnv) error {
	dst := a.Output
	if dst == "" {
		dst = baseName(a.Remote)
	}
	n, err := client.Fetch(env.Client, a.Remote, dst, env.Stdout)
	if err != nil {
		return err
	}
	env.Logger.Verbose("%s → %s: %d bytes", a.Remote, dst, n)
	return nil
}

// PutAction uploads one local file.
type PutAction struct {
	Local  string
	Remote string
}

func (PutAction) Interactive() bool { return false }

func (a PutAction) Run(_ context.Context, env *ActionEnv) error {
	n, err := client.Put(env.Client, a.Local, a.Remote)
	if err != nil {
		return err
	}
	env.Logger.Verbose("%s → %s: %d bytes", a.Local, a.Remote, n)
	return nil
}

func baseName(remote string) string {
	name := client.RemoteFile("/", remote)
	return name[1:]
}
