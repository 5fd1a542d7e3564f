package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	ncerr "nnfp/internal/errors"
)

const consoleHelp = `commands:
  ls                 list the current directory
  cd DIR/ | DIR/     enter a sub-directory
  cd .. | ..         go up one level
  get NAME | NAME    download NAME into the local directory
  put LOCAL          upload a local file into the current directory
  pwd                print the current remote directory
  help               show this text
  quit | exit        end the session`

// Console is the interactive front-end: it browses the remote tree with
// a path stack and moves single files in either direction.
type Console struct {
	c        *Client
	prompt   *Prompter
	out      io.Writer
	localDir string
	stack    []string
}

// NewConsole binds a signed-in client to a prompter.  Downloads land in
// localDir.
func NewConsole(c *Client, p *Prompter, out io.Writer, localDir string) *Console {
	return &Console{c: c, prompt: p, out: out, localDir: localDir}
}

// Cwd returns the current remote directory, always ending with '/'.
func (k *Console) Cwd() string {
	if len(k.stack) == 0 {
		return "/"
	}
	return "/" + strings.Join(k.stack, "/") + "/"
}

// Run reads commands until quit, end of input, ctx cancellation, or a
// fatal connection error.  Server refusals are printed and the loop
// continues.
func (k *Console) Run(ctx context.Context) error {
	if err := k.list(); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := k.prompt.Line(fmt.Sprintf("%s:%s> ", k.c.User(), k.Cwd()))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(k.out)
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := k.exec(strings.TrimSpace(line))
		if err != nil {
			if !recoverable(err) {
				return err
			}
			fmt.Fprintf(k.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (k *Console) exec(line string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch {
	case line == "":
		return false, nil
	case cmd == "quit" || cmd == "exit":
		return true, nil
	case cmd == "help":
		fmt.Fprintln(k.out, consoleHelp)
		return false, nil
	case cmd == "pwd":
		fmt.Fprintln(k.out, k.Cwd())
		return false, nil
	case cmd == "ls":
		return false, k.list()
	case cmd == "cd":
		return false, k.cd(arg)
	case cmd == "get":
		return false, k.get(arg)
	case cmd == "put":
		return false, k.put(arg)
	case line == ".." || strings.HasSuffix(line, "/"):
		return false, k.cd(line)
	default:
		return false, k.get(line)
	}
}

func (k *Console) list() error {
	entries, err := k.c.Explore(k.Cwd())
	if err != nil {
		return err
	}
	PrintListing(k.out, entries)
	return nil
}

func (k *Console) cd(dir string) error {
	switch {
	case dir == "" || dir == "/":
		k.stack = nil
	case dir == "..":
		if len(k.stack) > 0 {
			k.stack = k.stack[:len(k.stack)-1]
		}
	default:
		name := strings.Trim(dir, "/")
		if name == "" || strings.Contains(name, "/") {
			return usageError("cd: one directory level at a time")
		}
		k.stack = append(k.stack, name)
		if err := k.list(); err != nil {
			k.stack = k.stack[:len(k.stack)-1]
			return err
		}
		return nil
	}
	return k.list()
}

func (k *Console) get(name string) error {
	if name == "" {
		return usageError("get: missing file name")
	}
	dst := filepath.Join(k.localDir, filepath.Base(name))
	n, err := Fetch(k.c, k.Cwd()+name, dst, k.out)
	if err != nil {
		return err
	}
	fmt.Fprintf(k.out, "%s: %d bytes\n", dst, n)
	return nil
}

func (k *Console) put(local string) error {
	if local == "" {
		return usageError("put: missing local file")
	}
	remote := RemoteFile(k.Cwd(), local)
	n, err := Put(k.c, local, remote)
	if err != nil {
		return err
	}
	fmt.Fprintf(k.out, "%s: %d bytes\n", remote, n)
	return nil
}

type usageError string

func (e usageError) Error() string { return string(e) }

// recoverable reports whether the console can carry on after err.
func recoverable(err error) bool {
	var (
		pe *fs.PathError
		ue usageError
	)
	return errors.Is(err, ncerr.ErrAccessFailure) ||
		errors.Is(err, ncerr.ErrAcceptFailure) ||
		errors.Is(err, ncerr.ErrAuthFailed) ||
		errors.As(err, &pe) ||
		errors.As(err, &ue)
}
