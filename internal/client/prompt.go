package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from the user.  Secrets are read without echo
// when the input is a terminal.
type Prompter struct {
	in  io.Reader
	out io.Writer
	br  *bufio.Reader
}

// NewPrompter reads from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, br: bufio.NewReader(in)}
}

// Line prints prompt and returns the next input line without its line
// ending.  io.EOF is returned only if nothing was typed.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Secret is Line without echo on a terminal.
func (p *Prompter) Secret(prompt string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.Line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	pass, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pass), nil
}
