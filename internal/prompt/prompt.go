package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrInvalidInteger is returned when an integer prompt gets something else
var ErrInvalidInteger = errors.New("invalid integer")

// Prompter asks questions on out and reads answers from in, one line each
type Prompter struct {
	in    *bufio.Reader
	out   io.Writer
	fd    int
	isTTY bool
}

// New creates a Prompter. Password input is hidden only when in is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTTY = true
	}
	return p
}

// Stdio returns a Prompter on the process's stdin and stdout
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

// String asks for a line of text, trimmed of surrounding whitespace
func (p *Prompter) String(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Int asks for an integer. Anything that doesn't parse returns ErrInvalidInteger.
func (p *Prompter) Int(question string) (int, error) {
	s, err := p.String(question)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInteger, s)
	}
	return v, nil
}

// Password asks for a secret without echoing it on a terminal
func (p *Prompter) Password(question string) (string, error) {
	if !p.isTTY {
		return p.String(question)
	}

	fmt.Fprint(p.out, question)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
