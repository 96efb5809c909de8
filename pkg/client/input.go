package client

import (
	"bufio"
	"errors"
	"io"

	"github.com/chzyer/readline"
)

// ErrInterrupt is returned by a LineReader when the user pressed Ctrl+C.
var ErrInterrupt = errors.New("interrupted")

// LineReader yields one line of user input per call. It returns io.EOF
// when input ends and ErrInterrupt on an interrupt request.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// ReadlineInput reads from the terminal with line editing and history.
type ReadlineInput struct {
	rl *readline.Instance
}

// NewReadlineInput creates a terminal input showing prompt.
func NewReadlineInput(prompt string) (*ReadlineInput, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &ReadlineInput{rl: rl}, nil
}

// ReadLine reads the next line.
func (r *ReadlineInput) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupt
	}
	return line, err
}

// Stdout returns a writer that does not garble the prompt.
func (r *ReadlineInput) Stdout() io.Writer {
	return r.rl.Stdout()
}

// Close restores the terminal.
func (r *ReadlineInput) Close() error {
	return r.rl.Close()
}

// ScannerInput reads newline-separated input from a non-terminal source
// such as a pipe.
type ScannerInput struct {
	sc *bufio.Scanner
	c  io.Closer
}

// NewScannerInput reads lines from r. If r is an io.Closer, Close closes it.
func NewScannerInput(r io.Reader) *ScannerInput {
	in := &ScannerInput{sc: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		in.c = c
	}
	return in
}

// ReadLine returns the next line without its terminator.
func (s *ScannerInput) ReadLine() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close closes the underlying reader if it has a Close method.
func (s *ScannerInput) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

var (
	_ LineReader = (*ReadlineInput)(nil)
	_ LineReader = (*ScannerInput)(nil)
)
