package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrInterrupted is returned by a LineSource when the user interrupts input.
var ErrInterrupted = errors.New("interrupted")

// LineSource supplies one line per call. It returns io.EOF at end of input
// and ErrInterrupted on interrupt.
type LineSource interface {
	ReadLine() (string, error)
}

// ScannerSource reads lines from a non-terminal reader.
type ScannerSource struct {
	sc     *bufio.Scanner
	out    io.Writer
	prompt string
}

// NewScannerSource reads lines from in. When out is not nil the prompt is
// written to it before each read.
func NewScannerSource(in io.Reader, out io.Writer, prompt string) *ScannerSource {
	return &ScannerSource{sc: bufio.NewScanner(in), out: out, prompt: prompt}
}

func (s *ScannerSource) ReadLine() (string, error) {
	if s.out != nil {
		if _, err := fmt.Fprint(s.out, s.prompt); err != nil {
			return "", err
		}
	}
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
