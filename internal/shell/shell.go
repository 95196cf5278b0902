// Package shell implements the interactive read-parse-dispatch loop.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/log"
	"github.com/mattjoyce/halyard/internal/session"
)

const (
	// Prompt is shown before each line.
	Prompt = cli.ProgramName + "> "
	// TerminateKeyword ends the session.
	TerminateKeyword = "quit"
)

// ErrTerminate is returned when the user asks to quit. The caller shuts
// down and exits successfully.
var ErrTerminate = errors.New("session terminated")

// Recorder persists accepted lines.
type Recorder interface {
	Append(ctx context.Context, line string) error
}

// Shell reads lines from a LineSource and dispatches each as a command.
type Shell struct {
	source  LineSource
	out     io.Writer
	theme   Theme
	history Recorder
	logger  *slog.Logger
}

// New creates a shell writing messages to out.
func New(source LineSource, out io.Writer, theme Theme) *Shell {
	return &Shell{
		source: source,
		out:    out,
		theme:  theme,
		logger: log.WithComponent("shell"),
	}
}

// WithHistory records every accepted line in rec.
func (s *Shell) WithHistory(rec Recorder) *Shell {
	s.history = rec
	return s
}

// Run loops until end of input, an interrupt or the terminate keyword.
// End of input and interrupts return nil; quitting returns ErrTerminate.
// Command failures are reported and the loop continues.
func (s *Shell) Run(ctx *session.Context) error {
	if ctx.Grammar == nil || ctx.Dispatcher == nil {
		return errors.New("shell: context has no grammar or dispatcher")
	}

	for {
		line, err := s.source.ReadLine()
		if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupted) {
			s.logger.Debug("input closed", "reason", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == TerminateKeyword {
			return ErrTerminate
		}
		s.record(line)

		if err := s.execute(ctx, line); err != nil {
			if errors.Is(err, ErrTerminate) {
				return err
			}
			s.report(err)
		}
	}
}

func (s *Shell) execute(ctx *session.Context, line string) error {
	inv, err := cli.Parse(ctx.Grammar, cli.Split(line))
	if err != nil {
		var help *cli.HelpError
		if errors.As(err, &help) {
			help.Grammar.SetOut(s.out)
			return help.Grammar.Help()
		}
		return err
	}

	ctx.Invocation = inv
	return ctx.Dispatcher.Dispatch(ctx, inv.Command)
}

func (s *Shell) record(line string) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(context.Background(), line); err != nil {
		s.logger.Warn("failed to record history", "error", err)
	}
}

func (s *Shell) report(err error) {
	msg := fmt.Sprintf("I'm sorry, Dave. I'm afraid I can't understand that: '%v'", err)
	fmt.Fprintln(s.out, s.theme.Error.Render(msg))
}
