// Package cli owns the command-line grammar: the root command with its global
// flags, and the parse step that turns an argv into an Invocation. The same
// grammar is reused by the interactive shell, so Parse resets every flag to its
// default before each parse.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ProgramName is the first token of every argv the tool parses.
const ProgramName = "halyard"

// AutoProbe selects the single available probe.
const AutoProbe = "auto"

const (
	flagProbe    = "probe"
	flagChip     = "chip"
	flagArchive  = "archive"
	flagDump     = "dump"
	flagConfig   = "config"
	flagLogLevel = "log-level"
)

// ErrNoCommand is returned by Parse when argv names no subcommand.
var ErrNoCommand = errors.New("no command given")

// Globals are the program-wide inputs shared by every command.
type Globals struct {
	Probe    string
	Chip     string
	Archive  string
	Dump     string
	Config   string
	LogLevel string
}

// Invocation is one parsed command line.
type Invocation struct {
	Globals

	// Command is the subcommand name as typed; it may not be registered.
	Command string
	// Flags holds the subcommand's parsed flags, globals included.
	Flags *pflag.FlagSet
	// Args are the positional arguments after the subcommand.
	Args []string
	// Grammar is the matched subcommand, or the root when Command is unknown.
	Grammar *cobra.Command
}

// ProbeSelector returns the probe selector, defaulting to AutoProbe.
func (inv *Invocation) ProbeSelector() string {
	if strings.TrimSpace(inv.Probe) == "" {
		return AutoProbe
	}
	return inv.Probe
}

// HelpError asks the caller to print help for Grammar.
type HelpError struct {
	Grammar *cobra.Command
}

func (e *HelpError) Error() string {
	return fmt.Sprintf("help requested for %s", e.Grammar.CommandPath())
}

func (e *HelpError) Unwrap() error { return pflag.ErrHelp }

// NewRoot builds the base grammar. defaults become the flag defaults, so
// values resolved from the environment or a config file show up in help
// output and survive Parse resets.
func NewRoot(defaults Globals) *cobra.Command {
	root := &cobra.Command{
		Use:   ProgramName,
		Short: "Diagnostic tool for embedded firmware targets",
		Long: `halyard runs diagnostic commands against a live target through a debug probe,
or against a previously captured dump, after checking that the target matches
the loaded firmware archive.

Environment:
  HALYARD_PROBE, HALYARD_CHIP, HALYARD_ARCHIVE, HALYARD_DUMP, HALYARD_LOG_LEVEL`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringP(flagProbe, "p", defaults.Probe, `probe to attach through ("auto" selects the only one available)`)
	pf.StringP(flagChip, "c", defaults.Chip, "target chip")
	pf.StringP(flagArchive, "a", defaults.Archive, "firmware archive")
	pf.StringP(flagDump, "d", defaults.Dump, "dump to attach to instead of a live target")
	pf.String(flagConfig, defaults.Config, "configuration file")
	pf.String(flagLogLevel, defaults.LogLevel, "log level (debug, info, warn, error)")

	return root
}

// Parse parses argv (program name first) against root.
func Parse(root *cobra.Command, argv []string) (*Invocation, error) {
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	Reset(root)

	cmd, rest, err := root.Traverse(argv[1:])
	if err != nil {
		return nil, flagError(root, err)
	}
	if err := cmd.ParseFlags(rest); err != nil {
		return nil, flagError(cmd, err)
	}

	inv := &Invocation{
		Flags:   cmd.Flags(),
		Grammar: cmd,
	}
	if inv.Globals, err = readGlobals(root); err != nil {
		return nil, err
	}

	positional := cmd.Flags().Args()
	if cmd == root {
		if len(positional) == 0 {
			return inv, ErrNoCommand
		}
		inv.Command = positional[0]
		inv.Args = positional[1:]
		return inv, nil
	}

	inv.Command = cmd.Name()
	inv.Args = positional
	return inv, nil
}

// Reset restores every flag in the tree to its default.
func Reset(root *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	root.PersistentFlags().VisitAll(reset)
	root.Flags().VisitAll(reset)
	for _, sub := range root.Commands() {
		Reset(sub)
	}
}

func readGlobals(root *cobra.Command) (Globals, error) {
	pf := root.PersistentFlags()
	var g Globals
	for name, dst := range map[string]*string{
		flagProbe:    &g.Probe,
		flagChip:     &g.Chip,
		flagArchive:  &g.Archive,
		flagDump:     &g.Dump,
		flagConfig:   &g.Config,
		flagLogLevel: &g.LogLevel,
	} {
		v, err := pf.GetString(name)
		if err != nil {
			return Globals{}, fmt.Errorf("read flag %s: %w", name, err)
		}
		*dst = v
	}
	return g, nil
}

func flagError(cmd *cobra.Command, err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return &HelpError{Grammar: cmd}
	}
	return fmt.Errorf("%s: %w", cmd.CommandPath(), err)
}

// Split turns a shell line into an argv for Parse: the line is split on
// single spaces and prefixed with the program name.
func Split(line string) []string {
	argv := []string{ProgramName}
	return append(argv, strings.Split(line, " ")...)
}
