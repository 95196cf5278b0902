package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/cmds"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/config"
	"github.com/mattjoyce/halyard/internal/dispatch"
	"github.com/mattjoyce/halyard/internal/log"
	"github.com/mattjoyce/halyard/internal/probe"
	"github.com/mattjoyce/halyard/internal/session"
	"github.com/mattjoyce/halyard/internal/shell"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	return run(cliArgs, os.Stdin, os.Stdout, os.Stderr)
}

// run executes one command line and returns the process exit status.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	cfg, err := config.Load(configFlag(args))
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	hist := newHistoryBridge(cfg.History)
	defer hist.Close()

	theme := shell.NewDefaultTheme(lipgloss.NewRenderer(out))
	env := cmds.Env{
		Version: currentVersion(),
		Config:  cfg,
		Dumper:  cfg.Renderer(),
		History: hist,
		Theme:   theme,
		Lines: func() (shell.LineSource, error) {
			recent := hist.Open()
			if isTerminal(in) && isTerminal(out) {
				return shell.NewEditor(in, out, shell.Prompt, theme, recent, cfg.History.Limit), nil
			}
			return shell.NewScannerSource(in, nil, shell.Prompt), nil
		},
	}

	reg, root, err := command.Build(cli.NewRoot(cfg.Globals()), cmds.Descriptors(env))
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	inv, err := cli.Parse(root, append([]string{cli.ProgramName}, args...))
	if err != nil {
		var help *cli.HelpError
		switch {
		case errors.As(err, &help):
			help.Grammar.SetOut(out)
			_ = help.Grammar.Help()
			return 0
		case errors.Is(err, cli.ErrNoCommand):
			root.SetOut(errOut)
			_ = root.Usage()
			return 1
		default:
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return 1
		}
	}

	log.SetupWriter(errOut, inv.LogLevel)
	log.Debug("configuration loaded", "source", cfg.SourceFile, "probes", len(cfg.Probes))

	catalog := probe.NewCatalog(cfg.Probes, cfg.Transport.DialTimeout, cfg.Transport.MaxRead).
		WithLockDir(cfg.Transport.LockDir)
	ctx := session.New(inv, &session.DefaultConnector{Probes: catalog})
	ctx.Out = out
	ctx.Grammar = root
	ctx.Dispatcher = dispatch.New(reg)
	defer func() {
		if err := ctx.Close(); err != nil {
			log.Warn("failed to detach", "error", err)
		}
	}()

	err = ctx.Dispatcher.Dispatch(ctx, inv.Command)
	if err != nil && !errors.Is(err, shell.ErrTerminate) {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

// configFlag finds --config ahead of the full parse, which needs the
// configuration to build its defaults.
func configFlag(args []string) string {
	fs := pflag.NewFlagSet(cli.ProgramName, pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *path
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func currentVersion() string {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "0.0.0-dev"
	}
	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit == "" || commit == "unknown" {
		return v
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return v + " (" + commit + ")"
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}
