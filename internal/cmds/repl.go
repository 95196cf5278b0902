package cmds

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
	"github.com/mattjoyce/halyard/internal/shell"
)

func replDescriptor(env Env) command.Descriptor {
	return describe("repl", func() (command.Command, *cobra.Command) {
		cmd := &command.Attached{
			CommandName: "repl",
			Archive:     policy.ArchiveRequired,
			Attach:      policy.AttachAny,
			Validate:    policy.ValidateMatch,
			Body:        runRepl(env),
		}
		return cmd, &cobra.Command{Use: "repl", Short: "Start an interactive shell"}
	})
}

func runRepl(env Env) command.RunFunc {
	return func(ctx *session.Context, _ *cli.Invocation) error {
		if env.Lines == nil {
			return errors.New("no input available for an interactive shell")
		}
		src, err := env.Lines()
		if err != nil {
			return err
		}

		welcome := fmt.Sprintf("Welcome to the %s shell! Try out some commands, or '%s' to quit.",
			cli.ProgramName, shell.TerminateKeyword)
		fmt.Fprintln(ctx.Out, env.Theme.Dim.Render(welcome))

		sh := shell.New(src, ctx.Out, env.Theme)
		if env.History != nil {
			sh.WithHistory(env.History)
		}
		return sh.Run(ctx)
	}
}
