package cmds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/fault"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

func docDescriptor(Env) command.Descriptor {
	return describe("doc", func() (command.Command, *cobra.Command) {
		cmd := &command.Unattached{
			CommandName: "doc",
			Archive:     policy.ArchiveIgnored,
			Body:        runDoc,
		}
		return cmd, &cobra.Command{Use: "doc [COMMAND]", Short: "Show documentation for a command"}
	})
}

func runDoc(ctx *session.Context, inv *cli.Invocation) error {
	if ctx.Grammar == nil {
		return errors.New("no command grammar available")
	}

	if len(inv.Args) == 0 {
		fmt.Fprintln(ctx.Out, "Commands:")
		for _, sub := range ctx.Grammar.Commands() {
			fmt.Fprintf(ctx.Out, "  %-10s %s\n", sub.Name(), sub.Short)
		}
		return nil
	}

	name := inv.Args[0]
	for _, sub := range ctx.Grammar.Commands() {
		if sub.Name() != name {
			continue
		}
		fmt.Fprintf(ctx.Out, "%s %s\n\n", cli.ProgramName, sub.Use)
		text := sub.Long
		if text == "" {
			text = sub.Short
		}
		fmt.Fprintln(ctx.Out, strings.TrimSpace(text))
		if usage := sub.LocalFlags().FlagUsages(); usage != "" {
			fmt.Fprintf(ctx.Out, "\nFlags:\n%s", usage)
		}
		return nil
	}
	return &fault.UnknownCommandError{Name: name}
}
