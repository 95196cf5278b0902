package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

func versionDescriptor(env Env) command.Descriptor {
	return describe("version", func() (command.Command, *cobra.Command) {
		cmd := &command.Unattached{
			CommandName: "version",
			Archive:     policy.ArchiveIgnored,
			Body: func(ctx *session.Context, _ *cli.Invocation) error {
				v := env.Version
				if v == "" {
					v = "dev"
				}
				_, err := fmt.Fprintf(ctx.Out, "%s %s\n", cli.ProgramName, v)
				return err
			},
		}
		return cmd, &cobra.Command{Use: "version", Short: "Print the version"}
	})
}
