package cmds

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/doctor"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

func doctorDescriptor(env Env) command.Descriptor {
	return describe("doctor", func() (command.Command, *cobra.Command) {
		grammar := &cobra.Command{
			Use:   "doctor [--json]",
			Short: "Check the configuration and local state",
			Long: `Check the loaded configuration against this machine.

Reports default archive and dump files that are missing, probe selections that
will not resolve, and state directories on network filesystems.`,
		}
		grammar.Flags().Bool("json", false, "print the report as JSON")

		cmd := &command.Unattached{
			CommandName: "doctor",
			Archive:     policy.ArchiveIgnored,
			Body: func(ctx *session.Context, inv *cli.Invocation) error {
				return runDoctor(ctx, inv, env)
			},
		}
		return cmd, grammar
	})
}

func runDoctor(ctx *session.Context, inv *cli.Invocation, env Env) error {
	if env.Config == nil {
		return errors.New("no configuration loaded")
	}
	asJSON, err := inv.Flags.GetBool("json")
	if err != nil {
		return err
	}

	r := doctor.New(env.Config).Validate()
	if asJSON {
		out, err := doctor.FormatJSON(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.Out, out)
	} else {
		fmt.Fprint(ctx.Out, doctor.FormatHuman(r))
	}

	if !r.Valid {
		return fmt.Errorf("configuration has %d error(s)", len(r.Errors))
	}
	return nil
}
