package cmds

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
	"github.com/mattjoyce/halyard/internal/target"
)

// vectorWords is how much of the vector table probe shows: initial stack
// pointer, reset and the six core exception handlers.
const vectorWords = 8

func probeDescriptor(env Env) command.Descriptor {
	return describe("probe", func() (command.Command, *cobra.Command) {
		cmd := &command.Attached{
			CommandName: "probe",
			Archive:     policy.ArchiveOptional,
			Attach:      policy.AttachLiveOnly,
			Validate:    policy.ValidateNone,
			Body:        runProbe(env),
		}
		grammar := &cobra.Command{
			Use:   "probe [--vectors ADDR]",
			Short: "Show the probe and the target's vector table",
		}
		grammar.Flags().String("vectors", "", "vector table address (default: lowest executable archive region, else 0)")
		return cmd, grammar
	})
}

func runProbe(env Env) command.RunFunc {
	return func(ctx *session.Context, inv *cli.Invocation) error {
		att := ctx.Attachment
		if live, ok := att.(*target.LiveAttachment); ok {
			fmt.Fprintf(ctx.Out, "%10s => %s\n", "probe", live.Probe())
			if live.Chip() != "" {
				fmt.Fprintf(ctx.Out, "%10s => %s\n", "chip", live.Chip())
			}
		}
		fmt.Fprintf(ctx.Out, "%10s => %s\n", "target", att.Describe())

		base := vectorTableBase(ctx.Archive)
		if v, _ := inv.Flags.GetString("vectors"); v != "" {
			addr, err := parseAddress(v, ctx.Archive)
			if err != nil {
				return err
			}
			base = addr
		}

		d := env.Dumper
		d.Size = 4
		d.Width = 16
		fmt.Fprintf(ctx.Out, "%10s => 0x%08x\n", "vectors", base)
		return renderMemory(ctx.Out, att.ReadMemory, d, base, vectorWords*4)
	}
}

func vectorTableBase(a *archive.Archive) uint32 {
	if !a.Loaded() {
		return 0
	}
	var (
		base  uint32
		found bool
	)
	for _, r := range a.Manifest().Regions {
		if strings.Contains(r.Attr, "x") && (!found || r.Base < base) {
			base, found = r.Base, true
		}
	}
	return base
}
