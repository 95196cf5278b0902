package cmds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/log"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
	"github.com/mattjoyce/halyard/internal/target"
)

func dumpDescriptor(env Env) command.Descriptor {
	return describe("dump", func() (command.Command, *cobra.Command) {
		cmd := &command.Attached{
			CommandName: "dump",
			Archive:     policy.ArchiveRequired,
			Attach:      policy.AttachLiveOnly,
			Validate:    policy.ValidateMatch,
			Body:        runDump(env),
		}
		grammar := &cobra.Command{
			Use:   "dump [--regions NAME,...] [--no-halt] FILE",
			Short: "Capture target memory into a dump file",
			Long: `Capture target memory into a dump file that can later be used with --dump.

By default every writable archive region is captured. The regions holding the
image id and the boot flag are always added, so the dump validates against the
archive it embeds.`,
		}
		grammar.Flags().String("regions", "", "comma-separated archive regions to capture")
		grammar.Flags().Bool("no-halt", false, "capture without halting the core")
		return cmd, grammar
	})
}

func runDump(env Env) command.RunFunc {
	return func(ctx *session.Context, inv *cli.Invocation) (err error) {
		if len(inv.Args) != 1 {
			return errors.New("expected the output file name")
		}
		out := inv.Args[0]

		names, _ := inv.Flags.GetString("regions")
		regions, err := captureRegions(ctx.Archive, splitList(names))
		if err != nil {
			return err
		}
		regions = withValidationRegions(ctx.Archive, regions)

		if noHalt, _ := inv.Flags.GetBool("no-halt"); !noHalt {
			if err := ctx.Attachment.Halt(); err != nil {
				return fmt.Errorf("halt: %w", err)
			}
			defer func() {
				if rerr := ctx.Attachment.Resume(); rerr != nil && err == nil {
					err = fmt.Errorf("resume: %w", rerr)
				}
			}()
		}

		logger := log.WithCommand("dump")
		segments := make([]target.Segment, 0, len(regions))
		total := 0
		for _, r := range regions {
			data, err := ctx.Attachment.ReadMemory(r.Base, int(r.Size))
			if err != nil {
				return fmt.Errorf("region %s: %w", r.Name, err)
			}
			logger.Debug("captured region", "region", r.Name, "bytes", len(data))
			segments = append(segments, target.Segment{Base: r.Base, Data: data})
			total += len(data)
		}

		if err := archive.WriteDump(out, ctx.Archive, env.now(), segments); err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
		fmt.Fprintf(ctx.Out, "dumped %d regions (%d bytes) to %s\n", len(segments), total, out)
		return nil
	}
}

func captureRegions(a *archive.Archive, names []string) ([]archive.Region, error) {
	all := a.Manifest().Regions
	if len(names) == 0 {
		var out []archive.Region
		for _, r := range all {
			if strings.Contains(r.Attr, "w") {
				out = append(out, r)
			}
		}
		if len(out) == 0 {
			return nil, errors.New("archive has no writable regions; choose regions with --regions")
		}
		return out, nil
	}

	byName := make(map[string]archive.Region, len(all))
	for _, r := range all {
		byName[r.Name] = r
	}
	out := make([]archive.Region, 0, len(names))
	for _, n := range names {
		r, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("archive has no region %q", n)
		}
		out = append(out, r)
	}
	return out, nil
}

// withValidationRegions appends the regions holding the words validation
// reads, unless they are already being captured.
func withValidationRegions(a *archive.Archive, regions []archive.Region) []archive.Region {
	m := a.Manifest()
	want := func(addr *uint32, length int) {
		if addr == nil {
			return
		}
		r, ok := a.RegionFor(*addr, length)
		if !ok {
			return
		}
		for _, have := range regions {
			if have.Name == r.Name {
				return
			}
		}
		regions = append(regions, r)
	}
	want(m.ImageIDAddr, len(a.ImageID()))
	want(m.BootFlagAddr, 4)
	return regions
}
