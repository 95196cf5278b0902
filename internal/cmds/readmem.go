package cmds

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/log"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

const (
	defaultReadLength = 256
	maxReadLength     = 64 << 10
)

func readmemDescriptor(env Env) command.Descriptor {
	return describe("readmem", func() (command.Command, *cobra.Command) {
		cmd := &command.Attached{
			CommandName: "readmem",
			Archive:     policy.ArchiveRequired,
			Attach:      policy.AttachAny,
			Validate:    policy.ValidateBooted,
			Body:        runReadmem(env),
		}
		grammar := &cobra.Command{
			Use:   "readmem [--word|--halfword] [--length N] [--halt] ADDR",
			Short: "Read and display target memory",
			Long: `Read memory at ADDR and display it as a hex dump.

ADDR is a number (0x-prefixed for hex) or the name of an archive region.`,
		}
		f := grammar.Flags()
		f.BoolP("word", "w", false, "display as 32-bit words")
		f.Bool("halfword", false, "display as 16-bit halfwords")
		f.IntP("length", "n", defaultReadLength, "number of bytes to read")
		f.Bool("halt", false, "halt the core while reading")
		return cmd, grammar
	})
}

func runReadmem(env Env) command.RunFunc {
	return func(ctx *session.Context, inv *cli.Invocation) (err error) {
		if len(inv.Args) != 1 {
			return fmt.Errorf("expected exactly one address, got %d arguments", len(inv.Args))
		}
		addr, err := parseAddress(inv.Args[0], ctx.Archive)
		if err != nil {
			return err
		}

		word, _ := inv.Flags.GetBool("word")
		halfword, _ := inv.Flags.GetBool("halfword")
		length, _ := inv.Flags.GetInt("length")
		halt, _ := inv.Flags.GetBool("halt")

		d := env.Dumper
		switch {
		case word && halfword:
			return errors.New("--word and --halfword are mutually exclusive")
		case word:
			d.Size = 4
		case halfword:
			d.Size = 2
		default:
			d.Size = 1
		}
		if length <= 0 || length > maxReadLength {
			return fmt.Errorf("length must be between 1 and %d", maxReadLength)
		}
		if length%d.Size != 0 {
			return fmt.Errorf("length %d is not a multiple of the %d-byte element size", length, d.Size)
		}
		if r, ok := ctx.Archive.RegionFor(addr, length); ok {
			log.WithCommand("readmem").Debug("reading", "region", r.Name, "addr", addr, "length", length)
		}

		if halt {
			if err := ctx.Attachment.Halt(); err != nil {
				return fmt.Errorf("halt: %w", err)
			}
			defer func() {
				if rerr := ctx.Attachment.Resume(); rerr != nil && err == nil {
					err = fmt.Errorf("resume: %w", rerr)
				}
			}()
		}
		return renderMemory(ctx.Out, ctx.Attachment.ReadMemory, d, addr, length)
	}
}
