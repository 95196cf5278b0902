package cmds

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

func mapDescriptor(Env) command.Descriptor {
	return describe("map", func() (command.Command, *cobra.Command) {
		cmd := &command.Unattached{
			CommandName: "map",
			Archive:     policy.ArchiveRequired,
			Body:        runMap,
		}
		return cmd, &cobra.Command{Use: "map", Short: "Print the memory map recorded in the archive"}
	})
}

func runMap(ctx *session.Context, _ *cli.Invocation) error {
	regions := append([]archive.Region(nil), ctx.Archive.Manifest().Regions...)
	if len(regions) == 0 {
		fmt.Fprintln(ctx.Out, "archive records no memory regions")
		return nil
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Base < regions[j].Base })

	rows := make([][]string, len(regions))
	for i, r := range regions {
		end := uint64(r.Base) + uint64(r.Size) - 1
		rows[i] = []string{
			r.Name,
			fmt.Sprintf("0x%08x", r.Base),
			fmt.Sprintf("0x%08x", end),
			fmt.Sprintf("0x%x", r.Size),
			r.Attr,
		}
	}
	tbl := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("REGION", "LOW", "HIGH", "SIZE", "ATTR").
		Rows(rows...)
	fmt.Fprintln(ctx.Out, tbl.Render())
	return nil
}
