package cmds

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

func manifestDescriptor(Env) command.Descriptor {
	return describe("manifest", func() (command.Command, *cobra.Command) {
		cmd := &command.Unattached{
			CommandName: "manifest",
			Archive:     policy.ArchiveRequired,
			Body:        runManifest,
		}
		return cmd, &cobra.Command{Use: "manifest", Short: "Print the archive manifest"}
	})
}

func runManifest(ctx *session.Context, _ *cli.Invocation) error {
	a := ctx.Archive
	m := a.Manifest()

	field := func(k, v string) {
		if v != "" {
			fmt.Fprintf(ctx.Out, "%10s => %s\n", k, v)
		}
	}
	field("name", m.Name)
	field("board", m.Board)
	field("target", m.Target)
	field("image id", m.ImageID)
	field("archive", a.Path())
	if d := a.Dump(); d != nil && !d.CapturedAt.IsZero() {
		field("captured", d.CapturedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	field("image", fmt.Sprintf("%d bytes", len(a.Image())))
	field("tasks", strconv.Itoa(len(m.Tasks)))

	if len(m.Tasks) == 0 {
		return nil
	}
	rows := make([][]string, len(m.Tasks))
	for i, t := range m.Tasks {
		rows[i] = []string{strconv.Itoa(i), t.Name, strconv.Itoa(t.Priority)}
	}
	tbl := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "TASK", "PRIO").
		Rows(rows...)
	fmt.Fprintln(ctx.Out, tbl.Render())
	return nil
}
