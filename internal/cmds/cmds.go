// Package cmds is the compiled-in set of diagnostic commands.
package cmds

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/config"
	"github.com/mattjoyce/halyard/internal/dumper"
	"github.com/mattjoyce/halyard/internal/shell"
)

// Env is what command bodies may use beyond their session context.
type Env struct {
	Version string
	Config  *config.Config
	// Dumper is the renderer configuration memory-reading commands start from.
	Dumper dumper.Dumper
	// Lines opens the input for an interactive shell.
	Lines   func() (shell.LineSource, error)
	History shell.Recorder
	Theme   shell.Theme
	Now     func() time.Time
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// HelpText is the help footer every built-in command carries.
func HelpText(name string) string {
	return fmt.Sprintf("For additional documentation, run \"%s doc %s\".", cli.ProgramName, name)
}

// Descriptors returns the command set: diagnostic commands sorted by name,
// exact duplicates removed, followed by the shell.
func Descriptors(env Env) []command.Descriptor {
	set := []command.Descriptor{
		manifestDescriptor(env),
		mapDescriptor(env),
		probeDescriptor(env),
		readmemDescriptor(env),
		docDescriptor(env),
		doctorDescriptor(env),
		versionDescriptor(env),
		dumpDescriptor(env),
	}
	return assemble(set, replDescriptor(env))
}

func assemble(set []command.Descriptor, last command.Descriptor) []command.Descriptor {
	sort.SliceStable(set, func(i, j int) bool { return set[i].Name < set[j].Name })

	out := make([]command.Descriptor, 0, len(set)+1)
	for i, d := range set {
		if i > 0 && d.Name == set[i-1].Name && d.Help == set[i-1].Help {
			continue
		}
		out = append(out, d)
	}
	return append(out, last)
}

func describe(name string, init command.InitFunc) command.Descriptor {
	return command.Descriptor{Name: name, Init: init, Help: HelpText(name)}
}

// parseAddress accepts a number in any Go integer syntax or the name of an
// archive region.
func parseAddress(s string, a *archive.Archive) (uint32, error) {
	if a.Loaded() {
		for _, r := range a.Manifest().Regions {
			if r.Name == s {
				return r.Base, nil
			}
		}
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint32(v), nil
}

// renderMemory reads length bytes at addr and renders them with d.
func renderMemory(w io.Writer, read func(uint32, int) ([]byte, error), d dumper.Dumper, addr uint32, length int) error {
	if err := d.Validate(); err != nil {
		return err
	}
	data, err := read(addr, length)
	if err != nil {
		return err
	}
	return d.Dump(w, data, addr)
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
