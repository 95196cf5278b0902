package command

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/fault"
)

// HelpAnnotation is the cobra annotation key holding a descriptor's help text.
const HelpAnnotation = "halyard/help"

// InitFunc builds a command and its grammar fragment. It must be free of
// side effects and must not depend on any other descriptor.
type InitFunc func() (Command, *cobra.Command)

// Descriptor is one entry of the compiled-in command set.
type Descriptor struct {
	Name string
	Init InitFunc
	Help string
}

// Registry holds commands indexed by name.
type Registry struct {
	commands map[string]Command
	help     map[string]string
}

// Lookup retrieves a command by name.
func (r *Registry) Lookup(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Help returns the help text registered with a command.
func (r *Registry) Help(name string) (string, bool) {
	h, ok := r.help[name]
	return h, ok
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return len(r.commands)
}

// Build initializes every descriptor, indexes the resulting commands by name
// and attaches each grammar fragment to base. A duplicate name is a
// ConfigurationError naming both descriptors.
func Build(base *cobra.Command, descriptors []Descriptor) (*Registry, *cobra.Command, error) {
	reg := &Registry{
		commands: make(map[string]Command, len(descriptors)),
		help:     make(map[string]string, len(descriptors)),
	}
	owner := make(map[string]int, len(descriptors))

	for i, d := range descriptors {
		if strings.TrimSpace(d.Name) == "" {
			return nil, nil, fault.Configf("registry", "descriptor %d has no name", i)
		}
		if d.Init == nil {
			return nil, nil, fault.Configf("registry", "descriptor %d (%s) has no initializer", i, d.Name)
		}
		if prev, ok := owner[d.Name]; ok {
			return nil, nil, fault.Configf("registry",
				"duplicate command %q: descriptor %d conflicts with descriptor %d", d.Name, i, prev)
		}

		cmd, grammar := d.Init()
		if cmd == nil || grammar == nil {
			return nil, nil, fault.Configf("registry", "descriptor %d (%s) produced no command", i, d.Name)
		}
		if cmd.Name() != d.Name || grammar.Name() != d.Name {
			return nil, nil, fault.Configf("registry",
				"descriptor %d is named %q but produced command %q with grammar %q", i, d.Name, cmd.Name(), grammar.Name())
		}

		owner[d.Name] = i
		reg.commands[d.Name] = cmd
		reg.help[d.Name] = d.Help

		annotate(grammar, d.Help)
		// Help only lists runnable commands. Execution never goes through
		// cobra; the dispatcher runs the registered command.
		if grammar.Run == nil && grammar.RunE == nil {
			grammar.Run = func(*cobra.Command, []string) {}
		}
		base.AddCommand(grammar)
	}

	return reg, base, nil
}

func annotate(grammar *cobra.Command, help string) {
	if help == "" {
		return
	}
	if grammar.Annotations == nil {
		grammar.Annotations = make(map[string]string)
	}
	grammar.Annotations[HelpAnnotation] = help

	long := grammar.Long
	if long == "" {
		long = grammar.Short
	}
	if long == "" {
		grammar.Long = help
		return
	}
	grammar.Long = long + "\n\n" + help
}
