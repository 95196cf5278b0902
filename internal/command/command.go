// Package command defines the diagnostic command contract and the registry
// that turns a fixed descriptor set into a name-indexed dispatch table plus
// the aggregated command-line grammar.
package command

import (
	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

// RunFunc is a command body.
type RunFunc func(ctx *session.Context, inv *cli.Invocation) error

// Command is either Unattached or Attached. The set is closed; dispatch
// switches over the two concrete types.
type Command interface {
	Name() string
	ArchivePolicy() policy.Archive
	Run(ctx *session.Context, inv *cli.Invocation) error

	sealed()
}

// Unattached commands run without a target connection.
type Unattached struct {
	CommandName string
	Archive     policy.Archive
	Body        RunFunc
}

func (c *Unattached) Name() string { return c.CommandName }
func (c *Unattached) ArchivePolicy() policy.Archive { return c.Archive }
func (c *Unattached) sealed() {}

// Run invokes the command body.
func (c *Unattached) Run(ctx *session.Context, inv *cli.Invocation) error {
	return c.Body(ctx, inv)
}

// Attached commands run only after a target is attached and validated.
type Attached struct {
	CommandName string
	Archive     policy.Archive
	Attach      policy.Attach
	Validate    policy.Validate
	Body        RunFunc
}

func (c *Attached) Name() string { return c.CommandName }
func (c *Attached) ArchivePolicy() policy.Archive { return c.Archive }
func (c *Attached) AttachMode() policy.Attach { return c.Attach }
func (c *Attached) ValidationPolicy() policy.Validate { return c.Validate }
func (c *Attached) sealed() {}

// Run invokes the command body.
func (c *Attached) Run(ctx *session.Context, inv *cli.Invocation) error {
	return c.Body(ctx, inv)
}
