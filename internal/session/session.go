// Package session holds the state one run of the tool threads through every
// dispatch, and the state machine that attaches and validates a target
// before an attached command runs.
package session

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/fault"
	"github.com/mattjoyce/halyard/internal/log"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/target"
)

// Dispatcher runs a registered command against a Context.
type Dispatcher interface {
	Dispatch(ctx *Context, name string) error
}

// Context is the mutable state of one process. It has a single owner and is
// never shared between goroutines.
type Context struct {
	// Invocation is the current turn's parsed command line.
	Invocation *cli.Invocation
	// Archive is loaded at most once per turn and survives later turns.
	Archive *archive.Archive
	// Attachment is set by Attach and reused for the process lifetime.
	Attachment target.Attachment
	Connector  Connector

	// Grammar is the root command line grammar; the shell reparses each
	// line against it.
	Grammar    *cobra.Command
	Dispatcher Dispatcher

	Out    io.Writer
	Logger *slog.Logger
}

// New returns a context with an unloaded archive and no attachment.
func New(inv *cli.Invocation, conn Connector) *Context {
	return &Context{
		Invocation: inv,
		Archive:    archive.New(),
		Connector:  conn,
		Out:        os.Stdout,
		Logger:     log.WithComponent("session"),
	}
}

// ArchiveLoaded reports whether an archive or dump has been loaded.
func (c *Context) ArchiveLoaded() bool {
	return c.Archive.Loaded()
}

// Close releases the attachment, if any.
func (c *Context) Close() error {
	if c.Attachment == nil {
		return nil
	}
	err := c.Attachment.Close()
	c.Attachment = nil
	return err
}

// Attach makes sure ctx has an attachment acceptable to mode, validates it
// against the archive and only then calls next. An existing attachment is
// reused without reconnecting.
func Attach(ctx *Context, mode policy.Attach, v policy.Validate, next func(*Context) error) error {
	logger := log.WithComponent("attach")

	if ctx.Attachment == nil {
		att, err := connect(ctx, mode)
		if err != nil {
			logger.Debug("attach failed", "mode", mode.String(), "error", err)
			return err
		}
		ctx.Attachment = att
		logger.Debug("attached", "kind", att.Kind().String(), "target", att.Describe())
	} else {
		logger.Debug("reusing attachment", "kind", ctx.Attachment.Kind().String())
	}

	if v != policy.ValidateNone {
		if !ctx.ArchiveLoaded() {
			return &fault.MissingArchiveError{Command: ctx.commandName()}
		}
		if err := ctx.Archive.Validate(ctx.Attachment, v); err != nil {
			logger.Debug("validation failed", "policy", v.String(), "error", err)
			return err
		}
	}
	logger.Debug("validated", "policy", v.String())

	return next(ctx)
}

func connect(ctx *Context, mode policy.Attach) (target.Attachment, error) {
	var dump string
	if ctx.Invocation != nil {
		dump = ctx.Invocation.Dump
	}
	if dump == "" {
		if d := ctx.Archive.Dump(); d != nil {
			dump = d.Path
		}
	}

	switch mode {
	case policy.AttachLiveOnly:
		if dump != "" {
			return nil, fault.Attachf("cannot attach live: a dump was specified")
		}
		return attachLive(ctx)
	case policy.AttachDumpOnly:
		if dump == "" {
			return nil, fault.Attachf("this command requires a dump")
		}
		return attachDump(ctx, dump)
	case policy.AttachAny:
		if dump != "" {
			return attachDump(ctx, dump)
		}
		return attachLive(ctx)
	default:
		return nil, fault.Attachf("unknown attach mode %d", mode)
	}
}

func attachLive(ctx *Context) (target.Attachment, error) {
	probe, chip := cli.AutoProbe, ""
	if ctx.Invocation != nil {
		probe, chip = ctx.Invocation.ProbeSelector(), ctx.Invocation.Chip
	}
	return ctx.Connector.AttachLive(probe, chip)
}

func attachDump(ctx *Context, path string) (target.Attachment, error) {
	if !ctx.ArchiveLoaded() {
		return nil, fault.Attachf("cannot attach to dump %s: no archive loaded", path)
	}
	return ctx.Connector.AttachDump(path, ctx.Archive)
}

func (c *Context) commandName() string {
	if c.Invocation == nil {
		return ""
	}
	return c.Invocation.Command
}
