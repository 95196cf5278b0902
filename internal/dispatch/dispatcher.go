package dispatch

import (
	"log/slog"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/command"
	"github.com/mattjoyce/halyard/internal/fault"
	"github.com/mattjoyce/halyard/internal/log"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/session"
)

// Dispatcher resolves command names and enforces their policies.
type Dispatcher struct {
	registry *command.Registry
	logger   *slog.Logger
}

// New creates a Dispatcher over reg.
func New(reg *command.Registry) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   log.WithComponent("dispatch"),
	}
}

// Registry returns the registry commands are resolved from.
func (d *Dispatcher) Registry() *command.Registry {
	return d.registry
}

// Dispatch runs the command called name with ctx.
func (d *Dispatcher) Dispatch(ctx *session.Context, name string) error {
	cmd, ok := d.registry.Lookup(name)
	if !ok {
		return &fault.UnknownCommandError{Name: name}
	}
	logger := d.logger.With("command", name)

	archivePolicy := cmd.ArchivePolicy()
	if archivePolicy != policy.ArchiveIgnored {
		if err := d.loadArchive(ctx, logger); err != nil {
			return err
		}
		if archivePolicy == policy.ArchiveRequired && !ctx.ArchiveLoaded() {
			return &fault.MissingArchiveError{Command: name}
		}
	}

	switch c := cmd.(type) {
	case *command.Unattached:
		logger.Debug("running unattached command")
		return wrap(name, c.Run(ctx, ctx.Invocation))
	case *command.Attached:
		logger.Debug("running attached command",
			"attach", c.AttachMode().String(),
			"validate", c.ValidationPolicy().String(),
		)
		return session.Attach(ctx, c.AttachMode(), c.ValidationPolicy(), func(ctx *session.Context) error {
			return wrap(name, c.Run(ctx, ctx.Invocation))
		})
	default:
		return fault.Configf("dispatch", "command %s has unsupported type %T", name, cmd)
	}
}

// loadArchive loads the archive or dump named by the current invocation. The
// context's archive is only replaced by a successful load.
func (d *Dispatcher) loadArchive(ctx *session.Context, logger *slog.Logger) error {
	if ctx.Archive == nil {
		ctx.Archive = archive.New()
	}
	inv := ctx.Invocation
	if inv == nil {
		return nil
	}

	switch {
	case inv.Archive != "":
		if err := ctx.Archive.Load(inv.Archive); err != nil {
			return &fault.ArchiveLoadError{Path: inv.Archive, Err: err}
		}
		logger.Debug("archive loaded", "path", inv.Archive, "name", ctx.Archive.Manifest().Name)
	case inv.Dump != "":
		if err := ctx.Archive.LoadDump(inv.Dump); err != nil {
			return &fault.DumpLoadError{Path: inv.Dump, Err: err}
		}
		logger.Debug("dump loaded", "path", inv.Dump, "name", ctx.Archive.Manifest().Name)
	}
	return nil
}

func wrap(name string, err error) error {
	if err == nil || fault.Classified(err) {
		return err
	}
	return &fault.CommandExecutionError{Command: name, Err: err}
}

var _ session.Dispatcher = (*Dispatcher)(nil)
