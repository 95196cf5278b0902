package session

import (
	"fmt"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/fault"
	"github.com/mattjoyce/halyard/internal/target"
)

//go:generate mockgen -destination=mocks/mock_connector.go -package=mocks github.com/mattjoyce/halyard/internal/session Connector

// Connector establishes attachments. Attach calls it at most once per
// Context.
type Connector interface {
	AttachLive(probe, chip string) (target.Attachment, error)
	AttachDump(path string, a *archive.Archive) (target.Attachment, error)
}

// LiveOpener opens a live attachment through a probe.
type LiveOpener interface {
	Open(selector, chip string) (*target.LiveAttachment, error)
}

// DefaultConnector attaches through configured probes, or replays the dump
// loaded into the archive.
type DefaultConnector struct {
	Probes LiveOpener
}

// AttachLive connects through the selected probe.
func (c *DefaultConnector) AttachLive(probe, chip string) (target.Attachment, error) {
	if c.Probes == nil {
		return nil, fault.Attachf("no probe found")
	}
	live, err := c.Probes.Open(probe, chip)
	if err != nil {
		return nil, err
	}
	return live, nil
}

// AttachDump replays the memory captured in the dump at path. When the
// archive has a memory map every segment must fall inside one of its regions.
func (c *DefaultConnector) AttachDump(path string, a *archive.Archive) (target.Attachment, error) {
	if !a.Loaded() {
		return nil, fault.Attachf("cannot attach to dump %s without an archive", path)
	}

	d := a.Dump()
	if d == nil || d.Path != path {
		var err error
		if d, err = archive.ReadDump(path); err != nil {
			return nil, &fault.AttachmentError{Reason: fmt.Sprintf("failed to read dump %s", path), Err: err}
		}
	}

	if len(a.Manifest().Regions) > 0 {
		for _, s := range d.Segments {
			if _, ok := a.RegionFor(s.Base, len(s.Data)); !ok {
				return nil, fault.Attachf("dump segment at 0x%08x (0x%x bytes) lies outside the archive memory map", s.Base, len(s.Data))
			}
		}
	}

	replay, err := target.NewReplay(path, d.Segments)
	if err != nil {
		return nil, &fault.AttachmentError{Reason: "malformed dump", Err: err}
	}
	return replay, nil
}
