// Package target abstracts "a way to read a target's state", whether backed
// by a live probe connection or by a replayed dump.
package target

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Kind distinguishes live attachments from replayed ones.
type Kind int

const (
	Live Kind = iota
	Replay
)

func (k Kind) String() string {
	if k == Live {
		return "live"
	}
	return "replay"
}

// Attachment is an established target connection.
type Attachment interface {
	Kind() Kind
	// Describe returns a human-readable summary; it is not machine readable.
	Describe() string
	ReadMemory(addr uint32, length int) ([]byte, error)
	ReadWord(addr uint32) (uint32, error)
	// Halt and Resume stop and restart the core. They are no-ops on
	// attachments that cannot run code.
	Halt() error
	Resume() error
	Close() error
}

// Port is the memory access a probe driver provides.
type Port interface {
	ReadMemory(addr uint32, length int) ([]byte, error)
	Close() error
}

// Controller is implemented by ports that can stop and restart the core.
type Controller interface {
	Halt() error
	Resume() error
}

// LiveAttachment reads target memory through a probe.
type LiveAttachment struct {
	port  Port
	probe string
	chip  string
}

// NewLive wraps an open probe port.
func NewLive(port Port, probe, chip string) *LiveAttachment {
	return &LiveAttachment{port: port, probe: probe, chip: chip}
}

func (l *LiveAttachment) Kind() Kind { return Live }

func (l *LiveAttachment) Describe() string {
	if l.chip == "" {
		return fmt.Sprintf("live target via probe %s", l.probe)
	}
	return fmt.Sprintf("live %s target via probe %s", l.chip, l.probe)
}

// Probe returns the probe name.
func (l *LiveAttachment) Probe() string { return l.probe }

// Chip returns the chip selector recorded at attach time.
func (l *LiveAttachment) Chip() string { return l.chip }

func (l *LiveAttachment) ReadMemory(addr uint32, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("negative read length %d", length)
	}
	if length == 0 {
		return []byte{}, nil
	}
	data, err := l.port.ReadMemory(addr, length)
	if err != nil {
		return nil, fmt.Errorf("read 0x%x bytes at 0x%08x: %w", length, addr, err)
	}
	return data, nil
}

func (l *LiveAttachment) ReadWord(addr uint32) (uint32, error) {
	return readWord(l, addr)
}

func (l *LiveAttachment) Halt() error {
	if c, ok := l.port.(Controller); ok {
		return c.Halt()
	}
	return nil
}

func (l *LiveAttachment) Resume() error {
	if c, ok := l.port.(Controller); ok {
		return c.Resume()
	}
	return nil
}

func (l *LiveAttachment) Close() error {
	return l.port.Close()
}

// Segment is a contiguous piece of captured memory.
type Segment struct {
	Base uint32
	Data []byte
}

func (s Segment) end() uint64 { return uint64(s.Base) + uint64(len(s.Data)) }

// ReplayAttachment serves reads from captured memory segments.
type ReplayAttachment struct {
	source   string
	segments []Segment
}

// NewReplay builds a replay attachment. Segments must not overlap.
func NewReplay(source string, segments []Segment) (*ReplayAttachment, error) {
	sorted := append([]Segment(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })
	for i := 1; i < len(sorted); i++ {
		if uint64(sorted[i].Base) < sorted[i-1].end() {
			return nil, fmt.Errorf("dump segments at 0x%08x and 0x%08x overlap", sorted[i-1].Base, sorted[i].Base)
		}
	}
	return &ReplayAttachment{source: source, segments: sorted}, nil
}

func (r *ReplayAttachment) Kind() Kind { return Replay }

func (r *ReplayAttachment) Describe() string {
	return fmt.Sprintf("dump %s (%d segments)", r.source, len(r.segments))
}

// Segments returns the captured segments ordered by base address.
func (r *ReplayAttachment) Segments() []Segment { return r.segments }

func (r *ReplayAttachment) ReadMemory(addr uint32, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("negative read length %d", length)
	}
	end := uint64(addr) + uint64(length)
	for _, s := range r.segments {
		if addr >= s.Base && end <= s.end() {
			off := addr - s.Base
			out := make([]byte, length)
			copy(out, s.Data[off:])
			return out, nil
		}
	}
	return nil, fmt.Errorf("0x%x bytes at 0x%08x not captured in dump", length, addr)
}

func (r *ReplayAttachment) ReadWord(addr uint32) (uint32, error) {
	return readWord(r, addr)
}

func (r *ReplayAttachment) Halt() error   { return nil }
func (r *ReplayAttachment) Resume() error { return nil }
func (r *ReplayAttachment) Close() error  { return nil }

func readWord(a Attachment, addr uint32) (uint32, error) {
	b, err := a.ReadMemory(addr, 4)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("short read at 0x%08x: got %d bytes", addr, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}
