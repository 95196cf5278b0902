// Package dumper renders byte buffers as aligned hex/ASCII reports in the
// OpenBoot PROM style:
//
//	              \/  1  2  3  4  5  6  7  8  9  a  b  c  d  e  f
//	0x00001000 | 41 42 43 44                                     | ABCD
//
// Rows are anchored on Width-byte boundaries, so a buffer that starts mid-row
// is shifted right and the header marks the column where the data begins.
package dumper

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/mattjoyce/halyard/internal/fault"
)

const startMarker = `\/`

// Dumper holds the renderer geometry. The zero value is not usable; start
// from New and adjust fields.
type Dumper struct {
	// Size is the element width in bytes: 1, 2 or 4.
	Size int
	// Width is the number of bytes per row.
	Width int
	// AddrSize is the number of hex digits in the address field.
	AddrSize int
	// Indent is the left indentation in characters.
	Indent int
	// Hanging applies Indent to every row except the first (and the header).
	Hanging bool
	// Header prints the column-offset header row.
	Header bool
	// ASCII prints the printable-character sidebar.
	ASCII bool
}

// New returns a Dumper with byte elements, 16-byte rows, 8 address digits,
// a header and an ASCII sidebar.
func New() *Dumper {
	return &Dumper{
		Size:     1,
		Width:    16,
		AddrSize: 8,
		Indent:   0,
		Hanging:  false,
		Header:   true,
		ASCII:    true,
	}
}

// Validate checks the geometry.
func (d *Dumper) Validate() error {
	switch d.Size {
	case 1, 2, 4:
	default:
		return fault.Configf("dumper", "invalid element size %d (valid: 1, 2, 4)", d.Size)
	}
	if d.Width <= 0 || d.Width%d.Size != 0 {
		return fault.Configf("dumper", "row width %d is not a positive multiple of element size %d", d.Width, d.Size)
	}
	// Header offsets must fit in a slot.
	if uint64(d.Width-1) >= uint64(1)<<(8*uint(d.Size)) {
		return fault.Configf("dumper", "row width %d too wide for element size %d", d.Width, d.Size)
	}
	if d.AddrSize < 1 {
		return fault.Configf("dumper", "address size %d must be at least 1", d.AddrSize)
	}
	if d.Indent < 0 {
		return fault.Configf("dumper", "indent %d must not be negative", d.Indent)
	}
	return nil
}

// Dump writes the rendering of data, located at addr, to w.
func (d *Dumper) Dump(w io.Writer, data []byte, addr uint32) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if uint64(addr)+uint64(len(data)) > 1<<32 {
		return fmt.Errorf("0x%x bytes at 0x%08x run past the end of the address space", len(data), addr)
	}

	var out strings.Builder
	offs := int(addr % uint32(d.Width))
	addr -= uint32(offs)

	indent := d.Indent
	if d.Hanging {
		indent = 0
	}

	if d.Header {
		d.header(&out, offs, indent)
	}

	lim := min(d.Width-offs, len(data))
	d.row(&out, data[:lim], addr, offs, indent)
	indent = d.Indent

	for rest := data[lim:]; len(rest) > 0; {
		n := min(d.Width, len(rest))
		addr += uint32(d.Width)
		d.row(&out, rest[:n], addr, 0, indent)
		rest = rest[n:]
	}

	_, err := io.WriteString(w, out.String())
	return err
}

// Lines renders data and returns the individual rows without newlines.
func (d *Dumper) Lines(data []byte, addr uint32) ([]string, error) {
	var b strings.Builder
	if err := d.Dump(&b, data, addr); err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n"), nil
}

func (d *Dumper) header(out *strings.Builder, offs, indent int) {
	out.WriteString(strings.Repeat(" ", indent+d.AddrSize+4))

	digits := d.Size * 2
	for i := 0; i < d.Width; i += d.Size {
		if offs >= i && offs < i+d.Size {
			fmt.Fprintf(out, " %*s", digits, startMarker)
		} else {
			fmt.Fprintf(out, " %*x", digits, i)
		}
	}
	out.WriteByte('\n')
}

func (d *Dumper) row(out *strings.Builder, line []byte, addr uint32, offs, indent int) {
	out.WriteString(strings.Repeat(" ", indent))
	fmt.Fprintf(out, "0x%0*x | ", d.AddrSize, addr)

	digits := d.Size * 2
	blank := strings.Repeat(" ", digits+1)

	for i := 0; i < d.Width; i += d.Size {
		// A trailing partial element is left blank here; the sidebar still shows it.
		if i < offs || i-offs+d.Size > len(line) {
			out.WriteString(blank)
			continue
		}
		fmt.Fprintf(out, "%0*x ", digits, element(line[i-offs:i-offs+d.Size]))
	}

	if d.ASCII {
		out.WriteString("| ")
		for i := 0; i < d.Width; i++ {
			if i < offs || i-offs >= len(line) {
				out.WriteByte(' ')
				continue
			}
			out.WriteByte(printable(line[i-offs]))
		}
	}

	out.WriteByte('\n')
}

func element(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

func printable(c byte) byte {
	if c >= 0x20 && c < 0x7f {
		return c
	}
	return '.'
}
