package dumper

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mattjoyce/halyard/internal/fault"
)

func TestDumpOffsetRow(t *testing.T) {
	d := New()
	d.Header = false

	lines, err := d.Lines([]byte("ABC"), 0x1003)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	want := "0x00001000 | " +
		strings.Repeat(" ", 3*3) +
		"41 42 43 " +
		strings.Repeat(" ", 3*10) +
		"| " +
		"   ABC" + strings.Repeat(" ", 10)
	assert.Equal(t, want, lines[0])
}

func TestDumpHeaderMarksStart(t *testing.T) {
	d := New()

	lines, err := d.Lines([]byte("ABC"), 0x1003)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	want := strings.Repeat(" ", 12) + "  0  1  2 \\/  4  5  6  7  8  9  a  b  c  d  e  f"
	assert.Equal(t, want, lines[0])

	// The marker sits directly above the first data byte.
	assert.Equal(t, strings.Index(lines[1], "41"), strings.Index(lines[0], `\/`))
}

func TestDumpMultipleRows(t *testing.T) {
	d := New()
	d.Header = false

	data := make([]byte, 41)
	for i := range data {
		data[i] = byte('a' + i%26)
	}

	lines, err := d.Lines(data, 0x20000008)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "0x20000000 | "))
	assert.True(t, strings.HasPrefix(lines[1], "0x20000010 | "))
	assert.True(t, strings.HasPrefix(lines[2], "0x20000020 | "))
	assert.True(t, strings.HasPrefix(lines[3], "0x20000030 | "))

	assert.True(t, strings.HasSuffix(lines[0], "| "+strings.Repeat(" ", 8)+"abcdefgh"))
	assert.True(t, strings.HasSuffix(lines[3], "| o"+strings.Repeat(" ", 15)))
}

func TestDumpWordElementsAreLittleEndian(t *testing.T) {
	d := New()
	d.Header = false
	d.ASCII = false
	d.Size = 4

	lines, err := d.Lines([]byte{0x78, 0x56, 0x34, 0x12, 0xef, 0xbe, 0xad, 0xde}, 0x0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "0x00000000 | 12345678 deadbeef "+strings.Repeat(" ", 18), lines[0])
}

func TestDumpHalfwordElements(t *testing.T) {
	d := New()
	d.Header = false
	d.ASCII = false
	d.Size = 2
	d.Width = 8

	lines, err := d.Lines([]byte{0x01, 0x02, 0x03}, 0x2)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	// First slot blank (before offset), one full halfword, trailing odd byte blank.
	blank := strings.Repeat(" ", 5)
	assert.Equal(t, "0x00000000 | "+blank+"0201 "+blank+blank, lines[0])
}

func TestDumpNonPrintable(t *testing.T) {
	d := New()
	d.Header = false

	lines, err := d.Lines([]byte{0x00, 'h', 0x7f, 0xff, '~', ' '}, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(lines[0], "| .h..~ "+strings.Repeat(" ", 10)))
}

func TestDumpHangingIndent(t *testing.T) {
	d := New()
	d.Indent = 4
	d.Hanging = true

	lines, err := d.Lines(make([]byte, 20), 0x100)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.True(t, strings.HasPrefix(lines[0], strings.Repeat(" ", 12)+" \\/"))
	assert.True(t, strings.HasPrefix(lines[1], "0x00000100"))
	assert.True(t, strings.HasPrefix(lines[2], "    0x00000110"))
}

func TestDumpUniformIndent(t *testing.T) {
	d := New()
	d.Indent = 2
	d.Header = false

	lines, err := d.Lines(make([]byte, 20), 0x100)
	require.NoError(t, err)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "  0x"), line)
	}
}

func TestDumpEmptyBuffer(t *testing.T) {
	d := New()
	d.Header = false
	lines, err := d.Lines(nil, 0x10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "0x00000010 | "+strings.Repeat(" ", 48)+"| "+strings.Repeat(" ", 16), lines[0])
}

func TestDumpEndOfAddressSpace(t *testing.T) {
	d := New()
	d.Header = false

	lines, err := d.Lines([]byte("WXYZ"), 0xffff_fffc)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "0xfffffff0 | "), lines[0])

	_, err = d.Lines(make([]byte, 8), 0xffff_fffc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "past the end of the address space")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Dumper)
	}{
		{"element size 3", func(d *Dumper) { d.Size = 3 }},
		{"element size 8", func(d *Dumper) { d.Size = 8 }},
		{"zero width", func(d *Dumper) { d.Width = 0 }},
		{"width not multiple of size", func(d *Dumper) { d.Size = 4; d.Width = 10 }},
		{"width too wide for header", func(d *Dumper) { d.Width = 512 }},
		{"no address digits", func(d *Dumper) { d.AddrSize = 0 }},
		{"negative indent", func(d *Dumper) { d.Indent = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			tt.mutate(d)

			err := d.Dump(&strings.Builder{}, []byte{1}, 0)
			var cfgErr *fault.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

// hexFieldWidth returns the number of columns between the end of the row
// prefix and the start of the ASCII sidebar (or end of line).
func hexFieldWidth(t *rapid.T, d *Dumper, line string, header bool, indent int) int {
	prefix := indent + d.AddrSize + 5
	if header {
		prefix = indent + d.AddrSize + 4
	}
	if len(line) < prefix {
		t.Fatalf("row shorter than its prefix: %q", line)
	}
	rest := line[prefix:]
	if d.ASCII && !header {
		hex := len(rest) - (2 + d.Width)
		if hex < 0 || rest[hex:hex+2] != "| " {
			t.Fatalf("missing ascii separator: %q", line)
		}
		return hex
	}
	return len(rest)
}

func TestDumpAlignmentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := New()
		d.Size = rapid.SampledFrom([]int{1, 2, 4}).Draw(t, "size")
		d.Width = d.Size * rapid.IntRange(1, 16).Draw(t, "slots")
		d.AddrSize = rapid.IntRange(4, 8).Draw(t, "addrsize")
		d.Indent = rapid.IntRange(0, 6).Draw(t, "indent")
		d.Hanging = rapid.Bool().Draw(t, "hanging")
		d.Header = rapid.Bool().Draw(t, "header")
		d.ASCII = rapid.Bool().Draw(t, "ascii")

		data := rapid.SliceOfN(rapid.Byte(), 0, 100).Draw(t, "data")
		addr := rapid.Uint32Range(0, 0xfff).Draw(t, "addr")

		lines, err := d.Lines(data, addr)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := (d.Width / d.Size) * (2*d.Size + 1)
		for i, line := range lines {
			isHeader := d.Header && i == 0
			indent := d.Indent
			if d.Hanging && (isHeader || i == 0 || (d.Header && i == 1)) {
				indent = 0
			}
			if got := hexFieldWidth(t, d, line, isHeader, indent); got != want {
				t.Fatalf("row %d hex field is %d columns, want %d: %q", i, got, want, line)
			}
		}
	})
}
