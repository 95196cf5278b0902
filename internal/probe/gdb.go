package probe

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// GDBConfig tunes the remote serial protocol client.
type GDBConfig struct {
	// MaxReadSize bounds the bytes requested by one m packet.
	MaxReadSize int
	// Retries is how many times a packet is resent after a NAK.
	Retries int
	// Timeout bounds the wait for each acknowledgement or reply.
	Timeout time.Duration
}

type runState int

const (
	stateUnknown runState = iota
	stateStopped
	stateRunning
)

// GDB speaks the GDB remote serial protocol to a gdbserver-style stub.
type GDB struct {
	conn io.ReadWriteCloser
	rd   *bufio.Reader
	cfg  GDBConfig

	state runState
}

// ErrNak is returned when the stub keeps rejecting a packet.
var ErrNak = errors.New("gdb: packet rejected")

// NewGDB wraps an open connection.
func NewGDB(conn io.ReadWriteCloser, cfg GDBConfig) *GDB {
	if cfg.MaxReadSize <= 0 {
		cfg.MaxReadSize = 1024
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &GDB{
		conn: conn,
		rd:   bufio.NewReader(conn),
		cfg:  cfg,
	}
}

func checksum(payload string) byte {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	return sum
}

func frame(payload string) string {
	return fmt.Sprintf("$%s#%02x", payload, checksum(payload))
}

// expectReply arms the read deadline when the connection supports one.
func (g *GDB) expectReply() {
	if dc, ok := g.conn.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = dc.SetReadDeadline(time.Now().Add(g.cfg.Timeout))
	}
}

// send writes one packet and waits for the stub's acknowledgement.
func (g *GDB) send(payload string) error {
	pkt := frame(payload)
	for attempt := 0; attempt <= g.cfg.Retries; attempt++ {
		if _, err := io.WriteString(g.conn, pkt); err != nil {
			return fmt.Errorf("gdb: write: %w", err)
		}
		g.expectReply()
		ack, err := g.rd.ReadByte()
		if err != nil {
			return fmt.Errorf("gdb: read ack: %w", err)
		}
		switch ack {
		case '+':
			return nil
		case '-':
			continue
		default:
			return fmt.Errorf("gdb: unexpected ack byte 0x%02x", ack)
		}
	}
	return ErrNak
}

// recv reads one packet, acknowledges it and returns its decoded payload.
func (g *GDB) recv() (string, error) {
	g.expectReply()
	for {
		// Skip anything before the start of a packet.
		if _, err := g.rd.ReadString('$'); err != nil {
			return "", fmt.Errorf("gdb: read packet: %w", err)
		}
		body, err := g.rd.ReadString('#')
		if err != nil {
			return "", fmt.Errorf("gdb: read packet: %w", err)
		}
		body = body[:len(body)-1]

		var sum [2]byte
		if _, err := io.ReadFull(g.rd, sum[:]); err != nil {
			return "", fmt.Errorf("gdb: read checksum: %w", err)
		}
		want, err := strconv.ParseUint(string(sum[:]), 16, 8)
		if err != nil || byte(want) != checksum(body) {
			if _, err := io.WriteString(g.conn, "-"); err != nil {
				return "", fmt.Errorf("gdb: write nak: %w", err)
			}
			continue
		}
		if _, err := io.WriteString(g.conn, "+"); err != nil {
			return "", fmt.Errorf("gdb: write ack: %w", err)
		}
		return expandRuns(body)
	}
}

func (g *GDB) exchange(payload string) (string, error) {
	if err := g.send(payload); err != nil {
		return "", err
	}
	return g.recv()
}

// expandRuns decodes run-length encoding: "c*n" repeats c a further
// n-29 times.
func expandRuns(s string) (string, error) {
	if !strings.Contains(s, "*") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '*' {
			b.WriteByte(s[i])
			continue
		}
		if i == 0 || i+1 >= len(s) {
			return "", fmt.Errorf("gdb: malformed run-length encoding")
		}
		n := int(s[i+1]) - 29
		if n < 0 {
			return "", fmt.Errorf("gdb: invalid run length %q", s[i+1])
		}
		b.WriteString(strings.Repeat(string(s[i-1]), n))
		i++
	}
	return b.String(), nil
}

// stubError converts an "Exx" reply into an error.
func stubError(reply string) error {
	if len(reply) == 3 && reply[0] == 'E' {
		return fmt.Errorf("gdb: stub error %s", reply[1:])
	}
	return nil
}

func isStopReply(reply string) bool {
	return reply != "" && (reply[0] == 'S' || reply[0] == 'T')
}

// syncState asks the stub why the core last stopped. A stub only answers
// "?" with a stop reply while the core is halted.
func (g *GDB) syncState() error {
	if g.state != stateUnknown {
		return nil
	}
	reply, err := g.exchange("?")
	if err != nil {
		return err
	}
	if !isStopReply(reply) {
		return fmt.Errorf("gdb: target is not stopped: %q", reply)
	}
	g.state = stateStopped
	return nil
}

// ReadMemory reads length bytes at addr, splitting into m packets of at
// most MaxReadSize bytes. A running core is halted for the read and
// resumed afterwards.
func (g *GDB) ReadMemory(addr uint32, length int) (_ []byte, err error) {
	if err := g.syncState(); err != nil {
		return nil, err
	}
	if g.state == stateRunning {
		if err := g.Halt(); err != nil {
			return nil, err
		}
		defer func() {
			if rerr := g.Resume(); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}
	return g.readMemory(addr, length)
}

func (g *GDB) readMemory(addr uint32, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	for len(out) < length {
		n := length - len(out)
		if n > g.cfg.MaxReadSize {
			n = g.cfg.MaxReadSize
		}
		at := uint64(addr) + uint64(len(out))
		reply, err := g.exchange(fmt.Sprintf("m%x,%x", at, n))
		if err != nil {
			return nil, err
		}
		if err := stubError(reply); err != nil {
			return nil, fmt.Errorf("read 0x%x bytes at 0x%08x: %w", n, at, err)
		}
		chunk, err := hex.DecodeString(reply)
		if err != nil {
			return nil, fmt.Errorf("gdb: bad memory reply: %w", err)
		}
		if len(chunk) == 0 {
			return nil, fmt.Errorf("gdb: empty reply reading 0x%08x", at)
		}
		out = append(out, chunk...)
	}
	return out[:length], nil
}

// Halt interrupts the target and waits for its stop reply. Halting a
// stopped core does nothing.
func (g *GDB) Halt() error {
	if err := g.syncState(); err != nil {
		return err
	}
	if g.state == stateStopped {
		return nil
	}
	if _, err := g.conn.Write([]byte{0x03}); err != nil {
		return fmt.Errorf("gdb: interrupt: %w", err)
	}
	reply, err := g.recv()
	if err != nil {
		// The core may or may not have stopped; ask again next time.
		g.state = stateUnknown
		return fmt.Errorf("gdb: no stop reply: %w", err)
	}
	if !isStopReply(reply) {
		g.state = stateUnknown
		return fmt.Errorf("gdb: unexpected stop reply %q", reply)
	}
	g.state = stateStopped
	return nil
}

// Resume continues the target. The stop reply that eventually follows is
// consumed by the next Halt.
func (g *GDB) Resume() error {
	if err := g.syncState(); err != nil {
		return err
	}
	if g.state == stateRunning {
		return nil
	}
	if err := g.send("c"); err != nil {
		return err
	}
	g.state = stateRunning
	return nil
}

// Close detaches from the stub and closes the connection.
func (g *GDB) Close() error {
	detachErr := g.send("D")
	closeErr := g.conn.Close()
	if closeErr != nil {
		return closeErr
	}
	if detachErr != nil && !errors.Is(detachErr, io.EOF) {
		return detachErr
	}
	return nil
}
