package probe

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStub is a minimal gdbserver answering ?, m, c and D packets.
type fakeStub struct {
	conn     net.Conn
	mem      map[uint32]byte
	errAt    uint32
	nakFirst bool
	rle      bool
	// deaf stubs drop interrupts without a stop reply.
	deaf bool
	// status answers "?"; empty means "S05".
	status string

	mu         sync.Mutex
	packets    []string
	interrupts int
}

func newStubPair(t *testing.T, stub *fakeStub) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	stub.conn = server
	go stub.serve()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client
}

func (s *fakeStub) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.packets...)
}

func (s *fakeStub) interrupted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupts
}

func (s *fakeStub) serve() {
	rd := bufio.NewReader(s.conn)
	for {
		b, err := rd.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case '$':
			body, err := rd.ReadString('#')
			if err != nil {
				return
			}
			var sum [2]byte
			if _, err := io.ReadFull(rd, sum[:]); err != nil {
				return
			}
			if s.nakFirst {
				s.nakFirst = false
				_, _ = s.conn.Write([]byte("-"))
				continue
			}
			body = body[:len(body)-1]
			s.mu.Lock()
			s.packets = append(s.packets, body)
			s.mu.Unlock()
			_, _ = s.conn.Write([]byte("+"))
			s.handle(body)
		case 0x03:
			s.mu.Lock()
			s.interrupts++
			s.mu.Unlock()
			if !s.deaf {
				s.reply("T05")
			}
		}
	}
}

func (s *fakeStub) handle(body string) {
	switch body[0] {
	case '?':
		if s.status == "" {
			s.reply("S05")
			return
		}
		s.reply(s.status)
	case 'm':
		var addr uint32
		var n int
		if _, err := fmt.Sscanf(body, "m%x,%x", &addr, &n); err != nil {
			s.reply("E01")
			return
		}
		if s.errAt != 0 && addr <= s.errAt && s.errAt < addr+uint32(n) {
			s.reply("E14")
			return
		}
		data := make([]byte, n)
		for i := range data {
			data[i] = s.mem[addr+uint32(i)]
		}
		payload := hex.EncodeToString(data)
		if s.rle && payload == "00000000" {
			// Each "0* " is a zero repeated three more times.
			payload = "0* 0* "
		}
		s.reply(payload)
	case 'D':
		s.reply("OK")
	}
}

func (s *fakeStub) reply(payload string) {
	_, _ = io.WriteString(s.conn, frame(payload))
}

func TestFrame(t *testing.T) {
	assert.Equal(t, "$m0,4#fd", frame("m0,4"))
	assert.Equal(t, "$#00", frame(""))
}

func TestExpandRuns(t *testing.T) {
	got, err := expandRuns("0* ")
	require.NoError(t, err)
	assert.Equal(t, "0000", got)

	got, err = expandRuns("ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	_, err = expandRuns("*a")
	assert.Error(t, err)
}

func TestGDBReadMemory(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{0x100: 0xde, 0x101: 0xad, 0x102: 0xbe, 0x103: 0xef}}
	g := NewGDB(newStubPair(t, stub), GDBConfig{})

	got, err := g.ReadMemory(0x100, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got)
	assert.Equal(t, []string{"?", "m100,4"}, stub.seen())
}

func TestGDBReadMemoryChunks(t *testing.T) {
	mem := map[uint32]byte{}
	for i := uint32(0); i < 10; i++ {
		mem[0x2000_0000+i] = byte(i)
	}
	stub := &fakeStub{mem: mem}
	g := NewGDB(newStubPair(t, stub), GDBConfig{MaxReadSize: 4})

	got, err := g.ReadMemory(0x2000_0000, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.Equal(t, []string{"?", "m20000000,4", "m20000004,4", "m20000008,2"}, stub.seen())
}

func TestGDBReadMemoryStubError(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{}, errAt: 0x8}
	g := NewGDB(newStubPair(t, stub), GDBConfig{})

	_, err := g.ReadMemory(0x4, 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stub error 14")
}

func TestGDBRetriesAfterNak(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{0x10: 0x5a}, nakFirst: true}
	g := NewGDB(newStubPair(t, stub), GDBConfig{})

	got, err := g.ReadMemory(0x10, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5a}, got)
}

func TestGDBRunLengthReply(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{}, rle: true}
	g := NewGDB(newStubPair(t, stub), GDBConfig{})

	got, err := g.ReadMemory(0x0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, got)
}

func TestGDBHaltResumeClose(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{}}
	g := NewGDB(newStubPair(t, stub), GDBConfig{})

	require.NoError(t, g.Halt())
	require.NoError(t, g.Resume())
	require.NoError(t, g.Halt())
	require.NoError(t, g.Close())
	assert.Equal(t, []string{"?", "c", "D"}, stub.seen())
	assert.Equal(t, 1, stub.interrupted())
}

func TestGDBHaltOnStoppedCoreSendsNoInterrupt(t *testing.T) {
	// A deaf stub would never answer an interrupt, so Halt must not send one.
	stub := &fakeStub{mem: map[uint32]byte{}, deaf: true}
	g := NewGDB(newStubPair(t, stub), GDBConfig{Timeout: time.Second})

	require.NoError(t, g.Halt())
	require.NoError(t, g.Halt())
	assert.Zero(t, stub.interrupted())
	assert.Equal(t, []string{"?"}, stub.seen())
}

func TestGDBReadWhileRunningHaltsFirst(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{0x40: 0x7f}}
	g := NewGDB(newStubPair(t, stub), GDBConfig{})

	require.NoError(t, g.Resume())
	got, err := g.ReadMemory(0x40, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f}, got)
	assert.Equal(t, 1, stub.interrupted())
	assert.Equal(t, []string{"?", "c", "m40,1", "c"}, stub.seen())

	// The core was left running, so the next halt interrupts it again.
	require.NoError(t, g.Halt())
	assert.Equal(t, 2, stub.interrupted())
}

func TestGDBHaltTimesOutWithoutStopReply(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{}, deaf: true}
	g := NewGDB(newStubPair(t, stub), GDBConfig{Timeout: 50 * time.Millisecond})

	require.NoError(t, g.Resume())
	done := make(chan error, 1)
	go func() { done <- g.Halt() }()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
		assert.Contains(t, err.Error(), "no stop reply")
	case <-time.After(5 * time.Second):
		t.Fatalf("Halt did not return")
	}
}

func TestGDBRejectsTargetThatIsNotStopped(t *testing.T) {
	stub := &fakeStub{mem: map[uint32]byte{}, status: "W00"}
	g := NewGDB(newStubPair(t, stub), GDBConfig{})

	_, err := g.ReadMemory(0x0, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `target is not stopped: "W00"`)
	assert.Equal(t, []string{"?"}, stub.seen())
}
