package rsp

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/schedscope/oracle"
)

type symbols map[string]oracle.Symbol

func (s symbols) Arch() oracle.Arch           { return oracle.ARCH_X86_64 }
func (s symbols) ByteOrder() oracle.ByteOrder { return oracle.BO_LITTLE_ENDIAN }
func (s symbols) FindSymbol(name string) (oracle.Symbol, error) {
	if sym, ok := s[name]; ok {
		return sym, nil
	}
	return oracle.Symbol{}, oracle.ErrSymbolNotFound
}

// stub is a minimal gdbserver over one end of a pipe.
type stub struct {
	conn     net.Conn
	r        *bufio.Reader
	features string
	base     uint64
	mem      []byte
	maxReply int
	noVCont  bool
	pause    bool
	corrupt  int

	mu      sync.Mutex
	packets []string
	noAck   bool
	running bool
	last    string
}

func newStub(t *testing.T, s *stub) *Client {
	client, server := net.Pipe()
	s.conn, s.r = server, bufio.NewReader(server)
	go s.serve()
	t.Cleanup(func() { client.Close() })
	c, err := Open(client, symbols{"ptr": {Name: "ptr", Addr: s.base, Size: 8}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func (s *stub) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.packets...)
}

func (s *stub) reply(payload string) {
	s.last = payload
	pkt := fmt.Sprintf("$%s#%02x", payload, checksum([]byte(payload)))
	if s.corrupt > 0 {
		s.corrupt--
		pkt = pkt[:len(pkt)-2] + "zz"
	}
	io.WriteString(s.conn, pkt)
}

func (s *stub) serve() {
	defer s.conn.Close()
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case '-':
			s.reply(s.last)
			continue
		case interrupt:
			if s.running {
				s.running = false
				s.reply("S02")
			}
			continue
		case '$':
		default:
			continue
		}
		data, err := s.r.ReadBytes('#')
		if err != nil {
			return
		}
		var sum [2]byte
		if _, err = io.ReadFull(s.r, sum[:]); err != nil {
			return
		}
		pkt := string(data[:len(data)-1])
		s.mu.Lock()
		s.packets = append(s.packets, pkt)
		noAck := s.noAck
		s.mu.Unlock()
		if !noAck {
			s.conn.Write([]byte{'+'})
		}
		s.handle(pkt)
	}
}

func (s *stub) handle(pkt string) {
	switch {
	case strings.HasPrefix(pkt, "qSupported"):
		s.reply(s.features)
	case pkt == "QStartNoAckMode":
		s.reply("OK")
		s.mu.Lock()
		s.noAck = true
		s.mu.Unlock()
	case strings.HasPrefix(pkt, "m"):
		addr, size, _ := strings.Cut(pkt[1:], ",")
		a, _ := strconv.ParseUint(addr, 16, 64)
		n, _ := strconv.ParseUint(size, 16, 64)
		if a < s.base || a+n > s.base+uint64(len(s.mem)) {
			s.reply("E01")
			return
		}
		if s.maxReply > 0 {
			n = min(n, uint64(s.maxReply))
		}
		s.reply(hex.EncodeToString(s.mem[a-s.base : a-s.base+n]))
	case strings.HasPrefix(pkt, "Z0,"), strings.HasPrefix(pkt, "z0,"):
		s.reply("OK")
	case pkt == "vCont;c" && s.noVCont:
		s.reply("")
	case pkt == "vCont;c", pkt == "c":
		if s.pause {
			s.running = true
			return
		}
		s.reply("T05thread:01;")
	default:
		s.reply("")
	}
}

func TestReadBytes_Chunked(t *testing.T) {
	mem := make([]byte, 64)
	for i := range mem {
		mem[i] = byte(i)
	}
	// 0x24 bytes per packet leaves room for 16 bytes of data
	s := &stub{features: "PacketSize=24;swbreak+", base: 0x1000, mem: mem, maxReply: 12}
	c := newStub(t, s)

	got, err := c.ReadBytes(0x1004, 40)
	require.NoError(t, err)
	assert.Equal(t, mem[4:44], got)

	var reads []string
	for _, pkt := range s.log() {
		if strings.HasPrefix(pkt, "m") {
			reads = append(reads, pkt)
		}
	}
	assert.Equal(t, []string{"m1004,10", "m1010,10", "m101c,10", "m1028,4"}, reads)
}

func TestReadBytes_Error(t *testing.T) {
	c := newStub(t, &stub{features: "PacketSize=400", base: 0x1000, mem: make([]byte, 16)})
	_, err := c.ReadBytes(0x2000, 8)
	require.ErrorIs(t, err, oracle.ErrUnreadable)
	assert.ErrorIs(t, err, ErrStub)
}

func TestEvaluate(t *testing.T) {
	mem := make([]byte, 16)
	mem[0], mem[1] = 0x08, 0x10
	c := newStub(t, &stub{features: "QStartNoAckMode+", base: 0x1000, mem: mem})
	assert.True(t, c.noAck)

	v, err := c.Evaluate("*ptr + 8")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1010), v.Addr)
	sym, err := c.LookupSymbol("ptr")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), sym.Addr)
}

func TestChecksumRetransmit(t *testing.T) {
	s := &stub{features: "PacketSize=400", base: 0x1000, mem: []byte{1, 2, 3, 4}}
	c := newStub(t, s)
	s.corrupt = 1
	got, err := c.ReadBytes(0x1000, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestContinueUntil(t *testing.T) {
	s := &stub{features: "PacketSize=400", base: 0x1000, mem: make([]byte, 8)}
	c := newStub(t, s)
	require.NoError(t, c.ContinueUntil(context.Background(), 0x401000))
	assert.Equal(t, []string{"Z0,401000,1", "vCont;c", "z0,401000,1"}, s.log()[1:])
}

func TestContinueUntil_PlainContinue(t *testing.T) {
	s := &stub{features: "PacketSize=400", noVCont: true}
	c := newStub(t, s)
	require.NoError(t, c.ContinueUntil(context.Background(), 0x401000))
	assert.Equal(t, []string{"Z0,401000,1", "vCont;c", "c", "z0,401000,1"}, s.log()[1:])
}

func TestContinueUntil_Interrupted(t *testing.T) {
	s := &stub{features: "PacketSize=400", pause: true}
	c := newStub(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.ContinueUntil(ctx, 0x401000)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	log := s.log()
	assert.Equal(t, "z0,401000,1", log[len(log)-1])
}

func TestExpand(t *testing.T) {
	assert.Equal(t, "0000", string(expand([]byte("0* "))))
	assert.Equal(t, "ab", string(expand([]byte("ab"))))
	assert.Equal(t, "1fffff2", string(expand([]byte("1f*!2"))))
}
