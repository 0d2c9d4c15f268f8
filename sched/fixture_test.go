package sched_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/schedscope/internal/memimage"
	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
	"github.com/wnxd/schedscope/sched"
)

// worker: current@0, id@8, queues@16 (24 bytes each)
// deque: bottom@0, top@8, buffer*@16; ring: mask@0, slots@8
// parcel: action@0 (u16), size@4 (u32), buffer*@8
// actions: count@0 (u32), entries@8 (16 bytes each, key*@8)
const testLayout = `
runtime {
  constraint = ">= 4.0.0"
}
scheduler {
  root      = "*sched_root"
  n_workers = 0
  workers   = 8
  indirect  = true
}
worker {
  stride  = 64
  current = 0
  id      = 8
  queues {
    offset = 16
    stride = 24
    count  = 2
    names  = ["work", "yield"]
  }
}
deque {
  bottom = 0
  top    = 8
  buffer = 16
  ring {
    mask  = 0
    slots = 8
  }
}
parcel {
  action = 0
  size   = 4
  buffer = 8
}
actions {
  symbol   = "actions"
  count    = 0
  entries  = 8
  stride   = 16
  key      = 8
  capacity = 8
}
`

type target struct {
	*memimage.Image
	t      *testing.T
	layout *layout.Layout
	next   uint64
}

func newTarget(t *testing.T) *target {
	l, err := layout.Parse([]byte(testLayout), "test.hcl")
	require.NoError(t, err)
	return &target{
		Image:  memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN),
		t:      t,
		layout: l,
		next:   0x10000,
	}
}

func (tg *target) alloc(size uint64) uint64 {
	addr := tg.next
	tg.Map(addr, size)
	tg.next += (size + 0xff) &^ 0xff
	return addr
}

func (tg *target) reader() *sched.Reader {
	return sched.NewReader(tg, tg.layout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// scheduler maps a root whose worker pointer array holds workers.
func (tg *target) scheduler(workers ...uint64) uint64 {
	root := tg.alloc(16)
	tg.PutUint(root, 4, uint64(len(workers)))
	arr := tg.alloc(uint64(max(len(workers), 1)) * 8)
	for i, w := range workers {
		tg.PutPointer(arr+uint64(i)*8, w)
	}
	tg.PutPointer(root+8, arr)
	sym := tg.alloc(8)
	tg.PutPointer(sym, root)
	tg.AddSymbol("sched_root", sym, 8)
	return root
}

func (tg *target) worker(id int, current uint64) uint64 {
	w := tg.alloc(64)
	tg.PutPointer(w, current)
	tg.PutUint(w+8, 4, uint64(id))
	// both queues start empty over a 4-slot ring
	for q := uint64(0); q < 2; q++ {
		tg.PutPointer(w+16+q*24+16, tg.ring(4))
	}
	return w
}

func (tg *target) queue(w uint64, q int) uint64 {
	return w + 16 + uint64(q)*24
}

func (tg *target) setCursors(deque uint64, top, bottom int64) {
	tg.PutUint(deque, 8, uint64(bottom))
	tg.PutUint(deque+8, 8, uint64(top))
}

func (tg *target) ring(capacity uint64) uint64 {
	buf := tg.alloc(8 + capacity*8)
	tg.PutUint(buf, 8, capacity-1)
	return buf
}

func (tg *target) ringOf(deque uint64) uint64 {
	b, err := tg.ReadBytes(deque+16, 8)
	require.NoError(tg.t, err)
	return tg.ByteOrder().Uint(b)
}

func (tg *target) parcel(action uint16, size uint32) uint64 {
	p := tg.alloc(16 + uint64(size))
	tg.PutUint(p, 2, uint64(action))
	tg.PutUint(p+4, 4, uint64(size))
	tg.PutPointer(p+8, p+16)
	return p
}

// actions registers the keys verbatim, quotes included.
func (tg *target) actions(keys map[int]string, count int) uint64 {
	tbl := tg.alloc(8 + 8*16)
	tg.PutUint(tbl, 4, uint64(count))
	for id, key := range keys {
		s := tg.alloc(uint64(len(key)) + 1)
		tg.PutString(s, key)
		tg.PutPointer(tbl+8+uint64(id)*16+8, s)
	}
	tg.AddSymbol("actions", tbl, 8+8*16)
	return tbl
}
