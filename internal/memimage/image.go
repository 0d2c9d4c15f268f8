// Package memimage is a sparse, in-memory target image that tests use as an
// Oracle in place of a live process.
package memimage

import (
	"context"
	"slices"
	"sync"

	"github.com/wnxd/schedscope/frames"
	"github.com/wnxd/schedscope/internal/expr"
	"github.com/wnxd/schedscope/oracle"
)

type segment struct {
	addr uint64
	data []byte
}

type Image struct {
	arch  oracle.Arch
	order oracle.ByteOrder

	mu      sync.Mutex
	segs    []*segment
	syms    map[string]oracle.Symbol
	exprs   map[string]oracle.Value
	poison  map[uint64]error
	frames  []frames.Frame
	calls   int
	resumed []uint64
}

func New(arch oracle.Arch, order oracle.ByteOrder) *Image {
	return &Image{
		arch:   arch,
		order:  order,
		syms:   make(map[string]oracle.Symbol),
		exprs:  make(map[string]oracle.Value),
		poison: make(map[uint64]error),
	}
}

// Map backs [addr, addr+size) with zeroed memory.
func (img *Image) Map(addr, size uint64) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.segs = append(img.segs, &segment{addr, make([]byte, size)})
	slices.SortFunc(img.segs, func(a, b *segment) int {
		switch {
		case a.addr < b.addr:
			return -1
		case a.addr > b.addr:
			return 1
		}
		return 0
	})
}

// Poison makes every read touching addr fail with err.
func (img *Image) Poison(addr uint64, err error) {
	img.mu.Lock()
	img.poison[addr] = err
	img.mu.Unlock()
}

func (img *Image) Write(addr uint64, data []byte) {
	img.mu.Lock()
	defer img.mu.Unlock()
	for len(data) > 0 {
		seg := img.find(addr)
		if seg == nil {
			panic("memimage: write to unmapped address")
		}
		n := copy(seg.data[addr-seg.addr:], data)
		data = data[n:]
		addr += uint64(n)
	}
}

func (img *Image) PutUint(addr, size, v uint64) {
	b := make([]byte, size)
	img.order.PutUint(b, v)
	img.Write(addr, b)
}

func (img *Image) PutPointer(addr, v uint64) {
	size, _ := img.arch.PointerSize()
	img.PutUint(addr, size, v)
}

func (img *Image) PutString(addr uint64, s string) {
	img.Write(addr, append([]byte(s), 0))
}

func (img *Image) AddSymbol(name string, addr, size uint64) {
	img.mu.Lock()
	img.syms[name] = oracle.Symbol{Name: name, Addr: addr, Size: size}
	img.mu.Unlock()
}

// SetExpr pins the result of evaluating src, the way a host debugger would
// answer for expressions beyond the raw address language.
func (img *Image) SetExpr(src string, v oracle.Value) {
	img.mu.Lock()
	v.Expr = src
	img.exprs[src] = v
	img.mu.Unlock()
}

func (img *Image) SetFrames(list []frames.Frame) {
	img.mu.Lock()
	img.frames = list
	img.mu.Unlock()
}

// Calls is the number of oracle requests served so far.
func (img *Image) Calls() int {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.calls
}

func (img *Image) Resumed() []uint64 {
	img.mu.Lock()
	defer img.mu.Unlock()
	return slices.Clone(img.resumed)
}

func (img *Image) find(addr uint64) *segment {
	for _, seg := range img.segs {
		if addr >= seg.addr && addr < seg.addr+uint64(len(seg.data)) {
			return seg
		}
	}
	return nil
}

func (img *Image) Arch() oracle.Arch {
	return img.arch
}

func (img *Image) ByteOrder() oracle.ByteOrder {
	return img.order
}

func (img *Image) ReadBytes(addr, size uint64) ([]byte, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.calls++
	for p, err := range img.poison {
		if p >= addr && p < addr+size {
			return nil, &oracle.ReadError{Addr: addr, Size: size, Err: err}
		}
	}
	out := make([]byte, 0, size)
	for cur := addr; uint64(len(out)) < size; {
		seg := img.find(cur)
		if seg == nil {
			return nil, &oracle.ReadError{Addr: addr, Size: size}
		}
		off := cur - seg.addr
		n := min(uint64(len(seg.data))-off, size-uint64(len(out)))
		out = append(out, seg.data[off:off+n]...)
		cur += n
	}
	return out, nil
}

func (img *Image) LookupSymbol(name string) (oracle.Symbol, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.calls++
	if sym, ok := img.syms[name]; ok {
		return sym, nil
	}
	return oracle.Symbol{}, oracle.ErrSymbolNotFound
}

func (img *Image) Evaluate(src string) (oracle.Value, error) {
	img.mu.Lock()
	img.calls++
	v, ok := img.exprs[src]
	img.mu.Unlock()
	if ok {
		return v, nil
	}
	return expr.Evaluate(img, src)
}

func (img *Image) Frames() (frames.Source, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.frames == nil {
		return nil, oracle.ErrNotSupported
	}
	return frames.FromSlice(slices.Clone(img.frames)), nil
}

func (img *Image) ContinueUntil(ctx context.Context, addr uint64) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.calls++
	img.resumed = append(img.resumed, addr)
	return ctx.Err()
}
