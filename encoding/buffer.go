package encoding

import (
	"bytes"
	"encoding/binary"
	"math"
)

type bufferStream struct {
	buf   []byte
	base  uint64
	off   int
	size  int
	order binary.ByteOrder
}

// BufferStream decodes a local copy of target memory that was fetched from
// base. Pointers inside the copy are followed only when they point back into
// it.
func BufferStream(buf []byte, base uint64, blockSize int, order binary.ByteOrder) Stream {
	return &bufferStream{buf, base, 0, blockSize, order}
}

func (bs *bufferStream) BlockSize() int {
	return bs.size
}

func (bs *bufferStream) ByteOrder() binary.ByteOrder {
	return bs.order
}

func (bs *bufferStream) Offset() uint64 {
	return bs.base + uint64(bs.off)
}

func (bs *bufferStream) Skip(n int) error {
	if bs.off+n > len(bs.buf) {
		return ErrOutOfRange
	}
	bs.off += n
	return nil
}

func (bs *bufferStream) Read(b []byte) (int, error) {
	if bs.off+len(b) > len(bs.buf) {
		return 0, ErrOutOfRange
	}
	n := copy(b, bs.buf[bs.off:])
	bs.off += n
	return n, nil
}

func (bs *bufferStream) readUint(size int) (uint64, error) {
	if bs.off+size > len(bs.buf) {
		return 0, ErrOutOfRange
	}
	b := bs.buf[bs.off : bs.off+size]
	bs.off += size
	switch size {
	case 4:
		return uint64(bs.order.Uint32(b)), nil
	case 8:
		return bs.order.Uint64(b), nil
	}
	return 0, ErrOutOfRange
}

func (bs *bufferStream) ReadFloat() (float32, error) {
	v, err := bs.readUint(4)
	return math.Float32frombits(uint32(v)), err
}

func (bs *bufferStream) ReadDouble() (float64, error) {
	v, err := bs.readUint(8)
	return math.Float64frombits(v), err
}

func (bs *bufferStream) ReadString() (string, error) {
	i := bytes.IndexByte(bs.buf[bs.off:], 0)
	if i == -1 {
		return "", ErrOutOfRange
	}
	str := string(bs.buf[bs.off : bs.off+i])
	bs.off += i + 1
	return str, nil
}

func (bs *bufferStream) ReadStream() (Stream, error) {
	addr, err := bs.readUint(bs.size)
	if err != nil {
		return nil, err
	}
	sub := &bufferStream{bs.buf, bs.base, 0, bs.size, bs.order}
	if addr == 0 {
		sub.base = 0
		return sub, nil
	} else if addr < bs.base || addr >= bs.base+uint64(len(bs.buf)) {
		return nil, ErrOutOfRange
	}
	sub.off = int(addr - bs.base)
	return sub, nil
}
