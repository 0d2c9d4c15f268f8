package oracle

import (
	"slices"
)

const maxStringLen = 0x1000

type Pointer struct {
	o    Oracle
	addr uint64
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Oracle() Oracle {
	return p.o
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.o, p.addr + offset}
}

func (p Pointer) Offset(offset int64) Pointer {
	return Pointer{p.o, p.addr + uint64(offset)}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.o, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	if p.addr == 0 {
		return nil, &ReadError{Addr: p.addr, Size: size}
	}
	b, err := p.o.ReadBytes(p.addr, size)
	if err != nil {
		return nil, err
	} else if uint64(len(b)) < size {
		return nil, &ReadError{Addr: p.addr, Size: size}
	}
	return b, nil
}

func (p Pointer) MemReadUint(size uint64) (uint64, error) {
	b, err := p.MemRead(size)
	if err != nil {
		return 0, err
	}
	return p.o.ByteOrder().Uint(b), nil
}

func (p Pointer) MemReadInt(size uint64) (int64, error) {
	b, err := p.MemRead(size)
	if err != nil {
		return 0, err
	}
	return p.o.ByteOrder().Int(b), nil
}

func (p Pointer) MemReadString() (string, error) {
	var data []byte
	const size = 0x10
	for begin := p; len(data) < maxStringLen; begin = begin.Add(size) {
		buf, err := begin.MemRead(size)
		if err != nil {
			// the string may end right before an unmapped page
			return begin.memReadStringSlow(data)
		}
		i := slices.Index(buf, 0)
		if i == -1 {
			data = append(data, buf...)
		} else {
			data = append(data, buf[:i]...)
			return string(data), nil
		}
	}
	return string(data), nil
}

func (p Pointer) MemReadPointer() (ptr Pointer, err error) {
	size, err := p.o.Arch().PointerSize()
	if err != nil {
		return
	}
	addr, err := p.MemReadUint(size)
	if err != nil {
		return
	}
	ptr.o, ptr.addr = p.o, addr
	return
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	data, err := p.Offset(off).MemRead(uint64(len(b)))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p Pointer) memReadStringSlow(data []byte) (string, error) {
	for i := uint64(0); len(data) < maxStringLen; i++ {
		b, err := p.Add(i).MemRead(1)
		if err != nil {
			return "", err
		} else if b[0] == 0 {
			break
		}
		data = append(data, b[0])
	}
	return string(data), nil
}
