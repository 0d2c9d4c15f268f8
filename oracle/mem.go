package oracle

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

type ByteOrder int

const (
	BO_LITTLE_ENDIAN ByteOrder = iota
	BO_BIG_ENDIAN
)

func (bo ByteOrder) Binary() binary.ByteOrder {
	if bo == BO_BIG_ENDIAN {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Uint decodes an unsigned integer of len(b) bytes (1, 2, 4 or 8).
func (bo ByteOrder) Uint(b []byte) uint64 {
	order := bo.Binary()
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	return 0
}

// Int is Uint with sign extension from the width of b.
func (bo ByteOrder) Int(b []byte) int64 {
	v := bo.Uint(b)
	switch len(b) {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return int64(v)
}

func (bo ByteOrder) PutUint(b []byte, v uint64) {
	order := bo.Binary()
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	case 8:
		order.PutUint64(b, v)
	}
}

func Align[I constraints.Integer](a, b I) I {
	return (a + b - 1) &^ (b - 1)
}

func IsPowerOfTwo[I constraints.Unsigned](v I) bool {
	return v != 0 && v&(v-1) == 0
}
