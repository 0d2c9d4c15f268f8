package encoding

import (
	"encoding/binary"
	"errors"
)

var (
	ErrTargetInvalid = errors.New("decode target must be a non-nil pointer")
	ErrOutOfRange    = errors.New("stream out of range")
)

type Stream interface {
	BlockSize() int
	ByteOrder() binary.ByteOrder
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	ReadFloat() (float32, error)
	ReadDouble() (float64, error)
	ReadString() (string, error)
	ReadStream() (Stream, error)
}
