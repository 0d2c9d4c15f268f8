package encoding

import (
	"encoding/binary"
	"reflect"
	"slices"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type handler = func(Stream, unsafe.Pointer) error

type handlerData struct {
	handler handler
	size    int
}

var decodeProcess sync.Map

// DecodeSize reports how many stream bytes Decode consumes for val, which
// may be a value or a pointer to one.
func DecodeSize(blockSize int, val any) int {
	if val == nil {
		return blockSize
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() == reflect.Pointer {
		typ = typ.(reflect2.PtrType).Elem()
	}
	return getUnmarshalData(typ, blockSize, false).size
}

// Decode fills the value val points to from stream.
func Decode(stream Stream, val any) error {
	if val == nil {
		return ErrTargetInvalid
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() != reflect.Pointer {
		return ErrTargetInvalid
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrTargetInvalid
	}
	elem := typ.(reflect2.PtrType).Elem()
	return getUnmarshalData(elem, stream.BlockSize(), swapped(stream.ByteOrder())).handler(stream, ptr)
}

// swapped reports whether order differs from the host's.
func swapped(order binary.ByteOrder) bool {
	b := []byte{1, 0}
	return order.Uint16(b) != binary.NativeEndian.Uint16(b)
}

func getUnmarshalData(typ reflect2.Type, bs int, swap bool) *handlerData {
	key := [3]uintptr{uintptr(bs), typ.RType(), 0}
	if swap {
		key[2] = 1
	}
	if v, ok := decodeProcess.Load(key); ok {
		return v.(*handlerData)
	}
	unmarshal, size := decode(typ, bs, swap)
	data := &handlerData{unmarshal, size.Size()}
	decodeProcess.Store(key, data)
	return data
}

func decode(typ reflect2.Type, bs int, swap bool) (handler, structSize) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), 1))
			return err
		}, structSize{1}
	case reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Complex64, reflect.Complex128:
		size := int(typ.Type1().Size())
		// complex values swap each half on its own
		scalar := size
		if k := typ.Kind(); k == reflect.Complex64 || k == reflect.Complex128 {
			scalar /= 2
		}
		return func(stream Stream, ptr unsafe.Pointer) error {
			b := unsafe.Slice((*byte)(ptr), size)
			if _, err := stream.Read(b); err != nil {
				return err
			} else if swap {
				for i := 0; i < size; i += scalar {
					slices.Reverse(b[i : i+scalar])
				}
			}
			return nil
		}, structSize{size}
	case reflect.Float32:
		return func(stream Stream, ptr unsafe.Pointer) error {
			f, err := stream.ReadFloat()
			if err == nil {
				*(*float32)(ptr) = f
			}
			return err
		}, structSize{4}
	case reflect.Float64:
		return func(stream Stream, ptr unsafe.Pointer) error {
			d, err := stream.ReadDouble()
			if err == nil {
				*(*float64)(ptr) = d
			}
			return err
		}, structSize{8}
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return decodeWord(typ, bs)
	case reflect.Array:
		return decodeArray(typ.(reflect2.ArrayType), bs, swap)
	case reflect.Pointer:
		return decodePointer(typ.(reflect2.PtrType).Elem(), bs, swap)
	case reflect.Struct:
		return decodeStruct(typ.(reflect2.StructType), bs, swap)
	}
	panic("Unsupported Type: " + typ.String())
}

// decodeWord reads a target word (bs bytes) into a host word, truncating or
// extending as needed; Int sign extends.
func decodeWord(typ reflect2.Type, bs int) (handler, structSize) {
	host := typ.Type1().Size()
	signed := typ.Kind() == reflect.Int
	return func(stream Stream, ptr unsafe.Pointer) error {
		var buf [8]byte
		b := buf[:min(bs, len(buf))]
		if _, err := stream.Read(b); err != nil {
			return err
		} else if bs > len(buf) {
			if err := stream.Skip(bs - len(buf)); err != nil {
				return err
			}
		}
		v := wordOf(stream.ByteOrder(), b)
		if bits := uint(len(b)) * 8; signed && bits < 64 {
			v = uint64(int64(v<<(64-bits)) >> (64 - bits))
		}
		if host == 4 {
			*(*uint32)(ptr) = uint32(v)
		} else {
			*(*uint64)(ptr) = v
		}
		return nil
	}, structSize{bs}
}

func wordOf(order binary.ByteOrder, b []byte) uint64 {
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

func decodePointer(elem reflect2.Type, bs int, swap bool) (handler, structSize) {
	var unmarshal handler
	var once sync.Once
	return func(stream Stream, ptr unsafe.Pointer) error {
		subStream, err := stream.ReadStream()
		if err != nil {
			return err
		} else if subStream.Offset() == 0 {
			*(*unsafe.Pointer)(ptr) = nil
			return nil
		}
		once.Do(func() { unmarshal, _ = decode(elem, bs, swap) })
		elemPtr := *(*unsafe.Pointer)(ptr)
		if elemPtr == nil {
			elemPtr = elem.UnsafeNew()
			*(*unsafe.Pointer)(ptr) = elemPtr
		}
		return unmarshal(subStream, elemPtr)
	}, structSize{bs}
}
