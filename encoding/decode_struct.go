package encoding

import (
	"iter"
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type structData struct {
	handler handler
	offset  uintptr
}

func decodeStruct(typ reflect2.StructType, bs int, swap bool) (handler, structSize) {
	count := typ.NumField()
	size := make(structSize, 0, count)
	var offset uintptr
	var needCustom bool
	for field := range rangeField(typ) {
		if field.Tag().Get("encoding") == "ignore" {
			needCustom = true
			break
		}
		if needCustom = checkCustom(field.Type(), bs, swap); needCustom {
			break
		} else if s := field.Offset() - offset; s != 0 {
			size = append(size, int(s))
		}
		offset = field.Offset()
	}
	if !needCustom {
		size = append(size, int(typ.Type1().Size()-offset))
		totalSize := size.Size()
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), totalSize))
			return err
		}, size
	}
	size = size[:0]
	fields := make([]*structData, 0, count)
	for field := range rangeField(typ) {
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		unmarshal, fieldSize := decodeFieldAlign(field.Type(), bs, size.Size(), swap)
		size = size.Add(fieldSize)
		fields = append(fields, &structData{unmarshal, field.Offset()})
	}
	var maxSize int
	for _, s := range size {
		maxSize = max(maxSize, s)
	}
	totalSize := size.Size()
	pad := align(totalSize, min(maxSize, bs)) - totalSize
	if pad > 0 {
		size = append(size, pad)
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		for _, data := range fields {
			err := data.handler(stream, unsafe.Add(ptr, data.offset))
			if err != nil {
				return err
			}
		}
		if pad > 0 {
			return stream.Skip(pad)
		}
		return nil
	}, size
}

func decodeFieldAlign(typ reflect2.Type, bs, offset int, swap bool) (handler, structSize) {
	unmarshal, size := decode(typ, bs, swap)
	addr := align(offset, min(size[0], bs))
	if addr == offset {
		return unmarshal, size
	}
	pad := addr - offset
	return func(stream Stream, ptr unsafe.Pointer) error {
		err := stream.Skip(pad)
		if err != nil {
			return err
		}
		return unmarshal(stream, ptr)
	}, append(structSize{pad}, size...)
}

// checkCustom reports whether typ needs a field-by-field handler instead of
// a raw copy. A target of the other byte order copies only single bytes.
func checkCustom(typ reflect2.Type, bs int, swap bool) bool {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return false
	case reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return swap
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return int(typ.Type1().Size()) != bs
	default:
		return true
	}
}

func rangeField(typ reflect2.StructType) iter.Seq[reflect2.StructField] {
	return func(yield func(reflect2.StructField) bool) {
		count := typ.NumField()
		for i := 0; i < count; i++ {
			if !yield(typ.Field(i)) {
				break
			}
		}
	}
}

func align(a, b int) int {
	if b <= 1 {
		return a
	}
	return (a + b - 1) &^ (b - 1)
}
