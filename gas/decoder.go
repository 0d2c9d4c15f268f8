package gas

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/wnxd/schedscope/encoding"
	"github.com/wnxd/schedscope/layout"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Format describes how target bytes are laid out.
type Format struct {
	Word  int
	Order binary.ByteOrder
}

type Decoder interface {
	Size(f Format) int
	Decode(buf []byte, f Format) (cty.Value, error)
}

type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry holds the built-in LCO decoders plus the layout's type blocks,
// which take precedence on equal names.
func NewRegistry(types []*layout.Type) *Registry {
	r := &Registry{decoders: map[string]Decoder{
		"struct future": structDecoder[future]{view: (*future).view},
		"struct sema":   structDecoder[sema]{view: (*sema).view},
		"struct and":    structDecoder[and]{view: (*and).view},
	}}
	for _, typ := range types {
		r.decoders[typ.Name] = typeDecoder{typ}
	}
	return r
}

func (r *Registry) Lookup(name string) (Decoder, bool) {
	d, ok := r.decoders[name]
	return d, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type structDecoder[T any] struct {
	view func(*T) any
}

func (d structDecoder[T]) Size(f Format) int {
	return encoding.DecodeSize(f.Word, new(T))
}

func (d structDecoder[T]) Decode(buf []byte, f Format) (cty.Value, error) {
	raw := new(T)
	if err := encoding.Decode(encoding.BufferStream(buf, 0, f.Word, f.Order), raw); err != nil {
		return cty.NilVal, err
	}
	view := d.view(raw)
	ty, err := gocty.ImpliedType(view)
	if err != nil {
		return cty.NilVal, err
	}
	return gocty.ToCtyValue(view, ty)
}

const (
	lcoLocked    = 0x1
	lcoTriggered = 0x2
	lcoUser      = 0x4
	lcoStateMask = 0x7
)

// lco is the common header: a wait queue pointer carrying state in its low
// bits.
type lco struct {
	Bits uintptr
}

type lcoView struct {
	Locked    bool   `cty:"locked"`
	Triggered bool   `cty:"triggered"`
	User      bool   `cty:"user"`
	Waiters   string `cty:"waiters"`
}

func (l lco) view() lcoView {
	return lcoView{
		Locked:    l.Bits&lcoLocked != 0,
		Triggered: l.Bits&lcoTriggered != 0,
		User:      l.Bits&lcoUser != 0,
		Waiters:   hex(uint64(l.Bits &^ lcoStateMask)),
	}
}

type future struct {
	LCO   lco
	Value uintptr
}

func (f *future) view() any {
	return struct {
		LCO   lcoView `cty:"lco"`
		Value string  `cty:"value"`
	}{f.LCO.view(), hex(uint64(f.Value))}
}

type sema struct {
	LCO   lco
	Count uint32
}

func (s *sema) view() any {
	return struct {
		LCO   lcoView `cty:"lco"`
		Count uint32  `cty:"count"`
	}{s.LCO.view(), s.Count}
}

type and struct {
	LCO     lco
	Barrier uintptr
	Value   int64
}

func (a *and) view() any {
	return struct {
		LCO       lcoView `cty:"lco"`
		Barrier   string  `cty:"barrier"`
		Remaining int64   `cty:"remaining"`
	}{a.LCO.view(), hex(uint64(a.Barrier)), a.Value}
}

// typeDecoder decodes a layout type block field by field.
type typeDecoder struct {
	typ *layout.Type
}

func (d typeDecoder) Size(Format) int {
	return int(d.typ.Size)
}

func (d typeDecoder) Decode(buf []byte, f Format) (cty.Value, error) {
	if len(buf) < int(d.typ.Size) {
		return cty.NilVal, fmt.Errorf("%s: have %d bytes, need %d", d.typ.Name, len(buf), d.typ.Size)
	}
	attrs := make(map[string]cty.Value, len(d.typ.Fields))
	for _, field := range d.typ.Fields {
		size, _ := layout.KindSize(field.Kind)
		if field.Kind == "ptr" {
			size = int64(f.Word)
		}
		b := buf[field.Offset : field.Offset+size]
		var raw uint64
		switch size {
		case 1:
			raw = uint64(b[0])
		case 2:
			raw = uint64(f.Order.Uint16(b))
		case 4:
			raw = uint64(f.Order.Uint32(b))
		case 8:
			raw = f.Order.Uint64(b)
		}
		switch field.Kind {
		case "u8", "u16", "u32", "u64":
			attrs[field.Name] = cty.NumberUIntVal(raw)
		case "i8":
			attrs[field.Name] = cty.NumberIntVal(int64(int8(raw)))
		case "i16":
			attrs[field.Name] = cty.NumberIntVal(int64(int16(raw)))
		case "i32":
			attrs[field.Name] = cty.NumberIntVal(int64(int32(raw)))
		case "i64":
			attrs[field.Name] = cty.NumberIntVal(int64(raw))
		case "bool":
			attrs[field.Name] = cty.BoolVal(raw != 0)
		case "ptr":
			attrs[field.Name] = cty.StringVal(hex(raw))
		case "f32":
			attrs[field.Name] = floatVal(float64(math.Float32frombits(uint32(raw))))
		case "f64":
			attrs[field.Name] = floatVal(math.Float64frombits(raw))
		}
	}
	return cty.ObjectVal(attrs), nil
}

// floatVal keeps NaN, which cty numbers cannot hold, as text.
func floatVal(v float64) cty.Value {
	if math.IsNaN(v) {
		return cty.StringVal("NaN")
	}
	return cty.NumberFloatVal(v)
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
