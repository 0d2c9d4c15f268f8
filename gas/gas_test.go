package gas_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/schedscope/gas"
	"github.com/wnxd/schedscope/internal/memimage"
	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
	"github.com/zclconf/go-cty/cty"
)

var format = gas.Format{Word: 8, Order: binary.LittleEndian}

func newInspector(img *memimage.Image, transport gas.Transport) *gas.Inspector {
	dir := gas.NewDirectory(img, &layout.GAS{Descriptor: "%#x"})
	return gas.NewInspector(dir, gas.NewRegistry(layout.Default().Types), transport, format,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseTypeName(t *testing.T) {
	tests := []struct {
		desc string
		name string
		ok   bool
	}{
		{"0xABCD (struct future)", "struct future", true},
		{"(hpx_addr_t) 0xABCD <lco> (struct  sema )", "struct sema", true},
		{"0xABCD", "", false},
		{"0xABCD ()", "", false},
		{"0xABCD struct future)", "", false},
	}
	for _, tt := range tests {
		name, ok := gas.ParseTypeName(tt.desc)
		assert.Equal(t, tt.ok, ok, tt.desc)
		assert.Equal(t, tt.name, name, tt.desc)
	}
}

func TestInspect_TransferFailed(t *testing.T) {
	img := memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN)
	img.SetExpr("0xabcd", oracle.Value{Addr: 0xabcd, Text: "0xABCD (struct future)"})

	var size int
	failing := gas.TransportFunc(func(_ context.Context, dst []byte, gva uint64) error {
		size = len(dst)
		return errors.New("photon: remote get aborted")
	})
	_, err := newInspector(img, failing).Inspect(context.Background(), 0xabcd)
	require.ErrorIs(t, err, gas.ErrTransferFailed)
	assert.Contains(t, err.Error(), "photon: remote get aborted")

	dec, ok := gas.NewRegistry(nil).Lookup("struct future")
	require.True(t, ok)
	assert.Equal(t, dec.Size(format), size)
	assert.Equal(t, 16, size)
}

func TestInspect_Future(t *testing.T) {
	img := memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN)
	const gva = 0x0001000000000200
	img.SetExpr("0x1000000000200", oracle.Value{Text: "<lco> (struct future)"})
	img.Map(0x50000, 0x1000)
	img.PutUint(0x50200, 8, 0x7f00_0000_1000|0x2)
	img.PutUint(0x50208, 8, 0x7f00_0000_2000)

	local := gas.NewLocalTransport(img)
	local.Base, local.Mask = 0x50000, 0xffff
	router := &gas.Router{Space: gas.Space{Shift: 48}, Here: 1, Local: local}

	obj, err := newInspector(img, router).Inspect(context.Background(), gva)
	require.NoError(t, err)
	assert.Equal(t, "struct future", obj.TypeName)
	lco := obj.Value.GetAttr("lco")
	assert.True(t, lco.GetAttr("triggered").True())
	assert.False(t, lco.GetAttr("locked").True())
	assert.Equal(t, cty.StringVal("0x7f0000001000"), lco.GetAttr("waiters"))
	assert.Equal(t, cty.StringVal("0x7f0000002000"), obj.Value.GetAttr("value"))

	var out bytes.Buffer
	require.NoError(t, gas.Render(&out, obj))
	assert.Contains(t, out.String(), "(struct future) 0x1000000000200 = {")
	assert.Contains(t, out.String(), "    triggered = true\n")
	assert.Contains(t, out.String(), "  value = 0x7f0000002000\n")
}

func TestInspect_LayoutType(t *testing.T) {
	img := memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN)
	img.SetExpr("0x60000", oracle.Value{Text: "0x60000 (struct gencount)"})
	img.Map(0x60000, 64)
	img.PutUint(0x60000+48, 8, 7)
	img.PutUint(0x60000+56, 4, 2)

	obj, err := newInspector(img, gas.NewLocalTransport(img)).Inspect(context.Background(), 0x60000)
	require.NoError(t, err)
	assert.True(t, obj.Value.GetAttr("gen").Equals(cty.NumberIntVal(7)).True())
	assert.True(t, obj.Value.GetAttr("ninplace").Equals(cty.NumberIntVal(2)).True())
}

func TestInspect_Sema(t *testing.T) {
	dec, ok := gas.NewRegistry(nil).Lookup("struct sema")
	require.True(t, ok)
	buf := make([]byte, dec.Size(format))
	require.Len(t, buf, 16)
	binary.LittleEndian.PutUint64(buf, 0x5)
	binary.LittleEndian.PutUint32(buf[8:], 3)

	v, err := dec.Decode(buf, format)
	require.NoError(t, err)
	assert.True(t, v.GetAttr("count").Equals(cty.NumberIntVal(3)).True())
	assert.True(t, v.GetAttr("lco").GetAttr("user").True())
	assert.True(t, v.GetAttr("lco").GetAttr("locked").True())
}

func TestInspect_Failures(t *testing.T) {
	img := memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN)
	img.SetExpr("0x10", oracle.Value{Text: "0x10 (struct mystery)"})
	in := newInspector(img, gas.NewLocalTransport(img))

	_, err := in.Inspect(context.Background(), 0x10)
	require.ErrorIs(t, err, gas.ErrUnsupportedType)
	assert.Contains(t, err.Error(), "struct mystery")

	// the raw evaluator only answers with the number
	_, err = in.Inspect(context.Background(), 0x20)
	require.ErrorIs(t, err, gas.ErrUnsupportedType)

	dir := gas.NewDirectory(img, &layout.GAS{Descriptor: "lco_of(%#x)"})
	_, err = dir.Describe(0x30)
	require.ErrorIs(t, err, gas.ErrUnresolvedAddress)
	assert.ErrorIs(t, err, oracle.ErrSymbolNotFound)
}

func TestTableDirectory(t *testing.T) {
	img := memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN)
	img.Map(0x1000, 0x100)
	img.AddSymbol("lco_directory", 0x1000, 0x100)
	img.PutUint(0x1000, 4, 2)
	// entries of {gva, text*} from 0x1008
	img.PutPointer(0x1008, 0xaaaa)
	img.PutPointer(0x1010, 0x1080)
	img.PutPointer(0x1018, 0xbbbb)
	img.PutPointer(0x1020, 0x10c0)
	img.PutString(0x1080, "0xaaaa (struct sema)")
	img.PutString(0x10c0, "0xbbbb (struct and)")

	dir := gas.NewDirectory(img, &layout.GAS{Directory: &layout.Directory{
		Symbol: "lco_directory", CountSize: 4, Entries: 8, Stride: 16, Addr: 0, Text: 8,
	}})
	desc, err := dir.Describe(0xbbbb)
	require.NoError(t, err)
	assert.Equal(t, "0xbbbb (struct and)", desc)

	_, err = dir.Describe(0xcccc)
	require.ErrorIs(t, err, gas.ErrUnresolvedAddress)
}

func TestRouter(t *testing.T) {
	var got []string
	named := func(name string) gas.Transport {
		return gas.TransportFunc(func(context.Context, []byte, uint64) error {
			got = append(got, name)
			return nil
		})
	}
	r := &gas.Router{
		Space:  gas.Space{Shift: 48},
		Here:   0,
		Local:  named("local"),
		Remote: map[uint64]gas.Transport{2: named("node2")},
	}
	ctx := context.Background()
	require.NoError(t, r.Transfer(ctx, nil, 0x1234))
	require.NoError(t, r.Transfer(ctx, nil, 2<<48|0x1234))
	assert.Error(t, r.Transfer(ctx, nil, 3<<48))
	assert.Equal(t, []string{"local", "node2"}, got)
}

func TestInspect_FloatNaN(t *testing.T) {
	reduce := &layout.Type{Name: "struct reduce", Size: 16, Fields: []*layout.Field{
		{Name: "value", Offset: 0, Kind: "f64"},
		{Name: "partial", Offset: 8, Kind: "f32"},
		{Name: "scale", Offset: 12, Kind: "f32"},
	}}
	img := memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN)
	img.SetExpr("0x60000", oracle.Value{Text: "0x60000 (struct reduce)"})
	img.Map(0x60000, 0x100)
	img.PutUint(0x60000, 8, math.Float64bits(math.NaN()))
	img.PutUint(0x60008, 4, uint64(math.Float32bits(float32(math.NaN()))))
	img.PutUint(0x6000c, 4, uint64(math.Float32bits(1.5)))

	dir := gas.NewDirectory(img, &layout.GAS{Descriptor: "%#x"})
	in := gas.NewInspector(dir, gas.NewRegistry([]*layout.Type{reduce}), gas.NewLocalTransport(img), format,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	var obj *gas.Object
	var err error
	require.NotPanics(t, func() { obj, err = in.Inspect(context.Background(), 0x60000) })
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("NaN"), obj.Value.GetAttr("value"))
	assert.Equal(t, cty.StringVal("NaN"), obj.Value.GetAttr("partial"))
	assert.True(t, obj.Value.GetAttr("scale").Equals(cty.NumberFloatVal(1.5)).True())

	var out bytes.Buffer
	require.NoError(t, gas.Render(&out, obj))
	assert.Contains(t, out.String(), "  value = NaN\n")
}

func TestTypeDecoder_PointerWord(t *testing.T) {
	node := &layout.Type{Name: "struct node", Size: 8, Fields: []*layout.Field{
		{Name: "next", Offset: 0, Kind: "ptr"},
		{Name: "depth", Offset: 4, Kind: "u32"},
	}}
	dec, ok := gas.NewRegistry([]*layout.Type{node}).Lookup("struct node")
	require.True(t, ok)

	buf := []byte{0x00, 0x10, 0, 0, 7, 0, 0, 0}
	v, err := dec.Decode(buf, gas.Format{Word: 4, Order: binary.LittleEndian})
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("0x1000"), v.GetAttr("next"))
	assert.True(t, v.GetAttr("depth").Equals(cty.NumberIntVal(7)).True())

	v, err = dec.Decode(buf, format)
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("0x700001000"), v.GetAttr("next"))
}
