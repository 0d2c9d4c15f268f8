package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/schedscope/internal/expr"
	"github.com/wnxd/schedscope/internal/memimage"
	"github.com/wnxd/schedscope/oracle"
)

func newImage() *memimage.Image {
	img := memimage.New(oracle.ARCH_X86_64, oracle.BO_LITTLE_ENDIAN)
	img.Map(0x1000, 0x100)
	img.AddSymbol("here", 0x1000, 8)
	img.PutPointer(0x1000, 0x1040)
	img.PutPointer(0x1040+0x28, 0xdead0000)
	return img
}

func TestEvaluate(t *testing.T) {
	img := newImage()

	tests := []struct {
		src  string
		want uint64
	}{
		{"0x10", 0x10},
		{"42", 42},
		{"here", 0x1000},
		{"&here", 0x1000},
		{"*here", 0x1040},
		{"*here + 0x28", 0x1068},
		{"*(*here + 0x28)", 0xdead0000},
		{"here+8-4", 0x1004},
		{" ( here ) ", 0x1000},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v, err := expr.Evaluate(img, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Addr)
			assert.Equal(t, tt.src, v.Expr)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	img := newImage()

	for _, src := range []string{"", "here +", "(here", "missing", "*0x9000", "here ]", "&3"} {
		t.Run(src, func(t *testing.T) {
			_, err := expr.Evaluate(img, src)
			require.Error(t, err)
			assert.ErrorIs(t, err, oracle.ErrUnreadable)
		})
	}
}

func TestLiteral(t *testing.T) {
	v, ok := expr.Literal(" 0xABCD ")
	require.True(t, ok)
	assert.Equal(t, uint64(0xabcd), v)

	_, ok = expr.Literal("future")
	assert.False(t, ok)
}
