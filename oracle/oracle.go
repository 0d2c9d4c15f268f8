package oracle

import (
	"context"

	"github.com/wnxd/schedscope/frames"
)

type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

// Value is the result of evaluating an expression. Addr carries the numeric
// result (an address or an integer), Text the host's textual rendering.
type Value struct {
	Expr string
	Addr uint64
	Text string
}

type Oracle interface {
	Arch() Arch
	ByteOrder() ByteOrder
	Evaluate(expr string) (Value, error)
	ReadBytes(addr, size uint64) ([]byte, error)
	LookupSymbol(name string) (Symbol, error)
}

// Resumer is implemented by oracles that can let the target run.
type Resumer interface {
	ContinueUntil(ctx context.Context, addr uint64) error
}

// Unwinder is implemented by oracles that can produce the current backtrace.
type Unwinder interface {
	Frames() (frames.Source, error)
}

func ToPointer(o Oracle, addr uint64) Pointer {
	return Pointer{o, addr}
}
