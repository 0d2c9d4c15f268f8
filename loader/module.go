package loader

import (
	"io"

	"github.com/wnxd/schedscope/oracle"
)

// Module is a symbol image for the target: the executable or a shared
// library, placed at its load address.
type Module interface {
	io.Closer
	Name() string
	Arch() oracle.Arch
	ByteOrder() oracle.ByteOrder
	Regions() []Region
	BaseAddr() uint64
	FindSymbol(name string) (oracle.Symbol, error)
}

// Modules searches a list of modules in order.
type Modules []Module

func (ms Modules) FindSymbol(name string) (oracle.Symbol, error) {
	for _, m := range ms {
		sym, err := m.FindSymbol(name)
		if err == nil {
			return sym, nil
		}
	}
	return oracle.Symbol{}, oracle.ErrSymbolNotFound
}

func (ms Modules) Close() error {
	var first error
	for _, m := range ms {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
