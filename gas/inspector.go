// Package gas inspects synchronization objects in the global address space.
package gas

import (
	"context"
	"log/slog"

	"github.com/zclconf/go-cty/cty"
)

type Object struct {
	GVA      uint64
	TypeName string
	Value    cty.Value
}

type Inspector struct {
	dir       Directory
	decoders  *Registry
	transport Transport
	format    Format
	logger    *slog.Logger
}

func NewInspector(dir Directory, decoders *Registry, transport Transport, format Format, logger *slog.Logger) *Inspector {
	return &Inspector{dir: dir, decoders: decoders, transport: transport, format: format, logger: logger}
}

// Inspect resolves the type of the object at gva, copies it into a scratch
// buffer and decodes it. The buffer does not outlive the call.
func (in *Inspector) Inspect(ctx context.Context, gva uint64) (*Object, error) {
	desc, err := in.dir.Describe(gva)
	if err != nil {
		return nil, err
	}
	name, ok := ParseTypeName(desc)
	if !ok {
		return nil, &TypeError{Descriptor: desc}
	}
	dec, ok := in.decoders.Lookup(name)
	if !ok {
		return nil, &TypeError{Descriptor: desc, Name: name}
	}
	buf := make([]byte, dec.Size(in.format))
	in.logger.Debug("Transferring object.", "gva", hex(gva), "type", name, "size", len(buf))
	if err = in.transport.Transfer(ctx, buf, gva); err != nil {
		return nil, &TransferError{GVA: gva, Size: len(buf), Err: err}
	}
	v, err := dec.Decode(buf, in.format)
	if err != nil {
		return nil, &TypeError{Descriptor: desc, Name: name}
	}
	return &Object{GVA: gva, TypeName: name, Value: v}, nil
}
