package gas

import (
	"context"
	"fmt"

	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
)

// Transport copies len(dst) bytes from a global address. Transfers block
// until complete or until ctx is done.
type Transport interface {
	Transfer(ctx context.Context, dst []byte, gva uint64) error
}

type TransportFunc func(ctx context.Context, dst []byte, gva uint64) error

func (fn TransportFunc) Transfer(ctx context.Context, dst []byte, gva uint64) error {
	return fn(ctx, dst, gva)
}

// Space splits global addresses into a locality and an offset.
type Space struct {
	Shift uint
}

func (s Space) Locality(gva uint64) uint64 {
	if s.Shift == 0 || s.Shift >= 64 {
		return 0
	}
	return gva >> s.Shift
}

// LocalTransport reads objects owned by the attached process through the
// oracle. Base and Mask translate a global address to a local one as
// Base + gva&Mask; a zero Mask reads the global address as is.
type LocalTransport struct {
	o    oracle.Oracle
	Base uint64
	Mask uint64
}

func NewLocalTransport(o oracle.Oracle) *LocalTransport {
	return &LocalTransport{o: o}
}

// LayoutTransport returns the local transport for cfg, evaluating the
// translation base when the layout has one.
func LayoutTransport(o oracle.Oracle, cfg *layout.GAS) (*LocalTransport, error) {
	t := NewLocalTransport(o)
	if cfg == nil || cfg.Translate == nil {
		return t, nil
	}
	v, err := o.Evaluate(cfg.Translate.Base)
	if err != nil {
		return nil, fmt.Errorf("gas.translate.base: %w", err)
	}
	t.Base, t.Mask = v.Addr, cfg.Translate.Mask()
	return t, nil
}

func (t *LocalTransport) Translate(gva uint64) uint64 {
	if t.Mask == 0 {
		return gva
	}
	return t.Base + gva&t.Mask
}

func (t *LocalTransport) Transfer(ctx context.Context, dst []byte, gva uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := oracle.ToPointer(t.o, t.Translate(gva)).MemRead(uint64(len(dst)))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Router sends a transfer to the transport of the locality owning the
// address.
type Router struct {
	Space  Space
	Here   uint64
	Local  Transport
	Remote map[uint64]Transport
}

func (r *Router) Transfer(ctx context.Context, dst []byte, gva uint64) error {
	loc := r.Space.Locality(gva)
	if loc == r.Here {
		return r.Local.Transfer(ctx, dst, gva)
	} else if t, ok := r.Remote[loc]; ok {
		return t.Transfer(ctx, dst, gva)
	}
	return fmt.Errorf("no agent for locality %d", loc)
}
