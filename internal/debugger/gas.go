package debugger

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wnxd/schedscope/debugger"
	"github.com/wnxd/schedscope/gas"
	"github.com/wnxd/schedscope/internal/expr"
	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
)

var errNoGAS = errors.New("layout has no gas block")

type gasManager struct {
	s      *Session
	remote map[uint64]gas.Transport
}

func (gm *gasManager) ctor(s *Session, remote map[uint64]gas.Transport) {
	gm.s = s
	gm.remote = remote
}

func (gm *gasManager) dtor() {
	for _, t := range gm.remote {
		if c, ok := t.(io.Closer); ok {
			c.Close()
		}
	}
}

// resolveGVA turns a command argument into a global address: a number is
// taken as is, a symbol names a variable holding the address, and anything
// else is evaluated as an expression.
func (gm *gasManager) resolveGVA(name string) (uint64, error) {
	if v, ok := expr.Literal(name); ok {
		return v, nil
	}
	o := gm.s.o
	if sym, err := o.LookupSymbol(name); err == nil {
		p, err := oracle.ToPointer(o, sym.Addr).MemReadPointer()
		if err != nil {
			return 0, &debugger.NameError{Name: name, Err: err}
		}
		return p.Address(), nil
	}
	v, err := o.Evaluate(name)
	if err != nil {
		return 0, &debugger.NameError{Name: name, Err: err}
	}
	return v.Addr, nil
}

func (gm *gasManager) inspector(l *layout.Layout) (*gas.Inspector, error) {
	o, logger := gm.s.o, gm.s.logger
	cfg := l.GAS
	word, err := o.Arch().PointerSize()
	if err != nil {
		return nil, err
	}
	local, err := gas.LayoutTransport(o, cfg)
	if err != nil {
		return nil, err
	}
	router := &gas.Router{
		Space:  gas.Space{Shift: uint(cfg.LocalityShift)},
		Local:  local,
		Remote: gm.remote,
	}
	if cfg.Rank != "" {
		v, err := o.Evaluate(cfg.Rank)
		if err == nil {
			router.Here, err = oracle.ToPointer(o, v.Addr).MemReadUint(uint64(cfg.RankSize))
		}
		if err != nil {
			logger.Warn("Locality rank unreadable, assuming 0.", "expr", cfg.Rank, "error", err)
		}
	}
	format := gas.Format{Word: int(word), Order: o.ByteOrder().Binary()}
	return gas.NewInspector(gas.NewDirectory(o, cfg), gas.NewRegistry(l.Types), router, format, logger), nil
}

func (s *Session) LCO(ctx context.Context, w io.Writer, name string) error {
	l := s.layout.Load()
	if l.GAS == nil {
		return fmt.Errorf("lco: %w", errNoGAS)
	}
	gva, err := s.resolveGVA(name)
	if err != nil {
		return err
	}
	in, err := s.inspector(l)
	if err != nil {
		return err
	}
	obj, err := in.Inspect(ctx, gva)
	if err != nil {
		return err
	}
	return gas.Render(w, obj)
}
