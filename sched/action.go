package sched

import (
	"fmt"
	"strings"

	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
)

// ActionTable resolves action ids through the registry in target memory.
// The registry does not change once the runtime has started, so names are
// cached for the table's lifetime.
type ActionTable struct {
	base  oracle.Pointer
	count int64
	cfg   layout.Actions
	names map[int64]string
}

// Actions locates the action registry, either by symbol or through a pointer
// stored in the scheduler root.
func (r *Reader) Actions(root oracle.Pointer) (*ActionTable, error) {
	cfg := r.layout.Actions
	var base oracle.Pointer
	if cfg.RootOffset != nil {
		p, err := root.Offset(*cfg.RootOffset).MemReadPointer()
		if err != nil {
			return nil, fmt.Errorf("action table: %w", err)
		}
		base = p
	} else {
		sym, err := r.o.LookupSymbol(cfg.Symbol)
		if err != nil {
			return nil, fmt.Errorf("action table %s: %w", cfg.Symbol, err)
		}
		base = oracle.ToPointer(r.o, sym.Addr)
	}
	count, err := base.Offset(cfg.Count).MemReadInt(uint64(cfg.CountSize))
	if err != nil {
		return nil, fmt.Errorf("action table count: %w", err)
	}
	return &ActionTable{base: base, count: count, cfg: cfg, names: make(map[int64]string)}, nil
}

func (t *ActionTable) Len() int64 {
	if t == nil {
		return 0
	}
	return min(t.count, t.cfg.Capacity)
}

// Resolve returns the registered key of action id. Ids outside the table
// fail with ErrNotFound before any memory is read.
func (t *ActionTable) Resolve(id int64) (string, error) {
	if id < 0 || id >= t.Len() {
		return "", &ActionError{ID: id, Count: t.Len()}
	}
	if name, ok := t.names[id]; ok {
		return name, nil
	}
	key, err := t.base.Offset(t.cfg.Entries + id*t.cfg.Stride + t.cfg.Key).MemReadPointer()
	if err != nil {
		return "", err
	}
	s, err := key.MemReadString()
	if err != nil {
		return "", err
	}
	name := Unquote(s)
	t.names[id] = name
	return name, nil
}

// Unquote strips the double quotes around a key's textual form. Text before
// the opening quote, such as a leading address, is dropped with them.
func Unquote(s string) string {
	i, j := strings.IndexByte(s, '"'), strings.LastIndexByte(s, '"')
	if i == -1 || i == j {
		return s
	}
	return s[i+1 : j]
}
