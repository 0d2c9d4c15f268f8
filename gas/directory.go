package gas

import (
	"fmt"
	"strings"

	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
)

// Directory maps a global address to the textual descriptor of the object
// living there, e.g. "0xABCD (struct future)".
type Directory interface {
	Describe(gva uint64) (string, error)
}

// NewDirectory prefers a table in target memory over the expression template.
func NewDirectory(o oracle.Oracle, cfg *layout.GAS) Directory {
	if cfg.Directory != nil {
		return &TableDirectory{o: o, cfg: *cfg.Directory}
	}
	return &ExprDirectory{o: o, Template: cfg.Descriptor}
}

// ExprDirectory asks the oracle to describe the address by evaluating
// Template with the address substituted.
type ExprDirectory struct {
	o        oracle.Oracle
	Template string
}

func (d *ExprDirectory) Describe(gva uint64) (string, error) {
	v, err := d.o.Evaluate(fmt.Sprintf(d.Template, gva))
	if err != nil {
		return "", &AddressError{GVA: gva, Err: err}
	} else if strings.TrimSpace(v.Text) == "" {
		return "", &AddressError{GVA: gva}
	}
	return v.Text, nil
}

type TableDirectory struct {
	o   oracle.Oracle
	cfg layout.Directory
}

func (d *TableDirectory) Describe(gva uint64) (string, error) {
	sym, err := d.o.LookupSymbol(d.cfg.Symbol)
	if err != nil {
		return "", &AddressError{GVA: gva, Err: err}
	}
	base := oracle.ToPointer(d.o, sym.Addr)
	n, err := base.Offset(d.cfg.Count).MemReadInt(uint64(d.cfg.CountSize))
	if err != nil {
		return "", &AddressError{GVA: gva, Err: err}
	}
	size, err := d.o.Arch().PointerSize()
	if err != nil {
		return "", err
	}
	for i := int64(0); i < n; i++ {
		entry := base.Offset(d.cfg.Entries + i*d.cfg.Stride)
		addr, err := entry.Offset(d.cfg.Addr).MemReadUint(size)
		if err != nil {
			return "", &AddressError{GVA: gva, Err: err}
		} else if addr != gva {
			continue
		}
		text, err := entry.Offset(d.cfg.Text).MemReadPointer()
		if err == nil {
			var s string
			if s, err = text.MemReadString(); err == nil {
				return s, nil
			}
		}
		return "", &AddressError{GVA: gva, Err: err}
	}
	return "", &AddressError{GVA: gva}
}

// ParseTypeName extracts the type name from the last parenthesized group of
// a descriptor.
func ParseTypeName(desc string) (string, bool) {
	end := strings.LastIndexByte(desc, ')')
	if end == -1 {
		return "", false
	}
	begin := strings.LastIndexByte(desc[:end], '(')
	if begin == -1 {
		return "", false
	}
	name := strings.Join(strings.Fields(desc[begin+1:end]), " ")
	return name, name != ""
}
