package loader

import (
	"debug/elf"
	"encoding/binary"
	"path/filepath"

	"github.com/wnxd/schedscope/oracle"
)

type elfModule struct {
	name    string
	arch    oracle.Arch
	order   oracle.ByteOrder
	bias    uint64
	regions []Region
	symbols map[string]oracle.Symbol
}

// OpenELF indexes the symbols of an ELF file. bias is added to every
// address; pass zero for non-PIE executables or remote stubs that report
// link-time addresses.
func OpenELF(path string, bias uint64) (Module, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m := &elfModule{
		name:    filepath.Base(path),
		bias:    bias,
		symbols: make(map[string]oracle.Symbol),
	}
	switch f.Machine {
	case elf.EM_X86_64:
		m.arch = oracle.ARCH_X86_64
	case elf.EM_386:
		m.arch = oracle.ARCH_X86
	case elf.EM_AARCH64:
		m.arch = oracle.ARCH_ARM64
	case elf.EM_ARM:
		m.arch = oracle.ARCH_ARM
	}
	if f.ByteOrder == binary.BigEndian {
		m.order = oracle.BO_BIG_ENDIAN
	}
	if f.Type == elf.ET_EXEC {
		m.bias = 0
	}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		region := Region{Addr: prog.Vaddr + m.bias, Size: prog.Memsz, Offset: prog.Off, Path: path}
		if prog.Flags&elf.PF_R != 0 {
			region.Prot |= MEM_PROT_READ
		}
		if prog.Flags&elf.PF_W != 0 {
			region.Prot |= MEM_PROT_WRITE
		}
		if prog.Flags&elf.PF_X != 0 {
			region.Prot |= MEM_PROT_EXEC
		}
		m.regions = append(m.regions, region)
	}
	syms, _ := f.Symbols()
	dyn, _ := f.DynamicSymbols()
	for _, s := range append(syms, dyn...) {
		if s.Value == 0 || s.Name == "" {
			continue
		}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_OBJECT, elf.STT_FUNC, elf.STT_TLS, elf.STT_NOTYPE:
		default:
			continue
		}
		if _, ok := m.symbols[s.Name]; !ok {
			m.symbols[s.Name] = oracle.Symbol{Name: s.Name, Addr: s.Value + m.bias, Size: s.Size}
		}
	}
	return m, nil
}

func (m *elfModule) Close() error                { return nil }
func (m *elfModule) Name() string                { return m.name }
func (m *elfModule) Arch() oracle.Arch           { return m.arch }
func (m *elfModule) ByteOrder() oracle.ByteOrder { return m.order }
func (m *elfModule) Regions() []Region           { return m.regions }
func (m *elfModule) BaseAddr() uint64            { return m.bias }

func (m *elfModule) FindSymbol(name string) (oracle.Symbol, error) {
	if sym, ok := m.symbols[name]; ok {
		return sym, nil
	}
	return oracle.Symbol{}, oracle.ErrSymbolNotFound
}
