// Package procmem is an oracle over a live Linux process. Memory is read
// with process_vm_readv; symbols come from the ELF files the process has
// mapped, relocated by /proc/<pid>/maps.
package procmem

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/wnxd/schedscope/internal/expr"
	"github.com/wnxd/schedscope/loader"
	"github.com/wnxd/schedscope/oracle"
)

var ErrNoExecutable = errors.New("procmem: executable not mapped")

type Process struct {
	pid     int
	exe     loader.Module
	modules loader.Modules
	regions []loader.Region
	logger  *slog.Logger
}

func Open(pid int, logger *slog.Logger) (*Process, error) {
	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	regions, err := loader.ParseMaps(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	p := &Process{pid: pid, regions: regions, logger: logger}
	seen := make(map[string]bool)
	for _, r := range regions {
		if r.Offset != 0 || !strings.HasPrefix(r.Path, "/") || seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		path := r.Path
		if path == exe {
			// the link survives the file being replaced on disk
			path = fmt.Sprintf("/proc/%d/exe", pid)
		}
		m, err := loader.OpenELF(path, r.Addr)
		if err != nil {
			logger.Debug("Skipping mapping.", "path", r.Path, "error", err)
			continue
		}
		if r.Path == exe {
			p.exe = m
			p.modules = append(loader.Modules{m}, p.modules...)
		} else {
			p.modules = append(p.modules, m)
		}
	}
	if p.exe == nil {
		p.modules.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoExecutable, exe)
	}
	logger.Debug("Process opened.", "pid", pid, "exe", exe, "modules", len(p.modules), "arch", p.exe.Arch())
	return p, nil
}

func (p *Process) Close() error {
	return p.modules.Close()
}

func (p *Process) Pid() int {
	return p.pid
}

func (p *Process) Regions() []loader.Region {
	return p.regions
}

func (p *Process) Arch() oracle.Arch {
	return p.exe.Arch()
}

func (p *Process) ByteOrder() oracle.ByteOrder {
	return p.exe.ByteOrder()
}

func (p *Process) LookupSymbol(name string) (oracle.Symbol, error) {
	return p.modules.FindSymbol(name)
}

func (p *Process) Evaluate(src string) (oracle.Value, error) {
	return expr.Evaluate(p, src)
}
